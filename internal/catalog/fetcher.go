package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"albumsync/internal/models"
	"albumsync/internal/shared"
)

// PhotosFetcher implements Fetcher over the osxphotos export command.
//
// Exported files are named by asset UUID so callers can map them back to
// catalog records without trusting filenames.
type PhotosFetcher struct {
	binPath     string
	libraryPath string
	run         commandRunner
}

// NewPhotosFetcher creates a fetcher backed by the osxphotos CLI.
func NewPhotosFetcher(binPath, libraryPath string) *PhotosFetcher {
	if binPath == "" {
		binPath = "osxphotos"
	}
	return &PhotosFetcher{
		binPath:     binPath,
		libraryPath: libraryPath,
		run:         runCommand,
	}
}

// Export materializes a single asset into destDir and returns the produced
// file paths. With downloadMissing set, osxphotos pulls the original from
// iCloud first, which can take arbitrarily long.
func (f *PhotosFetcher) Export(ctx context.Context, asset models.AssetRecord, destDir string, downloadMissing bool) ([]string, error) {
	args := []string{
		"export", destDir,
		"--filename", "{uuid}",
		"--retry", "2",
		"--ignore-exportdb",
		"--no-exportdb",
		"--uuid", asset.UUID,
	}
	if downloadMissing {
		args = append(args, "--download-missing", "--use-photokit")
	}
	if f.libraryPath != "" {
		args = append(args, "--library", f.libraryPath)
	}

	out, err := f.run(ctx, f.binPath, args...)
	if err != nil {
		return nil, classifyExportError(err, string(out))
	}

	// A Live Photo exports as an image plus a video clip; glob picks up both.
	files, err := filepath.Glob(filepath.Join(destDir, asset.UUID+".*"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad export glob: %v", shared.ErrMaterializePermanent, err)
	}
	return files, nil
}

// classifyExportError maps an osxphotos export failure onto the
// materialization error taxonomy.
func classifyExportError(err error, output string) error {
	if strings.Contains(output, "could not get authorization") {
		// Missing Photos library permissions will fail every asset the same
		// way; no point retrying within the run.
		return fmt.Errorf("%w: Photos library access not authorized "+
			"(grant access under System Settings > Privacy & Security > Photos)", shared.ErrMaterializePermanent)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: export interrupted: %v", shared.ErrMaterializeTransient, err)
	}
	return fmt.Errorf("%w: osxphotos export failed: %v", shared.ErrMaterializeTransient, err)
}
