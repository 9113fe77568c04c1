// package materialize ensures an asset's bytes exist on local storage before
// transfer, and deletes them afterwards.
//
// Materializations are strictly transient: every asset gets its own scratch
// subdirectory, created right before transfer and removed unconditionally via
// [Materialization.Release] once the transfer outcome is known.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"albumsync/internal/catalog"
	"albumsync/internal/models"
	"albumsync/internal/shared"
)

// Materialization is a handle to an asset's bytes on local disk.
type Materialization struct {
	// Path is the primary file to upload. A Live Photo also exports a video
	// clip; the image component is uploaded, consistent with per-asset
	// bookkeeping being keyed by the asset, not its sidecar files.
	Path string

	dir      string
	released bool
}

// Release deletes the materialized bytes. Idempotent; called on every
// processing path, success or failure, to bound disk usage.
func (m *Materialization) Release() error {
	if m == nil || m.released {
		return nil
	}
	m.released = true
	return os.RemoveAll(m.dir)
}

// Materializer produces Materializations from catalog asset records.
type Materializer struct {
	fetcher catalog.Fetcher
	workDir string
}

// NewMaterializer creates a Materializer writing under workDir.
// An empty workDir falls back to the OS temp directory.
func NewMaterializer(fetcher catalog.Fetcher, workDir string) (*Materializer, error) {
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "albumsync-"+shared.GenerateID())
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	return &Materializer{fetcher: fetcher, workDir: workDir}, nil
}

// WorkDir returns the scratch directory root.
func (m *Materializer) WorkDir() string {
	return m.workDir
}

// Close removes the scratch directory root and anything left in it.
func (m *Materializer) Close() error {
	return os.RemoveAll(m.workDir)
}

// Materialize ensures the asset's bytes exist locally.
//
// Locally available assets take the fast export path; assets that live only
// in the cloud go through the downloading export, which may take arbitrarily
// long. Errors wrap ErrMaterializeTransient or ErrMaterializePermanent so
// callers can decide whether a retry is worthwhile.
func (m *Materializer) Materialize(ctx context.Context, asset models.AssetRecord) (*Materialization, error) {
	dir := filepath.Join(m.workDir, asset.UUID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create scratch dir: %v", shared.ErrMaterializeTransient, err)
	}

	files, err := m.export(ctx, asset, dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	if len(files) == 0 {
		os.RemoveAll(dir)
		// The downloading export already ran and still produced nothing:
		// the original is gone from the cloud library too.
		return nil, fmt.Errorf("%w: no bytes produced for %s (%s)",
			shared.ErrMaterializePermanent, asset.UUID, asset.Filename)
	}

	return &Materialization{Path: pickPrimary(files), dir: dir}, nil
}

// export runs the fetcher, falling back to the downloading path when a
// supposedly local asset exports nothing (stale catalog availability flag).
func (m *Materializer) export(ctx context.Context, asset models.AssetRecord, dir string) ([]string, error) {
	if !asset.LocallyAvailable {
		return m.fetcher.Export(ctx, asset, dir, true)
	}

	files, err := m.fetcher.Export(ctx, asset, dir, false)
	if err != nil && !errors.Is(err, shared.ErrMaterializeTransient) {
		return nil, err
	}
	if err == nil && len(files) > 0 {
		return files, nil
	}
	return m.fetcher.Export(ctx, asset, dir, true)
}

// pickPrimary chooses the file to upload from an export. Exports are named
// <uuid>.<ext>; sort order makes the choice deterministic and prefers the
// image component of a Live Photo (jpg/heic before mov).
func pickPrimary(files []string) string {
	primary := files[0]
	for _, f := range files[1:] {
		if f < primary {
			primary = f
		}
	}
	return primary
}
