package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"albumsync/internal/models"
	"albumsync/internal/shared"
)

// commandRunner executes an external command and returns its combined output.
// Injectable for tests.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// PhotosCatalog implements Catalog over the osxphotos CLI.
//
// The library is queried once and cached for the lifetime of the catalog,
// since the catalog is not expected to change mid-run.
type PhotosCatalog struct {
	binPath     string
	libraryPath string
	sharedOnly  bool
	run         commandRunner

	loaded bool
	albums []models.AlbumDescriptor
	assets map[string][]models.AssetRecord
}

// PhotosCatalogOpts configures a PhotosCatalog.
type PhotosCatalogOpts struct {
	BinPath     string // osxphotos executable, defaults to "osxphotos"
	LibraryPath string // explicit library bundle, empty for the system default
	SharedOnly  bool   // restrict to shared albums
}

// NewPhotosCatalog creates a catalog backed by the osxphotos CLI.
func NewPhotosCatalog(opts PhotosCatalogOpts) *PhotosCatalog {
	if opts.BinPath == "" {
		opts.BinPath = "osxphotos"
	}
	return &PhotosCatalog{
		binPath:     opts.BinPath,
		libraryPath: opts.LibraryPath,
		sharedOnly:  opts.SharedOnly,
		run:         runCommand,
	}
}

// photoInfo mirrors the fields of osxphotos query --json output that the
// engine cares about.
type photoInfo struct {
	UUID             string   `json:"uuid"`
	OriginalFilename string   `json:"original_filename"`
	Date             string   `json:"date"`
	IsMissing        bool     `json:"ismissing"`
	Albums           []string `json:"albums"`
}

// load queries the library and groups photos into albums by title.
// Titles double as album keys: Photos keeps shared album titles unique.
func (c *PhotosCatalog) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}

	args := []string{"query", "--json"}
	if c.sharedOnly {
		args = append(args, "--shared")
	}
	if c.libraryPath != "" {
		args = append(args, "--library", c.libraryPath)
	}

	out, err := c.run(ctx, c.binPath, args...)
	if err != nil {
		return fmt.Errorf("%w: osxphotos query failed: %v", shared.ErrCatalog, err)
	}

	var photos []photoInfo
	if err := json.Unmarshal(out, &photos); err != nil {
		return fmt.Errorf("%w: failed to parse osxphotos output: %v", shared.ErrCatalog, err)
	}

	c.assets = make(map[string][]models.AssetRecord)
	var order []string
	seen := make(map[string]bool)

	for _, p := range photos {
		record := models.AssetRecord{
			UUID:             p.UUID,
			Filename:         p.OriginalFilename,
			CapturedAt:       parsePhotoDate(p.Date),
			LocallyAvailable: !p.IsMissing,
		}
		for _, title := range p.Albums {
			if !seen[title] {
				seen[title] = true
				order = append(order, title)
			}
			c.assets[title] = append(c.assets[title], record)
		}
	}

	sort.Strings(order)
	c.albums = make([]models.AlbumDescriptor, 0, len(order))
	for _, title := range order {
		members := c.assets[title]
		uuids := make([]string, len(members))
		for i, m := range members {
			uuids[i] = m.UUID
		}
		c.albums = append(c.albums, models.AlbumDescriptor{
			Key:        title,
			Title:      title,
			AssetUUIDs: uuids,
		})
	}

	c.loaded = true
	return nil
}

// ListAlbums returns all albums found in the library, sorted by title.
func (c *PhotosCatalog) ListAlbums(ctx context.Context) ([]models.AlbumDescriptor, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c.albums, nil
}

// ListAssets returns the member assets of an album in album order.
func (c *PhotosCatalog) ListAssets(ctx context.Context, albumKey string) ([]models.AssetRecord, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	assets, ok := c.assets[albumKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrAlbumNotFound, albumKey)
	}
	return assets, nil
}

// parsePhotoDate parses the ISO timestamp osxphotos emits. A zero time is
// returned for unparseable dates; capture time is display-only metadata.
func parsePhotoDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
