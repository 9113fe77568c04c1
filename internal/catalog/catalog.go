// package catalog reads the local Photos library through the osxphotos CLI.
//
// The catalog is a read-only external collaborator: the engine enumerates
// albums and assets from it once per run and never modifies it.
package catalog

import (
	"context"

	"albumsync/internal/models"
)

// Catalog enumerates the local asset library.
type Catalog interface {
	// ListAlbums returns the albums to sync, in the library's own order.
	ListAlbums(ctx context.Context) ([]models.AlbumDescriptor, error)

	// ListAssets returns the member assets of an album, in album order.
	ListAssets(ctx context.Context, albumKey string) ([]models.AssetRecord, error)
}

// Fetcher ensures an asset's bytes exist on local storage, triggering a cloud
// download when requested. Returns the exported file paths; an empty slice
// means the export produced nothing.
type Fetcher interface {
	Export(ctx context.Context, asset models.AssetRecord, destDir string, downloadMissing bool) ([]string, error)
}
