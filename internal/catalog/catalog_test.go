package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"albumsync/internal/models"
	"albumsync/internal/shared"
)

const queryOutput = `[
  {
    "uuid": "AAA-111",
    "original_filename": "IMG_0001.jpg",
    "date": "2020-07-04T10:30:00+02:00",
    "ismissing": false,
    "albums": ["Trip2020"]
  },
  {
    "uuid": "BBB-222",
    "original_filename": "IMG_0002.jpg",
    "date": "2020-07-05T11:00:00+02:00",
    "ismissing": true,
    "albums": ["Trip2020", "Favorites"]
  },
  {
    "uuid": "CCC-333",
    "original_filename": "IMG_0003.heic",
    "date": "",
    "ismissing": false,
    "albums": ["Favorites"]
  }
]`

func fakeRunner(output []byte, err error, calls *[][]string) commandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if calls != nil {
			*calls = append(*calls, append([]string{name}, args...))
		}
		return output, err
	}
}

func TestPhotosCatalog(t *testing.T) {
	t.Run("ListAlbums", func(t *testing.T) {
		var calls [][]string
		c := NewPhotosCatalog(PhotosCatalogOpts{SharedOnly: true, LibraryPath: "/lib/Photos.photoslibrary"})
		c.run = fakeRunner([]byte(queryOutput), nil, &calls)

		albums, err := c.ListAlbums(context.Background())
		if err != nil {
			t.Fatalf("ListAlbums failed: %v", err)
		}

		if len(albums) != 2 {
			t.Fatalf("expected 2 albums, got %d", len(albums))
		}
		if albums[0].Title != "Favorites" || albums[1].Title != "Trip2020" {
			t.Errorf("unexpected album order: %v, %v", albums[0].Title, albums[1].Title)
		}
		if len(albums[1].AssetUUIDs) != 2 {
			t.Errorf("expected 2 assets in Trip2020, got %d", len(albums[1].AssetUUIDs))
		}

		if len(calls) != 1 {
			t.Fatalf("expected single osxphotos invocation, got %d", len(calls))
		}
		joined := fmt.Sprint(calls[0])
		for _, want := range []string{"query", "--json", "--shared", "--library"} {
			if !contains(calls[0], want) {
				t.Errorf("expected %q in command %s", want, joined)
			}
		}
	})

	t.Run("ListAssets", func(t *testing.T) {
		c := NewPhotosCatalog(PhotosCatalogOpts{})
		c.run = fakeRunner([]byte(queryOutput), nil, nil)

		assets, err := c.ListAssets(context.Background(), "Trip2020")
		if err != nil {
			t.Fatalf("ListAssets failed: %v", err)
		}
		if len(assets) != 2 {
			t.Fatalf("expected 2 assets, got %d", len(assets))
		}
		if assets[0].UUID != "AAA-111" || !assets[0].LocallyAvailable {
			t.Errorf("unexpected first asset: %+v", assets[0])
		}
		if assets[1].UUID != "BBB-222" || assets[1].LocallyAvailable {
			t.Errorf("missing photo should not be locally available: %+v", assets[1])
		}
		if assets[0].CapturedAt.IsZero() {
			t.Error("expected parsed capture time")
		}
	})

	t.Run("Unknown Album", func(t *testing.T) {
		c := NewPhotosCatalog(PhotosCatalogOpts{})
		c.run = fakeRunner([]byte(queryOutput), nil, nil)

		_, err := c.ListAssets(context.Background(), "Nope")
		if !errors.Is(err, shared.ErrAlbumNotFound) {
			t.Errorf("expected ErrAlbumNotFound, got %v", err)
		}
	})

	t.Run("Query Failure Is Catalog Error", func(t *testing.T) {
		c := NewPhotosCatalog(PhotosCatalogOpts{})
		c.run = fakeRunner(nil, fmt.Errorf("exec: not found"), nil)

		_, err := c.ListAlbums(context.Background())
		if !errors.Is(err, shared.ErrCatalog) {
			t.Errorf("expected ErrCatalog, got %v", err)
		}
	})

	t.Run("Garbage Output Is Catalog Error", func(t *testing.T) {
		c := NewPhotosCatalog(PhotosCatalogOpts{})
		c.run = fakeRunner([]byte("Traceback (most recent call last)"), nil, nil)

		_, err := c.ListAlbums(context.Background())
		if !errors.Is(err, shared.ErrCatalog) {
			t.Errorf("expected ErrCatalog, got %v", err)
		}
	})
}

func TestPhotosFetcher(t *testing.T) {
	asset := models.AssetRecord{UUID: "AAA-111", Filename: "IMG_0001.jpg"}

	t.Run("Export Finds Produced Files", func(t *testing.T) {
		destDir := t.TempDir()
		var calls [][]string

		f := NewPhotosFetcher("", "")
		f.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, append([]string{name}, args...))
			// Simulate osxphotos writing the export.
			if err := os.WriteFile(filepath.Join(destDir, "AAA-111.jpg"), []byte("jpeg"), 0644); err != nil {
				t.Fatal(err)
			}
			return []byte("exported: 1"), nil
		}

		files, err := f.Export(context.Background(), asset, destDir, false)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if len(files) != 1 || filepath.Base(files[0]) != "AAA-111.jpg" {
			t.Errorf("unexpected files: %v", files)
		}
		if contains(calls[0], "--download-missing") {
			t.Error("download flag should be absent for local exports")
		}
	})

	t.Run("Download Missing Flag", func(t *testing.T) {
		destDir := t.TempDir()
		var calls [][]string

		f := NewPhotosFetcher("", "/lib")
		f.run = fakeRunner([]byte(""), nil, &calls)

		if _, err := f.Export(context.Background(), asset, destDir, true); err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		for _, want := range []string{"--download-missing", "--use-photokit", "--library"} {
			if !contains(calls[0], want) {
				t.Errorf("expected %q in export args %v", want, calls[0])
			}
		}
	})

	t.Run("Authorization Failure Is Permanent", func(t *testing.T) {
		f := NewPhotosFetcher("", "")
		f.run = fakeRunner([]byte("error: could not get authorization"), fmt.Errorf("exit status 1"), nil)

		_, err := f.Export(context.Background(), asset, t.TempDir(), true)
		if !errors.Is(err, shared.ErrMaterializePermanent) {
			t.Errorf("expected ErrMaterializePermanent, got %v", err)
		}
	})

	t.Run("Plain Failure Is Transient", func(t *testing.T) {
		f := NewPhotosFetcher("", "")
		f.run = fakeRunner([]byte("network timeout"), fmt.Errorf("exit status 1"), nil)

		_, err := f.Export(context.Background(), asset, t.TempDir(), true)
		if !errors.Is(err, shared.ErrMaterializeTransient) {
			t.Errorf("expected ErrMaterializeTransient, got %v", err)
		}
	})
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
