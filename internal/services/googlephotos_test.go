package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"albumsync/internal/shared"
	"golang.org/x/oauth2"
)

func newTestService(t *testing.T, handler http.Handler) (*GooglePhotosService, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewGooglePhotosService("id", "secret", "")
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	svc.baseURL = server.URL
	svc.uploadURL = server.URL + "/uploads"
	svc.SetToken(context.Background(), &oauth2.Token{AccessToken: "test-token"})
	// config.Client wraps with a refreshing transport; keep the plain client
	// so requests hit the test server without token refresh round trips.
	svc.httpClient = http.DefaultClient

	return svc, server
}

func TestCreateAlbum(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/albums" || r.Method != http.MethodPost {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			var req createAlbumRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("bad request body: %v", err)
			}
			if req.Album.Title != "Trip2020" {
				t.Errorf("unexpected title: %s", req.Album.Title)
			}
			json.NewEncoder(w).Encode(googleAlbum{ID: "remote-album-1", Title: req.Album.Title})
		}))

		id, err := svc.CreateAlbum(context.Background(), "Trip2020")
		if err != nil {
			t.Fatalf("CreateAlbum failed: %v", err)
		}
		if id != "remote-album-1" {
			t.Errorf("expected remote-album-1, got %s", id)
		}
	})

	t.Run("Not Authenticated", func(t *testing.T) {
		svc, err := NewGooglePhotosService("id", "secret", "")
		if err != nil {
			t.Fatal(err)
		}
		_, err = svc.CreateAlbum(context.Background(), "Trip2020")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestUploadBytes(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Goog-Upload-Protocol") != "raw" {
				t.Error("expected raw upload protocol header")
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != "image bytes" {
				t.Errorf("unexpected upload body: %q", body)
			}
			fmt.Fprint(w, "upload-token-123")
		}))

		path := filepath.Join(t.TempDir(), "IMG_0001.jpg")
		if err := os.WriteFile(path, []byte("image bytes"), 0644); err != nil {
			t.Fatal(err)
		}

		token, err := svc.UploadBytes(context.Background(), path)
		if err != nil {
			t.Fatalf("UploadBytes failed: %v", err)
		}
		if token != "upload-token-123" {
			t.Errorf("unexpected token: %s", token)
		}
	})

	t.Run("Missing File Is Permanent", func(t *testing.T) {
		svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		_, err := svc.UploadBytes(context.Background(), "/no/such/file.jpg")
		if !errors.Is(err, shared.ErrMaterializePermanent) {
			t.Errorf("expected ErrMaterializePermanent, got %v", err)
		}
	})
}

func TestCommitMediaItem(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/mediaItems:batchCreate" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			var req batchCreateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("bad request body: %v", err)
			}
			if req.AlbumID != "remote-album-1" {
				t.Errorf("unexpected album id: %s", req.AlbumID)
			}
			if len(req.NewMediaItems) != 1 || req.NewMediaItems[0].SimpleMediaItem.UploadToken != "tok" {
				t.Errorf("unexpected media items: %+v", req.NewMediaItems)
			}

			var resp batchCreateResponse
			result := newMediaItemResult{UploadToken: "tok"}
			result.Status.Message = "Success"
			result.MediaItem.ID = "remote-asset-9"
			resp.NewMediaItemResults = []newMediaItemResult{result}
			json.NewEncoder(w).Encode(resp)
		}))

		id, err := svc.CommitMediaItem(context.Background(), "tok", "remote-album-1")
		if err != nil {
			t.Fatalf("CommitMediaItem failed: %v", err)
		}
		if id != "remote-asset-9" {
			t.Errorf("expected remote-asset-9, got %s", id)
		}
	})

	t.Run("Rejected Item Is Transient", func(t *testing.T) {
		svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var resp batchCreateResponse
			result := newMediaItemResult{}
			result.Status.Message = "NO_UPLOAD_TOKEN"
			resp.NewMediaItemResults = []newMediaItemResult{result}
			json.NewEncoder(w).Encode(resp)
		}))

		_, err := svc.CommitMediaItem(context.Background(), "expired", "remote-album-1")
		if !errors.Is(err, shared.ErrRemoteTransient) {
			t.Errorf("expected ErrRemoteTransient, got %v", err)
		}
	})
}

func TestClassifyStatus(t *testing.T) {
	tc := []struct {
		name   string
		status int
		want   error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, want: shared.ErrRateLimited},
		{name: "unauthorized", status: http.StatusUnauthorized, want: shared.ErrAuthExpired},
		{name: "forbidden", status: http.StatusForbidden, want: shared.ErrAuthExpired},
		{name: "server error", status: http.StatusBadGateway, want: shared.ErrRemoteTransient},
		{name: "bad request", status: http.StatusBadRequest, want: shared.ErrRemotePermanent},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := svc.CreateAlbum(context.Background(), "x")
			if !errors.Is(err, tt.want) {
				t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
			}
		})
	}
}

func TestTokenCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{AccessToken: "abc", RefreshToken: "def", TokenType: "Bearer"}

	if err := SaveToken(path, token); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("token file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}
	if loaded.AccessToken != "abc" || loaded.RefreshToken != "def" {
		t.Errorf("token round trip mismatch: %+v", loaded)
	}

	if _, err := LoadToken(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing token file")
	}
}

func TestAuthURL(t *testing.T) {
	svc, err := NewGooglePhotosService("id", "secret", "http://localhost:9999/cb")
	if err != nil {
		t.Fatal(err)
	}

	url := svc.AuthURL("state-1")
	for _, want := range []string{"state=state-1", "prompt=consent", "access_type=offline"} {
		if !strings.Contains(url, want) {
			t.Errorf("auth URL missing %q: %s", want, url)
		}
	}
}
