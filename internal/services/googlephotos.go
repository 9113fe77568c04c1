// Google Photos Library API implementation of [Remote]
//
// Request and response shapes based on https://developers.google.com/photos/library/reference/rest
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"albumsync/internal/shared"
	"golang.org/x/oauth2"
)

const (
	googleAuthURL   = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL  = "https://oauth2.googleapis.com/token"
	photosBaseURL   = "https://photoslibrary.googleapis.com/v1"
	photosUploadURL = "https://photoslibrary.googleapis.com/v1/uploads"
)

// Scopes limited to app-created data: the engine can only see and edit
// albums it created, which is exactly the provenance contract.
var photosScopes = []string{
	"https://www.googleapis.com/auth/photoslibrary.appendonly",
	"https://www.googleapis.com/auth/photoslibrary.readonly.appcreateddata",
	"https://www.googleapis.com/auth/photoslibrary.edit.appcreateddata",
}

// googleAlbum represents an album resource.
type googleAlbum struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ProductURL  string `json:"productUrl,omitempty"`
	IsWriteable bool   `json:"isWriteable,omitempty"`
}

type createAlbumRequest struct {
	Album struct {
		Title string `json:"title"`
	} `json:"album"`
}

type simpleMediaItem struct {
	UploadToken string `json:"uploadToken"`
}

type newMediaItem struct {
	SimpleMediaItem simpleMediaItem `json:"simpleMediaItem"`
}

type batchCreateRequest struct {
	AlbumID       string         `json:"albumId"`
	NewMediaItems []newMediaItem `json:"newMediaItems"`
}

type mediaItemStatus struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

type newMediaItemResult struct {
	UploadToken string          `json:"uploadToken"`
	Status      mediaItemStatus `json:"status"`
	MediaItem   struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
	} `json:"mediaItem"`
}

type batchCreateResponse struct {
	NewMediaItemResults []newMediaItemResult `json:"newMediaItemResults"`
}

// GooglePhotosService implements [Remote] against the Google Photos Library
// API. Uses [oauth2] for authentication; the token source refreshes access
// tokens transparently.
type GooglePhotosService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	baseURL    string
	uploadURL  string
}

// NewGooglePhotosService creates a Google Photos client with the given OAuth2
// credentials.
func NewGooglePhotosService(clientID, clientSecret, redirectURI string) (*GooglePhotosService, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: google client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       photosScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleAuthURL,
			TokenURL: googleTokenURL,
		},
	}

	return &GooglePhotosService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    photosBaseURL,
		uploadURL:  photosUploadURL,
	}, nil
}

// RedirectURI returns the OAuth2 redirect endpoint the flow sends the
// browser back to. The login command serves a loopback listener there.
func (s *GooglePhotosService) RedirectURI() string {
	return s.config.RedirectURL
}

// AuthURL returns the OAuth2 authorization URL for user login.
// Consent is forced so the user always sees the permission checkboxes.
func (s *GooglePhotosService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a token and installs it.
func (s *GooglePhotosService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	s.SetToken(ctx, token)
	return token, nil
}

// SetToken installs a previously obtained token. The wrapped client refreshes
// expired access tokens using the refresh token.
func (s *GooglePhotosService) SetToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	s.httpClient = s.config.Client(ctx, token)
}

// Authenticated reports whether a token has been installed.
func (s *GooglePhotosService) Authenticated() bool {
	return s.token != nil
}

// CreateAlbum creates a new remote album and returns its identifier.
func (s *GooglePhotosService) CreateAlbum(ctx context.Context, title string) (string, error) {
	var req createAlbumRequest
	req.Album.Title = title

	var album googleAlbum
	if err := s.doJSON(ctx, http.MethodPost, "/albums", req, &album); err != nil {
		return "", err
	}
	if album.ID == "" {
		return "", fmt.Errorf("%w: album create returned no id", shared.ErrRemoteTransient)
	}
	return album.ID, nil
}

// UploadBytes streams the file at path to the raw upload endpoint and returns
// the issued upload token.
func (s *GooglePhotosService) UploadBytes(ctx context.Context, path string) (string, error) {
	if s.token == nil {
		return "", fmt.Errorf("%w: call SetToken first", shared.ErrNotAuthenticated)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot open %s: %v", shared.ErrMaterializePermanent, path, err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, f)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: upload request failed: %v", shared.ErrRemoteTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read upload response: %v", shared.ErrRemoteTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyStatus(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", fmt.Errorf("%w: upload returned empty token", shared.ErrRemoteTransient)
	}
	return token, nil
}

// CommitMediaItem creates the media item from an upload token inside the
// target album and returns the remote asset identifier.
func (s *GooglePhotosService) CommitMediaItem(ctx context.Context, uploadToken, remoteAlbumID string) (string, error) {
	req := batchCreateRequest{
		AlbumID: remoteAlbumID,
		NewMediaItems: []newMediaItem{
			{SimpleMediaItem: simpleMediaItem{UploadToken: uploadToken}},
		},
	}

	var resp batchCreateResponse
	if err := s.doJSON(ctx, http.MethodPost, "/mediaItems:batchCreate", req, &resp); err != nil {
		return "", err
	}

	if len(resp.NewMediaItemResults) == 0 {
		return "", fmt.Errorf("%w: batchCreate returned no results", shared.ErrRemoteTransient)
	}

	result := resp.NewMediaItemResults[0]
	switch result.Status.Message {
	case "Success", "OK", "":
		if result.MediaItem.ID == "" {
			return "", fmt.Errorf("%w: batchCreate confirmed no media item", shared.ErrRemoteTransient)
		}
		return result.MediaItem.ID, nil
	default:
		// Per-item failures include expired upload tokens; the transfer is
		// redone from the upload phase.
		return "", fmt.Errorf("%w: media item rejected: %s", shared.ErrRemoteTransient, result.Status.Message)
	}
}

// doJSON performs an authenticated JSON request against the Library API.
func (s *GooglePhotosService) doJSON(ctx context.Context, method, endpoint string, body, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call SetToken first", shared.ErrNotAuthenticated)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrRemoteTransient, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrRemoteTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrRemoteTransient, err)
		}
	}

	return nil
}

// classifyStatus maps an HTTP status onto the remote error taxonomy.
//
//	429           -> rate limited, run-level pause
//	401, 403      -> auth expired or insufficient scopes, fatal to the run
//	5xx           -> transient, bounded retry
//	remaining 4xx -> permanent rejection of the request
func classifyStatus(status int, detail string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", shared.ErrRateLimited, status, detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAuthExpired, status, detail)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", shared.ErrRemoteTransient, status, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrRemotePermanent, status, detail)
	}
}
