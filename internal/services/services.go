// package services defines clients for the remote photo service.
//
// Google Photos Library API
package services

import "context"

// Remote defines the operations the sync engine needs from the remote photo
// service. All calls may fail with rate-limit, auth-expired, or transient
// network error kinds; callers classify via errors.Is against the shared
// sentinels.
type Remote interface {
	// CreateAlbum creates a new remote album and returns its identifier.
	// Only albums created through this call may ever receive membership
	// writes from the engine.
	CreateAlbum(ctx context.Context, title string) (string, error)

	// UploadBytes uploads the raw bytes at path and returns an opaque,
	// time-limited upload token. Phase one of the two-phase protocol.
	UploadBytes(ctx context.Context, path string) (string, error)

	// CommitMediaItem creates the media item from an upload token and adds it
	// to the given album, returning the remote asset identifier. Phase two.
	CommitMediaItem(ctx context.Context, uploadToken, remoteAlbumID string) (string, error)
}
