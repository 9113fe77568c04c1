package tasks

import (
	"context"
	"errors"

	"albumsync/internal/models"
	"albumsync/internal/repositories"
	"albumsync/internal/services"

	"github.com/charmbracelet/log"
)

// transporter moves one asset's bytes to the remote service using the
// two-phase protocol: upload the bytes for a token, then commit the token
// into the target album. Each phase boundary is checkpointed in the state
// store so an interrupted run resumes instead of re-transferring.
type transporter struct {
	remote services.Remote
	syncs  *repositories.SyncRepository
	logger *log.Logger
}

// transfer performs the two-phase transfer for one asset and returns the
// remote asset id. prior is the asset's current sync record, or nil.
//
// A prior record in the uploaded state carries a token from an interrupted
// run; the transporter first tries to commit that token directly. Upload
// tokens expire, so a failed resume falls back to a fresh upload rather than
// failing the asset.
func (t *transporter) transfer(ctx context.Context, policy *retryPolicy, assetUUID, albumKey, remoteAlbumID, path string, prior *models.SyncRecord) (string, error) {
	if prior != nil && prior.Status == models.StatusUploaded && prior.UploadToken != "" {
		remoteAssetID, err := t.commit(ctx, policy, assetUUID, albumKey, prior.UploadToken, remoteAlbumID)
		if err == nil {
			return remoteAssetID, nil
		}
		if isRunFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		t.logger.Debug("stored upload token no longer usable, re-uploading",
			"asset", assetUUID, "album", albumKey, "err", err)
	}

	var token string
	err := policy.attempt(ctx, "upload", func() error {
		tok, uploadErr := t.remote.UploadBytes(ctx, path)
		if uploadErr != nil {
			return uploadErr
		}
		token = tok
		return nil
	})
	if err != nil {
		return "", err
	}

	// Checkpoint the token before committing: a crash from here on resumes
	// at phase two.
	if err := t.syncs.MarkUploaded(assetUUID, albumKey, remoteAlbumID, token); err != nil {
		return "", err
	}

	return t.commit(ctx, policy, assetUUID, albumKey, token, remoteAlbumID)
}

func (t *transporter) commit(ctx context.Context, policy *retryPolicy, assetUUID, albumKey, token, remoteAlbumID string) (string, error) {
	var remoteAssetID string
	err := policy.attempt(ctx, "commit", func() error {
		id, commitErr := t.remote.CommitMediaItem(ctx, token, remoteAlbumID)
		if commitErr != nil {
			return commitErr
		}
		remoteAssetID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := t.syncs.MarkCommitted(assetUUID, albumKey, remoteAssetID); err != nil {
		return "", err
	}
	return remoteAssetID, nil
}
