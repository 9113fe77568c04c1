package tasks

import (
	"context"
	"fmt"
	"sync"

	"albumsync/internal/repositories"
	"albumsync/internal/services"
)

// albumResolver maps local album titles to remote album ids, creating the
// remote album on first encounter.
//
// Resolution is serialized under one mutex so concurrent syncs of the same
// title can never race into creating two remote albums. The remote album is
// created first and the mapping persisted second: a crash between the two
// leaks at most one empty remote album, never a mapping without an album.
type albumResolver struct {
	mappings *repositories.AlbumMappingRepository
	remote   services.Remote

	mu    sync.Mutex
	cache map[string]string
}

func (r *albumResolver) Resolve(ctx context.Context, policy *retryPolicy, title string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.cache[title]; ok {
		return id, nil
	}

	mapping, err := r.mappings.GetByTitle(title)
	if err != nil {
		return "", err
	}
	if mapping != nil {
		r.cache[title] = mapping.RemoteAlbumID
		return mapping.RemoteAlbumID, nil
	}

	var remoteID string
	err = policy.attempt(ctx, "create album", func() error {
		id, createErr := r.remote.CreateAlbum(ctx, title)
		if createErr != nil {
			return createErr
		}
		remoteID = id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create remote album %q: %w", title, err)
	}

	if _, err := r.mappings.Create(title, remoteID); err != nil {
		return "", err
	}

	r.cache[title] = remoteID
	return remoteID, nil
}
