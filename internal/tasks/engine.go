package tasks

import (
	"context"
	"sync"

	"albumsync/internal/materialize"
	"albumsync/internal/models"
	"albumsync/internal/shared"

	"golang.org/x/time/rate"
)

// albumWork is one album's pending workload for a run.
type albumWork struct {
	album     models.AlbumDescriptor
	assets    []models.AssetRecord
	committed map[string]bool
	pending   int
}

// assetPosition pairs an asset with its [i/total] position for progress.
type assetPosition struct {
	record models.AssetRecord
	index  int
	total  int
}

// Pending computes per-album pending counts against the state store without
// touching the remote service.
func (e *AlbumSyncEngine) Pending(ctx context.Context) ([]AlbumPending, error) {
	albums, err := e.catalog.ListAlbums(ctx)
	if err != nil {
		return nil, err
	}

	var out []AlbumPending
	for _, album := range albums {
		work, err := e.loadAlbumWork(ctx, album)
		if err != nil {
			return nil, err
		}
		out = append(out, AlbumPending{Album: album, Total: len(work.assets), Pending: work.pending})
	}
	return out, nil
}

// Plan is Run without side effects.
func (e *AlbumSyncEngine) Plan(ctx context.Context, progress chan<- ProgressUpdate, opts RunOpts) (*RunResult, error) {
	opts.DryRun = true
	return e.Run(ctx, progress, opts)
}

// Run synchronizes pending assets album by album.
//
// Albums are processed sequentially; assets within an album run on a bounded
// worker pool behind a shared rate limiter. A per-asset failure fails that
// asset only; a resolution failure fails that album only; auth expiry and
// state consistency violations stop the run. The returned result is valid,
// possibly partial, even when an error is returned.
func (e *AlbumSyncEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts RunOpts) (*RunResult, error) {
	opts = opts.withDefaults()

	result := &RunResult{RunID: shared.GenerateID(), DryRun: opts.DryRun}
	e.logger.Info("starting sync run", "run_id", result.RunID, "dry_run", opts.DryRun, "workers", opts.Workers)

	albums, err := e.catalog.ListAlbums(ctx)
	if err != nil {
		return result, err
	}

	var selected []albumWork
	for _, album := range albums {
		work, err := e.loadAlbumWork(ctx, album)
		if err != nil {
			return result, err
		}

		if work.pending == 0 {
			// Nothing to do: no resolution, no remote calls.
			ar := AlbumResult{Title: album.Title, Skipped: len(work.assets)}
			result.Albums = append(result.Albums, ar)
			result.Skipped += ar.Skipped
			continue
		}
		selected = append(selected, work)
	}

	if opts.MaxAlbums > 0 && len(selected) > opts.MaxAlbums {
		selected = selected[:opts.MaxAlbums]
	}

	remotePolicy := &retryPolicy{
		maxAttempts:    opts.MaxAttempts,
		backoffBase:    e.backoffBase,
		rateLimitPause: e.rateLimitPause,
		limiter:        rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		pause:          e.pause,
		logger:         e.logger,
	}
	localPolicy := &retryPolicy{
		maxAttempts: opts.MaxAttempts,
		backoffBase: e.backoffBase,
		logger:      e.logger,
	}

	var fatal error
	for _, work := range selected {
		if ctx.Err() != nil {
			break
		}

		ar := e.syncAlbum(ctx, progress, remotePolicy, localPolicy, opts, work)
		result.Albums = append(result.Albums, ar)
		result.Committed += ar.Committed
		result.Skipped += ar.Skipped
		result.Failed += ar.Failed
		if ar.Err != nil {
			result.AlbumsFailed++
			if isRunFatal(ar.Err) {
				fatal = ar.Err
				break
			}
		}
		e.sendProgress(progress, albumDoneUpdate(ar))
	}

	if fatal != nil {
		return result, fatal
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	e.sendProgress(progress, runDoneUpdate(result))
	e.logger.Info("sync run finished", "run_id", result.RunID,
		"committed", result.Committed, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// loadAlbumWork loads an album's assets and its committed set.
func (e *AlbumSyncEngine) loadAlbumWork(ctx context.Context, album models.AlbumDescriptor) (albumWork, error) {
	assets, err := e.catalog.ListAssets(ctx, album.Key)
	if err != nil {
		return albumWork{}, err
	}

	committed, err := e.syncs.CommittedSet(album.Key)
	if err != nil {
		return albumWork{}, err
	}

	pending := 0
	for _, asset := range assets {
		if !committed[asset.UUID] {
			pending++
		}
	}
	return albumWork{album: album, assets: assets, committed: committed, pending: pending}, nil
}

func (e *AlbumSyncEngine) syncAlbum(ctx context.Context, progress chan<- ProgressUpdate, remotePolicy, localPolicy *retryPolicy, opts RunOpts, work albumWork) AlbumResult {
	title := work.album.Title
	ar := AlbumResult{Title: title, Skipped: len(work.assets) - work.pending}

	if opts.DryRun {
		return e.planAlbum(progress, work, ar)
	}

	e.sendProgress(progress, resolveUpdate(title, "resolving remote album"))
	remoteAlbumID, err := e.resolver.Resolve(ctx, remotePolicy, title)
	if err != nil {
		e.logger.Error("album resolution failed", "album", title, "err", err)
		ar.Err = err
		return ar
	}
	ar.RemoteAlbumID = remoteAlbumID

	// Pending assets fan out to workers; the album completes when all of
	// them have reached a terminal outcome for this run.
	albumCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan assetPosition)
	t := &tally{}
	tr := &transporter{remote: e.remote, syncs: e.syncs, logger: e.logger}

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for asset := range jobs {
				e.processAsset(albumCtx, progress, remotePolicy, localPolicy, tr, work, asset, remoteAlbumID, t)
				if t.fatalErr() != nil {
					cancel()
				}
			}
		}()
	}

	index := 0
	for _, asset := range work.assets {
		if work.committed[asset.UUID] {
			continue
		}
		index++
		pos := assetPosition{record: asset, index: index, total: work.pending}

		select {
		case jobs <- pos:
		case <-albumCtx.Done():
		}
		if albumCtx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	ar.Committed = t.committed
	ar.Skipped += t.skipped
	ar.Failed = t.failed
	ar.Failures = t.failures
	ar.Err = t.fatalErr()
	return ar
}

// planAlbum reports what a live run would do, using the same state store
// evaluation as Run but making no remote calls and no writes.
func (e *AlbumSyncEngine) planAlbum(progress chan<- ProgressUpdate, work albumWork, ar AlbumResult) AlbumResult {
	title := work.album.Title

	mapping, err := e.mappings.GetByTitle(title)
	if err != nil {
		ar.Err = err
		return ar
	}
	if mapping == nil {
		ar.WouldCreateAlbum = true
		e.sendProgress(progress, resolveUpdate(title, "would create remote album"))
	} else {
		ar.RemoteAlbumID = mapping.RemoteAlbumID
	}

	index := 0
	for _, asset := range work.assets {
		if work.committed[asset.UUID] {
			continue
		}
		index++
		e.sendProgress(progress, assetUpdate(PhaseUpload,
			title, assetPosition{record: asset, index: index, total: work.pending}))
		ar.Committed++
	}
	return ar
}

// processAsset runs one asset through lookup -> materialize -> transfer,
// recording the outcome in the tally. The materialization is released on
// every path.
func (e *AlbumSyncEngine) processAsset(ctx context.Context, progress chan<- ProgressUpdate, remotePolicy, localPolicy *retryPolicy, tr *transporter, work albumWork, asset assetPosition, remoteAlbumID string, t *tally) {
	if ctx.Err() != nil {
		return
	}
	title := work.album.Title
	record := asset.record

	prior, err := e.syncs.Lookup(record.UUID, work.album.Key)
	if err != nil {
		t.addFailure(record, err)
		e.sendProgress(progress, failureUpdate(title, asset, err))
		return
	}
	if prior != nil && prior.Status == models.StatusCommitted {
		t.addSkipped()
		e.sendProgress(progress, assetUpdate(PhaseSkip, title, asset))
		return
	}

	e.sendProgress(progress, assetUpdate(PhaseMaterialize, title, asset))
	mat, err := e.materializeWithRetry(ctx, localPolicy, record)
	if err != nil {
		e.logger.Warn("materialization failed", "album", title, "asset", record.UUID, "err", err)
		t.addFailure(record, err)
		e.sendProgress(progress, failureUpdate(title, asset, err))
		return
	}
	defer mat.Release()

	e.sendProgress(progress, assetUpdate(PhaseUpload, title, asset))
	remoteAssetID, err := tr.transfer(ctx, remotePolicy, record.UUID, work.album.Key, remoteAlbumID, mat.Path, prior)
	if err != nil {
		if isRunFatal(err) {
			t.setFatal(err)
		}
		if ctx.Err() != nil {
			// Cancelled mid-transfer: the state store holds the last durable
			// checkpoint, so this asset resumes cleanly next run.
			return
		}
		e.logger.Warn("transfer failed", "album", title, "asset", record.UUID, "err", err)
		t.addFailure(record, err)
		e.sendProgress(progress, failureUpdate(title, asset, err))
		return
	}

	e.logger.Debug("asset committed", "album", title, "asset", record.UUID, "remote_asset_id", remoteAssetID)
	t.addCommitted()
	e.sendProgress(progress, assetUpdate(PhaseCommit, title, asset))
}

func (e *AlbumSyncEngine) materializeWithRetry(ctx context.Context, policy *retryPolicy, record models.AssetRecord) (*materialize.Materialization, error) {
	var mat *materialize.Materialization
	err := policy.attempt(ctx, "materialize", func() error {
		m, matErr := e.materializer.Materialize(ctx, record)
		if matErr != nil {
			return matErr
		}
		mat = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mat, nil
}

var _ SyncEngine = (*AlbumSyncEngine)(nil)
