// package tasks implements the album synchronization pipeline.
//
// The core abstraction is SyncEngine, which drives the per-album, per-asset
// materialize -> upload -> commit pipeline against the durable state store.
// Operations emit progress updates via channels for non-blocking status
// reporting to the CLI layer.
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"albumsync/internal/catalog"
	"albumsync/internal/materialize"
	"albumsync/internal/models"
	"albumsync/internal/repositories"
	"albumsync/internal/services"
	"albumsync/internal/shared"

	"github.com/charmbracelet/log"
)

// RunOpts configures a sync run.
type RunOpts struct {
	MaxAlbums   int     // sync at most this many albums with pending work; 0 means all
	DryRun      bool    // report would-be actions without uploading or writing state
	Workers     int     // concurrent materialize/upload workers (default 3, capped at 8)
	RateLimit   float64 // remote requests per second (default 5)
	MaxAttempts int     // bounded retry cap for transient failures (default 4)
}

func (o RunOpts) withDefaults() RunOpts {
	if o.Workers <= 0 {
		o.Workers = 3
	}
	if o.Workers > 8 {
		o.Workers = 8
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 5.0
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 4
	}
	return o
}

// AssetFailure records one asset that could not be transferred this run.
type AssetFailure struct {
	AssetUUID string
	Filename  string
	Err       error
}

// AlbumResult summarizes one album's outcome.
//
// In a dry run, Committed counts the uploads a live run would perform and
// WouldCreateAlbum marks albums that have no engine-created remote album yet.
type AlbumResult struct {
	Title            string
	RemoteAlbumID    string
	WouldCreateAlbum bool
	Committed        int
	Skipped          int
	Failed           int
	Failures         []AssetFailure
	Err              error // album-level failure; its assets were not attempted
}

// RunResult summarizes a whole run.
type RunResult struct {
	RunID        string
	DryRun       bool
	Albums       []AlbumResult
	Committed    int
	Skipped      int
	Failed       int
	AlbumsFailed int
}

// AlbumPending reports how much of an album still needs transfer.
type AlbumPending struct {
	Album   models.AlbumDescriptor
	Total   int
	Pending int
}

// SyncEngine defines the synchronization operations.
type SyncEngine interface {
	// Run performs a live sync: resolves remote albums, transfers pending
	// assets, and records every confirmed transfer in the state store.
	Run(ctx context.Context, progress chan<- ProgressUpdate, opts RunOpts) (*RunResult, error)

	// Plan evaluates the same pipeline without side effects and reports the
	// actions a live run would take.
	Plan(ctx context.Context, progress chan<- ProgressUpdate, opts RunOpts) (*RunResult, error)

	// Pending computes per-album pending counts against the state store.
	Pending(ctx context.Context) ([]AlbumPending, error)
}

// AlbumSyncEngine implements SyncEngine.
type AlbumSyncEngine struct {
	catalog      catalog.Catalog
	remote       services.Remote
	syncs        *repositories.SyncRepository
	mappings     *repositories.AlbumMappingRepository
	materializer *materialize.Materializer
	logger       *log.Logger

	resolver *albumResolver
	pause    *pauser

	// Retry timing, overridable in tests.
	backoffBase    time.Duration
	rateLimitPause time.Duration
}

// EngineOpts contains the dependencies for an AlbumSyncEngine.
type EngineOpts struct {
	Catalog      catalog.Catalog
	Remote       services.Remote
	Syncs        *repositories.SyncRepository
	Mappings     *repositories.AlbumMappingRepository
	Materializer *materialize.Materializer
	Logger       *log.Logger
}

// NewAlbumSyncEngine creates an engine with the provided dependencies.
func NewAlbumSyncEngine(opts EngineOpts) *AlbumSyncEngine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	e := &AlbumSyncEngine{
		catalog:        opts.Catalog,
		remote:         opts.Remote,
		syncs:          opts.Syncs,
		mappings:       opts.Mappings,
		materializer:   opts.Materializer,
		logger:         opts.Logger,
		pause:          &pauser{},
		backoffBase:    500 * time.Millisecond,
		rateLimitPause: 30 * time.Second,
	}
	e.resolver = &albumResolver{
		mappings: opts.Mappings,
		remote:   opts.Remote,
		cache:    make(map[string]string),
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *AlbumSyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// isRunFatal reports whether an error must stop the whole run: expired
// authentication cannot heal mid-run, and a state consistency violation means
// the bookkeeping can no longer be trusted.
func isRunFatal(err error) bool {
	return errors.Is(err, shared.ErrAuthExpired) || errors.Is(err, shared.ErrStateConsistency)
}

// tally accumulates per-album outcomes across workers.
type tally struct {
	mu        sync.Mutex
	committed int
	skipped   int
	failed    int
	failures  []AssetFailure
	fatal     error
}

func (t *tally) addCommitted() {
	t.mu.Lock()
	t.committed++
	t.mu.Unlock()
}

func (t *tally) addSkipped() {
	t.mu.Lock()
	t.skipped++
	t.mu.Unlock()
}

func (t *tally) addFailure(asset models.AssetRecord, err error) {
	t.mu.Lock()
	t.failed++
	t.failures = append(t.failures, AssetFailure{AssetUUID: asset.UUID, Filename: asset.Filename, Err: err})
	t.mu.Unlock()
}

func (t *tally) setFatal(err error) {
	t.mu.Lock()
	if t.fatal == nil {
		t.fatal = err
	}
	t.mu.Unlock()
}

func (t *tally) fatalErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fatal
}
