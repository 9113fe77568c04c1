package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrAuthExpired      = fmt.Errorf("authentication expired")

	// Catalog errors. ErrCatalog is fatal to a run: the local library could
	// not be read at all, so nothing can be enumerated.
	ErrCatalog       = fmt.Errorf("catalog unreadable")
	ErrAlbumNotFound = fmt.Errorf("album not found")
	ErrAssetNotFound = fmt.Errorf("asset not found")

	// Materialization errors. Transient failures may be retried with backoff;
	// permanent failures must not be retried within the run.
	ErrMaterializeTransient = fmt.Errorf("materialization failed (transient)")
	ErrMaterializePermanent = fmt.Errorf("materialization failed (permanent)")

	// Remote service errors. Rate limiting escalates to a run-level pause,
	// auth expiry aborts the run, transient errors get bounded retries.
	ErrRemoteTransient = fmt.Errorf("remote request failed (transient)")
	ErrRemotePermanent = fmt.Errorf("remote request rejected")
	ErrRateLimited     = fmt.Errorf("remote rate limit exceeded")

	// State errors. A consistency error means the durable bookkeeping would
	// be violated by the requested write and the run must not continue.
	ErrStateConsistency = fmt.Errorf("sync state consistency violation")
	ErrStateLocked      = fmt.Errorf("sync state locked by another run")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
