package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"albumsync/internal/shared"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// pauser is a run-level gate. When the remote signals rate limiting, every
// worker waits out the same pause instead of hammering the service from
// whichever goroutine happens to run next.
type pauser struct {
	mu    sync.Mutex
	until time.Time
}

// PauseFor extends the gate. A shorter pause never shrinks a longer one
// already in effect.
func (p *pauser) PauseFor(d time.Duration) {
	p.mu.Lock()
	if t := time.Now().Add(d); t.After(p.until) {
		p.until = t
	}
	p.mu.Unlock()
}

// Wait blocks until the gate is open or the context is done.
func (p *pauser) Wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		until := p.until
		p.mu.Unlock()

		d := time.Until(until)
		if d <= 0 {
			return nil
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// retryPolicy runs operations with bounded retries. Transient failures back
// off exponentially; rate limiting pauses the whole run via the shared gate;
// permanent, auth, and consistency errors return immediately.
type retryPolicy struct {
	maxAttempts    int
	backoffBase    time.Duration
	rateLimitPause time.Duration
	limiter        *rate.Limiter // nil for local operations
	pause          *pauser
	logger         *log.Logger
}

func (p *retryPolicy) attempt(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if p.pause != nil {
			if waitErr := p.pause.Wait(ctx); waitErr != nil {
				return waitErr
			}
		}
		if p.limiter != nil {
			if waitErr := p.limiter.Wait(ctx); waitErr != nil {
				return waitErr
			}
		}

		err = fn()
		if err == nil {
			return nil
		}

		switch {
		case errors.Is(err, shared.ErrRateLimited) && p.pause != nil:
			p.logger.Warn("rate limited, pausing run", "op", op, "pause", p.rateLimitPause)
			p.pause.PauseFor(p.rateLimitPause)
		case errors.Is(err, shared.ErrRemoteTransient), errors.Is(err, shared.ErrMaterializeTransient):
			if attempt == p.maxAttempts {
				return err
			}
			delay := p.backoffBase << (attempt - 1)
			p.logger.Debug("transient failure, backing off", "op", op, "attempt", attempt, "delay", delay, "err", err)
			if sleepErr := sleepCtx(ctx, delay); sleepErr != nil {
				return sleepErr
			}
		default:
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
