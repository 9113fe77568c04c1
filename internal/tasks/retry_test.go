package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"albumsync/internal/shared"
)

func newTestPolicy(maxAttempts int) *retryPolicy {
	return &retryPolicy{
		maxAttempts:    maxAttempts,
		backoffBase:    time.Millisecond,
		rateLimitPause: time.Millisecond,
		pause:          &pauser{},
		logger:         shared.NewLogger(nil),
	}
}

func TestRetryPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("Transient Retries Up To Cap", func(t *testing.T) {
		policy := newTestPolicy(3)

		calls := 0
		err := policy.attempt(ctx, "op", func() error {
			calls++
			return fmt.Errorf("%w: flaky", shared.ErrRemoteTransient)
		})

		if !errors.Is(err, shared.ErrRemoteTransient) {
			t.Errorf("expected transient error after exhaustion, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 attempts, got %d", calls)
		}
	})

	t.Run("Recovers Mid-Retry", func(t *testing.T) {
		policy := newTestPolicy(3)

		calls := 0
		err := policy.attempt(ctx, "op", func() error {
			calls++
			if calls < 2 {
				return fmt.Errorf("%w: flaky", shared.ErrMaterializeTransient)
			}
			return nil
		})

		if err != nil || calls != 2 {
			t.Errorf("expected recovery on attempt 2, got err=%v calls=%d", err, calls)
		}
	})

	t.Run("Permanent Returns Immediately", func(t *testing.T) {
		policy := newTestPolicy(3)

		calls := 0
		err := policy.attempt(ctx, "op", func() error {
			calls++
			return fmt.Errorf("%w: rejected", shared.ErrRemotePermanent)
		})

		if !errors.Is(err, shared.ErrRemotePermanent) || calls != 1 {
			t.Errorf("expected single attempt, got err=%v calls=%d", err, calls)
		}
	})

	t.Run("Auth Expiry Returns Immediately", func(t *testing.T) {
		policy := newTestPolicy(3)

		calls := 0
		err := policy.attempt(ctx, "op", func() error {
			calls++
			return fmt.Errorf("%w: 401", shared.ErrAuthExpired)
		})

		if !errors.Is(err, shared.ErrAuthExpired) || calls != 1 {
			t.Errorf("expected single attempt, got err=%v calls=%d", err, calls)
		}
	})

	t.Run("Cancellation Interrupts Backoff", func(t *testing.T) {
		policy := newTestPolicy(5)
		policy.backoffBase = time.Minute

		cancelCtx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := policy.attempt(cancelCtx, "op", func() error {
			return fmt.Errorf("%w: flaky", shared.ErrRemoteTransient)
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestPauser(t *testing.T) {
	t.Run("Open Gate Does Not Block", func(t *testing.T) {
		p := &pauser{}
		if err := p.Wait(context.Background()); err != nil {
			t.Errorf("open gate should pass immediately, got %v", err)
		}
	})

	t.Run("Blocks Until Deadline", func(t *testing.T) {
		p := &pauser{}
		p.PauseFor(20 * time.Millisecond)

		start := time.Now()
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
		if time.Since(start) < 15*time.Millisecond {
			t.Error("Wait returned before the pause elapsed")
		}
	})

	t.Run("Shorter Pause Never Shrinks Longer One", func(t *testing.T) {
		p := &pauser{}
		p.PauseFor(30 * time.Millisecond)
		p.PauseFor(time.Millisecond)

		start := time.Now()
		p.Wait(context.Background())
		if time.Since(start) < 20*time.Millisecond {
			t.Error("later short pause shrank the gate")
		}
	})

	t.Run("Cancellation Interrupts Wait", func(t *testing.T) {
		p := &pauser{}
		p.PauseFor(time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline error, got %v", err)
		}
	})
}
