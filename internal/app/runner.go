package app

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RetryPolicy controls retries of transient failures. A zero policy makes
// exactly one attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// RunnerConfig holds the timeout and retry settings of a Runner
type RunnerConfig struct {
	// Timeout bounds each attempt. Zero means no timeout.
	Timeout time.Duration
	Retry   RetryPolicy
}

// DefaultRunnerConfig returns a single-attempt runner with a 30s timeout
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{Timeout: 30 * time.Second, Retry: RetryPolicy{MaxAttempts: 1}}
}

// Runner executes remote actions single-flight per key. While an action
// runs, a second call with the same key returns KindBusy without running.
type Runner struct {
	config RunnerConfig

	mu       sync.Mutex
	inflight map[string]struct{}

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Retry.MaxAttempts < 1 {
		config.Retry.MaxAttempts = 1
	}
	return &Runner{
		config:   config,
		inflight: make(map[string]struct{}),
		sleep:    sleepCtx,
	}
}

// Busy reports whether an action with this key is in flight
func (r *Runner) Busy(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.inflight[key]
	return busy
}

// Do runs fn under key. Transient failures are retried up to the policy's
// attempt count; every other failure returns immediately. A conflict that
// follows a transient failure may be the echo of an earlier attempt that
// did commit, so it is reported as KindIndeterminate.
func (r *Runner) Do(ctx context.Context, key string, fn func(ctx context.Context) error) Result {
	return r.run(ctx, key, r.config.Retry.MaxAttempts, fn)
}

// DoOnce runs fn under key exactly once, whatever the retry policy. Actions
// that are not safe to repeat, such as inserts, use it.
func (r *Runner) DoOnce(ctx context.Context, key string, fn func(ctx context.Context) error) Result {
	return r.run(ctx, key, 1, fn)
}

func (r *Runner) run(ctx context.Context, key string, maxAttempts int, fn func(ctx context.Context) error) Result {
	if !r.acquire(key) {
		return failed(ErrBusy)
	}
	defer r.release(key)

	var (
		err          error
		hadTransient bool
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = r.attempt(ctx, fn)
		if err == nil {
			return ok()
		}
		kind := Classify(err)
		if kind == KindConflict && hadTransient {
			return Result{Kind: KindIndeterminate, Err: fmt.Errorf("%w: %v", ErrIndeterminate, err)}
		}
		if !kind.Transient() || attempt == maxAttempts {
			break
		}
		hadTransient = true
		if sleepErr := r.sleep(ctx, r.config.Retry.Backoff*time.Duration(attempt)); sleepErr != nil {
			err = sleepErr
			break
		}
	}
	return failed(err)
}

func (r *Runner) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (r *Runner) acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[key]; busy {
		return false
	}
	r.inflight[key] = struct{}{}
	return true
}

func (r *Runner) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, key)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
