package location

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-booking/internal/models"
)

// Source abstracts a device position provider: a one-shot fix and a
// continuous stream that runs until ctx is cancelled.
type Source interface {
	Current(ctx context.Context) (models.LocationSample, error)
	Stream(ctx context.Context, updates chan<- models.LocationSample, errs chan<- error)
}

// Tracker wraps a Source with the acquisition policy: the one-shot fix
// retries with doubling backoff, continuous tracking reports every
// update and never retries errors.
type Tracker struct {
	Source    Source
	Retries   int           // retries after the first attempt; default 3
	BaseDelay time.Duration // first retry delay, doubled each retry; default 5s
	Logger    *slog.Logger
}

// Current acquires a one-shot fix. On failure it retries up to Retries
// times, sleeping BaseDelay, then double, then double again (5s, 10s,
// 20s at the defaults) before giving up with a warning. Once started
// the chain runs to completion; the delays are not cancellable.
func (t *Tracker) Current(ctx context.Context) (models.LocationSample, error) {
	retries := t.Retries
	if retries <= 0 {
		retries = 3
	}
	delay := t.BaseDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		s, err := t.Source.Current(ctx)
		if err == nil {
			return s, nil
		}
		lastErr = err
		if attempt == retries {
			break
		}
		t.Logger.Info("position fix failed, retrying", "attempt", attempt+1, "delay", delay.String())
		time.Sleep(delay)
		delay *= 2
	}
	t.Logger.Warn("giving up on position fix", "attempts", retries+1, "error", lastErr)
	return models.LocationSample{}, lastErr
}

// Watch starts continuous tracking and invokes fn for every update.
// Stream errors are logged, not retried. The returned stop function
// cancels the subscription and is safe to call more than once; it is
// the caller's responsibility to invoke it.
func (t *Tracker) Watch(ctx context.Context, fn func(models.LocationSample)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	updates := make(chan models.LocationSample)
	errs := make(chan error)

	go t.Source.Stream(ctx, updates, errs)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-updates:
				fn(u)
			case err := <-errs:
				t.Logger.Warn("position update error", "error", err)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }
}
