package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Refresher re-runs login on a fixed interval to keep the dashboard session
// alive. A firing that lands while the previous one is still running is
// skipped.
type Refresher struct {
	interval time.Duration
	login    func(ctx context.Context) error
	log      zerolog.Logger

	inFlight atomic.Bool
	skipped  atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRefresher(interval time.Duration, login func(ctx context.Context) error, log zerolog.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{interval: interval, login: login, log: log}
}

// Start launches the ticker. Calling Start on a running refresher is a no-op.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.wg.Add(1)
				go func() {
					defer r.wg.Done()
					r.fire(ctx)
				}()
			}
		}
	}()
}

// Stop cancels the ticker and waits for an in-flight refresh to return.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
}

func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Skipped reports how many firings were dropped because a refresh was
// already running.
func (r *Refresher) Skipped() int64 {
	return r.skipped.Load()
}

func (r *Refresher) fire(ctx context.Context) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.skipped.Add(1)
		r.log.Debug().Msg("session refresh already running, skipping")
		return
	}
	defer r.inFlight.Store(false)

	if err := r.login(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Warn().Err(err).Msg("session refresh failed")
		return
	}
	r.log.Debug().Msg("session refreshed")
}
