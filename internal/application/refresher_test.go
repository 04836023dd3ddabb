package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRefresherSkipsFiringsWhileLoginRuns(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var calls, running, maxRunning atomic.Int32

	refresher := NewRefresher(2*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		current := running.Add(1)
		defer running.Add(-1)
		for {
			seen := maxRunning.Load()
			if current <= seen || maxRunning.CompareAndSwap(seen, current) {
				break
			}
		}

		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, zerolog.Nop())

	refresher.Start(context.Background())

	assert.Eventually(t, func() bool { return refresher.Skipped() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	refresher.Stop()

	assert.Equal(t, int32(1), maxRunning.Load())
	assert.False(t, refresher.Running())
}

func TestRefresherStopWaitsAndHaltsFirings(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	refresher := NewRefresher(2*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return errors.New("dashboard down")
	}, zerolog.Nop())

	refresher.Start(context.Background())
	refresher.Start(context.Background())
	assert.True(t, refresher.Running())

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)

	refresher.Stop()
	settled := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, calls.Load())

	refresher.Stop()
}

func TestRefresherCancelsInFlightLoginOnStop(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	var cancelled atomic.Bool
	refresher := NewRefresher(time.Millisecond, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}, zerolog.Nop())

	refresher.Start(context.Background())
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("refresh never fired")
	}

	refresher.Stop()
	assert.True(t, cancelled.Load())
}
