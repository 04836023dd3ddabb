package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPingRejectsInvalidURI(t *testing.T) {
	t.Parallel()

	pinger := NewPinger(Config{})

	err := pinger.Ping(context.Background(), "http://not-mongo")
	assert.ErrorIs(t, err, ErrPingFailed)
	assert.ErrorContains(t, err, "connect")
}

func TestPingUnreachableServerFailsAfterRetries(t *testing.T) {
	t.Parallel()

	pinger := NewPinger(Config{
		ConnectTimeout: 50 * time.Millisecond,
		RetryAttempts:  2,
		RetryInterval:  time.Millisecond,
	})

	start := time.Now()
	err := pinger.Ping(context.Background(), "mongodb://127.0.0.1:1/?directConnection=true")
	assert.ErrorIs(t, err, ErrPingFailed)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPingStopsWhenContextIsCancelled(t *testing.T) {
	t.Parallel()

	pinger := NewPinger(Config{
		ConnectTimeout: 20 * time.Millisecond,
		RetryAttempts:  100,
		RetryInterval:  time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := pinger.Ping(ctx, "mongodb://127.0.0.1:1/?directConnection=true")
	assert.ErrorIs(t, err, ErrPingFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
