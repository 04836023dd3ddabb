package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/mlab-cli/internal/ports"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

var ErrPingFailed = errors.New("mongodb ping failed")

const (
	defaultConnectTimeout = 10 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryInterval  = 2 * time.Second
)

type Config struct {
	ConnectTimeout time.Duration
	// RetryAttempts covers fresh sandboxes that refuse connections for a
	// few seconds after provisioning.
	RetryAttempts int
	RetryInterval time.Duration
	Logger        zerolog.Logger
}

// Pinger opens a short-lived client per call and pings the primary.
type Pinger struct {
	cfg Config
}

var _ ports.Pinger = (*Pinger)(nil)

func NewPinger(cfg Config) *Pinger {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	return &Pinger{cfg: cfg}
}

func (p *Pinger) Ping(ctx context.Context, uri string) error {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(p.cfg.ConnectTimeout).
		SetServerSelectionTimeout(p.cfg.ConnectTimeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return fmt.Errorf("%w: connect: %w", ErrPingFailed, err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ConnectTimeout)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	var lastErr error
	for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
		lastErr = client.Ping(ctx, readpref.Primary())
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == p.cfg.RetryAttempts {
			break
		}

		p.cfg.Logger.Debug().Err(lastErr).Int("attempt", attempt).Msg("mongodb ping failed, retrying")

		timer := time.NewTimer(p.cfg.RetryInterval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return fmt.Errorf("%w: %w", ErrPingFailed, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w: %w", ErrPingFailed, lastErr)
}
