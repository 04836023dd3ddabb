package application

import (
	"time"

	"github.com/bnema/mlab-cli/internal/ports"
	"github.com/rs/zerolog"
)

const (
	DefaultWaitInterval    = 30 * time.Second
	DefaultWaitTimeout     = 30 * time.Minute
	DefaultRefreshInterval = 5 * time.Hour
)

type Options struct {
	// WaitEnabled makes DeployDatabase block until the deployment is provisioned.
	WaitEnabled     bool
	WaitInterval    time.Duration
	WaitTimeout     time.Duration
	RefreshInterval time.Duration
	// AccountID skips account discovery on login when set.
	AccountID string
	Pinger    ports.Pinger
	Logger    zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.WaitInterval <= 0 {
		o.WaitInterval = DefaultWaitInterval
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = DefaultWaitTimeout
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	return o
}
