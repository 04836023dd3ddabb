package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bnema/mlab-cli/internal/domain"
	"github.com/bnema/mlab-cli/internal/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Client is the entry point for dashboard operations. It owns the session
// state, the database registry and the background refresher.
type Client struct {
	auth *Authenticator
	opts Options
	log  zerolog.Logger

	logins singleflight.Group

	mu        sync.Mutex
	databases map[string]*Database
	refresher *Refresher
}

func NewClient(dashboard ports.Dashboard, creds domain.Credentials, opts Options) (*Client, error) {
	if dashboard == nil {
		return nil, errors.New("dashboard is required")
	}
	if strings.TrimSpace(creds.Name()) == "" || creds.Password() == "" {
		return nil, domain.ErrInsufficientCredentials
	}

	opts = opts.withDefaults()
	c := &Client{
		opts:      opts,
		log:       opts.Logger,
		databases: make(map[string]*Database),
	}
	c.auth = NewAuthenticator(dashboard, creds, opts.AccountID, opts.Logger)
	c.auth.onLogin = c.loadDatabases
	c.auth.onLogout = c.clearDatabases

	return c, nil
}

// Connect logs in when needed and starts the background refresher. The
// refresher outlives ctx and runs until Close.
func (c *Client) Connect(ctx context.Context) error {
	if c.auth.Status() != domain.SessionReady {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.refresher == nil {
		c.refresher = NewRefresher(c.opts.RefreshInterval, c.refresh, c.log)
	}
	refresher := c.refresher
	c.mu.Unlock()

	refresher.Start(context.WithoutCancel(ctx))
	return nil
}

// Login runs the full authentication sequence. Concurrent callers share a
// single run; cancelling ctx releases this caller only and the shared run
// keeps going for the others.
func (c *Client) Login(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	select {
	case res := <-c.sharedLogin(ctx):
		return loginResult(res)
	case <-ctx.Done():
		return fmt.Errorf("login: %w", ctx.Err())
	}
}

// refresh waits for the shared run to settle even after ctx is cancelled,
// so stopping the refresher never leaves a login running behind it.
func (c *Client) refresh(ctx context.Context) error {
	return loginResult(<-c.sharedLogin(ctx))
}

func (c *Client) sharedLogin(ctx context.Context) <-chan singleflight.Result {
	return c.logins.DoChan("login", func() (any, error) {
		return nil, c.auth.Login(context.WithoutCancel(ctx))
	})
}

func loginResult(res singleflight.Result) error {
	if res.Err != nil {
		return fmt.Errorf("login: %w", res.Err)
	}
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.auth.Logout(ctx)
}

// Close stops the background refresher. The session itself is left as is.
func (c *Client) Close() error {
	c.mu.Lock()
	refresher := c.refresher
	c.mu.Unlock()

	if refresher != nil {
		refresher.Stop()
	}
	return nil
}

func (c *Client) Status() domain.SessionStatus {
	return c.auth.Status()
}

func (c *Client) AccountID() string {
	return c.auth.AccountID()
}

func (c *Client) DeployDatabase(ctx context.Context, cmd DeployCommand) (*Database, error) {
	if cmd.Name == "" || cmd.Region == "" {
		return nil, fmt.Errorf("deploy database: name and region: %w", domain.ErrMissingParameter)
	}
	if existing, ok := c.Database(cmd.Name); ok {
		if cmd.IgnoreExisting {
			return existing, nil
		}
		return nil, fmt.Errorf("database %q: %w", cmd.Name, domain.ErrAlreadyExists)
	}

	snap, err := c.auth.snapshot()
	if err != nil {
		return nil, fmt.Errorf("deploy database: %w", err)
	}

	created, err := snap.session.CreateDeployment(ctx, snap.accountID, snap.csrfToken, ports.DeploymentRequest{
		Name:     cmd.Name,
		Region:   cmd.Region,
		Plan:     valueOr(cmd.Plan, domain.DefaultPlan),
		Provider: valueOr(cmd.Provider, domain.DefaultProvider),
		Version:  valueOr(cmd.Version, domain.DefaultVersion),
	})
	if err != nil {
		return nil, fmt.Errorf("deploy database: %w", c.sessionError(snap, err))
	}

	db := c.register(created)
	c.log.Info().Str("database", db.Name()).Str("region", cmd.Region).Msg("database deployed")

	if c.opts.WaitEnabled {
		if err := c.waitProvisioned(ctx, db.Name(), cmd.Progress); err != nil {
			return nil, fmt.Errorf("wait for database %q: %w", db.Name(), err)
		}
	}

	return db, nil
}

func (c *Client) GetDatabaseStatus(ctx context.Context, name string) (domain.DeploymentStatus, error) {
	if name == "" {
		return domain.DeploymentStatus{}, fmt.Errorf("get database status: name: %w", domain.ErrMissingParameter)
	}

	snap, err := c.auth.snapshot()
	if err != nil {
		return domain.DeploymentStatus{}, fmt.Errorf("get database status: %w", err)
	}

	status, err := snap.session.DeploymentStatus(ctx, snap.csrfToken, name)
	if err != nil {
		return domain.DeploymentStatus{}, fmt.Errorf("get database status: %w", c.sessionError(snap, err))
	}
	return status, nil
}

func (c *Client) RemoveDatabase(ctx context.Context, name string) error {
	if _, ok := c.Database(name); !ok {
		return fmt.Errorf("database %q: %w", name, domain.ErrNotFound)
	}

	snap, err := c.auth.snapshot()
	if err != nil {
		return fmt.Errorf("remove database: %w", err)
	}

	if err := snap.session.DeleteDatabase(ctx, snap.csrfToken, name); err != nil {
		return fmt.Errorf("remove database: %w", c.sessionError(snap, err))
	}

	c.mu.Lock()
	delete(c.databases, name)
	c.mu.Unlock()

	c.log.Info().Str("database", name).Msg("database removed")
	return nil
}

// Databases lists the registered handles sorted by name.
func (c *Client) Databases() []*Database {
	c.mu.Lock()
	defer c.mu.Unlock()

	databases := make([]*Database, 0, len(c.databases))
	for _, db := range c.databases {
		databases = append(databases, db)
	}
	sort.Slice(databases, func(i, j int) bool { return databases[i].Name() < databases[j].Name() })
	return databases
}

func (c *Client) Database(name string) (*Database, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	db, ok := c.databases[name]
	return db, ok
}

func (c *Client) waitProvisioned(ctx context.Context, name string, progress func(domain.DeploymentStatus)) error {
	deadline := time.Now().Add(c.opts.WaitTimeout)
	for {
		status, err := c.GetDatabaseStatus(ctx, name)
		if err != nil {
			return err
		}
		if progress != nil {
			progress(status)
		}
		if status.State.IsProvisioned() {
			return nil
		}

		c.log.Debug().Str("database", name).Str("state", string(status.State)).Msg("waiting for database")

		if time.Now().Add(c.opts.WaitInterval).After(deadline) {
			return domain.ErrDeployTimeout
		}

		timer := time.NewTimer(c.opts.WaitInterval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// register keeps the first handle when two deploys race on one name.
func (c *Client) register(info domain.Database) *Database {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.databases[info.Name]; ok {
		return existing
	}
	db := newDatabase(c, info)
	c.databases[info.Name] = db
	return db
}

func (c *Client) loadDatabases(ctx context.Context, snap sessionSnapshot) error {
	infos, err := snap.session.ListDeployments(ctx, snap.accountID)
	if err != nil {
		return err
	}

	databases := make(map[string]*Database, len(infos))
	for _, info := range infos {
		databases[info.Name] = newDatabase(c, info)
	}

	c.mu.Lock()
	c.databases = databases
	c.mu.Unlock()

	c.log.Debug().Int("count", len(databases)).Msg("loaded databases")
	return nil
}

func (c *Client) clearDatabases() {
	c.mu.Lock()
	c.databases = make(map[string]*Database)
	c.mu.Unlock()
}

// sessionError demotes the session when the dashboard reports it expired.
func (c *Client) sessionError(snap sessionSnapshot, err error) error {
	if errors.Is(err, domain.ErrSessionExpired) {
		c.auth.invalidate(snap.generation)
	}
	return err
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
