package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bnema/mlab-cli/internal/domain"
)

// Database is a handle on one deployment registered with a Client. Its user
// set is a local cache that is corrected from the dashboard whenever a lookup
// misses.
type Database struct {
	client *Client
	info   domain.Database

	mu sync.Mutex
	// users maps known user names to the password set through this handle,
	// or "" when the user was only seen remotely.
	users map[string]string
}

func newDatabase(client *Client, info domain.Database) *Database {
	return &Database{client: client, info: info, users: make(map[string]string)}
}

func (d *Database) Name() string {
	return d.info.Name
}

func (d *Database) Info() domain.Database {
	return d.info
}

func (d *Database) ConnectionURI(username, password string) string {
	return d.info.ConnectionURI(username, password)
}

// HasUser answers from the cache and falls back to the dashboard's user list.
func (d *Database) HasUser(ctx context.Context, name string) (bool, error) {
	d.mu.Lock()
	_, cached := d.users[name]
	d.mu.Unlock()
	if cached {
		return true, nil
	}

	users, err := d.fetchUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, user := range users {
		if user == name {
			return true, nil
		}
	}
	return false, nil
}

// Users always asks the dashboard and refreshes the cache.
func (d *Database) Users(ctx context.Context) ([]string, error) {
	users, err := d.fetchUsers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(users)
	return users, nil
}

func (d *Database) AddUser(ctx context.Context, cmd AddUserCommand) error {
	if cmd.Name == "" || cmd.Password == "" {
		return fmt.Errorf("add user: name and password: %w", domain.ErrMissingParameter)
	}

	exists, err := d.HasUser(ctx, cmd.Name)
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	if exists {
		if cmd.IgnoreExisting {
			return nil
		}
		return fmt.Errorf("user %q: %w", cmd.Name, domain.ErrAlreadyExists)
	}

	snap, err := d.client.auth.snapshot()
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}

	user := domain.DatabaseUser{Name: cmd.Name, Password: cmd.Password, ReadOnly: cmd.ReadOnly}
	if err := snap.session.AddUser(ctx, snap.csrfToken, d.info.Name, user); err != nil {
		return fmt.Errorf("add user: %w", d.client.sessionError(snap, err))
	}

	exists, err = d.HasUser(ctx, cmd.Name)
	if err != nil {
		return fmt.Errorf("verify added user: %w", err)
	}
	if !exists {
		return fmt.Errorf("add user %q: %w", cmd.Name, domain.ErrMalformedRequest)
	}

	d.mu.Lock()
	d.users[cmd.Name] = cmd.Password
	d.mu.Unlock()

	d.client.log.Info().Str("database", d.info.Name).Str("user", cmd.Name).Msg("user added")
	return nil
}

func (d *Database) RemoveUser(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("remove user: name: %w", domain.ErrMissingParameter)
	}

	exists, err := d.HasUser(ctx, name)
	if err != nil {
		return fmt.Errorf("remove user: %w", err)
	}
	if !exists {
		return fmt.Errorf("user %q: %w", name, domain.ErrNotFound)
	}

	snap, err := d.client.auth.snapshot()
	if err != nil {
		return fmt.Errorf("remove user: %w", err)
	}

	if err := snap.session.RemoveUser(ctx, snap.csrfToken, d.info.Name, name); err != nil {
		return fmt.Errorf("remove user: %w", d.client.sessionError(snap, err))
	}

	d.mu.Lock()
	lastValue := d.users[name]
	delete(d.users, name)
	d.mu.Unlock()

	stillPresent, err := d.HasUser(ctx, name)
	if err != nil {
		return fmt.Errorf("verify removed user: %w", err)
	}
	if stillPresent {
		d.mu.Lock()
		d.users[name] = lastValue
		d.mu.Unlock()
		return fmt.Errorf("remove user %q: %w", name, domain.ErrRemovalFailed)
	}

	d.client.log.Info().Str("database", d.info.Name).Str("user", name).Msg("user removed")
	return nil
}

// Delete removes the deployment through the owning client.
func (d *Database) Delete(ctx context.Context) error {
	return d.client.RemoveDatabase(ctx, d.info.Name)
}

// Ping connects to the deployment with the given user.
func (d *Database) Ping(ctx context.Context, username, password string) error {
	if d.client.opts.Pinger == nil {
		return errors.New("ping database: no pinger configured")
	}
	if d.info.URITemplate == "" {
		return fmt.Errorf("ping database %q: connection template: %w", d.info.Name, domain.ErrMissingParameter)
	}

	if err := d.client.opts.Pinger.Ping(ctx, d.ConnectionURI(username, password)); err != nil {
		return fmt.Errorf("ping database %q: %w", d.info.Name, err)
	}
	return nil
}

// fetchUsers replaces the cache with the dashboard's user list, keeping
// passwords already known for users that still exist.
func (d *Database) fetchUsers(ctx context.Context) ([]string, error) {
	snap, err := d.client.auth.snapshot()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users, err := snap.session.ListUsers(ctx, d.info.Name)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", d.client.sessionError(snap, err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	refreshed := make(map[string]string, len(users))
	for _, user := range users {
		refreshed[user] = d.users[user]
	}
	d.users = refreshed

	return users, nil
}
