package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/mlab-cli/internal/domain"
	"github.com/bnema/mlab-cli/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// sessionSnapshot is a consistent view of one authenticated cookie-jar
// generation. The CSRF token always belongs to session.
type sessionSnapshot struct {
	session    ports.DashboardSession
	generation uuid.UUID
	csrfToken  string
	accountID  string
}

// Authenticator owns the dashboard session state. Every mutation happens with
// mu held, so readers never see a token paired with the wrong cookie jar.
type Authenticator struct {
	dashboard ports.Dashboard
	creds     domain.Credentials
	log       zerolog.Logger

	// onLogin runs once per identity, after the first successful login.
	onLogin  func(ctx context.Context, snap sessionSnapshot) error
	onLogout func()

	mu             sync.Mutex
	status         domain.SessionStatus
	session        ports.DashboardSession
	generation     uuid.UUID
	csrfToken      string
	accountID      string
	registryLoaded bool
}

func NewAuthenticator(dashboard ports.Dashboard, creds domain.Credentials, accountID string, log zerolog.Logger) *Authenticator {
	return &Authenticator{
		dashboard: dashboard,
		creds:     creds,
		log:       log,
		status:    domain.SessionAnonymous,
		accountID: accountID,
	}
}

func (a *Authenticator) Status() domain.SessionStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Authenticator) AccountID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accountID
}

// Login re-authenticates from scratch, fetches a CSRF token for the new
// cookie jar and discovers the account id when it is not known yet.
func (a *Authenticator) Login(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.authenticate(ctx); err != nil {
		return err
	}
	if err := a.refreshCSRFToken(ctx); err != nil {
		return err
	}
	if err := a.ensureAccountID(ctx); err != nil {
		return err
	}

	if !a.registryLoaded && a.onLogin != nil {
		if err := a.onLogin(ctx, a.snapshotLocked()); err != nil {
			return fmt.Errorf("load databases: %w", err)
		}
	}
	a.registryLoaded = true

	a.log.Debug().Str("generation", a.generation.String()).Msg("dashboard session ready")
	return nil
}

// Logout asks the dashboard to end the session and then clears all local
// state. The local reset happens even when the remote request fails.
func (a *Authenticator) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var remoteErr error
	if a.session != nil && a.status == domain.SessionReady {
		remoteErr = a.session.Logout(ctx, a.csrfToken)
	}

	a.session = nil
	a.generation = uuid.Nil
	a.status = domain.SessionAnonymous
	a.csrfToken = ""
	a.accountID = ""
	a.registryLoaded = false
	if a.onLogout != nil {
		a.onLogout()
	}

	if remoteErr != nil {
		return fmt.Errorf("logout: %w", remoteErr)
	}
	return nil
}

func (a *Authenticator) snapshot() (sessionSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != domain.SessionReady {
		return sessionSnapshot{}, domain.ErrNotAuthenticated
	}
	return a.snapshotLocked(), nil
}

func (a *Authenticator) snapshotLocked() sessionSnapshot {
	return sessionSnapshot{
		session:    a.session,
		generation: a.generation,
		csrfToken:  a.csrfToken,
		accountID:  a.accountID,
	}
}

// invalidate drops the session when the dashboard rejected generation. A
// newer generation created by a concurrent login is left alone.
func (a *Authenticator) invalidate(generation uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.generation != generation || !a.status.IsAuthenticated() {
		return
	}

	a.log.Warn().Str("generation", generation.String()).Msg("dashboard session expired")
	a.session = nil
	a.generation = uuid.Nil
	a.status = domain.SessionAnonymous
	a.csrfToken = ""
}

// authenticate must be called with mu held.
func (a *Authenticator) authenticate(ctx context.Context) error {
	if a.status.IsAuthenticated() {
		a.session = nil
		a.generation = uuid.Nil
		a.csrfToken = ""
		a.status = domain.SessionAnonymous
	}

	if a.session == nil {
		session, err := a.dashboard.NewSession()
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrAuthenticationFailed, err)
		}
		a.session = session
	}

	a.status = domain.SessionAuthenticating
	if err := a.session.Login(ctx, a.creds); err != nil {
		a.status = domain.SessionAnonymous
		if errors.Is(err, domain.ErrInvalidCredentials) {
			a.session = nil
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrAuthenticationFailed, err)
	}

	a.generation = uuid.New()
	a.status = domain.SessionAuthenticated
	a.log.Debug().Str("user", a.creds.Name()).Msg("authenticated against dashboard")
	return nil
}

// refreshCSRFToken must be called with mu held.
func (a *Authenticator) refreshCSRFToken(ctx context.Context) error {
	if !a.status.IsAuthenticated() {
		if err := a.authenticate(ctx); err != nil {
			return err
		}
	}

	a.status = domain.SessionCSRFPending
	token, err := a.session.FetchCSRFToken(ctx)
	if err != nil {
		a.status = domain.SessionAuthenticated
		return fmt.Errorf("%w: %w", domain.ErrCSRFFetchFailed, err)
	}

	a.csrfToken = token
	a.status = domain.SessionReady
	return nil
}

// ensureAccountID must be called with mu held.
func (a *Authenticator) ensureAccountID(ctx context.Context) error {
	if a.accountID != "" {
		return nil
	}

	accountID, err := a.session.FetchAccountID(ctx)
	if err != nil {
		return fmt.Errorf("fetch account id: %w", err)
	}

	a.accountID = accountID
	return nil
}
