package ports

import (
	"context"

	"github.com/bnema/mlab-cli/internal/domain"
)

// Dashboard opens browser-like sessions against the hosting dashboard. Every
// session owns a fresh cookie jar.
type Dashboard interface {
	NewSession() (DashboardSession, error)
}

// DashboardSession is one cookie-jar generation. Requests that need a CSRF
// token take it explicitly so the caller controls which generation it
// belongs to.
type DashboardSession interface {
	Login(ctx context.Context, creds domain.Credentials) error
	Logout(ctx context.Context, csrfToken string) error
	FetchCSRFToken(ctx context.Context) (string, error)
	FetchAccountID(ctx context.Context) (string, error)

	ListDeployments(ctx context.Context, accountID string) ([]domain.Database, error)
	CreateDeployment(ctx context.Context, accountID, csrfToken string, req DeploymentRequest) (domain.Database, error)
	DeploymentStatus(ctx context.Context, csrfToken, name string) (domain.DeploymentStatus, error)
	DeleteDatabase(ctx context.Context, csrfToken, name string) error

	ListUsers(ctx context.Context, database string) ([]string, error)
	AddUser(ctx context.Context, csrfToken, database string, user domain.DatabaseUser) error
	RemoveUser(ctx context.Context, csrfToken, database, username string) error
}

type DeploymentRequest struct {
	Name     string
	Region   string
	Plan     string
	Provider string
	Version  string
}
