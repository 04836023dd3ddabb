package application

import "github.com/bnema/mlab-cli/internal/domain"

type DeployCommand struct {
	Name     string
	Region   string
	Plan     string
	Provider string
	Version  string
	// IgnoreExisting returns the registered handle instead of failing with
	// domain.ErrAlreadyExists.
	IgnoreExisting bool
	// Progress, when set, receives every status seen while waiting.
	Progress func(domain.DeploymentStatus)
}

type AddUserCommand struct {
	Name           string
	Password       string
	ReadOnly       bool
	IgnoreExisting bool
}

type SetCredentialsCommand struct {
	Profile   domain.ProfileName
	Username  string
	Password  string
	AccountID string
}
