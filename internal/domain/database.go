package domain

import (
	"net/url"
	"strings"
)

const (
	DefaultPlan     = "aws-sandbox-v2"
	DefaultProvider = "AWS"
	DefaultVersion  = "3.4.15"
)

// Database is the connection metadata of one hosted deployment.
type Database struct {
	Name         string
	ID           string
	Provider     string
	Region       string
	PlanType     string
	Version      string
	DisplayLabel string
	URITemplate  string
	URIAddress   string
}

// ConnectionURI fills the {username} and {password} placeholders of the
// deployment's URI template.
func (d Database) ConnectionURI(username, password string) string {
	escapedUser := url.User(username).String()
	escapedPassword := strings.TrimPrefix(url.UserPassword("", password).String(), ":")

	return strings.NewReplacer(
		"{username}", escapedUser,
		"{password}", escapedPassword,
	).Replace(d.URITemplate)
}

// DeploymentState is the loggedState reported for a deployment.
type DeploymentState string

const (
	// DeploymentProvisioned is spelled the way the dashboard reports it.
	DeploymentProvisioned DeploymentState = "provisoned"
	deploymentProvisioned DeploymentState = "provisioned"
)

func (s DeploymentState) IsProvisioned() bool {
	return s == DeploymentProvisioned || s == deploymentProvisioned
}

type DeploymentStatus struct {
	Name  string
	State DeploymentState
}

// DatabaseUser is a user to create on a deployment.
type DatabaseUser struct {
	Name     string
	Password string
	ReadOnly bool
}
