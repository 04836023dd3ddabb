package domain

import (
	"fmt"
	"strings"
)

// Credentials are the long-lived dashboard login. They are immutable once built.
type Credentials struct {
	name     string
	password string
}

func NewCredentials(name, password string) (Credentials, error) {
	if strings.TrimSpace(name) == "" || password == "" {
		return Credentials{}, ErrInsufficientCredentials
	}

	return Credentials{name: name, password: password}, nil
}

func (c Credentials) Name() string {
	return c.name
}

func (c Credentials) Password() string {
	return c.password
}

func (c Credentials) String() string {
	return fmt.Sprintf("%s:<redacted>", c.name)
}

// GoString keeps %#v from leaking the password.
func (c Credentials) GoString() string {
	return fmt.Sprintf("domain.Credentials{name: %q}", c.name)
}
