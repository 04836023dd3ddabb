package domain

// SessionStatus is a state of the dashboard authentication machine.
type SessionStatus string

const (
	SessionAnonymous      SessionStatus = "anonymous"
	SessionAuthenticating SessionStatus = "authenticating"
	SessionAuthenticated  SessionStatus = "authenticated"
	SessionCSRFPending    SessionStatus = "csrf_pending"
	SessionReady          SessionStatus = "ready"
)

func (s SessionStatus) IsAuthenticated() bool {
	switch s {
	case SessionAuthenticated, SessionCSRFPending, SessionReady:
		return true
	default:
		return false
	}
}
