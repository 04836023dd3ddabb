package domain

type ProfileName string

const DefaultProfile ProfileName = "default"

// Profile is a named set of dashboard credentials. The password lives in the
// secret store under SecretRef.
type Profile struct {
	Name      ProfileName
	Username  string
	SecretRef string
	// AccountID pins the dashboard account and skips discovery when set.
	AccountID string
}
