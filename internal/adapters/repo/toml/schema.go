package toml

import (
	"fmt"

	"github.com/bnema/mlab-cli/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Profiles []profileSchema `toml:"profiles"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported profiles schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type profileSchema struct {
	Name      string `toml:"name"`
	Username  string `toml:"username"`
	SecretRef string `toml:"secret_ref"`
	AccountID string `toml:"account_id,omitempty"`
}

func toSchema(profile domain.Profile) profileSchema {
	return profileSchema{
		Name:      string(profile.Name),
		Username:  profile.Username,
		SecretRef: profile.SecretRef,
		AccountID: profile.AccountID,
	}
}

func fromSchema(entry profileSchema) domain.Profile {
	return domain.Profile{
		Name:      domain.ProfileName(entry.Name),
		Username:  entry.Username,
		SecretRef: entry.SecretRef,
		AccountID: entry.AccountID,
	}
}
