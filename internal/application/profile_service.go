package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/mlab-cli/internal/domain"
	"github.com/bnema/mlab-cli/internal/ports"
)

// ProfileService stores dashboard credentials: the profile in the repository
// and the password in the secret store.
type ProfileService struct {
	repo  ports.ProfileRepository
	store ports.SecretStore
}

func NewProfileService(repo ports.ProfileRepository, store ports.SecretStore) *ProfileService {
	return &ProfileService{repo: repo, store: store}
}

func SecretKey(profile domain.ProfileName) string {
	return fmt.Sprintf("mlab/%s/password", profile)
}

func (s *ProfileService) SetCredentials(ctx context.Context, cmd SetCredentialsCommand) error {
	name := cmd.Profile
	if name == "" {
		name = domain.DefaultProfile
	}
	if _, err := domain.NewCredentials(cmd.Username, cmd.Password); err != nil {
		return err
	}

	profile, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			return fmt.Errorf("get profile: %w", err)
		}
		profile = domain.Profile{Name: name}
	}
	previousSecretRef := profile.SecretRef

	secretKey := SecretKey(name)
	if err := s.store.Put(ctx, secretKey, cmd.Password); err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	profile.Username = strings.TrimSpace(cmd.Username)
	profile.SecretRef = secretKey
	if cmd.AccountID != "" {
		profile.AccountID = cmd.AccountID
	}

	if err := s.repo.Save(ctx, profile); err != nil {
		if previousSecretRef == secretKey {
			return fmt.Errorf("save profile: %w", err)
		}
		if rollbackErr := s.store.Delete(ctx, secretKey); rollbackErr != nil {
			return fmt.Errorf("save profile and rollback stored password: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("save profile: %w", err)
	}

	if previousSecretRef != "" && previousSecretRef != secretKey {
		if err := s.store.Delete(ctx, previousSecretRef); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
			return fmt.Errorf("delete previous password: %w", err)
		}
	}

	return nil
}

// RemoveCredentials deletes the profile and its password. The profile is
// restored when the password cannot be deleted.
func (s *ProfileService) RemoveCredentials(ctx context.Context, name domain.ProfileName) error {
	profile, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}

	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	if profile.SecretRef == "" {
		return nil
	}

	if err := s.store.Delete(ctx, profile.SecretRef); err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return nil
		}
		if restoreErr := s.repo.Save(ctx, profile); restoreErr != nil {
			return fmt.Errorf("delete password and restore profile: %w", errors.Join(err, restoreErr))
		}
		return fmt.Errorf("delete password: %w", err)
	}

	return nil
}

// ResolveCredentials loads a profile and its password.
func (s *ProfileService) ResolveCredentials(ctx context.Context, name domain.ProfileName) (domain.Profile, domain.Credentials, error) {
	profile, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return domain.Profile{}, domain.Credentials{}, fmt.Errorf("get profile: %w", err)
	}
	if profile.SecretRef == "" {
		return domain.Profile{}, domain.Credentials{}, fmt.Errorf("profile %q has no password: %w", name, domain.ErrInsufficientCredentials)
	}

	password, err := s.store.Get(ctx, profile.SecretRef)
	if err != nil {
		return domain.Profile{}, domain.Credentials{}, fmt.Errorf("read password: %w", err)
	}

	creds, err := domain.NewCredentials(profile.Username, password)
	if err != nil {
		return domain.Profile{}, domain.Credentials{}, fmt.Errorf("profile %q: %w", name, err)
	}

	return profile, creds, nil
}

func (s *ProfileService) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}
