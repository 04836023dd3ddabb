package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/bnema/mlab-cli/internal/adapters/dashboard"
	mongoadapter "github.com/bnema/mlab-cli/internal/adapters/mongo"
	databasesadapter "github.com/bnema/mlab-cli/internal/adapters/render/databases"
	tomlrepo "github.com/bnema/mlab-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/mlab-cli/internal/adapters/secrets/chain"
	filestore "github.com/bnema/mlab-cli/internal/adapters/secrets/file"
	"github.com/bnema/mlab-cli/internal/application"
	"github.com/bnema/mlab-cli/internal/config"
	"github.com/bnema/mlab-cli/internal/domain"
	"github.com/bnema/mlab-cli/internal/logging"
	"github.com/bnema/mlab-cli/internal/ports"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const defaultProfileName = domain.DefaultProfile

type app struct {
	settings         config.Settings
	log              zerolog.Logger
	profiles         *application.ProfileService
	pinger           ports.Pinger
	databaseRenderer func([]databasesadapter.Row, databasesadapter.RenderOptions) (string, error)

	// Bound to persistent root flags.
	profile   string
	accountID string
	asJSON    bool
}

func wireApp() (*app, error) {
	cfg, settings, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(os.Stderr, settings.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	repo, err := tomlrepo.NewRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire profile repository: %w", err)
	}

	secretStore, err := wireSecretStore(settings, log)
	if err != nil {
		return nil, err
	}

	return &app{
		settings:         settings,
		log:              log,
		profiles:         application.NewProfileService(repo, secretStore),
		pinger:           mongoadapter.NewPinger(mongoadapter.Config{Logger: log}),
		databaseRenderer: databasesadapter.Render,
	}, nil
}

func wireSecretStore(settings config.Settings, log zerolog.Logger) (ports.SecretStore, error) {
	switch settings.SecretsBackend {
	case config.BackendFile:
		return filestore.NewStore(settings.SecretsDir), nil
	default:
		store, err := chainstore.NewPassFirstWithFileFallback(settings.SecretsDir, log)
		if err != nil {
			return nil, fmt.Errorf("wire secret store chain: %w", err)
		}
		return store, nil
	}
}

// newClient resolves the selected profile and builds a dashboard client for
// it. The client is not logged in yet.
func (a *app) newClient(ctx context.Context) (*application.Client, error) {
	profile, creds, err := a.profiles.ResolveCredentials(ctx, domain.ProfileName(a.profile))
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", a.profile, err)
	}

	dash, err := dashboard.New(dashboard.Config{
		BaseURL:        a.settings.BaseURL,
		RequestTimeout: a.settings.HTTPTimeout,
		Logger:         a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("wire dashboard client: %w", err)
	}

	opts := a.settings.ClientOptions()
	opts.AccountID = profile.AccountID
	if a.accountID != "" {
		opts.AccountID = a.accountID
	}
	opts.Pinger = a.pinger
	opts.Logger = a.log.With().Str("profile", a.profile).Logger()

	return application.NewClient(dash, creds, opts)
}

// withSession logs in, runs fn and ends the dashboard session afterwards.
// A failed logout is logged and does not mask fn's result.
func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, client *application.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := a.newClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.Login(ctx); err != nil {
		return err
	}
	defer func() {
		if !client.Status().IsAuthenticated() {
			return
		}
		if err := client.Logout(context.WithoutCancel(ctx)); err != nil {
			a.log.Warn().Err(err).Msg("end dashboard session")
		}
	}()

	return fn(ctx, client)
}

func lookupDatabase(client *application.Client, name string) (*application.Database, error) {
	db, ok := client.Database(name)
	if !ok {
		return nil, fmt.Errorf("database %q: %w", name, domain.ErrNotFound)
	}
	return db, nil
}
