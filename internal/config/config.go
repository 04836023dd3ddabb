package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/mlab-cli/internal/adapters/dashboard"
	"github.com/bnema/mlab-cli/internal/application"
	"github.com/bnema/mlab-cli/internal/logging"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "MLAB"

	KeyBaseURL         = "dashboard.base_url"
	KeyHTTPTimeout     = "http.timeout"
	KeyRefreshInterval = "session.refresh_interval"
	KeyDeployWait      = "deploy.wait"
	KeyWaitInterval    = "deploy.wait_interval"
	KeyWaitTimeout     = "deploy.wait_timeout"
	KeySecretsBackend  = "secrets.backend"
	KeySecretsDir      = "secrets.dir"
	KeyLogLevel        = "log.level"
	// KeyConfigFile is only read from the environment.
	KeyConfigFile = "config"

	BackendChain = "chain"
	BackendFile  = "file"

	configDir  = ".mlab"
	configFile = "config.toml"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	BaseURL         string
	HTTPTimeout     time.Duration
	RefreshInterval time.Duration
	DeployWait      bool
	WaitInterval    time.Duration
	WaitTimeout     time.Duration
	SecretsBackend  string
	SecretsDir      string
	LogLevel        string
}

// Load reads ~/.mlab/config.toml when present and applies MLAB_* environment
// overrides. The returned viper instance also carries keys owned by adapters,
// such as the profiles path.
func Load() (*viper.Viper, Settings, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, Settings{}, fmt.Errorf("resolve home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, homeDir)

	path := v.GetString(KeyConfigFile)
	if path == "" {
		path = filepath.Join(homeDir, configDir, configFile)
	}
	if err := readConfigFile(v, path); err != nil {
		return nil, Settings{}, err
	}

	settings, err := decode(v)
	if err != nil {
		return nil, Settings{}, err
	}
	return v, settings, nil
}

func setDefaults(v *viper.Viper, homeDir string) {
	v.SetDefault(KeyBaseURL, dashboard.DefaultBaseURL)
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)
	v.SetDefault(KeyRefreshInterval, application.DefaultRefreshInterval)
	v.SetDefault(KeyDeployWait, false)
	v.SetDefault(KeyWaitInterval, application.DefaultWaitInterval)
	v.SetDefault(KeyWaitTimeout, application.DefaultWaitTimeout)
	v.SetDefault(KeySecretsBackend, BackendChain)
	v.SetDefault(KeySecretsDir, filepath.Join(homeDir, configDir, "secrets"))
	v.SetDefault(KeyLogLevel, logging.DefaultLevel)
}

func readConfigFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config file: %w", err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

func decode(v *viper.Viper) (Settings, error) {
	settings := Settings{
		BaseURL:         v.GetString(KeyBaseURL),
		HTTPTimeout:     v.GetDuration(KeyHTTPTimeout),
		RefreshInterval: v.GetDuration(KeyRefreshInterval),
		DeployWait:      v.GetBool(KeyDeployWait),
		WaitInterval:    v.GetDuration(KeyWaitInterval),
		WaitTimeout:     v.GetDuration(KeyWaitTimeout),
		SecretsBackend:  strings.ToLower(strings.TrimSpace(v.GetString(KeySecretsBackend))),
		SecretsDir:      v.GetString(KeySecretsDir),
		LogLevel:        v.GetString(KeyLogLevel),
	}

	switch settings.SecretsBackend {
	case BackendChain, BackendFile:
	default:
		return Settings{}, fmt.Errorf("unsupported secrets backend %q", settings.SecretsBackend)
	}
	if _, err := logging.ParseLevel(settings.LogLevel); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

// ClientOptions maps the settings onto application options. Pinger, Logger
// and AccountID are filled by the caller.
func (s Settings) ClientOptions() application.Options {
	return application.Options{
		WaitEnabled:     s.DeployWait,
		WaitInterval:    s.WaitInterval,
		WaitTimeout:     s.WaitTimeout,
		RefreshInterval: s.RefreshInterval,
	}
}
