package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/mlab-cli/internal/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://mlab.com", settings.BaseURL)
	assert.Equal(t, 30*time.Second, settings.HTTPTimeout)
	assert.Equal(t, 5*time.Hour, settings.RefreshInterval)
	assert.False(t, settings.DeployWait)
	assert.Equal(t, 30*time.Second, settings.WaitInterval)
	assert.Equal(t, 30*time.Minute, settings.WaitTimeout)
	assert.Equal(t, BackendChain, settings.SecretsBackend)
	assert.Equal(t, filepath.Join(home, ".mlab", "secrets"), settings.SecretsDir)
	assert.Equal(t, "warn", settings.LogLevel)
}

func TestLoadReadsConfigFileAndEnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".mlab"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".mlab", "config.toml"), []byte(`
[dashboard]
base_url = "http://127.0.0.1:9000"

[deploy]
wait = true
wait_interval = "5s"

[profiles]
path = "/tmp/custom-profiles.toml"
`), 0o600))
	t.Setenv("MLAB_DEPLOY_WAIT_TIMEOUT", "2m")
	t.Setenv("MLAB_SECRETS_BACKEND", "FILE")

	v, settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9000", settings.BaseURL)
	assert.True(t, settings.DeployWait)
	assert.Equal(t, 5*time.Second, settings.WaitInterval)
	assert.Equal(t, 2*time.Minute, settings.WaitTimeout)
	assert.Equal(t, BackendFile, settings.SecretsBackend)
	assert.Equal(t, "/tmp/custom-profiles.toml", v.GetString("profiles.path"))
}

func TestLoadUsesConfigPathFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "alt.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o600))
	t.Setenv("MLAB_CONFIG", path)

	_, settings, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", settings.LogLevel)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{name: "backend", key: "MLAB_SECRETS_BACKEND", val: "vault", want: "unsupported secrets backend"},
		{name: "log level", key: "MLAB_LOG_LEVEL", val: "loud", want: "parse log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, _, err := Load()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadRejectsMalformedConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".mlab"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".mlab", "config.toml"), []byte("[deploy\n"), 0o600))

	_, _, err := Load()
	assert.ErrorContains(t, err, "read config file")
}

func TestSettingsClientOptions(t *testing.T) {
	t.Parallel()

	opts := Settings{DeployWait: true, WaitInterval: time.Second, WaitTimeout: time.Minute, RefreshInterval: time.Hour}.ClientOptions()
	assert.Equal(t, application.Options{WaitEnabled: true, WaitInterval: time.Second, WaitTimeout: time.Minute, RefreshInterval: time.Hour}, opts)
}
