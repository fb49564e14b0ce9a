package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dostvardhan/drivegate/config"
)

// validSettings is the smallest document that passes validation; tests
// overlay their own sections on top of it.
func validSettings() map[string]any {
	return map[string]any{
		"auth": map[string]any{
			"issuer":   "https://accounts.example.com",
			"audience": "drivegate-client",
		},
		"storage": map[string]any{
			"client_id":     "client-id",
			"client_secret": "client-secret",
			"refresh_token": "refresh-secret",
		},
	}
}

func writeConfig(t *testing.T, settings map[string]any) string {
	t.Helper()

	data, err := yaml.Marshal(settings)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load([]string{writeConfig(t, validSettings())}, nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(0), cfg.Server.MaxUploadSize)
	assert.Equal(t, 900, cfg.Auth.KeyTTLSeconds)
	assert.Equal(t, 5, cfg.Auth.KeyFetchesPerMinute)
	assert.Equal(t, "https://oauth2.googleapis.com/token", cfg.Storage.TokenURL)
	assert.Equal(t, "index", cfg.List.Source)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "drivegate.db", cfg.Database.DSN)
	assert.Equal(t, "drivegate_transfers", cfg.Database.Table)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	settings := validSettings()
	settings["server"] = map[string]any{"port": 9090, "max_upload_size": 1 << 20}
	settings["list"] = map[string]any{"source": "provider"}
	settings["database"] = map[string]any{"type": "postgres", "dsn": "postgres://localhost/drivegate"}
	settings["log"] = map[string]any{"level": "debug"}

	cfg, err := config.Load([]string{writeConfig(t, settings)}, nil)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxUploadSize)
	assert.Equal(t, "provider", cfg.List.Source)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "postgres://localhost/drivegate", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFileMerge(t *testing.T) {
	basePath := writeConfig(t, validSettings())
	overridePath := writeConfig(t, map[string]any{
		"server": map[string]any{"port": 9000},
	})

	cfg, err := config.Load([]string{basePath, overridePath}, nil)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "https://accounts.example.com", cfg.Auth.Issuer)
}

func TestLoad_EnvOnlySecrets(t *testing.T) {
	// The issuer and the storage secrets are exactly the values an
	// operator supplies through the environment rather than a file.
	t.Setenv("DRIVEGATE_AUTH_ISSUER", "https://accounts.example.com")
	t.Setenv("DRIVEGATE_AUTH_AUDIENCE", "drivegate-client")
	t.Setenv("DRIVEGATE_STORAGE_CLIENT_ID", "env-client-id")
	t.Setenv("DRIVEGATE_STORAGE_CLIENT_SECRET", "env-client-secret")
	t.Setenv("DRIVEGATE_STORAGE_REFRESH_TOKEN", "env-refresh-secret")

	path := writeConfig(t, map[string]any{
		"server": map[string]any{"port": 9090},
	})

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://accounts.example.com", cfg.Auth.Issuer)
	assert.Equal(t, "drivegate-client", cfg.Auth.Audience)
	assert.Equal(t, "env-client-id", cfg.Storage.ClientID)
	assert.Equal(t, "env-client-secret", cfg.Storage.ClientSecret)
	assert.Equal(t, "env-refresh-secret", cfg.Storage.RefreshToken)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("DRIVEGATE_SERVER_PORT", "9999")
	t.Setenv("DRIVEGATE_AUTH_ISSUER", "https://other.example.com")

	cfg, err := config.Load([]string{writeConfig(t, validSettings())}, nil)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "https://other.example.com", cfg.Auth.Issuer)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.String("list-source", "", "")
	require.NoError(t, flags.Parse([]string{"--port=7070", "--list-source=provider"}))

	cfg, err := config.Load([]string{writeConfig(t, validSettings())}, flags)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "provider", cfg.List.Source)
}

func TestLoad_UnchangedFlagsIgnored(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 1234, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := config.Load([]string{writeConfig(t, validSettings())}, flags)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port, "flag defaults must not override config")
}

func TestLoad_ValidationError_MissingIssuer(t *testing.T) {
	settings := validSettings()
	settings["auth"] = map[string]any{"audience": "drivegate-client"}

	_, err := config.Load([]string{writeConfig(t, settings)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoad_ValidationError_MissingRefreshToken(t *testing.T) {
	settings := validSettings()
	settings["storage"] = map[string]any{
		"client_id":     "client-id",
		"client_secret": "client-secret",
	}

	_, err := config.Load([]string{writeConfig(t, settings)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoad_ValidationError_InvalidListSource(t *testing.T) {
	settings := validSettings()
	settings["list"] = map[string]any{"source": "cache"}

	_, err := config.Load([]string{writeConfig(t, settings)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoad_AudienceRequiredUnlessOptedOut(t *testing.T) {
	settings := validSettings()
	settings["auth"] = map[string]any{"issuer": "https://accounts.example.com"}

	_, err := config.Load([]string{writeConfig(t, settings)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audience")

	settings["auth"] = map[string]any{
		"issuer":                 "https://accounts.example.com",
		"disable_audience_check": true,
	}
	cfg, err := config.Load([]string{writeConfig(t, settings)}, nil)
	require.NoError(t, err)
	assert.True(t, cfg.Auth.DisableAudienceCheck)
}

func TestResolvedJWKSURL(t *testing.T) {
	a := config.AuthConfig{Issuer: "https://accounts.example.com/"}
	assert.Equal(t, "https://accounts.example.com/.well-known/jwks.json", a.ResolvedJWKSURL())

	a.JWKSURL = "https://keys.example.com/jwks"
	assert.Equal(t, "https://keys.example.com/jwks", a.ResolvedJWKSURL())
}
