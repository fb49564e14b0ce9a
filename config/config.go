package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dostvardhan/drivegate/database"
	gatehttp "github.com/dostvardhan/drivegate/http"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for drivegate.
type Config struct {
	Server   ServerConfig        `mapstructure:"server"`
	Auth     AuthConfig          `mapstructure:"auth"`
	Storage  StorageConfig       `mapstructure:"storage"`
	List     ListConfig          `mapstructure:"list"`
	Database database.Config     `mapstructure:"database"`
	CORS     gatehttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig           `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"min=0"`
}

// AuthConfig holds identity-provider configuration.
type AuthConfig struct {
	// Issuer is the identity provider's issuer URL; tokens must carry it exactly.
	Issuer string `mapstructure:"issuer" validate:"required,url"`
	// Audience must appear in verified tokens unless the check is disabled.
	Audience string `mapstructure:"audience"`
	// DisableAudienceCheck is the explicit opt-out for providers that
	// issue no audience claim.
	DisableAudienceCheck bool `mapstructure:"disable_audience_check"`
	// JWKSURL overrides the key-set endpoint; empty derives it from the issuer.
	JWKSURL string `mapstructure:"jwks_url"`
	// AllowedCallers is the optional allow-list of subjects or emails.
	// Empty permits every verified caller.
	AllowedCallers []string `mapstructure:"allowed_callers"`
	// KeyTTLSeconds bounds signing-key cache freshness.
	KeyTTLSeconds int `mapstructure:"key_ttl_seconds" validate:"min=0"`
	// KeyFetchesPerMinute caps upstream key-set fetches.
	KeyFetchesPerMinute int `mapstructure:"key_fetches_per_minute" validate:"min=0"`
}

// ResolvedJWKSURL returns the configured key-set endpoint, deriving the
// well-known location from the issuer when unset.
func (a AuthConfig) ResolvedJWKSURL() string {
	if a.JWKSURL != "" {
		return a.JWKSURL
	}
	return strings.TrimSuffix(a.Issuer, "/") + "/.well-known/jwks.json"
}

// StorageConfig holds storage-provider configuration. The refresh token
// is the deployment's delegated credential; startup fails without it.
type StorageConfig struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	RefreshToken string `mapstructure:"refresh_token" validate:"required"`
	TokenURL     string `mapstructure:"token_url" validate:"required,url"`
	APIBase      string `mapstructure:"api_base"`
	UploadBase   string `mapstructure:"upload_base"`
	FolderID     string `mapstructure:"folder_id"`
	MakePublic   bool   `mapstructure:"make_public"`
}

// ListConfig selects the listing mode.
type ListConfig struct {
	Source string `mapstructure:"source" validate:"required,oneof=index provider"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":        "server.port",
	"db-type":     "database.type",
	"db-dsn":      "database.dsn",
	"list-source": "list.source",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// envKeys lists keys that have no default and may never appear in a
// config file, such as the storage secrets. AutomaticEnv only resolves
// keys viper already knows about, so each of these needs an explicit
// binding to be settable through the environment alone.
var envKeys = []string{
	"auth.issuer",
	"auth.audience",
	"auth.disable_audience_check",
	"auth.jwks_url",
	"auth.allowed_callers",
	"storage.client_id",
	"storage.client_secret",
	"storage.refresh_token",
	"storage.api_base",
	"storage.upload_base",
	"storage.folder_id",
	"storage.make_public",
	"cors.enabled",
	"cors.allowed_origins",
	"cors.allowed_methods",
	"cors.allowed_headers",
	"cors.exposed_headers",
	"cors.allow_credentials",
	"cors.max_age",
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_size", 0) // 0 means no limit

	v.SetDefault("auth.key_ttl_seconds", 900)
	v.SetDefault("auth.key_fetches_per_minute", 5)

	v.SetDefault("storage.token_url", "https://oauth2.googleapis.com/token")

	v.SetDefault("list.source", "index")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "drivegate.db")
	v.SetDefault("database.table", "drivegate_transfers")

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("DRIVEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Auth.Audience == "" && !cfg.Auth.DisableAudienceCheck {
		return nil, errors.New("validate config: auth.audience is required unless auth.disable_audience_check is set")
	}

	return &cfg, nil
}
