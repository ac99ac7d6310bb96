package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/coltonswapp/nest-note-sub009/internal/database"
)

// Config is the full runtime configuration, loaded from an optional YAML file
// with NESTNOTE_-prefixed environment overrides.
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Log      LogConfig       `mapstructure:"log"`
	Database database.Config `mapstructure:"database"`
	Sweeps   SweepConfig     `mapstructure:"sweeps"`
	Push     PushConfig      `mapstructure:"push"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SweepConfig controls the scheduled maintenance sweeps.
type SweepConfig struct {
	TransitionSchedule string        `mapstructure:"transition_schedule"`
	ArchivalSchedule   string        `mapstructure:"archival_schedule"`
	Retention          time.Duration `mapstructure:"retention"`
	ArchiveChunkSize   int           `mapstructure:"archive_chunk_size"`
	SendConcurrency    int           `mapstructure:"send_concurrency"`
	TokenExpiryMonths  int           `mapstructure:"token_expiry_months"`
	RunOnStart         bool          `mapstructure:"run_on_start"`
}

// PushConfig controls the FCM transport. With Enabled false, sends are logged
// instead of delivered, which is the right mode for local development.
type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// LoadConfig reads configuration from the given file path. An empty path falls
// back to config/config.yaml when present; a missing file is not an error
// because every key has a default and can come from the environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("NESTNOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %q: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the services would refuse anyway, so the
// failure happens at startup instead of at the first sweep.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Sweeps.Retention <= 0 {
		return errors.New("config: sweeps retention must be positive")
	}
	if c.Sweeps.ArchiveChunkSize <= 0 {
		return errors.New("config: sweeps archive chunk size must be positive")
	}
	if c.Sweeps.SendConcurrency <= 0 {
		return errors.New("config: sweeps send concurrency must be positive")
	}
	if c.Sweeps.TokenExpiryMonths <= 0 {
		return errors.New("config: sweeps token expiry months must be positive")
	}
	if c.Push.Enabled && c.Push.ProjectID == "" {
		return errors.New("config: push project id is required when push is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/nestnote.db")

	v.SetDefault("sweeps.transition_schedule", "*/15 * * * *")
	v.SetDefault("sweeps.archival_schedule", "@daily")
	v.SetDefault("sweeps.retention", "168h")
	v.SetDefault("sweeps.archive_chunk_size", 100)
	v.SetDefault("sweeps.send_concurrency", 8)
	v.SetDefault("sweeps.token_expiry_months", 4)
	v.SetDefault("sweeps.run_on_start", false)

	v.SetDefault("push.enabled", false)
	v.SetDefault("push.project_id", "")
	v.SetDefault("push.credentials_file", "")
}
