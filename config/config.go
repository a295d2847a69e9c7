package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application settings aggregated from env, .env and an
// optional config file.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Storage struct {
		Driver     string        `mapstructure:"driver"`
		NotesFile  string        `mapstructure:"notes_file"`
		UsersFile  string        `mapstructure:"users_file"`
		DSN        string        `mapstructure:"dsn"`
		FlushDelay time.Duration `mapstructure:"flush_delay"`
	} `mapstructure:"storage"`
	Session struct {
		Secret     string        `mapstructure:"secret"`
		TTL        time.Duration `mapstructure:"ttl"`
		CookieName string        `mapstructure:"cookie_name"`
		Secure     bool          `mapstructure:"secure"`
	} `mapstructure:"session"`
	Auth struct {
		BcryptCost int `mapstructure:"bcrypt_cost"`
	} `mapstructure:"auth"`
	CORS struct {
		Origins []string `mapstructure:"origins"`
	} `mapstructure:"cors"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// ErrNoDotEnv is returned alongside a valid Config when no .env file exists.
var ErrNoDotEnv = errors.New(".env file not found")

// Load reads NOTES_* environment variables and optional config.{yaml,json,toml}
// from the working directory. A missing .env is reported through ErrNoDotEnv
// but is not fatal.
func Load() (Config, error) {
	envErr := godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("NOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.notes_file", "data/notes.json")
	v.SetDefault("storage.users_file", "data/users.json")
	v.SetDefault("storage.dsn", "data/notes.db")
	v.SetDefault("storage.flush_delay", "150ms")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.cookie_name", "notes_session")
	v.SetDefault("session.secure", false)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("cors.origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// Comma-separated lists arrive from env as a single string.
	cfg.CORS.Origins = splitList(cfg.CORS.Origins)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if envErr != nil {
		return cfg, ErrNoDotEnv
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case "file":
		if c.Storage.NotesFile == "" || c.Storage.UsersFile == "" {
			return errors.New("storage.notes_file and storage.users_file are required")
		}
		if c.Storage.NotesFile == c.Storage.UsersFile {
			return errors.New("storage.notes_file and storage.users_file must differ")
		}
	case "mysql", "postgres", "sqlite":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Storage.FlushDelay <= 0 {
		return errors.New("storage.flush_delay must be positive")
	}
	return nil
}

func splitList(in []string) []string {
	out := []string{}
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimRight(strings.TrimSpace(part), "/"); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
