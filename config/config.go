// Package config loads runtime settings from defaults, an optional config file,
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override config keys.
// database.url is read from TTRPG_DATABASE_URL or DATABASE_URL.
const EnvPrefix = "TTRPG"

var (
	// ErrMissingDatabaseURL is returned when no connection string is configured.
	ErrMissingDatabaseURL = errors.New("database url is not set")
	// ErrInvalidConfig is returned when a setting has an unusable value.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config holds all runtime settings.
type Config struct {
	Database struct {
		Driver string `mapstructure:"driver"`
		URL    string `mapstructure:"url"`
	} `mapstructure:"database"`
	Migrations struct {
		Dir   string `mapstructure:"dir"`
		Ext   string `mapstructure:"ext"`
		Table string `mapstructure:"table"`
	} `mapstructure:"migrations"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`
	Schedule struct {
		Cron string `mapstructure:"cron"`
	} `mapstructure:"schedule"`
	Pool struct {
		Iterations int `mapstructure:"iterations"`
	} `mapstructure:"pool"`
	Demo struct {
		Timeout time.Duration `mapstructure:"timeout"`
		Sleep   time.Duration `mapstructure:"sleep"`
	} `mapstructure:"demo"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("migrations.dir", "migrations")
	v.SetDefault("migrations.ext", ".sql")
	v.SetDefault("migrations.table", "migration_history")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("schedule.cron", "@every 1h")
	v.SetDefault("pool.iterations", 100)
	v.SetDefault("demo.timeout", 3*time.Second)
	v.SetDefault("demo.sleep", 5*time.Second)
}

// Load reads the configuration with Read and validates it.
func Load(configFile string) (*Config, error) {
	cfg, err := Read(configFile)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read reads the configuration without validating it. configFile may be empty, in which
// case config.yaml is looked up in the working directory and silently skipped when absent.
// A .env file in the working directory is loaded into the environment first when it exists.
func Read(configFile string) (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	if err != nil {
		return nil, fmt.Errorf("failed to bind database url: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	err = v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	if !strings.HasPrefix(c.Migrations.Ext, ".") {
		return fmt.Errorf("%w: migrations extension %q must start with a dot", ErrInvalidConfig, c.Migrations.Ext)
	}

	if c.Pool.Iterations < 1 {
		return fmt.Errorf("%w: pool iterations must be positive", ErrInvalidConfig)
	}

	if c.Demo.Timeout <= 0 || c.Demo.Sleep <= 0 {
		return fmt.Errorf("%w: demo durations must be positive", ErrInvalidConfig)
	}

	return nil
}

// MigrationsDir returns dir when set, otherwise the configured migrations directory.
func (c *Config) MigrationsDir(dir string) string {
	if dir != "" {
		return dir
	}
	return c.Migrations.Dir
}
