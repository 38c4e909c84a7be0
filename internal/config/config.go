package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mail-classifier/")
	v.AddConfigPath("$HOME/.mail-classifier")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_CLASSIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Engine defaults
	v.SetDefault("engine.batch_workers", 4)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.capacity", 10000)
	v.SetDefault("cache.sqlite_path", "/data/prediction_cache.db")
	// parseTime is forced by the cache adapter either way; kept here so the
	// documented default works verbatim with other tooling.
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/mail_classifier?parseTime=true")

	// Storage defaults
	v.SetDefault("storage.sqlite_path", "/data/mail_classifier.db")

	// Training defaults
	v.SetDefault("training.vocab_size", 500)
	v.SetDefault("training.feedback_threshold", 100)
	v.SetDefault("training.min_improvement", 0.01)
	v.SetDefault("training.holdout_fraction", 0.2)
	v.SetDefault("training.seed", 42)
	v.SetDefault("training.forest_trees", 25)
	v.SetDefault("training.forest_max_depth", 12)
	v.SetDefault("training.boosted_rounds", 40)
	v.SetDefault("training.boosted_max_depth", 3)
	v.SetDefault("training.boosted_learning_rate", 0.1)
	v.SetDefault("training.linear_epochs", 300)
	v.SetDefault("training.linear_learning_rate", 0.5)
	v.SetDefault("training.linear_l2", 0.0001)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets a 64-bit integer value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetFloat64 gets a float value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d := c.v.GetDuration(key)
	if d == 0 && c.v.GetString(key) != "0" && c.v.GetString(key) != "" {
		return 0, fmt.Errorf("invalid duration for %s: %s", key, c.v.GetString(key))
	}
	return d, nil
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetViper returns the underlying viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
