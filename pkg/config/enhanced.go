package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnhancedConfig provides modern configuration management with validation.
type EnhancedConfig struct {
	viper  *viper.Viper
	logger *zap.Logger
}

// ConfigOptions provides configuration options.
type ConfigOptions struct {
	ConfigName    string
	ConfigPaths   []string
	ConfigType    string
	EnvPrefix     string
	AutomaticEnv  bool
	AllowEmptyEnv bool
	Logger        *zap.Logger
}

// DefaultConfigOptions returns sensible defaults.
func DefaultConfigOptions() *ConfigOptions {
	return &ConfigOptions{
		ConfigName:    "config",
		ConfigPaths:   []string{".", "./config", "./configs"},
		ConfigType:    "yaml",
		EnvPrefix:     "INGESTION",
		AutomaticEnv:  true,
		AllowEmptyEnv: false,
	}
}

// NewEnhancedConfig creates a new enhanced configuration manager.
func NewEnhancedConfig(opts *ConfigOptions) (*EnhancedConfig, error) {
	if opts == nil {
		opts = DefaultConfigOptions()
	}

	v := viper.New()

	v.SetConfigName(opts.ConfigName)
	v.SetConfigType(opts.ConfigType)

	for _, path := range opts.ConfigPaths {
		v.AddConfigPath(path)
	}

	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}

	if opts.AutomaticEnv {
		v.AutomaticEnv()
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	setDefaults(v)

	return &EnhancedConfig{
		viper:  v,
		logger: opts.Logger,
	}, nil
}

// setDefaults sets the ingestion platform's default values, per spec.md §6.
func setDefaults(v *viper.Viper) {
	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "catalog_ingestion")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "300s")

	// Queue backend (Redis)
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.db", 0)
	v.SetDefault("queue.pool_size", 10)
	v.SetDefault("queue.min_idle_conns", 5)
	v.SetDefault("queue.dial_timeout", "5s")
	v.SetDefault("queue.read_timeout", "3s")
	v.SetDefault("queue.write_timeout", "3s")
	v.SetDefault("queue.namespace", "ingestion")

	// Worker pool
	v.SetDefault("worker.max_workers", 8)
	v.SetDefault("worker.job_timeout", "600s")
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.retry_base_delay", "1s")
	v.SetDefault("worker.retry_max_delay", "300s")
	v.SetDefault("worker.claim_batch_size", 50)

	// Matching
	v.SetDefault("matching.auto_link_threshold", 95.0)
	v.SetDefault("matching.review_threshold", 70.0)
	v.SetDefault("matching.candidate_window", 1000)
	v.SetDefault("matching.max_candidates_returned", 5)
	v.SetDefault("matching.review_ttl_days", 30)
	v.SetDefault("matching.sku_prefix", "ISKU")

	// Master-sync
	v.SetDefault("mastersync.schedule", "0 */6 * * *")
	v.SetDefault("mastersync.lock_ttl", "900s")

	// Uploads / external parser
	v.SetDefault("storage.uploads_dir", "./uploads")
	v.SetDefault("parser.external_base_url", "")

	// HTTP API
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "120s")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.colorized", true)
	v.SetDefault("logging.json_format", false)
}

// Load loads configuration from file and environment.
func (c *EnhancedConfig) Load() error {
	if err := c.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if c.logger != nil {
				c.logger.Info("config file not found, using defaults and environment variables")
			}
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	} else if c.logger != nil {
		c.logger.Info("using config file", zap.String("file", c.viper.ConfigFileUsed()))
	}

	return nil
}

// LoadFromFile loads configuration from a specific file.
func (c *EnhancedConfig) LoadFromFile(filename string) error {
	c.viper.SetConfigFile(filename)
	return c.viper.ReadInConfig()
}

// Get returns a value by key.
func (c *EnhancedConfig) Get(key string) interface{} { return c.viper.Get(key) }

// GetString returns a string value.
func (c *EnhancedConfig) GetString(key string) string { return c.viper.GetString(key) }

// GetInt returns an int value.
func (c *EnhancedConfig) GetInt(key string) int { return c.viper.GetInt(key) }

// GetFloat64 returns a float64 value.
func (c *EnhancedConfig) GetFloat64(key string) float64 { return c.viper.GetFloat64(key) }

// GetBool returns a bool value.
func (c *EnhancedConfig) GetBool(key string) bool { return c.viper.GetBool(key) }

// GetDuration returns a duration value.
func (c *EnhancedConfig) GetDuration(key string) time.Duration { return c.viper.GetDuration(key) }

// GetStringSlice returns a string slice value.
func (c *EnhancedConfig) GetStringSlice(key string) []string { return c.viper.GetStringSlice(key) }

// Set sets a value.
func (c *EnhancedConfig) Set(key string, value interface{}) { c.viper.Set(key, value) }

// IsSet checks if a key is set.
func (c *EnhancedConfig) IsSet(key string) bool { return c.viper.IsSet(key) }

// Unmarshal unmarshals config into a struct.
func (c *EnhancedConfig) Unmarshal(rawVal interface{}) error { return c.viper.Unmarshal(rawVal) }

// UnmarshalKey unmarshals a specific key into a struct.
func (c *EnhancedConfig) UnmarshalKey(key string, rawVal interface{}) error {
	return c.viper.UnmarshalKey(key, rawVal)
}

// GetConfigFile returns the config file being used.
func (c *EnhancedConfig) GetConfigFile() string { return c.viper.ConfigFileUsed() }

// WatchConfig watches for config file changes.
func (c *EnhancedConfig) WatchConfig() { c.viper.WatchConfig() }

// OnConfigChange sets a callback for config changes.
func (c *EnhancedConfig) OnConfigChange(run func()) {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if c.logger != nil {
			c.logger.Info("config file changed", zap.String("file", e.Name))
		}
		run()
	})
}

// Validate validates the configuration against the knobs spec.md §6 requires.
func (c *EnhancedConfig) Validate() error {
	var problems []string

	required := []string{"database.host", "database.name", "queue.host"}
	for _, field := range required {
		if !c.viper.IsSet(field) || c.viper.GetString(field) == "" {
			problems = append(problems, fmt.Sprintf("%s is required", field))
		}
	}

	if t := c.viper.GetFloat64("matching.auto_link_threshold"); t < 0 || t > 100 {
		problems = append(problems, "matching.auto_link_threshold must be in [0,100]")
	}
	if t := c.viper.GetFloat64("matching.review_threshold"); t < 0 || t > 100 {
		problems = append(problems, "matching.review_threshold must be in [0,100]")
	}
	if c.viper.GetFloat64("matching.review_threshold") > c.viper.GetFloat64("matching.auto_link_threshold") {
		problems = append(problems, "matching.review_threshold must be <= matching.auto_link_threshold")
	}

	maxRetries := c.viper.GetInt("worker.max_retries")
	if maxRetries < 1 || maxRetries > 10 {
		problems = append(problems, "worker.max_retries must be between 1 and 10")
	}

	ports := map[string]string{
		"database.port": "database port",
		"queue.port":    "queue port",
		"http.port":     "HTTP API port",
	}
	for key, name := range ports {
		if port := c.viper.GetInt(key); port <= 0 || port > 65535 {
			problems = append(problems, fmt.Sprintf("%s must be between 1 and 65535", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}

	return nil
}
