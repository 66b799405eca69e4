package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the ingestion platform's process-wide configuration, covering
// the environment knobs spec.md §6 names: database URL, queue backend
// URL/credentials, uploads directory, optional external-parser base URL,
// and the matching/worker numeric knobs.
type Config struct {
	Environment string `json:"environment"`
	Debug       bool   `json:"debug"`
	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`

	Database   DatabaseConfig   `json:"database"`
	Queue      QueueConfig      `json:"queue"`
	Worker     WorkerConfig     `json:"worker"`
	Matching   MatchingConfig   `json:"matching"`
	MasterSync MasterSyncConfig `json:"mastersync"`
	Storage    StorageConfig    `json:"storage"`
	Parser     ParserConfig     `json:"parser"`
	HTTP       HTTPConfig       `json:"http"`
}

// DatabaseConfig represents the Postgres connection configuration.
type DatabaseConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Name            string `json:"name"`
	User            string `json:"user"`
	Password        string `json:"password"`
	SSLMode         string `json:"ssl_mode"`
	MaxOpenConns    int    `json:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	ConnMaxLifetime string `json:"conn_max_lifetime"`
}

// QueueConfig represents the Redis-backed queue backend configuration.
type QueueConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Password     string `json:"password"`
	DB           int    `json:"db"`
	PoolSize     int    `json:"pool_size"`
	MinIdleConns int    `json:"min_idle_conns"`
	DialTimeout  string `json:"dial_timeout"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	Namespace    string `json:"namespace"`
}

// WorkerConfig holds the scheduling knobs from spec.md §5/§6.
type WorkerConfig struct {
	MaxWorkers     int    `json:"max_workers"`
	JobTimeout     string `json:"job_timeout"`
	MaxRetries     int    `json:"max_retries"`
	RetryBaseDelay string `json:"retry_base_delay"`
	RetryMaxDelay  string `json:"retry_max_delay"`
	ClaimBatchSize int    `json:"claim_batch_size"`
}

// MatchingConfig holds the fuzzy-matcher thresholds from spec.md §4.3/§6.
type MatchingConfig struct {
	AutoLinkThreshold     float64 `json:"auto_link_threshold"`
	ReviewThreshold       float64 `json:"review_threshold"`
	CandidateWindow       int     `json:"candidate_window"`
	MaxCandidatesReturned int     `json:"max_candidates_returned"`
	ReviewTTLDays         int     `json:"review_ttl_days"`
	SKUPrefix             string  `json:"sku_prefix"`
}

// MasterSyncConfig holds the orchestrator's scheduling/lock configuration.
type MasterSyncConfig struct {
	Schedule string `json:"schedule"`
	LockTTL  string `json:"lock_ttl"`
}

// StorageConfig holds the uploads directory spec.md §6 requires.
type StorageConfig struct {
	UploadsDir string `json:"uploads_dir"`
}

// ParserConfig holds the optional external parser-service base URL.
type ParserConfig struct {
	ExternalBaseURL string `json:"external_base_url"`
}

// HTTPConfig represents the status/review HTTP API configuration.
type HTTPConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	IdleTimeout  string `json:"idle_timeout"`
}

// GetEnv returns the value of an environment variable or a default.
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns an environment variable as an int, or a default.
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsBool returns an environment variable as a bool, or a default.
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat64 returns an environment variable as a float64, or a default.
func GetEnvAsFloat64(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// LoadConfig loads configuration from environment variables, applying the
// same defaults as EnhancedConfig.setDefaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment: GetEnv("ENVIRONMENT", "development"),
		Debug:       GetEnvAsBool("DEBUG", true),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		LogFormat:   GetEnv("LOG_FORMAT", "console"),

		Database: DatabaseConfig{
			Host:            GetEnv("DATABASE_HOST", "localhost"),
			Port:            GetEnvAsInt("DATABASE_PORT", 5432),
			Name:            GetEnv("DATABASE_NAME", "catalog_ingestion"),
			User:            GetEnv("DATABASE_USER", "postgres"),
			Password:        GetEnv("DATABASE_PASSWORD", ""),
			SSLMode:         GetEnv("DATABASE_SSL_MODE", "disable"),
			MaxOpenConns:    GetEnvAsInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    GetEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: GetEnv("DATABASE_CONN_MAX_LIFETIME", "300s"),
		},

		Queue: QueueConfig{
			Host:         GetEnv("QUEUE_HOST", "localhost"),
			Port:         GetEnvAsInt("QUEUE_PORT", 6379),
			Password:     GetEnv("QUEUE_PASSWORD", ""),
			DB:           GetEnvAsInt("QUEUE_DB", 0),
			PoolSize:     GetEnvAsInt("QUEUE_POOL_SIZE", 10),
			MinIdleConns: GetEnvAsInt("QUEUE_MIN_IDLE_CONNS", 5),
			DialTimeout:  GetEnv("QUEUE_DIAL_TIMEOUT", "5s"),
			ReadTimeout:  GetEnv("QUEUE_READ_TIMEOUT", "3s"),
			WriteTimeout: GetEnv("QUEUE_WRITE_TIMEOUT", "3s"),
			Namespace:    GetEnv("QUEUE_NAMESPACE", "ingestion"),
		},

		Worker: WorkerConfig{
			MaxWorkers:     GetEnvAsInt("WORKER_MAX_WORKERS", 8),
			JobTimeout:     GetEnv("WORKER_JOB_TIMEOUT", "600s"),
			MaxRetries:     GetEnvAsInt("WORKER_MAX_RETRIES", 3),
			RetryBaseDelay: GetEnv("WORKER_RETRY_BASE_DELAY", "1s"),
			RetryMaxDelay:  GetEnv("WORKER_RETRY_MAX_DELAY", "300s"),
			ClaimBatchSize: GetEnvAsInt("WORKER_CLAIM_BATCH_SIZE", 50),
		},

		Matching: MatchingConfig{
			AutoLinkThreshold:     GetEnvAsFloat64("MATCHING_AUTO_LINK_THRESHOLD", 95.0),
			ReviewThreshold:       GetEnvAsFloat64("MATCHING_REVIEW_THRESHOLD", 70.0),
			CandidateWindow:       GetEnvAsInt("MATCHING_CANDIDATE_WINDOW", 1000),
			MaxCandidatesReturned: GetEnvAsInt("MATCHING_MAX_CANDIDATES_RETURNED", 5),
			ReviewTTLDays:         GetEnvAsInt("MATCHING_REVIEW_TTL_DAYS", 30),
			SKUPrefix:             GetEnv("MATCHING_SKU_PREFIX", "ISKU"),
		},

		MasterSync: MasterSyncConfig{
			Schedule: GetEnv("MASTERSYNC_SCHEDULE", "0 */6 * * *"),
			LockTTL:  GetEnv("MASTERSYNC_LOCK_TTL", "900s"),
		},

		Storage: StorageConfig{
			UploadsDir: GetEnv("UPLOADS_DIR", "./uploads"),
		},

		Parser: ParserConfig{
			ExternalBaseURL: GetEnv("EXTERNAL_PARSER_BASE_URL", ""),
		},

		HTTP: HTTPConfig{
			Host:         GetEnv("HTTP_HOST", "0.0.0.0"),
			Port:         GetEnvAsInt("HTTP_PORT", 8080),
			ReadTimeout:  GetEnv("HTTP_READ_TIMEOUT", "30s"),
			WriteTimeout: GetEnv("HTTP_WRITE_TIMEOUT", "30s"),
			IdleTimeout:  GetEnv("HTTP_IDLE_TIMEOUT", "120s"),
		},
	}

	return cfg, nil
}

// ValidateConfig checks the configuration for the invariants spec.md §6/§9 require.
func ValidateConfig(cfg *Config) error {
	var problems []string

	if cfg.Database.Host == "" {
		problems = append(problems, "DATABASE_HOST is required")
	}
	if cfg.Database.Name == "" {
		problems = append(problems, "DATABASE_NAME is required")
	}
	if cfg.Queue.Host == "" {
		problems = append(problems, "QUEUE_HOST is required")
	}
	if cfg.Storage.UploadsDir == "" {
		problems = append(problems, "UPLOADS_DIR is required")
	}

	if cfg.Matching.AutoLinkThreshold < 0 || cfg.Matching.AutoLinkThreshold > 100 {
		problems = append(problems, "MATCHING_AUTO_LINK_THRESHOLD must be in [0,100]")
	}
	if cfg.Matching.ReviewThreshold < 0 || cfg.Matching.ReviewThreshold > 100 {
		problems = append(problems, "MATCHING_REVIEW_THRESHOLD must be in [0,100]")
	}
	if cfg.Matching.ReviewThreshold > cfg.Matching.AutoLinkThreshold {
		problems = append(problems, "MATCHING_REVIEW_THRESHOLD must be <= MATCHING_AUTO_LINK_THRESHOLD")
	}

	if cfg.Worker.MaxRetries < 1 || cfg.Worker.MaxRetries > 10 {
		problems = append(problems, "WORKER_MAX_RETRIES must be between 1 and 10")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}

	return nil
}
