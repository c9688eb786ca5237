package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	LLM      LLMConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Ingest   IngestConfig

	// Brand and Tenants come from the optional YAML file named by RFQ_CONFIG.
	Brand   BrandConfig
	Tenants map[string]TenantConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// LLMConfig holds extraction model configuration
type LLMConfig struct {
	Provider      string
	Model         string
	APIKey        string
	BaseURL       string
	Temperature   float32
	Timeout       time.Duration
	RatePerMinute int
}

// CacheConfig configures the extraction cache. An empty RedisURL selects
// the in-memory cache; a zero TTL disables caching.
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// StorageConfig selects where uploads and rendered PDFs are kept.
// MinIO is used when Endpoint is set, the local directory otherwise.
type StorageConfig struct {
	Dir       string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// IngestConfig configures the inbox watcher.
type IngestConfig struct {
	InboxDirs []string
	Variant   string
	Tenant    string
	Workers   int
	Timeout   time.Duration
}

// BrandConfig is the letterhead printed on rendered documents.
type BrandConfig struct {
	CompanyName string `yaml:"company_name"`
	Address     string `yaml:"address"`
	Email       string `yaml:"email"`
	Phone       string `yaml:"phone"`
	Footer      string `yaml:"footer"`
}

// TenantConfig overrides metadata defaults for one tenant.
type TenantConfig struct {
	Defaults map[string]string `yaml:"defaults"`
}

type fileConfig struct {
	Brand   BrandConfig             `yaml:"brand"`
	Tenants map[string]TenantConfig `yaml:"tenants"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", "file:rfq.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr: getEnv("GRPC_ADDR", ":9090"),
		},
		LLM: LLMConfig{
			Provider:      strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
			Model:         getEnv("LLM_MODEL", ""),
			APIKey:        getEnv("LLM_API_KEY", firstEnv("GEMINI_API_KEY", "OPENAI_API_KEY")),
			BaseURL:       getEnv("LLM_BASE_URL", ""),
			Temperature:   getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
			RatePerMinute: getEnvAsInt("LLM_RATE_PER_MINUTE", 30),
		},
		Cache: CacheConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		},
		Storage: StorageConfig{
			Dir:       getEnv("ARTIFACT_DIR", "./artifacts"),
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "rfq-artifacts"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Ingest: IngestConfig{
			InboxDirs: getEnvAsList("INBOX_DIRS"),
			Variant:   getEnv("INBOX_VARIANT", "rfq"),
			Tenant:    getEnv("INBOX_TENANT", ""),
			Workers:   getEnvAsInt("INGEST_WORKERS", 2),
			Timeout:   getEnvAsDuration("INGEST_TIMEOUT", 3*time.Minute),
		},
	}
}

// LoadFile merges branding and tenant defaults from a YAML file.
// An empty path is a no-op.
func (c *Config) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return NewAppError("CONFIG_ERROR", "parse "+path, err)
	}
	c.Brand = fc.Brand
	c.Tenants = fc.Tenants
	return nil
}

// TenantDefaults returns the metadata default overrides for a tenant, or nil.
func (c *Config) TenantDefaults(tenant string) map[string]string {
	if t, ok := c.Tenants[tenant]; ok {
		return t.Defaults
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("DB_DRIVER", c.Database.Driver, OneOf("postgres", "sqlite")).
		Field("DB_URL", c.Database.DSN, Required).
		Field("HTTP_ADDR", c.Server.HTTPAddr, Required).
		Field("GRPC_ADDR", c.Server.GRPCAddr, Required).
		Field("LLM_PROVIDER", c.LLM.Provider, OneOf("gemini", "openai")).
		Field("LLM_TIMEOUT", c.LLM.Timeout, positiveDuration).
		Field("INGEST_WORKERS", c.Ingest.Workers, Positive)
	if c.Storage.Endpoint != "" {
		v.Field("MINIO_BUCKET", c.Storage.Bucket, Required)
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

func positiveDuration(fieldName string, value any) *FieldError {
	if d, ok := value.(time.Duration); ok && d > 0 {
		return nil
	}
	return &FieldError{Field: fieldName, Value: value, Message: "must be a positive duration"}
}
