// Package config loads controlgen settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Mindburn-Labs/controlgen/pkg/artifacts"
	"github.com/Mindburn-Labs/controlgen/pkg/observability"
	"github.com/Mindburn-Labs/controlgen/pkg/registry"
	"github.com/Mindburn-Labs/controlgen/pkg/store"
)

// Config holds pipeline configuration.
type Config struct {
	LogLevel  string
	LogFormat string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	LLMTimeout          time.Duration
	LLMRateLimit        float64 // requests per second, 0 = unlimited
	LLMMaxTokensStage1  int
	LLMMaxTokensStage2  int
	GenerationWorkers   int
	VariantIDScheme     registry.VariantIDScheme
	ObjectivePrefixSize int // 0 keeps the whole domain

	RegistryBackend    string
	RegistryDir        string
	RegistrySQLitePath string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisPrefix        string

	OutputStorageType string
	OutputDir         string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3Prefix          string
	GCSBucket         string
	GCSPrefix         string

	OTelEnabled  bool
	OTelEndpoint string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:           getenv("LOG_LEVEL", "INFO"),
		LogFormat:          getenv("LOG_FORMAT", "text"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:        getenv("OPENAI_MODEL", "gpt-4o"),
		RegistryBackend:    getenv("REGISTRY_BACKEND", "file"),
		RegistryDir:        getenv("REGISTRY_DIR", "data/control_registry"),
		RegistrySQLitePath: getenv("REGISTRY_SQLITE_PATH", "data/control_registry/registry.db"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisPrefix:        getenv("REDIS_PREFIX", "controlgen:"),
		OutputStorageType:  getenv("OUTPUT_STORAGE_TYPE", "fs"),
		OutputDir:          getenv("OUTPUT_DIR", "data/generated_controls"),
		S3Bucket:           os.Getenv("ARTIFACT_S3_BUCKET"),
		S3Region:           getenv("ARTIFACT_S3_REGION", "us-east-1"),
		S3Endpoint:         os.Getenv("ARTIFACT_S3_ENDPOINT"),
		S3Prefix:           os.Getenv("ARTIFACT_S3_PREFIX"),
		GCSBucket:          os.Getenv("ARTIFACT_GCS_BUCKET"),
		GCSPrefix:          os.Getenv("ARTIFACT_GCS_PREFIX"),
		OTelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OTelEndpoint:       getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.LLMTimeout, err = durationEnv("LLM_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.LLMRateLimit, err = floatEnv("LLM_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.LLMMaxTokensStage1, err = intEnv("LLM_MAX_TOKENS_STAGE1", 4000); err != nil {
		return nil, err
	}
	if cfg.LLMMaxTokensStage2, err = intEnv("LLM_MAX_TOKENS_STAGE2", 6000); err != nil {
		return nil, err
	}
	if cfg.GenerationWorkers, err = intEnv("GENERATION_CONCURRENCY", 1); err != nil {
		return nil, err
	}
	if cfg.GenerationWorkers < 1 {
		return nil, fmt.Errorf("GENERATION_CONCURRENCY must be at least 1, got %d", cfg.GenerationWorkers)
	}
	if cfg.ObjectivePrefixSize, err = intEnv("OBJECTIVE_PREFIX_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.VariantIDScheme, err = registry.ParseVariantIDScheme(getenv("VARIANT_ID_SCHEME", string(registry.SequentialVariantIDs))); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Store returns the registry backend settings.
func (c *Config) Store() store.Config {
	return store.Config{
		Backend:       store.Backend(c.RegistryBackend),
		Dir:           c.RegistryDir,
		SQLitePath:    c.RegistrySQLitePath,
		DatabaseURL:   c.DatabaseURL,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisPrefix:   c.RedisPrefix,
	}
}

// Artifacts returns the run output store settings.
func (c *Config) Artifacts() artifacts.Config {
	return artifacts.Config{
		Type:       artifacts.StoreType(c.OutputStorageType),
		Dir:        c.OutputDir,
		S3Bucket:   c.S3Bucket,
		S3Region:   c.S3Region,
		S3Endpoint: c.S3Endpoint,
		S3Prefix:   c.S3Prefix,
		GCSBucket:  c.GCSBucket,
		GCSPrefix:  c.GCSPrefix,
	}
}

// Observability returns the telemetry settings.
func (c *Config) Observability(version string) *observability.Config {
	oc := observability.DefaultConfig()
	oc.Enabled = c.OTelEnabled
	oc.OTLPEndpoint = c.OTelEndpoint
	if version != "" {
		oc.ServiceVersion = version
	}
	return oc
}

// RegistryOptions returns the ID-generation options shared by both registries.
func (c *Config) RegistryOptions() []registry.Option {
	return []registry.Option{
		registry.WithVariantIDScheme(c.VariantIDScheme),
		registry.WithDomainPrefixLimit(c.ObjectivePrefixSize),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

// durationEnv accepts Go durations ("90s") or a bare number of seconds.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
