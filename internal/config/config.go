// Package config loads querygate settings from defaults, an optional JSON or
// YAML file named by QUERYGATE_CONFIG, and environment overrides. Secrets
// (API keys, access tokens, DSNs) are never logged.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Environment string `json:"environment" yaml:"environment"`
	APIPrefix   string `json:"api_prefix" yaml:"api_prefix"`
	LogLevel    string `json:"log_level" yaml:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header" yaml:"api_key_header"`
	APIKeys      []string `json:"api_keys" yaml:"api_keys"`
	EnableAuth   bool     `json:"enable_auth" yaml:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// Warehouse
	WarehouseDriver              string   `json:"warehouse_driver" yaml:"warehouse_driver"` // bigquery | postgres | sqlite
	GCPProjectID                 string   `json:"gcp_project_id" yaml:"gcp_project_id"`
	BigQueryDataset              string   `json:"bigquery_dataset" yaml:"bigquery_dataset"`
	BigQueryLocation             string   `json:"bigquery_location" yaml:"bigquery_location"`
	GoogleApplicationCredentials string   `json:"google_application_credentials" yaml:"google_application_credentials"`
	GoogleAccessToken            string   `json:"-" yaml:"-"` // env only, short-lived
	WarehouseDSN                 string   `json:"warehouse_dsn" yaml:"warehouse_dsn"`
	WarehouseSchema              string   `json:"warehouse_schema" yaml:"warehouse_schema"`
	SchemaCacheTTL               Duration `json:"schema_cache_ttl" yaml:"schema_cache_ttl"`

	// Execution bounds
	RowCeiling             int      `json:"row_ceiling" yaml:"row_ceiling"`
	QueryTimeout           Duration `json:"query_timeout" yaml:"query_timeout"`
	MaxQueryBytesProcessed int64    `json:"max_query_bytes_processed" yaml:"max_query_bytes_processed"`

	// Security
	BlockedKeywords        []string `json:"blocked_keywords" yaml:"blocked_keywords"` // added to the built-in write verbs
	EnableDataMasking      bool     `json:"enable_data_masking" yaml:"enable_data_masking"`
	SensitiveColumns       []string `json:"sensitive_columns" yaml:"sensitive_columns"`
	EnablePIIDetection     bool     `json:"enable_pii_detection" yaml:"enable_pii_detection"`
	PIIKeywords            []string `json:"pii_keywords" yaml:"pii_keywords"`
	EnablePromptValidation bool     `json:"enable_prompt_validation" yaml:"enable_prompt_validation"`

	// Review
	ReviewerProvider string   `json:"reviewer_provider" yaml:"reviewer_provider"` // static | anthropic | gemini | none
	ReviewTimeout    Duration `json:"review_timeout" yaml:"review_timeout"`
	ReviewAll        bool     `json:"review_all" yaml:"review_all"`

	// AI / LLM
	GeneratorProvider string            `json:"generator_provider" yaml:"generator_provider"` // anthropic | gemini
	AnthropicAPIKey   string            `json:"anthropic_api_key" yaml:"anthropic_api_key"`
	AnthropicBaseURL  string            `json:"anthropic_base_url" yaml:"anthropic_base_url"`
	GeminiAPIKey      string            `json:"gemini_api_key" yaml:"gemini_api_key"`
	AgentTimeout      int               `json:"agent_timeout" yaml:"agent_timeout"`
	ModelList         map[string]string `json:"model_list" yaml:"model_list"` // provider -> model ID
	PreloadSchema     bool              `json:"preload_schema" yaml:"preload_schema"`

	// Audit
	EnableAuditLogging     bool     `json:"enable_audit_logging" yaml:"enable_audit_logging"`
	AuditLogPath           string   `json:"audit_log_path" yaml:"audit_log_path"`
	AuditArgsLimit         int      `json:"audit_args_limit" yaml:"audit_args_limit"`
	AuditResultLimit       int      `json:"audit_result_limit" yaml:"audit_result_limit"`
	AuditPubSubTopic       string   `json:"audit_pubsub_topic" yaml:"audit_pubsub_topic"`
	AuditElasticsearchURLs []string `json:"audit_elasticsearch_urls" yaml:"audit_elasticsearch_urls"`
	AuditElasticsearchUser string   `json:"audit_elasticsearch_user" yaml:"audit_elasticsearch_user"`
	AuditElasticsearchPass string   `json:"audit_elasticsearch_password" yaml:"audit_elasticsearch_password"`
	AuditElasticsearchIdx  string   `json:"audit_elasticsearch_index" yaml:"audit_elasticsearch_index"`
}

// Duration accepts either a Go duration string ("30s") or a number of seconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch t := v.(type) {
	case float64:
		d.Duration = time.Duration(t * float64(time.Second))
	case int:
		d.Duration = time.Duration(t) * time.Second
	case string:
		parsed, err := parseDuration(t)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// Default returns the built-in settings before any file or environment
// override.
func Default() *Config {
	return &Config{
		Host:                   DefaultHost,
		Port:                   DefaultPort,
		Environment:            DefaultEnvironment,
		APIPrefix:              DefaultAPIPrefix,
		LogLevel:               DefaultLogLevel,
		CORSOrigins:            slices.Clone(DefaultCORSOrigins),
		APIKeyHeader:           "X-API-Key",
		EnableAuth:             true,
		RateLimitPerMinute:     DefaultRateLimitPerMinute,
		WarehouseDriver:        DefaultWarehouseDriver,
		BigQueryDataset:        DefaultBigQueryDataset,
		BigQueryLocation:       DefaultBigQueryLocation,
		WarehouseSchema:        DefaultPostgresSchema,
		SchemaCacheTTL:         Duration{DefaultSchemaCacheTTL},
		RowCeiling:             DefaultRowCeiling,
		QueryTimeout:           Duration{DefaultQueryTimeout},
		MaxQueryBytesProcessed: DefaultMaxQueryBytesProcessed,
		EnableDataMasking:      true,
		SensitiveColumns:       slices.Clone(DefaultSensitiveColumns),
		EnablePIIDetection:     true,
		PIIKeywords:            slices.Clone(DefaultPIIKeywords),
		EnablePromptValidation: true,
		ReviewerProvider:       DefaultReviewerProvider,
		ReviewTimeout:          Duration{DefaultReviewTimeout},
		GeneratorProvider:      DefaultGeneratorProvider,
		AgentTimeout:           DefaultAgentTimeout,
		ModelList:              make(map[string]string),
		PreloadSchema:          true,
		EnableAuditLogging:     true,
		AuditArgsLimit:         DefaultAuditArgsLimit,
		AuditResultLimit:       DefaultAuditResultLimit,
		AuditElasticsearchIdx:  DefaultAuditIndex,
	}
}

// Load applies the QUERYGATE_CONFIG file and environment overrides on top of
// Default, then validates the result.
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv("QUERYGATE_CONFIG", ""); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// Validate rejects settings the runtime cannot honor.
func (c *Config) Validate() error {
	switch c.WarehouseDriver {
	case "bigquery", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported warehouse_driver %q", c.WarehouseDriver)
	}
	switch c.ReviewerProvider {
	case "static", "anthropic", "gemini", "none":
	default:
		return fmt.Errorf("unsupported reviewer_provider %q", c.ReviewerProvider)
	}
	switch c.GeneratorProvider {
	case "anthropic", "gemini":
	default:
		return fmt.Errorf("unsupported generator_provider %q", c.GeneratorProvider)
	}
	if c.RowCeiling <= 0 || c.RowCeiling > DefaultRowCeiling {
		return fmt.Errorf("row_ceiling must be in [1, %d], got %d", DefaultRowCeiling, c.RowCeiling)
	}
	if c.QueryTimeout.Duration <= 0 || c.QueryTimeout.Duration > MaxQueryTimeout {
		return fmt.Errorf("query_timeout must be in (0, %s], got %s", MaxQueryTimeout, c.QueryTimeout.Duration)
	}
	return nil
}

// Model returns the configured model for provider, or fallback.
func (c *Config) Model(provider, fallback string) string {
	if m := c.ModelList[provider]; m != "" {
		return m
	}
	return fallback
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("QUERYGATE_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("QUERYGATE_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("QUERYGATE_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("QUERYGATE_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("QUERYGATE_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("QUERYGATE_WAREHOUSE_DRIVER", ""); v != "" {
		cfg.WarehouseDriver = v
	}
	if v := getEnv("QUERYGATE_WAREHOUSE_DSN", ""); v != "" {
		cfg.WarehouseDSN = v
	}
	if v := getEnv("QUERYGATE_ROW_CEILING", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RowCeiling = n
		}
	}
	if v := getEnv("QUERYGATE_QUERY_TIMEOUT", ""); v != "" {
		if d, err := parseDuration(v); err == nil {
			cfg.QueryTimeout = Duration{d}
		}
	}
	if v := getEnv("QUERYGATE_REVIEWER", ""); v != "" {
		cfg.ReviewerProvider = v
	}
	if v := getEnv("QUERYGATE_GENERATOR", ""); v != "" {
		cfg.GeneratorProvider = v
	}
	if v := getEnv("QUERYGATE_AUDIT_LOG", ""); v != "" {
		cfg.AuditLogPath = v
	}
	if v := getEnv("QUERYGATE_AUDIT_PUBSUB_TOPIC", ""); v != "" {
		cfg.AuditPubSubTopic = v
	}
	if v := getEnv("QUERYGATE_AUDIT_ELASTICSEARCH_URLS", ""); v != "" {
		cfg.AuditElasticsearchURLs = strings.Split(v, ",")
	}
	if v := getEnv("GCP_PROJECT_ID", ""); v != "" {
		cfg.GCPProjectID = v
	}
	if v := getEnv("BIGQUERY_DATASET", ""); v != "" {
		cfg.BigQueryDataset = v
	}
	if v := getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""); v != "" {
		cfg.GoogleApplicationCredentials = v
	}
	if v := getEnv("GOOGLE_ACCESS_TOKEN", ""); v != "" {
		cfg.GoogleAccessToken = v
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("GEMINI_API_KEY", ""); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = v == "true" || v == "1"
	}
	if v := getEnv("MAX_QUERY_BYTES_PROCESSED", ""); v != "" {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxQueryBytesProcessed = b
		}
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
