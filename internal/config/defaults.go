package config

import "time"

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultWarehouseDriver  = "bigquery"
	DefaultBigQueryLocation = "US"
	DefaultBigQueryDataset  = "ecom_analytics"
	DefaultPostgresSchema   = "public"

	DefaultRowCeiling   = 50
	DefaultQueryTimeout = 60 * time.Second
	MaxQueryTimeout     = 300 * time.Second

	DefaultMaxQueryBytesProcessed = 10_000_000_000 // 10GB

	DefaultSchemaCacheTTL = 5 * time.Minute

	DefaultReviewerProvider  = "static"
	DefaultGeneratorProvider = "anthropic"
	DefaultReviewTimeout     = 20 * time.Second
	DefaultAgentTimeout      = 300 // seconds

	DefaultAnthropicModel = "claude-sonnet-4-6"
	DefaultGeminiModel    = "gemini-2.5-flash"

	DefaultAuditArgsLimit   = 200
	DefaultAuditResultLimit = 300
	DefaultAuditIndex       = "querygate-audit"

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

var DefaultSensitiveColumns = []string{
	"email", "phone", "ssn", "social_security_number",
	"credit_card", "password", "secret", "token",
	"api_key", "access_key", "private_key",
}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "secret", "private key",
	"access token", "api key",
}
