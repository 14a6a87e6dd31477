package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
)

const bytesPerGB = 1_000_000_000.0
const onDemandCostPerTB = 5.0 // USD

// CostTracker enforces the bytes-processed ceiling for a single statement.
// A zero or negative limit disables the check.
type CostTracker struct {
	maxBytes int64
}

func NewCostTracker(maxBytes int64) *CostTracker {
	return &CostTracker{maxBytes: maxBytes}
}

func (ct *CostTracker) MaxBytes() int64 { return ct.maxBytes }

// Check returns a caller-facing message when processed bytes exceed the limit.
func (ct *CostTracker) Check(bytesProcessed int64) (bool, string) {
	if ct.maxBytes <= 0 || bytesProcessed <= ct.maxBytes {
		return true, ""
	}
	return false, fmt.Sprintf(
		"query cost limit exceeded: processed %.2fGB, limit %.2fGB",
		float64(bytesProcessed)/bytesPerGB, float64(ct.maxBytes)/bytesPerGB,
	)
}

// LogQueryCost logs cost info keyed by hashed SQL and turn identifiers.
func (ct *CostTracker) LogQueryCost(sql, turnID string, bytesProcessed, durationMs int64) {
	processedGB := float64(bytesProcessed) / bytesPerGB
	costUSD := processedGB / 1000.0 * onDemandCostPerTB

	log.Info().
		Str("event", "query_cost").
		Str("sql_hash", HashShort(sql)).
		Str("turn_id", turnID).
		Int64("bytes_processed", bytesProcessed).
		Float64("cost_gb", processedGB).
		Float64("cost_usd", costUSD).
		Int64("duration_ms", durationMs).
		Msgf("query cost %.4fGB ($%.4f) in %dms", processedGB, costUSD, durationMs)
}

// HashShort returns the first 16 hex chars of the SHA-256 of s.
func HashShort(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)[:16]
}
