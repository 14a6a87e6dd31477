package security

import (
	"fmt"
	"regexp"
	"strings"
)

const MaxPromptLength = 2000

type promptRule struct {
	category string
	pattern  *regexp.Regexp
}

func rules(category string, exprs ...string) []promptRule {
	out := make([]promptRule, len(exprs))
	for i, e := range exprs {
		out[i] = promptRule{category: category, pattern: regexp.MustCompile(e)}
	}
	return out
}

var promptRules = concatRules(
	rules("command execution",
		`(?i)\brm\s+-`, `(?i)\brm\s+/`, `(?i)\bcurl\s+`, `(?i)\bwget\s+`,
		`(?i)\bnc\s+`, `(?i)\bbash\s+-`, `(?i)\bsh\s+-`, `(?i)\bsudo\s+`,
	),
	rules("file access",
		`\.\./`, `/etc/passwd`, `/etc/shadow`, `/proc/`, `id_rsa`, `\.ssh/`,
		`\.env(\s|$)`, `>>?\s*/`,
	),
	rules("code execution",
		`(?i)\beval\s*\(`, `(?i)\bexec\s*\(`, `(?i)\bsystem\s*\(`,
		`(?i)__import__\s*\(`, `(?i)subprocess`, `(?i)os\.system`, `(?i)popen`,
	),
	rules("prompt injection",
		`(?i)(ignore|disregard|forget|override)\s+(all\s+)?(previous|prior|above)\s+instructions`,
		`(?i)(new|change)\s+context\s*:`,
		`(?i)instead\s+of\s+the\s+above`,
		`(?i)you\s+are\s+now\s+(a|an|in)\b`,
		`(?i)(reveal|print|show)\s+(your\s+)?(system\s+prompt|instructions)`,
	),
	// Asking the generator for a write is refused at the prompt, well before
	// the admission filter sees the statement.
	rules("write request",
		`(?i)\b(delete|drop|truncate|remove)\s+(all\s+)?(the\s+)?(rows?|records?|tables?|data|orders|customers|products)\b`,
		`(?i)\b(insert|add)\s+(a\s+)?new\s+(row|record)\b`,
		`(?i)\bupdate\s+(the\s+)?(price|status|email|stock|records?)\b`,
	),
)

func concatRules(groups ...[]promptRule) []promptRule {
	var out []promptRule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var analyticsKeywords = []string{
	"data", "table", "query", "show", "list", "get", "find", "count",
	"sum", "total", "average", "avg", "revenue", "sales", "top", "bottom",
	"most", "least", "highest", "lowest", "compare", "trend", "how many",
	"how much", "which", "what", "when", "where", "who", "per ",
	"order", "customer", "product", "category", "price", "stock",
	"month", "year", "week", "day", "report", "breakdown", "rank",
}

// PromptValidator screens natural-language turns before they reach a generator.
type PromptValidator struct {
	requireAnalytics bool
}

func NewPromptValidator() *PromptValidator {
	return &PromptValidator{requireAnalytics: true}
}

type ValidationResult struct {
	Valid    bool
	Category string
	Message  string
}

func (v *PromptValidator) Validate(prompt string) ValidationResult {
	if strings.TrimSpace(prompt) == "" {
		return ValidationResult{Category: "empty", Message: "prompt cannot be empty"}
	}
	if len(prompt) > MaxPromptLength {
		return ValidationResult{
			Category: "length",
			Message:  fmt.Sprintf("prompt too long: %d chars (max %d)", len(prompt), MaxPromptLength),
		}
	}

	for _, r := range promptRules {
		if r.pattern.MatchString(prompt) {
			return ValidationResult{
				Category: r.category,
				Message:  fmt.Sprintf("prompt rejected: %s pattern detected", r.category),
			}
		}
	}

	if v.requireAnalytics {
		lower := strings.ToLower(prompt)
		for _, kw := range analyticsKeywords {
			if strings.Contains(lower, kw) {
				return ValidationResult{Valid: true, Message: "ok"}
			}
		}
		return ValidationResult{
			Category: "off_topic",
			Message:  "prompt must ask a question about the warehouse data",
		}
	}
	return ValidationResult{Valid: true, Message: "ok"}
}
