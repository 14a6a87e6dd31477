package security

import (
	"fmt"
	"regexp"
	"strings"
)

type maskFunc func(string) string

type maskRule struct {
	match *regexp.Regexp
	mask  maskFunc
}

// Rules are checked in order; the first match decides the mask.
var builtinMaskRules = []maskRule{
	{regexp.MustCompile(`(?i)e_?mail`), maskEmail},
	{regexp.MustCompile(`(?i)phone|mobile`), maskTrailingDigits("***-***-", 4)},
	{regexp.MustCompile(`(?i)ssn|social_security`), func(string) string { return "***-**-****" }},
	{regexp.MustCompile(`(?i)credit_card|card_number`), maskTrailingDigits("****-****-****-", 4)},
	{regexp.MustCompile(`(?i)password|secret|token|api_key|access_key|private_key`), maskFull},
}

// DataMasker redacts sensitive columns in result rows before they leave the
// executor. Columns are matched by name, so customers.email and a bare email
// alias are both masked.
type DataMasker struct {
	extra []string
}

func NewDataMasker(sensitiveColumns []string) *DataMasker {
	extra := make([]string, 0, len(sensitiveColumns))
	for _, c := range sensitiveColumns {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			extra = append(extra, c)
		}
	}
	return &DataMasker{extra: extra}
}

// MaskRows returns masked copies; input rows are not modified.
func (m *DataMasker) MaskRows(rows []map[string]any) []map[string]any {
	masked := make([]map[string]any, len(rows))
	for i, row := range rows {
		out := make(map[string]any, len(row))
		for col, val := range row {
			if val == nil {
				out[col] = nil
				continue
			}
			if fn := m.maskerFor(col); fn != nil {
				out[col] = fn(fmt.Sprintf("%v", val))
			} else {
				out[col] = val
			}
		}
		masked[i] = out
	}
	return masked
}

// Sensitive reports whether col would be masked.
func (m *DataMasker) Sensitive(col string) bool {
	return m.maskerFor(col) != nil
}

func (m *DataMasker) maskerFor(col string) maskFunc {
	for _, r := range builtinMaskRules {
		if r.match.MatchString(col) {
			return r.mask
		}
	}
	lower := strings.ToLower(col)
	for _, s := range m.extra {
		if strings.Contains(lower, s) {
			return maskFull
		}
	}
	return nil
}

func maskFull(string) string { return "***" }

// maskEmail: "john.doe@example.com" → "jo***@***.com"
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}
	visible := min(2, len(local))
	ext := domain[strings.LastIndex(domain, ".")+1:]
	return fmt.Sprintf("%s***@***.%s", local[:visible], ext)
}

func maskTrailingDigits(prefix string, keep int) maskFunc {
	return func(v string) string {
		var digits strings.Builder
		for _, c := range v {
			if c >= '0' && c <= '9' {
				digits.WriteRune(c)
			}
		}
		d := digits.String()
		if len(d) < keep {
			return prefix + strings.Repeat("*", keep)
		}
		return prefix + d[len(d)-keep:]
	}
}
