package review

import (
	"context"
	"regexp"
	"strings"

	"github.com/cortexai/querygate/internal/security"
)

type pattern struct {
	re      *regexp.Regexp
	finding string
}

var injectionPatterns = []pattern{
	{regexp.MustCompile(`(?i);\s*(DROP|DELETE|INSERT|UPDATE|ALTER|CREATE|TRUNCATE|MERGE|GRANT|REVOKE)\b`), "stacked write statement after ';'"},
	{regexp.MustCompile(`(?i);\s*EXEC(UTE)?\b`), "stacked EXEC statement"},
	{regexp.MustCompile(`(?i)\bUNION\s+SELECT\b`), "UNION SELECT without ALL, a common injection shape"}, // UNION ALL SELECT is fine
	{regexp.MustCompile(`(?i)\bINTO\s+(OUTFILE|DUMPFILE)\b`), "writes query output to a file"},
	{regexp.MustCompile(`(?i)\bLOAD\s+DATA\b`), "LOAD DATA statement"},
	{regexp.MustCompile(`(?i)\bEXPORT\s+DATA\b`), "EXPORT DATA statement"},
	{regexp.MustCompile(`(?i)\bLOAD_FILE\s*\(`), "reads server files"},
	{regexp.MustCompile(`(?i)\b(BENCHMARK|SLEEP|PG_SLEEP)\s*\(`), "time-delay function"},
	{regexp.MustCompile(`(?i)\bWAITFOR\s+DELAY\b`), "time-delay function"},
	{regexp.MustCompile(`'[^']*--`), "comment after string literal"},
	{regexp.MustCompile(`;\s*--`), "statement terminator followed by comment"},
	{regexp.MustCompile(`/\*.*?\*/`), "inline block comment"},
	{regexp.MustCompile(`(?i)\b(OR|AND)\s+(1\s*=\s*1|'1'\s*=\s*'1')`), "tautology in predicate"},
}

var (
	reSelectStar    = regexp.MustCompile(`(?i)\bSELECT\s+\*`)
	reLimit         = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	reTableRef      = regexp.MustCompile("(?i)\\b(?:FROM|JOIN)\\s+(`[^`]+`|[A-Za-z_][\\w.\\-]*)")
	reCTEName       = regexp.MustCompile(`(?i)(?:\bWITH|,)\s*([A-Za-z_]\w*)\s+AS\s*\(`)
	reLeadingKwTrim = regexp.MustCompile(`^[\s(]+`)
	reWord          = regexp.MustCompile(`[A-Za-z_]+`)
	reExtract       = regexp.MustCompile(`(?i)\bEXTRACT\s*\([^)]*\)`)
)

// Static is a rule-based reviewer. Injection shapes and write verbs are
// Unsafe findings; style issues are notes on a Safe verdict.
type Static struct {
	keywords *security.BlockedKeywordSet
}

func NewStatic(keywords *security.BlockedKeywordSet) *Static {
	if keywords == nil || keywords.Len() == 0 {
		keywords = security.NewBlockedKeywordSet(security.DefaultBlockedKeywords)
	}
	return &Static{keywords: keywords}
}

func (s *Static) Review(ctx context.Context, sql string) Verdict {
	if err := ctx.Err(); err != nil {
		return Unavailable("review cancelled: " + err.Error())
	}

	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		v := Unsafe("empty statement")
		v.Reviewer = "static"
		return v
	}

	var findings []string
	upper := strings.ToUpper(reLeadingKwTrim.ReplaceAllString(trimmed, ""))
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		findings = append(findings, "statement does not start with SELECT or WITH")
	}
	for _, p := range injectionPatterns {
		if p.re.MatchString(sql) {
			findings = append(findings, p.finding)
		}
	}
	// word-level scan; whitespace tokens miss DELETE; and DROP(
	for _, w := range reWord.FindAllString(sql, -1) {
		if s.keywords.Contains(w) {
			findings = append(findings, "blocked keyword "+strings.ToUpper(w)+" appears in statement")
			break
		}
	}

	notes := qualityNotes(trimmed)

	var v Verdict
	if len(findings) > 0 {
		v = Unsafe(findings...)
		v.Notes = notes
	} else {
		v = Safe(notes...)
	}
	if len(notes) > 0 {
		v.Suggestion = "use fully qualified table names and add a LIMIT when selecting all columns"
	}
	v.Reviewer = "static"
	return v
}

func qualityNotes(sql string) []string {
	var notes []string

	ctes := make(map[string]bool)
	for _, m := range reCTEName.FindAllStringSubmatch(sql, -1) {
		ctes[strings.ToLower(m[1])] = true
	}
	seen := make(map[string]bool)
	for _, m := range reTableRef.FindAllStringSubmatch(reExtract.ReplaceAllString(sql, ""), -1) {
		ref := strings.Trim(m[1], "`")
		lower := strings.ToLower(ref)
		if strings.Contains(ref, ".") || ctes[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		notes = append(notes, "table "+ref+" is not fully qualified")
	}

	if reSelectStar.MatchString(sql) && !reLimit.MatchString(sql) {
		notes = append(notes, "SELECT * without LIMIT")
	}
	return notes
}
