package agent

import (
	"regexp"
	"strings"
)

var (
	reSQLFence    = regexp.MustCompile("(?is)```sql[ \\t]*\\n?(.*?)```")
	reAnyFence    = regexp.MustCompile("(?s)```[A-Za-z]*[ \\t]*\\n?(.*?)```")
	reCTE         = regexp.MustCompile(`(?is)\bWITH\s+\w+\s+AS\s*\(.+?(?:LIMIT\s+\d+|;|\z)`)
	reSelectBlock = regexp.MustCompile(`(?is)\bSELECT\s+.+?\bFROM\s+.+?(?:LIMIT\s+\d+|;|\z)`)
)

// extractSQL finds the statement in a model reply. Fenced sql blocks win,
// then any fenced block that reads as a query, then bare SELECT or WITH
// text. A sql-fenced block is returned whatever it contains; admission
// decides what happens to it.
func extractSQL(text string) string {
	if m := reSQLFence.FindStringSubmatch(text); m != nil {
		if sql := cleanStatement(m[1]); sql != "" {
			return sql
		}
	}

	for _, m := range reAnyFence.FindAllStringSubmatch(text, -1) {
		body := cleanStatement(m[1])
		if up := strings.ToUpper(body); strings.HasPrefix(up, "SELECT") || strings.HasPrefix(up, "WITH") {
			return body
		}
	}

	if m := reCTE.FindString(text); m != "" {
		return cleanStatement(m)
	}
	if m := reSelectBlock.FindString(text); m != "" {
		return cleanStatement(m)
	}
	return ""
}

func cleanStatement(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
