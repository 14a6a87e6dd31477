package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ValidatorInstruction is the system prompt sent to model-backed reviewers.
const ValidatorInstruction = `You are a SQL review specialist. When given a SQL query, you review it and respond with a brief assessment.

CHECK FOR:
1. SAFETY: Does it contain any write operations (DELETE, UPDATE, INSERT, DROP, ALTER, CREATE, TRUNCATE, MERGE, GRANT, REVOKE)? If yes, mark as UNSAFE.
2. SYNTAX: Is it valid BigQuery Standard SQL?
3. TABLE REFERENCES: Does it use fully qualified table names (project.dataset.table)?
4. PERFORMANCE: Any obvious issues like SELECT * on large tables without LIMIT?

RESPOND IN THIS FORMAT:
- VERDICT: SAFE or UNSAFE
- ISSUES: List any problems found, or "None" if clean
- SUGGESTION: Any improvements, or "None" if the query looks good

Keep your response concise. Do not execute anything. Just review.`

var reListMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)

// Completer sends one system+user exchange to a language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LLM asks a Completer for a verdict. Any failure to get a parseable
// answer within the timeout is Unavailable.
type LLM struct {
	completer Completer
	name      string
	timeout   time.Duration
}

func NewLLM(name string, c Completer, timeout time.Duration) *LLM {
	return &LLM{completer: c, name: name, timeout: timeout}
}

func (r *LLM) Review(ctx context.Context, sql string) Verdict {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	reply, err := r.complete(ctx, sql)
	if err != nil {
		reason := "reviewer call failed"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "reviewer timed out"
		}
		log.Warn().Err(err).Str("reviewer", r.name).Msg("sql review unavailable")
		v := Unavailable(reason)
		v.Reviewer = r.name
		return v
	}

	v, err := ParseVerdict(reply)
	if err != nil {
		log.Warn().Err(err).Str("reviewer", r.name).Msg("unparseable review reply")
		v = Unavailable("reviewer reply could not be parsed")
	}
	v.Reviewer = r.name
	return v
}

func (r *LLM) complete(ctx context.Context, sql string) (reply string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("completer panic: %v", p)
		}
	}()
	return r.completer.Complete(ctx, ValidatorInstruction, "Review this SQL query:\n\n"+sql)
}

// ParseVerdict reads the VERDICT / ISSUES / SUGGESTION reply format.
// Lines may carry list markers or markdown emphasis.
func ParseVerdict(reply string) (Verdict, error) {
	var (
		verdict    string
		issues     []string
		suggestion []string
		section    string
	)
	for _, raw := range strings.Split(reply, "\n") {
		line := cleanLine(raw)
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if ok {
			switch strings.ToUpper(strings.TrimSpace(key)) {
			case "VERDICT":
				section = "verdict"
				verdict = strings.ToUpper(strings.TrimSpace(val))
				continue
			case "ISSUES":
				section = "issues"
				line = val
			case "SUGGESTION", "SUGGESTIONS":
				section = "suggestion"
				line = val
			}
		}
		line = strings.TrimSpace(line)
		if line == "" || isNone(line) {
			continue
		}
		switch section {
		case "issues":
			issues = append(issues, line)
		case "suggestion":
			suggestion = append(suggestion, line)
		}
	}

	var v Verdict
	switch {
	case strings.HasPrefix(verdict, "UNSAFE"):
		if len(issues) == 0 {
			issues = []string{"reviewer marked the query unsafe"}
		}
		v = Unsafe(issues...)
	case strings.HasPrefix(verdict, "SAFE"):
		v = Safe(issues...)
	default:
		return Verdict{}, fmt.Errorf("no VERDICT line in reply")
	}
	v.Suggestion = strings.Join(suggestion, " ")
	return v, nil
}

func cleanLine(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "**", "")
	return strings.TrimSpace(reListMarker.ReplaceAllString(s, ""))
}

func isNone(s string) bool {
	s = strings.Trim(strings.ToLower(s), `"'. `)
	return s == "none" || s == "n/a"
}

// Close releases the completer's client when it holds one.
func (r *LLM) Close() error {
	if c, ok := r.completer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
