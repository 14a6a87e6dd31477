// Package audit brackets every tool invocation with Before and After records
// and fans them out, in order, to pluggable sinks.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusError   = "error"
	StatusBlocked = "blocked"
	StatusPanic   = "panic"
)

// Record is one audit line. Fields are fixed so json.Marshal output is
// deterministic, which the hash chain relies on.
type Record struct {
	Seq          uint64    `json:"seq"`
	Timestamp    time.Time `json:"ts"`
	InvocationID string    `json:"invocation_id"`
	ParentID     string    `json:"parent_id,omitempty"`
	TurnID       string    `json:"turn_id,omitempty"`
	Tool         string    `json:"tool"`
	Phase        Phase     `json:"phase"`
	Arguments    string    `json:"arguments"`
	Result       string    `json:"result,omitempty"`
	Status       string    `json:"status"`
	DurationMs   int64     `json:"duration_ms,omitempty"`
}

// StatusReporter lets a tool result name its own audit status.
type StatusReporter interface {
	AuditStatus() string
}

type ctxKey int

const (
	turnKey ctxKey = iota
	invocationKey
)

// WithTurn tags ctx with the id of the turn (HTTP request, MCP call) that
// owns the invocations made under it.
func WithTurn(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, turnKey, turnID)
}

func TurnFrom(ctx context.Context) string {
	id, _ := ctx.Value(turnKey).(string)
	return id
}

func invocationFrom(ctx context.Context) *Invocation {
	inv, _ := ctx.Value(invocationKey).(*Invocation)
	return inv
}

// summarize renders v and keeps the first limit characters.
func summarize(v any, limit int) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case error:
		s = t.Error()
	case fmt.Stringer:
		s = t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprintf("%v", t)
		} else {
			s = string(b)
		}
	}
	return truncateRunes(s, limit)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
