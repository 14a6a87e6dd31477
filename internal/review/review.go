// Package review provides advisory second opinions on admitted SQL. A
// verdict never blocks execution; only the admission filter does.
package review

import (
	"context"
	"strings"
)

type Kind string

const (
	KindSafe        Kind = "safe"
	KindUnsafe      Kind = "unsafe"
	KindUnavailable Kind = "unavailable"
)

// Verdict is Safe, Unsafe(findings) or Unavailable(reason). Notes and
// Suggestion are optional commentary on any kind.
type Verdict struct {
	Kind       Kind     `json:"verdict"`
	Findings   []string `json:"findings,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Notes      []string `json:"notes,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Reviewer   string   `json:"reviewer,omitempty"`
}

func Safe(notes ...string) Verdict {
	return Verdict{Kind: KindSafe, Notes: notes}
}

func Unsafe(findings ...string) Verdict {
	return Verdict{Kind: KindUnsafe, Findings: findings}
}

func Unavailable(reason string) Verdict {
	return Verdict{Kind: KindUnavailable, Reason: reason}
}

func (v Verdict) IsSafe() bool        { return v.Kind == KindSafe }
func (v Verdict) IsUnsafe() bool      { return v.Kind == KindUnsafe }
func (v Verdict) IsUnavailable() bool { return v.Kind == KindUnavailable }

// AuditStatus names the verdict in audit records.
func (v Verdict) AuditStatus() string { return string(v.Kind) }

func (v Verdict) String() string {
	switch v.Kind {
	case KindUnsafe:
		return "unsafe: " + strings.Join(v.Findings, "; ")
	case KindUnavailable:
		return "unavailable: " + v.Reason
	default:
		return string(KindSafe)
	}
}

// Reviewer returns a verdict for one statement. Implementations must not
// panic and must respect ctx; failures are reported as Unavailable.
type Reviewer interface {
	Review(ctx context.Context, sql string) Verdict
}

// Func adapts a function to Reviewer.
type Func func(ctx context.Context, sql string) Verdict

func (f Func) Review(ctx context.Context, sql string) Verdict { return f(ctx, sql) }

// Noop approves everything.
type Noop struct{}

func (Noop) Review(context.Context, string) Verdict {
	v := Safe()
	v.Reviewer = "noop"
	return v
}
