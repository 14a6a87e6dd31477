package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindTransport  Kind = "transport"
	KindAuth       Kind = "auth"
	KindInvalid    Kind = "invalid"
	KindPermission Kind = "permission"
	KindNotFound   Kind = "not_found"
	KindTimeout    Kind = "timeout"
)

// Error is returned by every backend operation. Message holds the
// provider-supplied text; Err the underlying cause.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("catalog %s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a catalog error, or transport for anything else.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}

func newError(op string, kind Kind, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Op: op, Kind: kind, Message: msg, Err: err}
}

// contextKind maps context failures; ok is false for other errors.
func contextKind(ctx context.Context, err error) (Kind, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return KindTimeout, true
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return KindTimeout, true
	}
	return "", false
}

// messageKind is a fallback for drivers that only expose text.
func messageKind(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "syntax"), strings.Contains(lower, "no such"),
		strings.Contains(lower, "does not exist"), strings.Contains(lower, "unrecognized"):
		return KindInvalid
	case strings.Contains(lower, "permission"), strings.Contains(lower, "denied"),
		strings.Contains(lower, "readonly"), strings.Contains(lower, "read-only"):
		return KindPermission
	case strings.Contains(lower, "token"), strings.Contains(lower, "credential"),
		strings.Contains(lower, "unauthenticated"):
		return KindAuth
	}
	return KindTransport
}
