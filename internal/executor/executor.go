// Package executor runs admitted statements against the warehouse with a
// row ceiling and a timeout, and normalizes every outcome into a Result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cortexai/querygate/internal/audit"
	"github.com/cortexai/querygate/internal/catalog"
	"github.com/cortexai/querygate/internal/security"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCeiling = 50
	DefaultTimeout = 60 * time.Second

	maxProviderMessage = 200
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the outcome of one execution. Rows never holds more than the
// ceiling; RowCount is how many rows the query produced.
type Result struct {
	Status         Status           `json:"status"`
	Columns        []string         `json:"columns,omitempty"`
	Rows           []map[string]any `json:"results,omitempty"`
	RowCount       int              `json:"row_count"`
	Truncated      bool             `json:"truncated"`
	Message        string           `json:"message,omitempty"`
	ErrorKind      catalog.Kind     `json:"error_kind,omitempty"`
	BytesProcessed int64            `json:"bytes_processed,omitempty"`
	DurationMs     int64            `json:"duration_ms"`
	JobID          string           `json:"job_id,omitempty"`
}

func (r *Result) OK() bool { return r.Status == StatusSuccess }

func (r *Result) AuditStatus() string { return string(r.Status) }

// String is what the audit log keeps as the result summary.
func (r *Result) String() string {
	if r.Status == StatusSuccess {
		return fmt.Sprintf("success: %d rows (truncated=%t)", r.RowCount, r.Truncated)
	}
	return "error: " + r.Message
}

type Options struct {
	Ceiling int
	Timeout time.Duration
	Cost    *security.CostTracker
	Masker  *security.DataMasker
}

type Executor struct {
	client  catalog.Client
	ceiling int
	timeout time.Duration
	cost    *security.CostTracker
	masker  *security.DataMasker
}

func New(client catalog.Client, opts Options) *Executor {
	if opts.Ceiling <= 0 {
		opts.Ceiling = DefaultCeiling
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Executor{
		client:  client,
		ceiling: opts.Ceiling,
		timeout: opts.Timeout,
		cost:    opts.Cost,
		masker:  opts.Masker,
	}
}

func (e *Executor) Ceiling() int { return e.ceiling }

func (e *Executor) Timeout() time.Duration { return e.timeout }

// Execute runs stmt. The caller must have admitted it. Execute never
// returns nil and never panics.
func (e *Executor) Execute(ctx context.Context, stmt security.Statement) (res *Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("executor panic")
			res = &Result{Status: StatusError, Message: "internal error while running the query"}
		}
		res.DurationMs = time.Since(start).Milliseconds()
	}()

	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rs, err := e.client.RunQuery(qctx, stmt.Text(), e.ceiling+1)
	if err != nil {
		return e.failure(ctx, qctx, err)
	}

	rows := rs.Rows
	if len(rows) > e.ceiling {
		rows = rows[:e.ceiling]
	}
	count := int(rs.TotalRows)
	if count < len(rs.Rows) {
		count = len(rs.Rows)
	}

	if e.cost != nil {
		if ok, msg := e.cost.Check(rs.BytesProcessed); !ok {
			return &Result{Status: StatusError, Message: msg, BytesProcessed: rs.BytesProcessed, JobID: rs.JobID}
		}
		e.cost.LogQueryCost(stmt.Text(), audit.TurnFrom(ctx), rs.BytesProcessed, time.Since(start).Milliseconds())
	}
	if e.masker != nil {
		rows = e.masker.MaskRows(rows)
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	return &Result{
		Status:         StatusSuccess,
		Columns:        rs.Columns,
		Rows:           rows,
		RowCount:       count,
		Truncated:      count > e.ceiling,
		BytesProcessed: rs.BytesProcessed,
		JobID:          rs.JobID,
	}
}

func (e *Executor) failure(parent, qctx context.Context, err error) *Result {
	kind := catalog.KindOf(err)
	msg := describe(kind, err, e.timeout)

	switch {
	case errors.Is(parent.Err(), context.Canceled):
		kind, msg = catalog.KindTimeout, "query cancelled"
	case errors.Is(qctx.Err(), context.DeadlineExceeded):
		kind, msg = catalog.KindTimeout, fmt.Sprintf("query timed out after %s", e.timeout)
	}

	log.Warn().
		Err(err).
		Str("kind", string(kind)).
		Str("turn_id", audit.TurnFrom(parent)).
		Msg("query execution failed")

	return &Result{Status: StatusError, Message: msg, ErrorKind: kind}
}

// describe maps a failure to a terse message. Provider text is only
// surfaced for invalid queries, reduced to one line.
func describe(kind catalog.Kind, err error, timeout time.Duration) string {
	switch kind {
	case catalog.KindTimeout:
		return fmt.Sprintf("query timed out after %s", timeout)
	case catalog.KindAuth:
		return "warehouse authentication failed; credentials may have expired"
	case catalog.KindPermission:
		return "permission denied by the warehouse"
	case catalog.KindNotFound:
		return "table or dataset not found"
	case catalog.KindInvalid:
		var ce *catalog.Error
		if errors.As(err, &ce) && ce.Message != "" {
			return "invalid query: " + sanitize(ce.Message)
		}
		return "invalid query"
	default:
		return "warehouse unavailable, please try again later"
	}
}

func sanitize(msg string) string {
	if i := strings.IndexAny(msg, "\r\n"); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.Join(strings.Fields(msg), " ")
	if r := []rune(msg); len(r) > maxProviderMessage {
		msg = string(r[:maxProviderMessage]) + "..."
	}
	return msg
}
