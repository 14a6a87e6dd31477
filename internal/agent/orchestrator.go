// Package agent sequences admission, review, execution and audit for every
// candidate statement, and drives natural-language turns through a
// Generator.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cortexai/querygate/internal/audit"
	"github.com/cortexai/querygate/internal/catalog"
	"github.com/cortexai/querygate/internal/executor"
	"github.com/cortexai/querygate/internal/models"
	"github.com/cortexai/querygate/internal/review"
	"github.com/cortexai/querygate/internal/security"
	"github.com/cortexai/querygate/internal/tools"
	"github.com/rs/zerolog/log"
)

const (
	ToolLoadSchemaContext = "load_schema_context"
	ToolAsk               = "ask"
)

// Runner executes an admitted statement.
type Runner interface {
	Execute(ctx context.Context, stmt security.Statement) *executor.Result
}

type Options struct {
	Catalog   catalog.Client
	Dataset   string
	Filter    *security.AdmissionFilter
	Reviewer  review.Reviewer
	Policy    *review.ComplexityPolicy
	Executor  Runner
	Audit     *audit.Pipeline
	Generator Generator

	// Prompt checks; nil disables each.
	PII     *security.PIIDetector
	Prompts *security.PromptValidator

	PreloadSchema bool
	AgentTimeout  time.Duration
	Ceiling       int
}

// Orchestrator is safe for concurrent use; each call is independent.
type Orchestrator struct {
	catalog   catalog.Client
	dataset   string
	filter    *security.AdmissionFilter
	reviewer  review.Reviewer
	policy    *review.ComplexityPolicy
	executor  Runner
	audit     *audit.Pipeline
	generator Generator
	pii       *security.PIIDetector
	prompts   *security.PromptValidator

	preloadSchema bool
	agentTimeout  time.Duration
	ceiling       int
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		catalog:       opts.Catalog,
		dataset:       opts.Dataset,
		filter:        opts.Filter,
		reviewer:      opts.Reviewer,
		policy:        opts.Policy,
		executor:      opts.Executor,
		audit:         opts.Audit,
		generator:     opts.Generator,
		pii:           opts.PII,
		prompts:       opts.Prompts,
		preloadSchema: opts.PreloadSchema,
		agentTimeout:  opts.AgentTimeout,
		ceiling:       opts.Ceiling,
	}
	if o.filter == nil {
		o.filter = security.NewAdmissionFilter(nil)
	}
	if o.reviewer == nil {
		o.reviewer = review.Noop{}
	}
	if o.policy == nil {
		o.policy = review.NewComplexityPolicy(false)
	}
	if o.audit == nil {
		o.audit = audit.NewPipeline(audit.Options{})
	}
	if o.ceiling <= 0 {
		o.ceiling = executor.DefaultCeiling
	}
	return o
}

func (o *Orchestrator) Dataset() string { return o.dataset }

func (o *Orchestrator) Audit() *audit.Pipeline { return o.audit }

// Submit runs one candidate statement through the fixed sequence: audit
// Before, admission, optional review, execution, audit After. A blocked
// statement never reaches the executor. Submit always returns an envelope
// and always closes the audit invocation.
func (o *Orchestrator) Submit(ctx context.Context, sql string, opts models.SubmitOptions) (env *models.Envelope) {
	inv := o.audit.Before(ctx, tools.NameExecuteSQL, sql)
	ctx = inv.Context(ctx)

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("invocation_id", inv.ID).Msg("submit panic")
			env = models.Failed("internal error while handling the statement")
			env.InvocationID = inv.ID
			inv.After(fmt.Sprintf("panic: %v", p), audit.StatusPanic)
			return
		}
		env.InvocationID = inv.ID
		inv.After(env, "")
	}()

	stmt := security.NewStatement(sql)
	verdict := o.filter.Admit(stmt)
	if verdict.Blocked() {
		log.Warn().
			Str("invocation_id", inv.ID).
			Str("turn_id", inv.TurnID).
			Str("keyword", verdict.Keyword()).
			Str("source", opts.Source).
			Msg("statement blocked")
		return models.Blocked(verdict)
	}

	var rv *review.Verdict
	if opts.ForceReview || o.policy.IsComplex(sql) {
		v := o.ReviewSQL(ctx, sql)
		rv = &v
	}

	res := o.executor.Execute(ctx, stmt)
	env = models.FromResult(res)
	if rv != nil {
		env.Review = rv
		env.Warnings = reviewWarnings(*rv)
	}
	return env
}

func reviewWarnings(v review.Verdict) []string {
	switch v.Kind {
	case review.KindUnsafe:
		out := make([]string, 0, len(v.Findings))
		for _, f := range v.Findings {
			out = append(out, "reviewer: "+f)
		}
		return out
	case review.KindUnavailable:
		return []string{"advisory review unavailable: " + v.Reason}
	}
	return nil
}

// ReviewSQL asks the advisory reviewer. It never fails; a panicking
// reviewer is reported as Unavailable.
func (o *Orchestrator) ReviewSQL(ctx context.Context, sql string) (v review.Verdict) {
	inv := o.audit.Before(ctx, tools.NameReviewSQL, sql)
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("reviewer panic")
			v = review.Unavailable("reviewer failed")
		}
		if v.IsUnavailable() {
			log.Warn().Str("reason", v.Reason).Str("invocation_id", inv.ID).Msg("advisory review unavailable")
		}
		inv.After(v, "")
	}()
	return o.reviewer.Review(inv.Context(ctx), sql)
}

func (o *Orchestrator) ListTables(ctx context.Context) ([]string, error) {
	out, err := o.audit.Track(ctx, tools.NameListTables, o.dataset, func(ctx context.Context) (any, error) {
		return o.catalog.ListTables(ctx)
	})
	if err != nil {
		return nil, err
	}
	tables, _ := out.([]string)
	return tables, nil
}

func (o *Orchestrator) GetSchema(ctx context.Context, table string) (*catalog.Entry, error) {
	out, err := o.audit.Track(ctx, tools.NameGetSchema, table, func(ctx context.Context) (any, error) {
		return o.catalog.GetSchema(ctx, table)
	})
	if err != nil {
		return nil, err
	}
	entry, _ := out.(*catalog.Entry)
	if entry == nil {
		return nil, &catalog.Error{Op: "get_schema", Kind: catalog.KindNotFound}
	}
	return entry, nil
}
