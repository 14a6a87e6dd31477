package server

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cortexai/querygate/internal/agent"
	"github.com/cortexai/querygate/internal/audit"
	"github.com/cortexai/querygate/internal/catalog"
	"github.com/cortexai/querygate/internal/config"
	"github.com/cortexai/querygate/internal/executor"
	"github.com/cortexai/querygate/internal/review"
	"github.com/cortexai/querygate/internal/security"
	"github.com/rs/zerolog/log"
)

// App is the assembled admission and audit layer shared by the HTTP server,
// the MCP server and the CLI.
type App struct {
	Config       *config.Config
	Warehouse    catalog.Backend
	Audit        *audit.Pipeline
	Reviewer     review.Reviewer
	Policy       *review.ComplexityPolicy
	Generator    agent.Generator
	Orchestrator *agent.Orchestrator

	closers []io.Closer
}

// Build connects the warehouse and wires every component from cfg. The
// caller must Close the returned App.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}
	fail := func(err error) (*App, error) {
		app.Close()
		return nil, err
	}

	wh, err := catalog.Open(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("warehouse: %w", err))
	}
	app.Warehouse = wh
	app.closers = append(app.closers, wh)

	pipeline, err := audit.NewFromConfig(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("audit: %w", err))
	}
	app.Audit = pipeline
	app.closers = append(app.closers, closerFunc(pipeline.Close))

	rv, err := review.NewFromConfig(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("reviewer: %w", err))
	}
	app.Reviewer = rv
	if c, ok := rv.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}
	app.Policy = review.NewComplexityPolicy(cfg.ReviewAll)

	gen, err := agent.NewGeneratorFromConfig(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("generator: %w", err))
	}
	app.Generator = gen
	if c, ok := gen.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}

	keywords := security.WithDefaultKeywords(cfg.BlockedKeywords)
	execOpts := executor.Options{
		Ceiling: cfg.RowCeiling,
		Timeout: cfg.QueryTimeout.Duration,
	}
	if cfg.MaxQueryBytesProcessed > 0 {
		execOpts.Cost = security.NewCostTracker(cfg.MaxQueryBytesProcessed)
	}
	if cfg.EnableDataMasking {
		execOpts.Masker = security.NewDataMasker(cfg.SensitiveColumns)
	}

	opts := agent.Options{
		Catalog:       wh,
		Dataset:       dataset(cfg),
		Filter:        security.NewAdmissionFilter(keywords),
		Reviewer:      rv,
		Policy:        app.Policy,
		Executor:      executor.New(wh, execOpts),
		Audit:         pipeline,
		Generator:     gen,
		PreloadSchema: cfg.PreloadSchema,
		AgentTimeout:  time.Duration(cfg.AgentTimeout) * time.Second,
		Ceiling:       cfg.RowCeiling,
	}
	if cfg.EnablePIIDetection {
		opts.PII = security.NewPIIDetector(cfg.PIIKeywords)
	}
	if cfg.EnablePromptValidation {
		opts.Prompts = security.NewPromptValidator()
	}
	app.Orchestrator = agent.New(opts)

	log.Info().
		Str("warehouse", cfg.WarehouseDriver).
		Strs("blocked_keywords", keywords.Keywords()).
		Int("row_ceiling", cfg.RowCeiling).
		Dur("query_timeout", cfg.QueryTimeout.Duration).
		Bool("generator", gen != nil).
		Bool("data_masking", cfg.EnableDataMasking).
		Bool("pii_detection", cfg.EnablePIIDetection).
		Msg("querygate assembled")
	return app, nil
}

// Close releases components in reverse order of construction.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("close failed")
			if first == nil {
				first = err
			}
		}
	}
	a.closers = nil
	return first
}

func dataset(cfg *config.Config) string {
	switch cfg.WarehouseDriver {
	case "bigquery":
		return cfg.BigQueryDataset
	case "postgres":
		return cfg.WarehouseSchema
	default:
		return "main"
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
