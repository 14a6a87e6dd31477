package audit

import (
	"context"
	"fmt"

	"github.com/cortexai/querygate/internal/config"
	"github.com/rs/zerolog/log"
)

const defaultMaxRecords = 10_000

// NewFromConfig builds the pipeline and every configured sink. Network sinks
// are wrapped in an AsyncSink.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	var sinks []Sink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	if cfg.EnableAuditLogging {
		sinks = append(sinks, NewLogSink())
	}
	if cfg.AuditLogPath != "" {
		chain, err := OpenChain(cfg.AuditLogPath)
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, chain)
	}
	if cfg.AuditPubSubTopic != "" {
		ps, err := NewPubSubSink(ctx, cfg.GCPProjectID, cfg.AuditPubSubTopic)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("audit pubsub sink: %w", err)
		}
		sinks = append(sinks, NewAsyncSink(ps, 0))
	}
	if len(cfg.AuditElasticsearchURLs) > 0 {
		es, err := NewElasticsearchSink(ElasticsearchOptions{
			Addresses: cfg.AuditElasticsearchURLs,
			Username:  cfg.AuditElasticsearchUser,
			Password:  cfg.AuditElasticsearchPass,
			Index:     cfg.AuditElasticsearchIdx,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("audit elasticsearch sink: %w", err)
		}
		sinks = append(sinks, NewAsyncSink(es, 0))
	}

	log.Info().
		Int("sinks", len(sinks)).
		Str("chain_path", cfg.AuditLogPath).
		Bool("pubsub", cfg.AuditPubSubTopic != "").
		Bool("elasticsearch", len(cfg.AuditElasticsearchURLs) > 0).
		Msg("audit pipeline ready")

	return NewPipeline(Options{
		ArgsLimit:   cfg.AuditArgsLimit,
		ResultLimit: cfg.AuditResultLimit,
		MaxRecords:  defaultMaxRecords,
	}, sinks...), nil
}
