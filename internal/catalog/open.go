package catalog

import (
	"context"
	"fmt"

	"github.com/cortexai/querygate/internal/config"
	"github.com/rs/zerolog/log"
)

// Open connects the configured warehouse backend, wrapped in the schema cache
// when a TTL is set.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.WarehouseDriver {
	case "bigquery":
		b, err = NewBigQuery(ctx, BigQueryOptions{
			ProjectID:       cfg.GCPProjectID,
			Dataset:         cfg.BigQueryDataset,
			Location:        cfg.BigQueryLocation,
			CredentialsFile: cfg.GoogleApplicationCredentials,
			AccessToken:     cfg.GoogleAccessToken,
			MaxBytesBilled:  cfg.MaxQueryBytesProcessed,
		})
	case "postgres":
		b, err = NewPostgres(ctx, cfg.WarehouseDSN, cfg.WarehouseSchema)
	case "sqlite":
		b, err = NewSQLite(ctx, cfg.WarehouseDSN)
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.WarehouseDriver)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("driver", cfg.WarehouseDriver).
		Dur("schema_cache_ttl", cfg.SchemaCacheTTL.Duration).
		Msg("warehouse connected")

	if cfg.SchemaCacheTTL.Duration > 0 {
		return NewCached(b, cfg.SchemaCacheTTL.Duration), nil
	}
	return b, nil
}
