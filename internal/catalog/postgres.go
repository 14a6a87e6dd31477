package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres serves one schema. Sessions are opened with
// default_transaction_read_only so writes fail server-side as well.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
}

func NewPostgres(ctx context.Context, dsn, schema string) (*Postgres, error) {
	if schema == "" {
		schema = "public"
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres parse dsn: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	cfg.ConnConfig.RuntimeParams["application_name"] = "querygate"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Postgres{pool: pool, schema: schema}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) ListTables(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = $1 AND table_type IN ('BASE TABLE', 'VIEW')
		 ORDER BY table_name`,
		p.schema)
	if err != nil {
		return nil, classifyPostgres(ctx, "list_tables", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classifyPostgres(ctx, "list_tables", err)
	}
	return names, nil
}

func (p *Postgres) GetSchema(ctx context.Context, table string) (*Entry, error) {
	id := bareTable(table)
	rows, err := p.pool.Query(ctx, `
		SELECT column_name, upper(data_type),
		       CASE WHEN is_nullable = 'YES' THEN 'NULLABLE' ELSE 'REQUIRED' END
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`,
		p.schema, id)
	if err != nil {
		return nil, classifyPostgres(ctx, "get_schema", err)
	}
	cols, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Column, error) {
		var c Column
		err := r.Scan(&c.Name, &c.Type, &c.Mode)
		return c, err
	})
	if err != nil {
		return nil, classifyPostgres(ctx, "get_schema", err)
	}
	if len(cols) == 0 {
		return nil, &Error{Op: "get_schema", Kind: KindNotFound, Message: fmt.Sprintf("table %q not found", id)}
	}

	// reltuples is the planner estimate; -1 means never analyzed.
	var estimate float64
	err = p.pool.QueryRow(ctx, `
		SELECT c.reltuples FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2`,
		p.schema, id).Scan(&estimate)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, classifyPostgres(ctx, "get_schema", err)
	}

	return &Entry{
		Table:    id,
		Ref:      p.schema + "." + id,
		Columns:  cols,
		RowCount: max(int64(estimate), 0),
	}, nil
}

func (p *Postgres) RunQuery(ctx context.Context, sql string, maxRows int) (*RowSet, error) {
	qctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows, err := p.pool.Query(qctx, sql)
	if err != nil {
		return nil, classifyPostgres(ctx, "run_query", err)
	}
	defer rows.Close()

	rs := &RowSet{}
	fields := rows.FieldDescriptions()
	for i, f := range fields {
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		rs.Columns = append(rs.Columns, name)
	}

	for rows.Next() {
		rs.TotalRows++
		if len(rs.Rows) >= maxRows {
			if rs.TotalRows >= maxCountedRows {
				// Stop the server streaming the rest instead of draining it.
				cancel()
				return rs, nil
			}
			continue
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, classifyPostgres(ctx, "run_query", err)
		}
		m := make(map[string]any, len(vals))
		for i, v := range vals {
			m[rs.Columns[i]] = v
		}
		rs.Rows = append(rs.Rows, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPostgres(ctx, "run_query", err)
	}
	return rs, nil
}

func classifyPostgres(ctx context.Context, op string, err error) *Error {
	if kind, ok := contextKind(ctx, err); ok {
		return newError(op, kind, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := KindTransport
		switch {
		case pgErr.Code == "42501", pgErr.Code == "25006": // insufficient_privilege, read_only_sql_transaction
			kind = KindPermission
		case pgErr.Code == "42P01":
			kind = KindNotFound
		case pgErr.Code == "57014":
			kind = KindTimeout
		case strings.HasPrefix(pgErr.Code, "28"):
			kind = KindAuth
		case strings.HasPrefix(pgErr.Code, "42"), strings.HasPrefix(pgErr.Code, "22"):
			kind = KindInvalid
		}
		return &Error{Op: op, Kind: kind, Message: pgErr.Message, Err: err}
	}
	return newError(op, messageKind(err.Error()), err)
}
