package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type BigQueryOptions struct {
	ProjectID       string
	Dataset         string
	Location        string
	CredentialsFile string
	// AccessToken is a short-lived OAuth token obtained outside the process.
	// Expiry surfaces as an auth error; it is never refreshed here.
	AccessToken    string
	MaxBytesBilled int64
}

// BigQuery serves one dataset of one project.
type BigQuery struct {
	client *bigquery.Client
	opts   BigQueryOptions
}

func NewBigQuery(ctx context.Context, opts BigQueryOptions) (*BigQuery, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("bigquery: project id is required")
	}
	if opts.Dataset == "" {
		return nil, fmt.Errorf("bigquery: dataset is required")
	}

	var copts []option.ClientOption
	switch {
	case opts.AccessToken != "":
		copts = append(copts, option.WithTokenSource(
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken, TokenType: "Bearer"}),
		))
	case opts.CredentialsFile != "":
		copts = append(copts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, opts.ProjectID, copts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	if opts.Location != "" {
		client.Location = opts.Location
	}

	return &BigQuery{client: client, opts: opts}, nil
}

func (b *BigQuery) Close() error {
	return b.client.Close()
}

func (b *BigQuery) ref(table string) string {
	return fmt.Sprintf("%s.%s.%s", b.opts.ProjectID, b.opts.Dataset, table)
}

func (b *BigQuery) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	it := b.client.Dataset(b.opts.Dataset).Tables(ctx)
	for {
		tbl, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classifyBigQuery(ctx, "list_tables", err)
		}
		tables = append(tables, tbl.TableID)
	}
	return tables, nil
}

func (b *BigQuery) GetSchema(ctx context.Context, table string) (*Entry, error) {
	id := bareTable(table)
	meta, err := b.client.Dataset(b.opts.Dataset).Table(id).Metadata(ctx)
	if err != nil {
		return nil, classifyBigQuery(ctx, "get_schema", err)
	}
	return &Entry{
		Table:    id,
		Ref:      b.ref(id),
		Columns:  flattenSchema("", meta.Schema),
		RowCount: int64(meta.NumRows),
	}, nil
}

func flattenSchema(prefix string, schema bigquery.Schema) []Column {
	var cols []Column
	for _, f := range schema {
		mode := "NULLABLE"
		switch {
		case f.Repeated:
			mode = "REPEATED"
		case f.Required:
			mode = "REQUIRED"
		}
		name := prefix + f.Name
		cols = append(cols, Column{Name: name, Type: string(f.Type), Mode: mode})
		if f.Type == bigquery.RecordFieldType {
			cols = append(cols, flattenSchema(name+".", f.Schema)...)
		}
	}
	return cols
}

func (b *BigQuery) RunQuery(ctx context.Context, sql string, maxRows int) (*RowSet, error) {
	q := b.client.Query(sql)
	q.DefaultProjectID = b.opts.ProjectID
	q.DefaultDatasetID = b.opts.Dataset
	if b.opts.MaxBytesBilled > 0 {
		q.MaxBytesBilled = b.opts.MaxBytesBilled
	}

	start := time.Now()
	job, err := q.Run(ctx)
	if err != nil {
		return nil, classifyBigQuery(ctx, "run_query", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, classifyBigQuery(ctx, "run_query", err)
	}
	if err := status.Err(); err != nil {
		return nil, classifyBigQuery(ctx, "run_query", err)
	}

	rs := &RowSet{JobID: job.ID()}
	if stats := job.LastStatus().Statistics; stats != nil {
		rs.BytesProcessed = stats.TotalBytesProcessed
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, classifyBigQuery(ctx, "run_query", err)
	}
	for len(rs.Rows) < maxRows {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classifyBigQuery(ctx, "run_query", err)
		}
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = normalizeBigQuery(v)
		}
		rs.Rows = append(rs.Rows, m)
	}
	for _, f := range it.Schema {
		rs.Columns = append(rs.Columns, f.Name)
	}
	rs.TotalRows = int64(it.TotalRows)
	if rs.TotalRows < int64(len(rs.Rows)) {
		rs.TotalRows = int64(len(rs.Rows))
	}

	log.Debug().
		Str("job_id", rs.JobID).
		Int64("bytes_processed", rs.BytesProcessed).
		Int64("total_rows", rs.TotalRows).
		Dur("elapsed", time.Since(start)).
		Msg("bigquery query complete")
	return rs, nil
}

func normalizeBigQuery(v bigquery.Value) any {
	switch t := v.(type) {
	case *big.Rat:
		if t == nil {
			return nil
		}
		f, _ := t.Float64()
		return f
	case []bigquery.Value:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeBigQuery(e)
		}
		return out
	case map[string]bigquery.Value:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeBigQuery(e)
		}
		return out
	default:
		return t
	}
}

func classifyBigQuery(ctx context.Context, op string, err error) *Error {
	if kind, ok := contextKind(ctx, err); ok {
		return newError(op, kind, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		kind := KindTransport
		switch gerr.Code {
		case http.StatusBadRequest:
			kind = KindInvalid
		case http.StatusUnauthorized:
			kind = KindAuth
		case http.StatusForbidden:
			kind = KindPermission
		case http.StatusNotFound:
			kind = KindNotFound
		}
		return &Error{Op: op, Kind: kind, Message: gerr.Message, Err: err}
	}

	var berr *bigquery.Error
	if errors.As(err, &berr) {
		kind := KindTransport
		switch berr.Reason {
		case "invalidQuery", "invalid":
			kind = KindInvalid
		case "accessDenied":
			kind = KindPermission
		case "notFound":
			kind = KindNotFound
		case "timeout":
			kind = KindTimeout
		case "authError":
			kind = KindAuth
		}
		return &Error{Op: op, Kind: kind, Message: berr.Message, Err: err}
	}

	return newError(op, messageKind(err.Error()), err)
}
