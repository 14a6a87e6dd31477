package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestClassifyBigQuery(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest, Message: "Syntax error"}, KindInvalid},
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized, Message: "Request had invalid authentication credentials"}, KindAuth},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, KindPermission},
		{"not found", fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound}), KindNotFound},
		{"server", &googleapi.Error{Code: http.StatusServiceUnavailable}, KindTransport},
		{"job invalid", &bigquery.Error{Reason: "invalidQuery", Message: "Unrecognized name: foo"}, KindInvalid},
		{"job denied", &bigquery.Error{Reason: "accessDenied"}, KindPermission},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"dial", errors.New("dial tcp: connection refused"), KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyBigQuery(ctx, "run_query", tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, "run_query", got.Op)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyPostgres(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		code string
		want Kind
	}{
		{"42601", KindInvalid},    // syntax_error
		{"42703", KindInvalid},    // undefined_column
		{"42P01", KindNotFound},   // undefined_table
		{"42501", KindPermission}, // insufficient_privilege
		{"25006", KindPermission}, // read_only_sql_transaction
		{"28P01", KindAuth},       // invalid_password
		{"57014", KindTimeout},    // query_canceled
		{"08006", KindTransport},  // connection_failure
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := classifyPostgres(ctx, "run_query", &pgconn.PgError{Code: tt.code, Message: "boom"})
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, "boom", got.Message)
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindAuth, KindOf(fmt.Errorf("x: %w", &Error{Kind: KindAuth})))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindTransport, KindOf(errors.New("eof")))
}

func TestErrorString(t *testing.T) {
	e := &Error{Op: "get_schema", Kind: KindNotFound, Message: `table "x" not found`}
	assert.Equal(t, `catalog get_schema: not_found: table "x" not found`, e.Error())
	assert.Equal(t, "catalog list_tables: timeout", (&Error{Op: "list_tables", Kind: KindTimeout}).Error())
}
