package executor_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cortexai/querygate/internal/catalog"
	"github.com/cortexai/querygate/internal/executor"
	"github.com/cortexai/querygate/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type fakeCatalog struct {
	rows    int
	bytes   int64
	err     error
	block   bool
	panics  bool
	gotMax  int
	gotSQL  string
	columns []string
	row     func(i int) map[string]any
}

func (f *fakeCatalog) ListTables(context.Context) ([]string, error) { return nil, nil }

func (f *fakeCatalog) GetSchema(context.Context, string) (*catalog.Entry, error) { return nil, nil }

func (f *fakeCatalog) RunQuery(ctx context.Context, query string, maxRows int) (*catalog.RowSet, error) {
	f.gotSQL, f.gotMax = query, maxRows
	if f.panics {
		panic("driver bug")
	}
	if f.block {
		<-ctx.Done()
		return nil, &catalog.Error{Op: "query", Kind: catalog.KindTimeout, Err: ctx.Err()}
	}
	if f.err != nil {
		return nil, f.err
	}
	rs := &catalog.RowSet{Columns: f.columns, TotalRows: int64(f.rows), BytesProcessed: f.bytes, JobID: "job-1"}
	for i := 0; i < f.rows && i < maxRows; i++ {
		if f.row != nil {
			rs.Rows = append(rs.Rows, f.row(i))
		} else {
			rs.Rows = append(rs.Rows, map[string]any{"n": i})
		}
	}
	return rs, nil
}

func TestCeilingAndTruncation(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		wantRows  int
		truncated bool
	}{
		{"empty", 0, 0, false},
		{"under ceiling", 7, 7, false},
		{"exactly ceiling", 50, 50, false},
		{"one over", 51, 50, true},
		{"far over", 1000, 50, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCatalog{rows: tt.rows, columns: []string{"n"}}
			res := executor.New(fake, executor.Options{}).Execute(context.Background(), security.NewStatement("SELECT n FROM t"))

			require.True(t, res.OK(), res.Message)
			assert.Len(t, res.Rows, tt.wantRows)
			assert.NotNil(t, res.Rows)
			assert.Equal(t, tt.rows, res.RowCount)
			assert.Equal(t, tt.truncated, res.Truncated)
			assert.Equal(t, 51, fake.gotMax, "asks for one row past the ceiling")
			assert.Equal(t, "SELECT n FROM t", fake.gotSQL)
		})
	}
}

func TestCustomCeiling(t *testing.T) {
	fake := &fakeCatalog{rows: 12}
	res := executor.New(fake, executor.Options{Ceiling: 5}).Execute(context.Background(), security.NewStatement("SELECT 1"))
	assert.Len(t, res.Rows, 5)
	assert.True(t, res.Truncated)
	assert.Equal(t, 6, fake.gotMax)
}

func TestErrorsAreTerse(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    string
		kind    catalog.Kind
		leakage string
	}{
		{
			name:    "transport",
			err:     &catalog.Error{Op: "query", Kind: catalog.KindTransport, Message: "dial tcp 10.1.2.3:443: connection refused (token=ya29.secret)"},
			want:    "warehouse unavailable, please try again later",
			kind:    catalog.KindTransport,
			leakage: "ya29",
		},
		{
			name:    "auth",
			err:     &catalog.Error{Op: "query", Kind: catalog.KindAuth, Message: "oauth2: token expired for sa@proj.iam.gserviceaccount.com"},
			want:    "warehouse authentication failed; credentials may have expired",
			kind:    catalog.KindAuth,
			leakage: "gserviceaccount",
		},
		{
			name:    "permission",
			err:     &catalog.Error{Op: "query", Kind: catalog.KindPermission, Message: "Access Denied: Project p"},
			want:    "permission denied by the warehouse",
			kind:    catalog.KindPermission,
			leakage: "Project p",
		},
		{
			name: "invalid keeps first line",
			err: &catalog.Error{Op: "query", Kind: catalog.KindInvalid,
				Message: "Syntax error: Unexpected keyword FROM at [1:8]\n    at com.google.Stack(Internal.java:12)"},
			want:    "invalid query: Syntax error: Unexpected keyword FROM at [1:8]",
			kind:    catalog.KindInvalid,
			leakage: "java",
		},
		{
			name:    "plain error",
			err:     errors.New("EOF"),
			want:    "warehouse unavailable, please try again later",
			kind:    catalog.KindTransport,
			leakage: "EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := executor.New(&fakeCatalog{err: tt.err}, executor.Options{}).
				Execute(context.Background(), security.NewStatement("SELECT 1"))

			assert.Equal(t, executor.StatusError, res.Status)
			assert.Equal(t, tt.want, res.Message)
			assert.Equal(t, tt.kind, res.ErrorKind)
			assert.NotContains(t, res.Message, tt.leakage)
			assert.Empty(t, res.Rows)
		})
	}
}

func TestInvalidMessageIsBounded(t *testing.T) {
	long := fmt.Sprintf("Syntax error: %0300d", 0)
	res := executor.New(&fakeCatalog{err: &catalog.Error{Kind: catalog.KindInvalid, Message: long}}, executor.Options{}).
		Execute(context.Background(), security.NewStatement("SELECT"))
	assert.LessOrEqual(t, len(res.Message), len("invalid query: ")+200+len("..."))
}

func TestTimeout(t *testing.T) {
	ex := executor.New(&fakeCatalog{block: true}, executor.Options{Timeout: 20 * time.Millisecond})
	res := ex.Execute(context.Background(), security.NewStatement("SELECT 1"))

	assert.Equal(t, executor.StatusError, res.Status)
	assert.Equal(t, "query timed out after 20ms", res.Message)
	assert.Equal(t, catalog.KindTimeout, res.ErrorKind)
	assert.GreaterOrEqual(t, res.DurationMs, int64(15))
}

func TestCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := executor.New(&fakeCatalog{block: true}, executor.Options{}).Execute(ctx, security.NewStatement("SELECT 1"))
	assert.Equal(t, "query cancelled", res.Message)
}

func TestPanicBecomesError(t *testing.T) {
	res := executor.New(&fakeCatalog{panics: true}, executor.Options{}).Execute(context.Background(), security.NewStatement("SELECT 1"))
	require.NotNil(t, res)
	assert.Equal(t, executor.StatusError, res.Status)
	assert.NotContains(t, res.Message, "driver bug")
}

func TestCostCeiling(t *testing.T) {
	fake := &fakeCatalog{rows: 3, bytes: 20_000_000_000}
	ex := executor.New(fake, executor.Options{Cost: security.NewCostTracker(10_000_000_000)})
	res := ex.Execute(context.Background(), security.NewStatement("SELECT * FROM big"))

	assert.Equal(t, executor.StatusError, res.Status)
	assert.Contains(t, res.Message, "cost limit exceeded")
	assert.Empty(t, res.Rows)

	fake.bytes = 1_000
	res = ex.Execute(context.Background(), security.NewStatement("SELECT * FROM small"))
	assert.True(t, res.OK())
	assert.Equal(t, int64(1_000), res.BytesProcessed)
}

func TestMasking(t *testing.T) {
	fake := &fakeCatalog{rows: 2, columns: []string{"first_name", "email"}, row: func(i int) map[string]any {
		return map[string]any{"first_name": "Ana", "email": fmt.Sprintf("ana%d@example.com", i)}
	}}
	ex := executor.New(fake, executor.Options{Masker: security.NewDataMasker(nil)})
	res := ex.Execute(context.Background(), security.NewStatement("SELECT first_name, email FROM customers"))

	require.True(t, res.OK())
	assert.Equal(t, "an***@***.com", res.Rows[0]["email"])
	assert.Equal(t, "Ana", res.Rows[1]["first_name"])
}

func TestResultAuditSummary(t *testing.T) {
	ok := &executor.Result{Status: executor.StatusSuccess, RowCount: 60, Truncated: true}
	assert.Equal(t, "success", ok.AuditStatus())
	assert.Equal(t, "success: 60 rows (truncated=true)", ok.String())

	bad := &executor.Result{Status: executor.StatusError, Message: "permission denied by the warehouse"}
	assert.Equal(t, "error: permission denied by the warehouse", bad.String())
}

func openWarehouse(t *testing.T, rows int) *catalog.SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wh.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE products (product_id INTEGER PRIMARY KEY, product_name TEXT, unit_price REAL)`)
	require.NoError(t, err)
	for i := 1; i <= rows; i++ {
		_, err = db.Exec(`INSERT INTO products VALUES (?, ?, ?)`, i, fmt.Sprintf("Product %d", i), float64(i)*9.99)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	wh, err := catalog.NewSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { wh.Close() })
	return wh
}

func TestSQLiteWarehouse(t *testing.T) {
	ex := executor.New(openWarehouse(t, 120), executor.Options{})

	res := ex.Execute(context.Background(), security.NewStatement("SELECT product_id, product_name FROM products ORDER BY product_id"))
	require.True(t, res.OK(), res.Message)
	assert.Len(t, res.Rows, 50)
	assert.Equal(t, 120, res.RowCount)
	assert.True(t, res.Truncated)
	assert.Equal(t, []string{"product_id", "product_name"}, res.Columns)
	assert.Equal(t, "Product 1", res.Rows[0]["product_name"])

	res = ex.Execute(context.Background(), security.NewStatement("SELECT COUNT(*) AS n FROM products"))
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, 1, res.RowCount)
	assert.False(t, res.Truncated)
}

func TestSQLiteWarehouseErrors(t *testing.T) {
	ex := executor.New(openWarehouse(t, 3), executor.Options{})

	// the executor trusts its caller; the read-only connection is the backstop
	res := ex.Execute(context.Background(), security.NewStatement("DELETE FROM products"))
	assert.Equal(t, executor.StatusError, res.Status)
	assert.Equal(t, catalog.KindPermission, res.ErrorKind)

	res = ex.Execute(context.Background(), security.NewStatement("SELEC oops"))
	assert.Equal(t, executor.StatusError, res.Status)
	assert.Contains(t, res.Message, "invalid query")
}
