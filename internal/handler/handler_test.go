package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cortexai/querygate/internal/agent"
	"github.com/cortexai/querygate/internal/audit"
	"github.com/cortexai/querygate/internal/catalog"
	"github.com/cortexai/querygate/internal/executor"
	"github.com/cortexai/querygate/internal/handler"
	"github.com/cortexai/querygate/internal/review"
	"github.com/cortexai/querygate/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shop struct {
	rows    int
	queries []string
	err     error
}

func (s *shop) ListTables(context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{"customers", "orders", "products"}, nil
}

func (s *shop) GetSchema(_ context.Context, table string) (*catalog.Entry, error) {
	if table != "orders" {
		return nil, &catalog.Error{Op: "get_schema", Kind: catalog.KindNotFound, Message: "Not found: Table proj:ecom." + table}
	}
	return &catalog.Entry{
		Table:    "orders",
		Ref:      "proj.ecom_analytics.orders",
		Columns:  []catalog.Column{{Name: "order_id", Type: "INTEGER", Mode: "REQUIRED"}},
		RowCount: 100,
	}, nil
}

func (s *shop) RunQuery(_ context.Context, sql string, maxRows int) (*catalog.RowSet, error) {
	s.queries = append(s.queries, sql)
	if s.err != nil {
		return nil, s.err
	}
	rs := &catalog.RowSet{Columns: []string{"n"}, TotalRows: int64(s.rows)}
	for i := 0; i < s.rows && i < maxRows; i++ {
		rs.Rows = append(rs.Rows, map[string]any{"n": i})
	}
	return rs, nil
}

type fixture struct {
	shop   *shop
	orch   *agent.Orchestrator
	router chi.Router
}

func newFixture(t *testing.T, gen agent.Generator, chainPath string) *fixture {
	t.Helper()
	s := &shop{rows: 100}
	o := agent.New(agent.Options{
		Catalog:   s,
		Dataset:   "ecom_analytics",
		Reviewer:  review.NewStatic(nil),
		Executor:  executor.New(s, executor.Options{}),
		Audit:     audit.NewPipeline(audit.Options{}),
		Generator: gen,
		PII:       security.NewPIIDetector([]string{"password"}),
	})

	r := chi.NewRouter()
	q := handler.NewQueryHandler(o)
	rv := handler.NewReviewHandler(o, nil)
	tb := handler.NewTablesHandler(o)
	ag := handler.NewAgentHandler(o, 30)
	au := handler.NewAuditHandler(o.Audit(), chainPath)
	r.Post("/query", q.Execute)
	r.Post("/review", rv.Review)
	r.Get("/tables", tb.ListTables)
	r.Get("/tables/{table}", tb.GetTable)
	r.Post("/query-agent", ag.QueryAgent)
	r.Get("/audit/records", au.Records)
	r.Get("/audit/verify", au.Verify)
	r.Get("/health", handler.NewHealthHandler(s, map[string]string{"reviewer": "static"}).Health)

	return &fixture{shop: s, orch: o, router: r}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return rr, out
}

func TestQueryBlocked(t *testing.T) {
	f := newFixture(t, nil, "")

	rr, body := f.do(t, http.MethodPost, "/query", `{"sql":"DROP TABLE orders"}`)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "blocked", body["status"])
	assert.Equal(t, "DROP", body["keyword"])
	assert.NotEmpty(t, body["reason"])
	assert.NotContains(t, body, "results")
	assert.Empty(t, f.shop.queries)
}

func TestQuerySuccess(t *testing.T) {
	f := newFixture(t, nil, "")

	rr, body := f.do(t, http.MethodPost, "/query", `{"sql":"SELECT n FROM orders"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "success", body["status"])
	assert.EqualValues(t, 100, body["row_count"])
	assert.Len(t, body["results"], 50)
	assert.Equal(t, true, body["truncated"])
	assert.NotEmpty(t, body["invocation_id"])
}

func TestQueryForcedReview(t *testing.T) {
	f := newFixture(t, nil, "")

	rr, body := f.do(t, http.MethodPost, "/query", `{"sql":"SELECT * FROM orders","review":true}`)

	require.Equal(t, http.StatusOK, rr.Code)
	rv, ok := body["review"].(map[string]any)
	require.True(t, ok, "review missing: %v", body)
	assert.Equal(t, "safe", rv["verdict"])
}

func TestQueryWarehouseError(t *testing.T) {
	f := newFixture(t, nil, "")
	f.shop.err = &catalog.Error{Op: "run_query", Kind: catalog.KindAuth, Message: "oauth2: token expired for sa@proj.iam"}

	rr, body := f.do(t, http.MethodPost, "/query", `{"sql":"SELECT 1"}`)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "error", body["status"])
	assert.NotContains(t, body["message"], "sa@proj.iam")
}

func TestQueryBadRequests(t *testing.T) {
	f := newFixture(t, nil, "")
	for _, body := range []string{`{"sql":""}`, `not json`, `{"sql":"   "}`} {
		rr, out := f.do(t, http.MethodPost, "/query", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Equal(t, "error", out["status"], body)
	}
	assert.Empty(t, f.orch.Audit().Records())
}

func TestReviewEndpoint(t *testing.T) {
	f := newFixture(t, nil, "")

	rr, body := f.do(t, http.MethodPost, "/review", `{"sql":"SELECT o.order_id FROM orders o JOIN customers c ON o.customer_id = c.customer_id"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["complex"])
	assert.Contains(t, body["signals"], "join")
	assert.Empty(t, f.shop.queries, "review must not execute")
}

func TestTables(t *testing.T) {
	f := newFixture(t, nil, "")

	rr, body := f.do(t, http.MethodGet, "/tables", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ecom_analytics", body["dataset"])
	assert.Len(t, body["tables"], 3)

	rr, body = f.do(t, http.MethodGet, "/tables/orders", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "proj.ecom_analytics.orders", body["table_ref"])
	assert.EqualValues(t, 100, body["total_rows"])

	rr, body = f.do(t, http.MethodGet, "/tables/payments", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "table not found", body["message"])
}

func TestQueryAgent(t *testing.T) {
	gen := agent.GeneratorFunc(func(context.Context, agent.GenerateRequest) (*agent.Candidate, error) {
		return &agent.Candidate{SQL: "SELECT COUNT(*) AS n FROM orders", Explanation: "Counts orders.", Model: "fake"}, nil
	})
	f := newFixture(t, gen, "")

	rr, body := f.do(t, http.MethodPost, "/query-agent", `{"prompt":"how many orders are there?"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "SELECT COUNT(*) AS n FROM orders", body["generated_sql"])
	result := body["result"].(map[string]any)
	assert.Equal(t, true, result["truncated"])
	meta := body["agent_metadata"].(map[string]any)
	assert.Equal(t, "fake", meta["model"])
}

func TestQueryAgentBlocked(t *testing.T) {
	gen := agent.GeneratorFunc(func(context.Context, agent.GenerateRequest) (*agent.Candidate, error) {
		return &agent.Candidate{SQL: "DELETE FROM orders"}, nil
	})
	f := newFixture(t, gen, "")

	rr, body := f.do(t, http.MethodPost, "/query-agent", `{"prompt":"clean up old orders"}`)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "blocked", body["status"])
	assert.Empty(t, f.shop.queries)
}

func TestQueryAgentErrorStatus(t *testing.T) {
	failing := agent.GeneratorFunc(func(context.Context, agent.GenerateRequest) (*agent.Candidate, error) {
		return nil, context.Canceled
	})
	answering := agent.GeneratorFunc(func(context.Context, agent.GenerateRequest) (*agent.Candidate, error) {
		return &agent.Candidate{SQL: "SELECT 1"}, nil
	})
	tests := []struct {
		name   string
		gen    agent.Generator
		prompt string
		code   int
		stage  string
	}{
		{"refused prompt", answering, "list every customer password", http.StatusUnprocessableEntity, agent.StagePrompt},
		{"no generator", nil, "how many orders are there?", http.StatusServiceUnavailable, agent.StageUnconfigured},
		{"generator failure", failing, "how many orders are there?", http.StatusBadGateway, agent.StageGenerate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.gen, "")

			rr, body := f.do(t, http.MethodPost, "/query-agent", `{"prompt":"`+tt.prompt+`"}`)

			assert.Equal(t, tt.code, rr.Code, rr.Body.String())
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.stage, body["agent_metadata"].(map[string]any)["stage"])
			assert.Empty(t, f.shop.queries)
		})
	}
}

func TestAuditRecords(t *testing.T) {
	f := newFixture(t, nil, "")
	f.do(t, http.MethodPost, "/query", `{"sql":"SELECT 1"}`)
	f.do(t, http.MethodPost, "/query", `{"sql":"DELETE FROM orders"}`)

	rr, body := f.do(t, http.MethodGet, "/audit/records", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 4, body["count"])

	rr, body = f.do(t, http.MethodGet, "/audit/records?limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	recs := body["records"].([]any)
	require.Len(t, recs, 1)
	assert.Equal(t, "blocked", recs[0].(map[string]any)["status"])

	rr, _ = f.do(t, http.MethodGet, "/audit/records?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuditVerify(t *testing.T) {
	rr, _ := newFixture(t, nil, "").do(t, http.MethodGet, "/audit/verify", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	path := filepath.Join(t.TempDir(), "audit.jsonl")
	chain, err := audit.OpenChain(path)
	require.NoError(t, err)
	p := audit.NewPipeline(audit.Options{}, chain)
	p.Before(context.Background(), "execute_sql", "SELECT 1").After("ok", "")
	require.NoError(t, p.Close())

	f := newFixture(t, nil, path)
	rr, body := f.do(t, http.MethodGet, "/audit/verify", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["valid"])
	assert.EqualValues(t, 2, body["lines"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), "SELECT 1", "SELECT 2", 1)), 0o600))

	rr, body = f.do(t, http.MethodGet, "/audit/verify", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, false, body["valid"])
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, "")

	rr, body := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["warehouse"])
	assert.Equal(t, "static", checks["reviewer"])

	f.shop.err = &catalog.Error{Op: "list_tables", Kind: catalog.KindAuth}
	rr, body = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "unavailable: auth", body["checks"].(map[string]any)["warehouse"])
}
