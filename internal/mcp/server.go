// Package mcp exposes the admission and audit layer as Model Context
// Protocol tools, so external agents get the same guarantees as the built-in
// generator.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cortexai/querygate/internal/agent"
	"github.com/cortexai/querygate/internal/audit"
	"github.com/cortexai/querygate/internal/review"
	"github.com/cortexai/querygate/internal/tools"
	"github.com/google/uuid"
)

const (
	ServerName = "querygate"
)

// Gate is the orchestrator surface the tools call.
type Gate interface {
	tools.Gate
	HandleTurn(ctx context.Context, prompt string) *agent.TurnResult
}

type Server struct {
	mcpServer *mcpsdk.Server
	gate      Gate
	policy    *review.ComplexityPolicy
}

func New(gate Gate, policy *review.ComplexityPolicy, version string) *Server {
	if policy == nil {
		policy = review.NewComplexityPolicy(false)
	}
	s := &Server{gate: gate, policy: policy}
	s.mcpServer = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    ServerName,
		Version: version,
	}, nil)
	s.registerTools()
	return s
}

// Run serves on stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        tools.NameListTables,
		Description: "List all tables available in the analytics dataset.",
	}, s.handleListTables)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        tools.NameGetSchema,
		Description: "Get column names, types, modes and the total row count of a table.",
	}, s.handleGetSchema)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        tools.NameReviewSQL,
		Description: "Ask the advisory reviewer about a SQL statement without running it. The verdict never blocks execution.",
	}, s.handleReviewSQL)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        tools.NameExecuteSQL,
		Description: "Run a read-only SQL statement. Statements containing DELETE, DROP, TRUNCATE, UPDATE, INSERT, ALTER, CREATE, MERGE, GRANT or REVOKE are refused. Returns at most 50 rows with a truncated flag.",
	}, s.handleExecuteSQL)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        agent.ToolAsk,
		Description: "Answer a business question in plain language: the built-in analyst writes the SQL and runs it through the same checks.",
	}, s.handleAsk)
}

// turn tags each MCP call as its own audit turn.
func turn(ctx context.Context) context.Context {
	if audit.TurnFrom(ctx) != "" {
		return ctx
	}
	return audit.WithTurn(ctx, "mcp-"+uuid.NewString())
}
