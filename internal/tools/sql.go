package tools

import (
	"context"
	"fmt"

	"github.com/cortexai/querygate/internal/models"
)

// ExecuteSQLTool submits a statement through admission, review and
// execution. observe, when set, sees every envelope the tool returns.
func ExecuteSQLTool(g Gate, observe func(sql string, env *models.Envelope)) Tool {
	return Tool{
		Name:        NameExecuteSQL,
		Description: "Execute a read-only SQL SELECT query against the warehouse. Returns at most 50 rows; truncated is true when more rows matched.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sql": map[string]any{
					"type":        "string",
					"description": "The SQL SELECT query to execute",
				},
			},
			"required": []string{"sql"},
		},
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			sql := stringArg(input, "sql")
			if sql == "" {
				return "", fmt.Errorf("sql is required")
			}
			env := g.Submit(ctx, sql, models.SubmitOptions{Source: "agent"})
			if observe != nil {
				observe(sql, env)
			}
			return toJSON(env)
		},
	}
}

// ReviewSQLTool asks the advisory reviewer about a statement without running it
func ReviewSQLTool(g Gate) Tool {
	return Tool{
		Name:        NameReviewSQL,
		Description: "Review a complex SQL query for safety, syntax, table references and performance before executing it. Does not run the query.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sql": map[string]any{
					"type":        "string",
					"description": "The SQL query to review",
				},
			},
			"required": []string{"sql"},
		},
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			sql := stringArg(input, "sql")
			if sql == "" {
				return "", fmt.Errorf("sql is required")
			}
			return toJSON(g.ReviewSQL(ctx, sql))
		},
	}
}

// All returns the full tool set for one turn.
func All(g Gate, observe func(sql string, env *models.Envelope)) []Tool {
	return []Tool{
		ListTablesTool(g),
		GetSchemaTool(g),
		ReviewSQLTool(g),
		ExecuteSQLTool(g, observe),
	}
}
