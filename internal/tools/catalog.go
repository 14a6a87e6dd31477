package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/cortexai/querygate/internal/catalog"
	"github.com/cortexai/querygate/internal/models"
)

// ListTablesTool lists the tables in the configured dataset
func ListTablesTool(g Gate) Tool {
	return Tool{
		Name:        NameListTables,
		Description: "List all tables available in the analytics dataset.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Execute: func(ctx context.Context, _ map[string]any) (string, error) {
			tables, err := g.ListTables(ctx)
			if err != nil {
				return "", catalogFailure("list tables", err)
			}
			return toJSON(models.TablesResponse{Status: "success", Dataset: g.Dataset(), Tables: tables})
		},
	}
}

// GetSchemaTool returns columns, modes and row count for one table
func GetSchemaTool(g Gate) Tool {
	return Tool{
		Name:        NameGetSchema,
		Description: "Get the schema (column names, types and modes) and total row count for a table. Use this before writing SQL to understand the table structure.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"table_name": map[string]any{
					"type":        "string",
					"description": "The table name, e.g. orders",
				},
			},
			"required": []string{"table_name"},
		},
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			table := stringArg(input, "table_name")
			if table == "" {
				return "", fmt.Errorf("table_name is required")
			}
			entry, err := g.GetSchema(ctx, table)
			if err != nil {
				return "", catalogFailure("get schema", err)
			}
			return toJSON(models.SchemaResponse{Status: "success", Entry: entry})
		},
	}
}

// catalogFailure hides provider text behind the error kind.
func catalogFailure(op string, err error) error {
	var ce *catalog.Error
	if errors.As(err, &ce) && ce.Kind == catalog.KindNotFound {
		return fmt.Errorf("%s: table not found", op)
	}
	return fmt.Errorf("%s failed: %s", op, catalog.KindOf(err))
}
