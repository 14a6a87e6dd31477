// Package catalog is the read-only accessor for warehouse metadata and the
// query path. Backends: BigQuery, PostgreSQL and SQLite.
package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Client is the surface the admission and execution layer consumes.
type Client interface {
	ListTables(ctx context.Context) ([]string, error)
	GetSchema(ctx context.Context, table string) (*Entry, error)
	// RunQuery returns at most maxRows rows. TotalRows reports the rows the
	// statement produced, up to maxCountedRows, so callers can detect
	// truncation.
	RunQuery(ctx context.Context, sql string, maxRows int) (*RowSet, error)
}

// Backend is a Client that owns a connection.
type Backend interface {
	Client
	Close() error
}

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Mode string `json:"mode"`
}

// Entry is a schema snapshot of one table.
type Entry struct {
	Table    string   `json:"table"`
	Ref      string   `json:"table_ref"`
	Columns  []Column `json:"columns"`
	RowCount int64    `json:"total_rows"`
}

// maxCountedRows bounds how far a backend reads past maxRows just to count.
var maxCountedRows int64 = 100_000

type RowSet struct {
	Columns        []string
	Rows           []map[string]any
	TotalRows      int64
	BytesProcessed int64
	JobID          string
}

// Format renders an entry for LLM context.
func (e *Entry) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s (%d rows)\n", e.Ref, e.RowCount)
	for _, c := range e.Columns {
		if c.Mode != "" && c.Mode != "NULLABLE" {
			fmt.Fprintf(&sb, "  %s %s %s\n", c.Name, c.Type, c.Mode)
		} else {
			fmt.Fprintf(&sb, "  %s %s\n", c.Name, c.Type)
		}
	}
	return sb.String()
}

// bareTable strips quoting and any project/dataset/schema prefix.
func bareTable(name string) string {
	name = strings.Trim(strings.TrimSpace(name), "`\"")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
