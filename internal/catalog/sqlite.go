package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
)

// Primary result codes, see https://www.sqlite.org/rescode.html.
const (
	sqliteError     = 1
	sqlitePerm      = 3
	sqliteBusy      = 5
	sqliteReadOnly  = 8
	sqliteInterrupt = 9
	sqliteAuth      = 23
)

// SQLite is a local warehouse for demos and tests. The database is opened
// with query_only so any write fails inside the engine.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return &SQLite{db: db}, nil
}

func readOnlyDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=query_only(1)"
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, classifySQLite(ctx, "list_tables", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classifySQLite(ctx, "list_tables", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite(ctx, "list_tables", err)
	}
	return names, nil
}

func (s *SQLite) GetSchema(ctx context.Context, table string) (*Entry, error) {
	id := bareTable(table)
	rows, err := s.db.QueryContext(ctx, "SELECT name, type, \"notnull\" FROM pragma_table_info(?)", id)
	if err != nil {
		return nil, classifySQLite(ctx, "get_schema", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var notNull int
		if err := rows.Scan(&c.Name, &c.Type, &notNull); err != nil {
			return nil, classifySQLite(ctx, "get_schema", err)
		}
		c.Type = strings.ToUpper(c.Type)
		c.Mode = "NULLABLE"
		if notNull != 0 {
			c.Mode = "REQUIRED"
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite(ctx, "get_schema", err)
	}
	if len(cols) == 0 {
		return nil, &Error{Op: "get_schema", Kind: KindNotFound, Message: fmt.Sprintf("table %q not found", id)}
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteSQLiteIdent(id)).Scan(&count); err != nil {
		return nil, classifySQLite(ctx, "get_schema", err)
	}

	return &Entry{Table: id, Ref: "main." + id, Columns: cols, RowCount: count}, nil
}

func (s *SQLite) RunQuery(ctx context.Context, query string, maxRows int) (*RowSet, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifySQLite(ctx, "run_query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, classifySQLite(ctx, "run_query", err)
	}
	rs := &RowSet{Columns: cols}
	for rows.Next() {
		rs.TotalRows++
		if len(rs.Rows) >= maxRows {
			if rs.TotalRows >= maxCountedRows {
				break
			}
			continue
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classifySQLite(ctx, "run_query", err)
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				m[c] = string(b)
			} else {
				m[c] = vals[i]
			}
		}
		rs.Rows = append(rs.Rows, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite(ctx, "run_query", err)
	}
	return rs, nil
}

var sqliteIdentReplacer = strings.NewReplacer(`"`, `""`)

func quoteSQLiteIdent(name string) string {
	return `"` + sqliteIdentReplacer.Replace(name) + `"`
}

func classifySQLite(ctx context.Context, op string, err error) *Error {
	if kind, ok := contextKind(ctx, err); ok {
		return newError(op, kind, err)
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		kind := KindTransport
		switch serr.Code() & 0xff {
		case sqliteError:
			kind = messageKind(serr.Error())
			if kind == KindTransport {
				kind = KindInvalid
			}
		case sqlitePerm, sqliteReadOnly, sqliteAuth:
			kind = KindPermission
		case sqliteInterrupt, sqliteBusy:
			kind = KindTimeout
		}
		return &Error{Op: op, Kind: kind, Message: serr.Error(), Err: err}
	}
	return newError(op, messageKind(err.Error()), err)
}
