package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-stat/internal/logger"
)

// DBHandler exposes the indicator warehouse.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a new database handler.
func NewDBHandler(db *sql.DB) *DBHandler {
	return &DBHandler{db: db}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("warehouse"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("warehouse"))
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		logger.L().Error("warehouse_tables_failed", "err", err)
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}

	if tables == nil {
		tables = []string{}
	}

	return &TablesOutput{
		Body: struct {
			Tables []string `json:"tables" doc:"List of table names"`
		}{
			Tables: tables,
		},
	}, nil
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" doc:"Read-only SQL (SELECT, WITH, FROM, SHOW, DESCRIBE, SUMMARIZE)" example:"SELECT region, key, value FROM observations LIMIT 10"`
	}
}

// QueryBody holds query results.
type QueryBody struct {
	Columns []string         `json:"columns" doc:"Column names"`
	Rows    []map[string]any `json:"rows" doc:"Query results"`
	Count   int              `json:"count" doc:"Number of rows returned"`
}

// QueryOutput is the response for SQL queries.
type QueryOutput struct {
	Body QueryBody
}

// readVerbs are the statements a query may start with.
var readVerbs = map[string]bool{
	"SELECT": true, "WITH": true, "FROM": true,
	"SHOW": true, "DESCRIBE": true, "SUMMARIZE": true,
}

// deniedWords may not appear anywhere outside string literals. query and
// query_table run SQL given as a string.
var deniedWords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "COPY": true,
	"CREATE": true, "DROP": true, "ALTER": true, "TRUNCATE": true,
	"ATTACH": true, "DETACH": true, "INSTALL": true, "LOAD": true,
	"EXPORT": true, "IMPORT": true, "PRAGMA": true, "SET": true, "RESET": true,
	"CALL": true, "CHECKPOINT": true, "VACUUM": true,
	"QUERY": true, "QUERY_TABLE": true,
}

// checkReadOnly accepts a single read statement. The connection itself is
// sandboxed against file access; this keeps the warehouse tables unchanged.
func checkReadOnly(query string) error {
	q := strings.TrimRight(strings.TrimSpace(query), "; \t\n")
	var words []string
	var word strings.Builder
	inString := false
	flush := func() {
		if word.Len() > 0 {
			words = append(words, strings.ToUpper(word.String()))
			word.Reset()
		}
	}
	for _, r := range q {
		switch {
		case r == '\'':
			flush()
			inString = !inString
		case inString:
		case r == ';':
			return errors.New("only one statement is allowed")
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	if len(words) == 0 || !readVerbs[words[0]] {
		return errors.New("only read-only queries are allowed")
	}
	for _, w := range words {
		if deniedWords[w] {
			return fmt.Errorf("%s is not allowed in a query", w)
		}
	}
	return nil
}

// Query runs a read-only SQL query against DuckDB.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if err := checkReadOnly(input.Body.Query); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	rows, err := h.db.QueryContext(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			continue
		}
		for i, v := range values {
			// BLOB columns scan as []byte; render them as text in JSON
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		row := make(map[string]any)
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	return &QueryOutput{Body: QueryBody{Columns: columns, Rows: results, Count: len(results)}}, nil
}
