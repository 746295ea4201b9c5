package generator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// TableAnalyzer handles database schema analysis
type TableAnalyzer struct {
	db      *sql.DB
	dialect string
	schema  string
}

// NewTableAnalyzer creates a new instance of TableAnalyzer
func NewTableAnalyzer(db *sql.DB, dialect, schema string) *TableAnalyzer {
	return &TableAnalyzer{db: db, dialect: dialect, schema: schema}
}

// FindColumn finds the first table, in name order, with a column named like
// the token. Matching is case-insensitive.
func (ta *TableAnalyzer) FindColumn(ctx context.Context, token string) (Column, error) {
	if !identifier.MatchString(token) {
		return Column{}, fmt.Errorf("token %q cannot name a column; map it explicitly", token)
	}
	query, args, err := ta.columnQuery(token)
	if err != nil {
		return Column{}, err
	}

	var col Column
	err = ta.db.QueryRowContext(ctx, query, args...).Scan(&col.Table, &col.Name)
	if err == sql.ErrNoRows {
		return Column{}, fmt.Errorf("no table has a column named %q", token)
	}
	if err != nil {
		return Column{}, fmt.Errorf("failed to look up column %q: %w", token, err)
	}
	if !identifier.MatchString(col.Table) {
		return Column{}, fmt.Errorf("table %q cannot be sampled; map token %q explicitly", col.Table, token)
	}
	return col, nil
}

// columnQuery builds the information_schema lookup for the dialect
func (ta *TableAnalyzer) columnQuery(token string) (string, []any, error) {
	name := strings.ToLower(token)
	switch ta.dialect {
	case "postgres":
		schema := ta.schema
		if schema == "" {
			schema = "public"
		}
		return `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND LOWER(column_name) = $2
		ORDER BY table_name
		LIMIT 1`, []any{schema, name}, nil
	case "mysql":
		if ta.schema != "" {
			return `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = ? AND LOWER(column_name) = ?
		ORDER BY table_name
		LIMIT 1`, []any{ta.schema, name}, nil
		}
		return `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND LOWER(column_name) = ?
		ORDER BY table_name
		LIMIT 1`, []any{name}, nil
	case "sqlserver":
		schema := ta.schema
		if schema == "" {
			schema = "dbo"
		}
		return `
		SELECT TOP 1 table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = @p1 AND LOWER(column_name) = @p2
		ORDER BY table_name`, []any{schema, name}, nil
	default:
		return "", nil, fmt.Errorf("unsupported database type: %s", ta.dialect)
	}
}
