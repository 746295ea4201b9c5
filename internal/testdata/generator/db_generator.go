package generator

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // for sqlserver
	_ "github.com/go-sql-driver/mysql"   // for mysql
	_ "github.com/lib/pq"                // for postgres

	"api-contract-fuzzer/internal/types"

	"go.uber.org/zap"
)

// DBConfig holds database connection configuration
type DBConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Schema restricts column discovery. Defaults to "public" on postgres,
	// "dbo" on sqlserver and the connected database on mysql.
	Schema string `yaml:"schema"`
	// Columns maps token names to "table.column"
	Columns map[string]string `yaml:"columns"`
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DSN builds the driver connection string for the configured database
func (c DBConfig) DSN() (string, error) {
	switch c.Type {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			c.User, c.Password, c.Host, c.Port, c.Database), nil
	case "sqlserver":
		query := url.Values{}
		query.Set("database", c.Database)
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			RawQuery: query.Encode(),
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", c.Type)
	}
}

// Open connects to the configured database and checks the connection
func Open(ctx context.Context, config DBConfig) (*sql.DB, error) {
	dsn, err := config.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(config.Type, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Column names a table column holding values for a token
type Column struct {
	Table string
	Name  string
}

// ParseColumn parses "table.column", validating both identifiers
func ParseColumn(s string) (Column, error) {
	table, name, ok := strings.Cut(s, ".")
	if !ok {
		return Column{}, fmt.Errorf("column %q must have the form table.column", s)
	}
	if !identifier.MatchString(table) || !identifier.MatchString(name) {
		return Column{}, fmt.Errorf("column %q contains an invalid identifier", s)
	}
	return Column{Table: table, Name: name}, nil
}

// DBSource fills token pools with distinct values read from a live database
type DBSource struct {
	db       *sql.DB
	dialect  string
	columns  map[string]string
	analyzer *TableAnalyzer
	logger   *zap.Logger
}

// NewDBSource creates a pool source over db. Tokens without an explicit
// column mapping are looked up by column name.
func NewDBSource(db *sql.DB, config DBConfig, logger *zap.Logger) *DBSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBSource{
		db:       db,
		dialect:  config.Type,
		columns:  config.Columns,
		analyzer: NewTableAnalyzer(db, config.Type, config.Schema),
		logger:   logger,
	}
}

// Sample reads up to n distinct non-null values of the column behind token
func (s *DBSource) Sample(ctx context.Context, token types.Token, n int) ([]any, error) {
	col, err := s.column(ctx, token.Name)
	if err != nil {
		return nil, err
	}
	query, err := SampleQuery(s.dialect, col, n)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("sampling column", zap.String("token", token.Name), zap.String("query", query))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s.%s: %w", col.Table, col.Name, err)
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, normalizeValue(v))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("column %s.%s holds no values", col.Table, col.Name)
	}
	return values, nil
}

func (s *DBSource) column(ctx context.Context, token string) (Column, error) {
	if mapped, ok := s.columns[token]; ok {
		return ParseColumn(mapped)
	}
	return s.analyzer.FindColumn(ctx, token)
}

// SampleQuery builds the query that reads n distinct values of col
func SampleQuery(dialect string, col Column, n int) (string, error) {
	if !identifier.MatchString(col.Table) || !identifier.MatchString(col.Name) {
		return "", fmt.Errorf("invalid identifier in %s.%s", col.Table, col.Name)
	}
	if n <= 0 {
		return "", fmt.Errorf("sample size must be positive, got %d", n)
	}
	switch dialect {
	case "postgres":
		return fmt.Sprintf(`SELECT DISTINCT "%s" FROM "%s" WHERE "%s" IS NOT NULL LIMIT %d`, col.Name, col.Table, col.Name, n), nil
	case "mysql":
		return fmt.Sprintf("SELECT DISTINCT `%s` FROM `%s` WHERE `%s` IS NOT NULL LIMIT %d", col.Name, col.Table, col.Name, n), nil
	case "sqlserver":
		return fmt.Sprintf("SELECT DISTINCT TOP %d [%s] FROM [%s] WHERE [%s] IS NOT NULL", n, col.Name, col.Table, col.Name), nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", dialect)
	}
}

// normalizeValue converts driver values into JSON friendly ones
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return t
	}
}
