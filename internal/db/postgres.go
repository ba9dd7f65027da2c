package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const closeTimeout = 5 * time.Second

type PostgresAdapter struct {
	conn *pgx.Conn
}

func openPostgres(ctx context.Context, dsn string) (*PostgresAdapter, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresAdapter{conn: conn}, nil
}

func (p *PostgresAdapter) Provider() string { return ProviderPostgres }

// Close uses its own deadline so the connection is released even when the
// operation context has already expired.
func (p *PostgresAdapter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return p.conn.Close(ctx)
}

// ExecScript sends the whole script as one simple-protocol batch. Postgres
// runs it as an implicit transaction.
func (p *PostgresAdapter) ExecScript(ctx context.Context, script string) error {
	_, err := p.conn.Exec(ctx, script)
	return err
}

func (p *PostgresAdapter) ListTables(ctx context.Context, schema, prefix string) ([]string, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := p.conn.Query(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_name LIKE $2 ESCAPE '\'
ORDER BY table_name`, schema, likePattern(prefix, '\\'))
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return FilterTables(names, prefix), nil
}

func (p *PostgresAdapter) FetchSchema(ctx context.Context, schema, prefix string) (Schema, error) {
	if schema == "" {
		schema = "public"
	}
	result := Schema{Name: schema, Tables: map[string]Table{}}
	pattern := likePattern(prefix, '\\')

	tablesRows, err := p.conn.Query(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE' AND table_name LIKE $2 ESCAPE '\'`, schema, pattern)
	if err != nil {
		return result, err
	}
	names, err := pgx.CollectRows(tablesRows, pgx.RowTo[string])
	if err != nil {
		return result, err
	}
	for _, name := range FilterTables(names, prefix) {
		result.Tables[name] = Table{Name: name, Columns: []Column{}, PrimaryKey: []string{}}
	}

	colsRows, err := p.conn.Query(ctx, `
SELECT table_name, column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = $1 AND table_name LIKE $2 ESCAPE '\'
ORDER BY table_name, ordinal_position`, schema, pattern)
	if err != nil {
		return result, err
	}
	defer colsRows.Close()
	for colsRows.Next() {
		var tbl, nullable string
		var col Column
		if err := colsRows.Scan(&tbl, &col.Name, &col.DataType, &nullable, &col.DefaultValue); err != nil {
			return result, err
		}
		t, ok := result.Tables[tbl]
		if !ok {
			continue
		}
		col.IsNullable = strings.EqualFold(nullable, "YES")
		t.Columns = append(t.Columns, col)
		result.Tables[tbl] = t
	}
	if err := colsRows.Err(); err != nil {
		return result, err
	}

	pkRows, err := p.conn.Query(ctx, `
SELECT tc.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
 AND tc.table_name = kcu.table_name
WHERE tc.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.ordinal_position`, schema)
	if err != nil {
		return result, err
	}
	defer pkRows.Close()
	for pkRows.Next() {
		var tbl, col string
		if err := pkRows.Scan(&tbl, &col); err != nil {
			return result, err
		}
		t, ok := result.Tables[tbl]
		if !ok {
			continue
		}
		t.PrimaryKey = append(t.PrimaryKey, col)
		result.Tables[tbl] = t
	}
	if err := pkRows.Err(); err != nil {
		return result, err
	}

	for name, t := range result.Tables {
		stmt := fmt.Sprintf(`SELECT COUNT(*) FROM %s.%s`, quoteIdent(schema), quoteIdent(name))
		if err := p.conn.QueryRow(ctx, stmt).Scan(&t.RowCount); err != nil {
			return result, fmt.Errorf("count rows in %s: %w", name, err)
		}
		result.Tables[name] = t
	}
	return result, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
