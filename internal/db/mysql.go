package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type MySQLAdapter struct {
	db *sql.DB
}

func openMySQL(ctx context.Context, dsn string) (*MySQLAdapter, error) {
	// Validate DSN early to provide actionable errors.
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MySQLAdapter{db: db}, nil
}

func (m *MySQLAdapter) Provider() string { return ProviderMySQL }

func (m *MySQLAdapter) Close() error { return m.db.Close() }

// ExecScript runs statements one by one; the driver rejects multi-statement
// batches by default. Execution stops at the first failing statement.
func (m *MySQLAdapter) ExecScript(ctx context.Context, script string) error {
	for _, stmt := range splitStatements(script) {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (m *MySQLAdapter) ListTables(ctx context.Context, schema, prefix string) ([]string, error) {
	schemaName, err := m.schemaName(ctx, schema)
	if err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = ? AND table_name LIKE ? ESCAPE '!'
ORDER BY table_name`, schemaName, likePattern(prefix, '!'))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return FilterTables(names, prefix), nil
}

func (m *MySQLAdapter) FetchSchema(ctx context.Context, schema, prefix string) (Schema, error) {
	schemaName, err := m.schemaName(ctx, schema)
	if err != nil {
		return Schema{Tables: map[string]Table{}}, err
	}
	result := Schema{Name: schemaName, Tables: map[string]Table{}}

	names, err := m.ListTables(ctx, schemaName, prefix)
	if err != nil {
		return result, err
	}
	for _, name := range names {
		result.Tables[name] = Table{Name: name, Columns: []Column{}, PrimaryKey: []string{}}
	}

	colsRows, err := m.db.QueryContext(ctx, `
SELECT table_name, column_name, column_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = ?
ORDER BY table_name, ordinal_position`, schemaName)
	if err != nil {
		return result, err
	}
	defer colsRows.Close()

	for colsRows.Next() {
		var tbl, nullable string
		var def sql.NullString
		var col Column
		if err := colsRows.Scan(&tbl, &col.Name, &col.DataType, &nullable, &def); err != nil {
			return result, err
		}
		t, ok := result.Tables[tbl]
		if !ok {
			continue
		}
		col.IsNullable = strings.EqualFold(nullable, "YES")
		if def.Valid {
			v := def.String
			col.DefaultValue = &v
		}
		t.Columns = append(t.Columns, col)
		result.Tables[tbl] = t
	}
	if err := colsRows.Err(); err != nil {
		return result, err
	}

	pkRows, err := m.db.QueryContext(ctx, `
SELECT tc.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
 ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
 AND tc.table_name = kcu.table_name
WHERE tc.table_schema = ? AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.ordinal_position`, schemaName)
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

	for _, name := range names {
		t := result.Tables[name]
		stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", quoteMySQLIdent(schemaName), quoteMySQLIdent(name))
		if err := m.db.QueryRowContext(ctx, stmt).Scan(&t.RowCount); err != nil {
			return result, fmt.Errorf("count rows in %s: %w", name, err)
		}
		result.Tables[name] = t
	}
	return result, nil
}

// schemaName maps the Postgres-style default schema onto the connection's
// current database.
func (m *MySQLAdapter) schemaName(ctx context.Context, schema string) (string, error) {
	name := strings.TrimSpace(schema)
	if name != "" && name != "public" {
		return name, nil
	}
	if err := m.db.QueryRowContext(ctx, `SELECT DATABASE()`).Scan(&name); err != nil {
		return "", err
	}
	return name, nil
}

func quoteMySQLIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
