package db

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMySQLAdapter_ExecScript_StopsAtFirstError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	boom := errors.New("Error 1050: Table 'telegram_users' already exists")
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE telegram_users (user_id BIGINT PRIMARY KEY)")).
		WillReturnError(boom)

	a := &MySQLAdapter{db: sqlDB}
	err = a.ExecScript(context.Background(), `
CREATE TABLE telegram_users (user_id BIGINT PRIMARY KEY);
CREATE TABLE telegram_payments (id INT PRIMARY KEY);
`)
	if !errors.Is(err, boom) {
		t.Fatalf("ExecScript error = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMySQLAdapter_ExecScript_RunsEveryStatement(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS telegram_users (user_id BIGINT PRIMARY KEY)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS telegram_payments (id INT PRIMARY KEY)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	a := &MySQLAdapter{db: sqlDB}
	if err := a.ExecScript(context.Background(), `
-- users first
CREATE TABLE IF NOT EXISTS telegram_users (user_id BIGINT PRIMARY KEY);
CREATE TABLE IF NOT EXISTS telegram_payments (id INT PRIMARY KEY);
`); err != nil {
		t.Fatalf("ExecScript: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMySQLAdapter_ListTables(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DATABASE()")).
		WillReturnRows(sqlmock.NewRows([]string{"DATABASE()"}).AddRow("bot"))
	mock.ExpectQuery(regexp.QuoteMeta("table_name LIKE ? ESCAPE '!'")).
		WithArgs("bot", "telegram!_%").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("telegram_users").
			AddRow("telegram_alphabet").
			AddRow("telegramish"))

	a := &MySQLAdapter{db: sqlDB}
	got, err := a.ListTables(context.Background(), "public", "telegram_")
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	want := []string{"telegram_alphabet", "telegram_users"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ListTables = %v, want %v", got, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMySQLAdapter_FetchSchema(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("bot", "telegram!_%").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("telegram_users"))
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("bot").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "column_type", "is_nullable", "column_default"}).
			AddRow("telegram_users", "user_id", "bigint", "NO", nil).
			AddRow("telegram_users", "subscription_type", "text", "YES", "trial").
			AddRow("unrelated", "id", "int", "NO", nil))
	mock.ExpectQuery("FROM information_schema.table_constraints").
		WithArgs("bot").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).AddRow("telegram_users", "user_id"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `bot`.`telegram_users`")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(3))

	a := &MySQLAdapter{db: sqlDB}
	schema, err := a.FetchSchema(context.Background(), "bot", "telegram_")
	if err != nil {
		t.Fatalf("FetchSchema: %v", err)
	}
	tbl, ok := schema.Tables["telegram_users"]
	if !ok {
		t.Fatalf("telegram_users missing: %+v", schema)
	}
	if len(schema.Tables) != 1 {
		t.Fatalf("expected only prefixed tables, got %v", schema.TableNames())
	}
	if len(tbl.Columns) != 2 || tbl.Columns[0].Name != "user_id" || tbl.Columns[1].IsNullable != true {
		t.Fatalf("unexpected columns: %+v", tbl.Columns)
	}
	if tbl.Columns[1].DefaultValue == nil || *tbl.Columns[1].DefaultValue != "trial" {
		t.Fatalf("unexpected default: %+v", tbl.Columns[1])
	}
	if !reflect.DeepEqual(tbl.PrimaryKey, []string{"user_id"}) {
		t.Fatalf("unexpected primary key: %v", tbl.PrimaryKey)
	}
	if tbl.RowCount != 3 {
		t.Fatalf("RowCount = %d, want 3", tbl.RowCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOpen_InvalidMySQLDSN(t *testing.T) {
	if _, err := Open(context.Background(), "mysql://not a dsn"); err == nil {
		t.Fatal("expected invalid dsn error")
	}
}
