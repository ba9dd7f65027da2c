package migrate

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind tags the failure variants of an apply attempt.
type Kind string

const (
	KindConfigMissing  Kind = "config_missing"
	KindScriptNotFound Kind = "script_not_found"
	KindConnection     Kind = "connection_error"
	KindAlreadyExists  Kind = "already_exists"
	KindOtherSQL       Kind = "other_sql_error"
	KindUnauthorized   Kind = "unauthorized"
)

// Error is the failure outcome of Apply and LoadScript.
type Error struct {
	Kind    Kind
	Message string
	// Tables is a best-effort catalog listing taken after an already_exists
	// failure; the catalog is the source of truth for what exists.
	Tables []string
	Err    error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Recoverable reports whether re-application can be treated as converged.
func (e *Error) Recoverable() bool { return e.Kind == KindAlreadyExists }

// Remediation returns operator guidance for the kinds that have one.
func (e *Error) Remediation() string {
	switch e.Kind {
	case KindConfigMissing:
		return "Set SUPABASE_DB_URL (recommended), POSTGRES_URL, POSTGRES_PRISMA_URL or DATABASE_URL to the database connection string, or apply the script manually in the SQL editor."
	case KindScriptNotFound:
		return "Check the migration name; available scripts are listed by `migrator list` or GET /api/v1/migrations."
	case KindAlreadyExists:
		return "Schema objects already exist, so the migration was most likely applied before. No action is needed if the expected tables are listed."
	case KindUnauthorized:
		return "Send the migration token as `Authorization: Bearer <token>`."
	default:
		return ""
	}
}

// KindOf extracts the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

var pgAlreadyExists = map[string]bool{
	"42P07": true, // duplicate_table
	"42710": true, // duplicate_object
	"42P06": true, // duplicate_schema
	"42723": true, // duplicate_function
	"42701": true, // duplicate_column
	"42P04": true, // duplicate_database
}

var mysqlAlreadyExists = map[uint16]bool{
	1007: true, // ER_DB_CREATE_EXISTS
	1050: true, // ER_TABLE_EXISTS_ERROR
	1060: true, // ER_DUP_FIELDNAME
	1061: true, // ER_DUP_KEYNAME
	1304: true, // ER_SP_ALREADY_EXISTS
}

// Classify maps a script execution error onto a Kind. Driver error codes are
// consulted first; message text only when the driver gave no code.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if isConnectionFailure(err) {
		return KindConnection
	}
	if isAlreadyExists(err) {
		return KindAlreadyExists
	}
	return KindOtherSQL
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection_exception, 28: invalid_authorization_specification,
		// 57P01..57P03: server shutting down or unavailable.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "28") ||
			pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgAlreadyExists[pgErr.Code]
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlAlreadyExists[myErr.Number]
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}
