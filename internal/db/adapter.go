package db

import (
	"context"
	"strings"
)

const (
	ProviderPostgres = "postgres"
	ProviderMySQL    = "mysql"
)

// Adapter is a single scoped connection to a target store. Callers own it
// and must Close it.
type Adapter interface {
	Provider() string
	Close() error
	ExecScript(ctx context.Context, script string) error
	ListTables(ctx context.Context, schema, prefix string) ([]string, error)
	FetchSchema(ctx context.Context, schema, prefix string) (Schema, error)
}

// OpenFunc opens an Adapter for a connection descriptor.
type OpenFunc func(ctx context.Context, dsn string) (Adapter, error)

// Open connects to the store described by dsn. The connection is
// established eagerly so that connection failures surface here.
func Open(ctx context.Context, dsn string) (Adapter, error) {
	switch ProviderFor(dsn) {
	case ProviderMySQL:
		return openMySQL(ctx, strings.TrimSpace(dsn)[len("mysql://"):])
	default:
		return openPostgres(ctx, dsn)
	}
}

// ProviderFor picks the dialect from the descriptor's scheme.
func ProviderFor(dsn string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(dsn)), "mysql://") {
		return ProviderMySQL
	}
	return ProviderPostgres
}

// likePattern turns a literal prefix into a LIKE pattern using esc as the
// escape character.
func likePattern(prefix string, esc byte) string {
	e := string(esc)
	r := strings.NewReplacer(e, e+e, `%`, e+`%`, `_`, e+`_`)
	return r.Replace(prefix) + "%"
}
