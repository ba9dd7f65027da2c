package httpserver

import (
	"context"
	"net/http"
	"time"

	"botsupport/internal/db"
	"botsupport/internal/migrate"
	"botsupport/internal/secret"
)

// TablesHandler reports the prefixed tables currently in the catalog. It
// opens its own short-lived connection, like an apply does.
type TablesHandler struct {
	open       db.OpenFunc
	descriptor string
	schema     string
	prefix     string
	logger     requestLogger
}

func NewTablesHandler(open db.OpenFunc, descriptor, schema, prefix string, logger requestLogger) *TablesHandler {
	return &TablesHandler{open: open, descriptor: descriptor, schema: schema, prefix: prefix, logger: logger}
}

type tablesResponse struct {
	Schema string     `json:"schema"`
	Prefix string     `json:"prefix"`
	Count  int        `json:"count"`
	Tables []db.Table `json:"tables"`
}

func (h *TablesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.descriptor == "" {
		failure := &migrate.Error{Kind: migrate.KindConfigMissing}
		writeError(w, http.StatusServiceUnavailable, string(failure.Kind), failure.Remediation())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	conn, err := h.open(ctx, h.descriptor)
	if err != nil {
		h.logger.Error("catalog connect failed", "target", secret.Redact(h.descriptor), "error", err)
		writeError(w, http.StatusBadGateway, string(migrate.KindConnection), "could not connect to database")
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			h.logger.Error("close catalog connection", "error", err)
		}
	}()

	schema, err := conn.FetchSchema(ctx, h.schema, h.prefix)
	if err != nil {
		h.logger.Error("fetch schema failed", "error", err)
		writeError(w, http.StatusInternalServerError, "catalog_failed", "failed to read catalog")
		return
	}
	tables := schema.SortedTables()
	writeJSON(w, http.StatusOK, tablesResponse{
		Schema: schema.Name,
		Prefix: h.prefix,
		Count:  len(tables),
		Tables: tables,
	})
}
