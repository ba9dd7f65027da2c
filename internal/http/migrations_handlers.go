package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"botsupport/internal/audit"
	"botsupport/internal/migrate"
)

type scriptSource interface {
	List() ([]migrate.Script, error)
	LoadScript(name string) (migrate.Script, error)
	ManualInstructions(script migrate.Script) string
}

type scriptApplier interface {
	Apply(ctx context.Context, descriptor string, script migrate.Script) (*migrate.Result, error)
}

type MigrationHandler struct {
	source     scriptSource
	applier    scriptApplier
	descriptor string
	timeout    time.Duration
	logger     requestLogger
}

// NewMigrationHandler serves scripts from source and applies them to the
// store named by descriptor, which may be empty.
func NewMigrationHandler(source scriptSource, applier scriptApplier, descriptor string, timeout time.Duration, logger requestLogger) *MigrationHandler {
	return &MigrationHandler{
		source:     source,
		applier:    applier,
		descriptor: descriptor,
		timeout:    timeout,
		logger:     logger,
	}
}

type scriptDetail struct {
	Name         string `json:"name"`
	Version      int64  `json:"version"`
	SQL          string `json:"sql"`
	Instructions string `json:"instructions"`
}

type applyResponse struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message,omitempty"`
	Error         string       `json:"error,omitempty"`
	ErrorKind     migrate.Kind `json:"errorKind,omitempty"`
	TablesCreated []string     `json:"tablesCreated,omitempty"`
	TablesCount   *int         `json:"tablesCount,omitempty"`
}

func (h *MigrationHandler) List(w http.ResponseWriter, r *http.Request) {
	scripts, err := h.source.List()
	if err != nil {
		h.logger.Error("list migrations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list migrations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"migrations": scripts})
}

func (h *MigrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	script, err := h.source.LoadScript(chi.URLParam(r, "name"))
	if err != nil {
		var failure *migrate.Error
		if errors.As(err, &failure) && failure.Kind == migrate.KindScriptNotFound {
			writeError(w, http.StatusNotFound, string(failure.Kind), failure.Message)
			return
		}
		h.logger.Error("load migration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", "failed to load migration")
		return
	}
	writeJSON(w, http.StatusOK, scriptDetail{
		Name:         script.Name,
		Version:      script.Version,
		SQL:          script.Body,
		Instructions: h.source.ManualInstructions(script),
	})
}

func (h *MigrationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	script, err := h.source.LoadScript(name)
	if err != nil {
		h.finish(r, name, nil, err)
		writeApplyFailure(w, err)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.applier.Apply(ctx, h.descriptor, script)
	h.finish(r, script.Name, result, err)
	if err != nil {
		writeApplyFailure(w, err)
		return
	}
	count := result.Count
	writeJSON(w, http.StatusOK, applyResponse{
		Success:       true,
		Message:       "migration applied",
		TablesCreated: result.Tables,
		TablesCount:   &count,
	})
}

func (h *MigrationHandler) finish(r *http.Request, name string, result *migrate.Result, err error) {
	payload := map[string]any{"outcome": "success"}
	if err != nil {
		payload["outcome"] = string(kindOrOther(err))
	} else if result != nil {
		payload["run_id"] = result.RunID.String()
		payload["tables"] = result.Count
	}
	_, _ = audit.LogEvent(r.Context(), h.logger, audit.Event{
		Action:     "migration_apply",
		EntityType: "migration",
		EntityID:   name,
		Payload:    payload,
	})
}

func writeApplyFailure(w http.ResponseWriter, err error) {
	kind := kindOrOther(err)
	body := applyResponse{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: kind,
	}
	var failure *migrate.Error
	if errors.As(err, &failure) {
		body.Message = failure.Remediation()
		if len(failure.Tables) > 0 {
			count := len(failure.Tables)
			body.TablesCreated = failure.Tables
			body.TablesCount = &count
		}
	}
	writeJSON(w, statusForKind(kind), body)
}

func kindOrOther(err error) migrate.Kind {
	if kind := migrate.KindOf(err); kind != "" {
		return kind
	}
	return migrate.KindOtherSQL
}

// statusForKind maps apply failures onto HTTP. already_exists is soft: the
// request succeeded at the HTTP level and the body says what happened.
func statusForKind(kind migrate.Kind) int {
	switch kind {
	case migrate.KindAlreadyExists:
		return http.StatusOK
	case migrate.KindUnauthorized:
		return http.StatusUnauthorized
	case migrate.KindScriptNotFound:
		return http.StatusNotFound
	case migrate.KindConfigMissing:
		return http.StatusServiceUnavailable
	case migrate.KindConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
