package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"botsupport/internal/store"
)

type UserHandler struct {
	db     store.Querier
	logger requestLogger
}

// NewUserHandler serves the support views of telegram_users. A nil db
// answers 503 on every route.
func NewUserHandler(db store.Querier, logger requestLogger) *UserHandler {
	return &UserHandler{db: db, logger: logger}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	q := r.URL.Query()
	limit, ok := intParam(w, q.Get("limit"), "limit")
	if !ok {
		return
	}
	offset, ok := intParam(w, q.Get("offset"), "offset")
	if !ok {
		return
	}
	page, err := store.ListUsers(r.Context(), h.db, store.ListUsersInput{
		Limit:  limit,
		Offset: offset,
		Query:  q.Get("q"),
	})
	if err != nil {
		h.logger.Error("list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid user id")
		return
	}
	user, err := store.GetUser(r.Context(), h.db, id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.logger.Error("get user failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	stats, err := store.GetUserStats(r.Context(), h.db)
	if err != nil {
		h.logger.Error("user stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "stats_failed", "failed to compute user stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *UserHandler) ready(w http.ResponseWriter) bool {
	if h.db == nil {
		writeError(w, http.StatusServiceUnavailable, "database_not_configured", "no database connection string configured")
		return false
	}
	return true
}

func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be an integer")
		return 0, false
	}
	return v, true
}
