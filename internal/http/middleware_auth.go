package httpserver

import (
	"context"
	"errors"
	"net/http"

	"botsupport/internal/audit"
	"botsupport/internal/auth"
	"botsupport/internal/migrate"
)

type AuthMiddleware struct {
	gate   *auth.Gate
	logger audit.Logger
}

func NewAuthMiddleware(gate *auth.Gate, logger audit.Logger) *AuthMiddleware {
	return &AuthMiddleware{gate: gate, logger: logger}
}

// RequireToken rejects requests that fail the bearer gate with the standard
// error body.
func (m *AuthMiddleware) RequireToken(next http.Handler) http.Handler {
	return m.require(next, func(w http.ResponseWriter, err error) {
		writeError(w, http.StatusUnauthorized, "unauthorized", denialMessage(err))
	})
}

// RequireApplyToken is RequireToken for the apply route, answering in the
// apply response shape.
func (m *AuthMiddleware) RequireApplyToken(next http.Handler) http.Handler {
	return m.require(next, func(w http.ResponseWriter, err error) {
		writeApplyFailure(w, &migrate.Error{Kind: migrate.KindUnauthorized, Message: denialMessage(err), Err: err})
	})
}

func (m *AuthMiddleware) require(next http.Handler, deny func(http.ResponseWriter, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.gate.Authorize(r); err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) {
				m.logger.Error("auth error", "error", err)
			}
			m.logDenied(r.Context(), err, r)
			deny(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) logDenied(ctx context.Context, reason error, r *http.Request) {
	_, _ = audit.LogEvent(ctx, m.logger, audit.Event{
		Action:     "access_denied",
		EntityType: "http_request",
		Payload: map[string]any{
			"path":   r.URL.Path,
			"method": r.Method,
			"reason": reason.Error(),
		},
	})
}

func denialMessage(err error) string {
	if errors.Is(err, auth.ErrTokenNotConfigured) {
		return "migration token is not configured for this environment"
	}
	return "valid bearer token required"
}
