package httpserver

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	DB Pinger
}

type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", DB: "not_configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.DB.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "service_unhealthy", "database unreachable")
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		DB:     "ok",
	})
}
