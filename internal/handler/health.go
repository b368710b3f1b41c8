package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/CauseImYourFat/real-life-rpg/internal/service"
)

// HealthHandler answers the liveness probe. The user count doubles as a
// cheap database round-trip, so "ok" means the store is reachable too.
type HealthHandler struct {
	authSvc *service.AuthService
	logger  *slog.Logger
}

func NewHealthHandler(authSvc *service.AuthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{authSvc: authSvc, logger: logger}
}

// HandleHealth reports service status.
//
// HTTP: GET /api/health → {status, timestamp, users}
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := h.authSvc.CountUsers(r.Context())
	if err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"users":     count,
	})
}
