package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
	"github.com/CauseImYourFat/real-life-rpg/internal/service"
)

// TamagotchiHandler serves the virtual pet state and its single mutation
// endpoint. All mutations go through one PUT with an action-tagged payload,
// so the handler stays a thin decode-dispatch shim.
type TamagotchiHandler struct {
	svc    *service.TamagotchiService
	logger *slog.Logger
}

func NewTamagotchiHandler(svc *service.TamagotchiService, logger *slog.Logger) *TamagotchiHandler {
	return &TamagotchiHandler{svc: svc, logger: logger}
}

// HandleGet returns the caller's tamagotchi state, initializing it on first
// access.
//
// HTTP: GET /api/user/tamagotchi
func (h *TamagotchiHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	t, err := h.svc.Get(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// HandleMutate decodes one action-tagged command and applies it.
//
// HTTP: PUT /api/user/tamagotchi {action, ...}
func (h *TamagotchiHandler) HandleMutate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, apperror.ValidationFailed("body", "unable to read request body"))
		return
	}

	cmd, err := service.DecodeCommand(body)
	if err != nil {
		writeError(w, err)
		return
	}

	t, err := h.svc.Apply(r.Context(), id.UserID, cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}
