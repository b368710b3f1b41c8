package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
	"github.com/CauseImYourFat/real-life-rpg/internal/auth"
	"github.com/CauseImYourFat/real-life-rpg/internal/model"
	"github.com/CauseImYourFat/real-life-rpg/internal/service"
)

// UserHandler serves the document endpoints (skills, health, preferences,
// profile) and account settings (rename, password change, deletion).
type UserHandler struct {
	authSvc *service.AuthService
	dataSvc *service.UserDataService
	logger  *slog.Logger
}

func NewUserHandler(authSvc *service.AuthService, dataSvc *service.UserDataService, logger *slog.Logger) *UserHandler {
	return &UserHandler{authSvc: authSvc, dataSvc: dataSvc, logger: logger}
}

// identity pulls the authenticated identity from the request context. The
// auth middleware guarantees it's there on protected routes; a miss means a
// wiring mistake, answered the same as a missing token.
func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
	}
	return id, ok
}

// HandleGetData returns the caller's complete document.
//
// HTTP: GET /api/user/data
func (h *UserHandler) HandleGetData(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	data, err := h.dataSvc.Get(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, data)
}

// HandleSaveData applies a partial document update. Sections absent from the
// body are left as stored.
//
// HTTP: POST /api/user/data
func (h *UserHandler) HandleSaveData(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var update service.DataUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, err)
		return
	}

	data, err := h.dataSvc.SaveData(r.Context(), id.UserID, update)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "User data saved successfully",
		"lastSaved": data.LastSaved,
	})
}

// HandleSaveHealth replaces the health section.
//
// HTTP: POST /api/user/health
func (h *UserHandler) HandleSaveHealth(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var health map[string]json.RawMessage
	if err := decodeBody(r, &health); err != nil {
		writeError(w, err)
		return
	}

	data, err := h.dataSvc.SaveHealth(r.Context(), id.UserID, health)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Health data updated successfully",
		"health":  data.Health,
	})
}

// HandleChangeUsername renames the account. The returned session token stays
// valid; the client swaps the displayed name.
//
// HTTP: PUT /api/user/username {newUsername}
func (h *UserHandler) HandleChangeUsername(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		NewUsername string `json:"newUsername"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.authSvc.ChangeUsername(r.Context(), id.UserID, req.NewUsername)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Username changed successfully",
		"username": user.Username,
	})
}

// HandleChangePassword verifies the current password before setting the new
// one.
//
// HTTP: PUT /api/user/password {currentPassword, newPassword}
func (h *UserHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.authSvc.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Password changed successfully",
	})
}

// HandleUpdateProfile replaces the profile description and image.
//
// HTTP: PUT /api/user/profile {description, profileImage}
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var profile model.Profile
	if err := decodeBody(r, &profile); err != nil {
		writeError(w, err)
		return
	}

	data, err := h.dataSvc.UpdateProfile(r.Context(), id.UserID, profile)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"profile": data.Profile,
	})
}

// HandleDeleteAccount deletes the account and everything under it. The body
// must carry the exact confirmation text "delete".
//
// HTTP: DELETE /api/user/delete {confirmText}
func (h *UserHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		ConfirmText string `json:"confirmText"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.authSvc.DeleteAccount(r.Context(), id.UserID, req.ConfirmText); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Account deleted successfully",
		"deleted": true,
	})
}
