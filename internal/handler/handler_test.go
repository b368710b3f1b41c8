package handler_test

// These tests drive the full HTTP stack (router, middleware, handlers,
// services, sqlite) through httptest, the way a browser would. The external
// test package avoids the handler → server import cycle.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CauseImYourFat/real-life-rpg/internal/config"
	"github.com/CauseImYourFat/real-life-rpg/internal/server"
)

func newTestServer(t *testing.T) (http.Handler, string) {
	t.Helper()
	assetDir := t.TempDir()
	cfg := config.Config{
		Port:      0,
		DBPath:    ":memory:",
		StaticDir: t.TempDir(),
		AssetDir:  assetDir,
		JWTSecret:  "handler-test-secret-16-chars!!",
		TokenTTL:   "1h",
		BcryptCost: 4,
	}
	srv, err := server.New(cfg, testLogger())
	require.NoError(t, err)
	return srv.Handler(), assetDir
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// doJSON sends one JSON request and returns the recorder.
func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst))
}

// register creates an account and returns its session token.
func register(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	rr := doJSON(t, h, http.MethodPost, "/api/register", "", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rr.Code, "register failed: %s", rr.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decodeInto(t, rr, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRegisterAndLogin(t *testing.T) {
	h, _ := newTestServer(t)

	rr := doJSON(t, h, http.MethodPost, "/api/register", "", map[string]string{
		"username": "alice", "password": "password123",
	})
	assert.Equal(t, http.StatusCreated, rr.Code)

	var created struct {
		Message string `json:"message"`
		Token   string `json:"token"`
		User    struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	decodeInto(t, rr, &created)
	assert.Equal(t, "User registered successfully", created.Message)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "alice", created.User.Username)

	// Same username again conflicts.
	rr = doJSON(t, h, http.MethodPost, "/api/register", "", map[string]string{
		"username": "alice", "password": "password456",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	// Wrong password gets the generic message, not a hint.
	rr = doJSON(t, h, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var errResp struct {
		Message string `json:"message"`
	}
	decodeInto(t, rr, &errResp)
	assert.Equal(t, "Invalid username or password", errResp.Message)

	rr = doJSON(t, h, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice", "password": "password123",
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h, _ := newTestServer(t)

	rr := doJSON(t, h, http.MethodGet, "/api/user/data", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/user/data", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUserDataRoundTrip(t *testing.T) {
	h, _ := newTestServer(t)
	token := register(t, h, "alice")

	rr := doJSON(t, h, http.MethodPost, "/api/user/data", token, map[string]any{
		"skills": map[string]map[string]int{"fitness": {"running": 4}},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var saved struct {
		Message   string `json:"message"`
		LastSaved string `json:"lastSaved"`
	}
	decodeInto(t, rr, &saved)
	assert.Equal(t, "User data saved successfully", saved.Message)
	assert.NotEmpty(t, saved.LastSaved)

	rr = doJSON(t, h, http.MethodGet, "/api/user/data", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var doc struct {
		Skills map[string]map[string]int `json:"skills"`
	}
	decodeInto(t, rr, &doc)
	assert.Equal(t, 4, doc.Skills["fitness"]["running"])
}

func TestSaveData_RejectsOutOfRangeSkill(t *testing.T) {
	h, _ := newTestServer(t)
	token := register(t, h, "alice")

	rr := doJSON(t, h, http.MethodPost, "/api/user/data", token, map[string]any{
		"skills": map[string]map[string]int{"fitness": {"running": 11}},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSaveHealth(t *testing.T) {
	h, _ := newTestServer(t)
	token := register(t, h, "alice")

	rr := doJSON(t, h, http.MethodPost, "/api/user/health", token, map[string]any{
		"weight": 72,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Message string                     `json:"message"`
		Health  map[string]json.RawMessage `json:"health"`
	}
	decodeInto(t, rr, &resp)
	assert.Equal(t, "Health data updated successfully", resp.Message)
	assert.JSONEq(t, "72", string(resp.Health["weight"]))
}

func TestChangeUsername(t *testing.T) {
	h, _ := newTestServer(t)
	token := register(t, h, "alice")
	register(t, h, "bob")

	// Taken name conflicts and leaves the original.
	rr := doJSON(t, h, http.MethodPut, "/api/user/username", token, map[string]string{
		"newUsername": "bob",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, h, http.MethodPut, "/api/user/username", token, map[string]string{
		"newUsername": "alice_two",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		Username string `json:"username"`
	}
	decodeInto(t, rr, &resp)
	assert.Equal(t, "alice_two", resp.Username)
}

func TestUpdateProfile(t *testing.T) {
	h, _ := newTestServer(t)
	token := register(t, h, "alice")

	rr := doJSON(t, h, http.MethodPut, "/api/user/profile", token, map[string]string{
		"description": "on a quest", "profileImage": "me.png",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Profile struct {
			Description string `json:"description"`
		} `json:"profile"`
	}
	decodeInto(t, rr, &resp)
	assert.Equal(t, "on a quest", resp.Profile.Description)
}

func TestDeleteAccount(t *testing.T) {
	h, _ := newTestServer(t)
	token := register(t, h, "alice")

	// The confirmation phrase is case-sensitive.
	rr := doJSON(t, h, http.MethodDelete, "/api/user/delete", token, map[string]string{
		"confirmText": "Delete",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, http.MethodDelete, "/api/user/delete", token, map[string]string{
		"confirmText": "delete",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// The credential is gone.
	rr = doJSON(t, h, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice", "password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTamagotchiFlow(t *testing.T) {
	h, _ := newTestServer(t)
	token := register(t, h, "alice")

	rr := doJSON(t, h, http.MethodGet, "/api/user/tamagotchi", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var state struct {
		Shop       []string `json:"shop"`
		GneePoints int      `json:"gneePoints"`
	}
	decodeInto(t, rr, &state)
	assert.Contains(t, state.Shop, "Frog")
	assert.Zero(t, state.GneePoints)

	// First pet is free.
	rr = doJSON(t, h, http.MethodPut, "/api/user/tamagotchi", token, map[string]any{
		"action": "buy", "mascotType": "Frog",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var after struct {
		Hive          []string `json:"hive"`
		CurrentMascot string   `json:"currentMascot"`
	}
	decodeInto(t, rr, &after)
	assert.Equal(t, []string{"Frog"}, after.Hive)
	assert.Equal(t, "Frog", after.CurrentMascot)

	// Second pet needs points the user doesn't have.
	rr = doJSON(t, h, http.MethodPut, "/api/user/tamagotchi", token, map[string]any{
		"action": "buy", "mascotType": "Bird",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Unknown actions are malformed requests.
	rr = doJSON(t, h, http.MethodPut, "/api/user/tamagotchi", token, map[string]any{
		"action": "cuddle", "mascotType": "Frog",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthProbe(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice")
	register(t, h, "bob")

	rr := doJSON(t, h, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
		Users     int    `json:"users"`
	}
	decodeInto(t, rr, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)
	assert.Equal(t, 2, resp.Users)
}

func TestAssetList(t *testing.T) {
	h, assetDir := newTestServer(t)

	frogDir := filepath.Join(assetDir, "frog")
	require.NoError(t, os.MkdirAll(frogDir, 0o755))
	for _, name := range []string{"idle.gif", "run.GIF", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(frogDir, name), []byte("x"), 0o644))
	}

	rr := doJSON(t, h, http.MethodGet, "/api/assets/frog", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var files []string
	decodeInto(t, rr, &files)
	assert.ElementsMatch(t, []string{"idle.gif", "run.GIF"}, files)

	rr = doJSON(t, h, http.MethodGet, "/api/assets/no-such-folder", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAssetList_RejectsDotFolders(t *testing.T) {
	h, _ := newTestServer(t)

	rr := doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/assets/%s", ".hidden"), "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
