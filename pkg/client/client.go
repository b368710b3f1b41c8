// Package client is a typed Go client for the real-life-rpg API.
//
// It mirrors how the web client treats the server: a session (token plus
// username) persisted through a SessionStore, an in-memory snapshot of the
// last-loaded document, and a pending-save queue flushed best-effort when the
// caller is about to exit. A 401 from any call clears the stored session, so
// the next interaction starts at the login screen rather than retrying a dead
// token forever.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/CauseImYourFat/real-life-rpg/internal/model"
)

// SessionStore persists the token and username between runs. The file-backed
// implementation below is the usual choice; tests use an in-memory one.
type SessionStore interface {
	Load() (token, username string, err error)
	Save(token, username string) error
	Clear() error
}

// FileSessionStore keeps the session as a small JSON file, typically under
// the user's config directory.
type FileSessionStore struct {
	Path string
}

type sessionFile struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (s *FileSessionStore) Load() (string, string, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("client: reading session file: %w", err)
	}
	var f sessionFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", "", fmt.Errorf("client: parsing session file: %w", err)
	}
	return f.Token, f.Username, nil
}

func (s *FileSessionStore) Save(token, username string) error {
	raw, err := json.Marshal(sessionFile{Token: token, Username: username})
	if err != nil {
		return fmt.Errorf("client: encoding session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("client: creating session dir: %w", err)
	}
	// 0600: the file holds a bearer token.
	if err := os.WriteFile(s.Path, raw, 0o600); err != nil {
		return fmt.Errorf("client: writing session file: %w", err)
	}
	return nil
}

func (s *FileSessionStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("client: removing session file: %w", err)
	}
	return nil
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int
	Kind       string // server's machine-readable kind, e.g. "conflict"
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Kind, e.Message)
}

// Client talks to one server on behalf of one user.
type Client struct {
	baseURL string
	http    *http.Client
	store   SessionStore

	mu       sync.Mutex
	token    string
	username string
	snapshot *model.UserData // last document loaded or saved
	pending  []pendingSave
}

type pendingSave struct {
	path string
	body []byte
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client and loads any persisted session from the store.
func New(baseURL string, store SessionStore, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: baseURL,
		http:    http.DefaultClient,
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}

	token, username, err := store.Load()
	if err != nil {
		return nil, err
	}
	c.token = token
	c.username = username
	return c, nil
}

// LoggedIn reports whether a session token is present. It says nothing about
// whether the server still accepts it.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// Username returns the username of the current session, if any.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Snapshot returns the last document this client loaded or saved, or nil.
func (c *Client) Snapshot() *model.UserData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

type authPayload struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    *model.User `json:"user"`
}

// Register creates an account and stores the resulting session.
func (c *Client) Register(ctx context.Context, username, password string) (*model.User, error) {
	return c.authenticate(ctx, "/api/register", username, password)
}

// Login authenticates and stores the resulting session.
func (c *Client) Login(ctx context.Context, username, password string) (*model.User, error) {
	return c.authenticate(ctx, "/api/login", username, password)
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) (*model.User, error) {
	body := map[string]string{"username": username, "password": password}

	var payload authPayload
	if err := c.do(ctx, http.MethodPost, path, body, &payload); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.token = payload.Token
	c.username = username
	c.mu.Unlock()

	if err := c.store.Save(payload.Token, username); err != nil {
		return nil, err
	}
	return payload.User, nil
}

// Logout clears the session locally. There is no server-side session to
// revoke; the token simply expires.
func (c *Client) Logout() error {
	c.mu.Lock()
	c.token = ""
	c.username = ""
	c.snapshot = nil
	c.pending = nil
	c.mu.Unlock()
	return c.store.Clear()
}

// GetData loads the full document and caches it as the snapshot.
func (c *Client) GetData(ctx context.Context) (*model.UserData, error) {
	var data model.UserData
	if err := c.do(ctx, http.MethodGet, "/api/user/data", nil, &data); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = &data
	c.mu.Unlock()
	return &data, nil
}

// SaveSkills replaces the skills section.
func (c *Client) SaveSkills(ctx context.Context, skills map[string]map[string]int) error {
	return c.saveData(ctx, map[string]any{"skills": skills})
}

// SaveHealth replaces the health section.
func (c *Client) SaveHealth(ctx context.Context, health map[string]json.RawMessage) error {
	var resp struct {
		Message string                     `json:"message"`
		Health  map[string]json.RawMessage `json:"health"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/user/health", health, &resp); err != nil {
		return err
	}

	c.mu.Lock()
	if c.snapshot != nil {
		c.snapshot.Health = resp.Health
	}
	c.mu.Unlock()
	return nil
}

// UpdateProfile replaces the profile description and image.
func (c *Client) UpdateProfile(ctx context.Context, profile model.Profile) error {
	var resp struct {
		Message string        `json:"message"`
		Profile model.Profile `json:"profile"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/user/profile", profile, &resp); err != nil {
		return err
	}

	c.mu.Lock()
	if c.snapshot != nil {
		c.snapshot.Profile = resp.Profile
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) saveData(ctx context.Context, update map[string]any) error {
	var resp struct {
		Message   string `json:"message"`
		LastSaved string `json:"lastSaved"`
	}
	return c.do(ctx, http.MethodPost, "/api/user/data", update, &resp)
}

// ChangeUsername renames the account and updates the stored session.
func (c *Client) ChangeUsername(ctx context.Context, newUsername string) error {
	body := map[string]string{"newUsername": newUsername}
	var resp struct {
		Message  string `json:"message"`
		Username string `json:"username"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/user/username", body, &resp); err != nil {
		return err
	}

	c.mu.Lock()
	c.username = resp.Username
	token := c.token
	c.mu.Unlock()
	return c.store.Save(token, resp.Username)
}

// ChangePassword changes the account password.
func (c *Client) ChangePassword(ctx context.Context, current, updated string) error {
	body := map[string]string{"currentPassword": current, "newPassword": updated}
	return c.do(ctx, http.MethodPut, "/api/user/password", body, nil)
}

// DeleteAccount deletes the account (confirmText must be exactly "delete")
// and clears the session.
func (c *Client) DeleteAccount(ctx context.Context, confirmText string) error {
	body := map[string]string{"confirmText": confirmText}
	if err := c.do(ctx, http.MethodDelete, "/api/user/delete", body, nil); err != nil {
		return err
	}
	return c.Logout()
}

// GetTamagotchi loads the virtual pet state.
func (c *Client) GetTamagotchi(ctx context.Context) (*model.Tamagotchi, error) {
	var t model.Tamagotchi
	if err := c.do(ctx, http.MethodGet, "/api/user/tamagotchi", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// mutateTamagotchi sends one action-tagged command and returns the new state.
func (c *Client) mutateTamagotchi(ctx context.Context, payload map[string]any) (*model.Tamagotchi, error) {
	var t model.Tamagotchi
	if err := c.do(ctx, http.MethodPut, "/api/user/tamagotchi", payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) BuyPet(ctx context.Context, petID string) (*model.Tamagotchi, error) {
	return c.mutateTamagotchi(ctx, map[string]any{"action": "buy", "mascotType": petID})
}

func (c *Client) EditPet(ctx context.Context, petID string, changes map[string]any) (*model.Tamagotchi, error) {
	return c.mutateTamagotchi(ctx, map[string]any{"action": "edit", "mascotType": petID, "changes": changes})
}

func (c *Client) DeletePet(ctx context.Context, petID string) (*model.Tamagotchi, error) {
	return c.mutateTamagotchi(ctx, map[string]any{"action": "delete", "mascotType": petID})
}

func (c *Client) SellPet(ctx context.Context, petID string) (*model.Tamagotchi, error) {
	return c.mutateTamagotchi(ctx, map[string]any{"action": "sell", "mascotType": petID})
}

func (c *Client) TransferPet(ctx context.Context, petID, toUser string) (*model.Tamagotchi, error) {
	return c.mutateTamagotchi(ctx, map[string]any{"action": "transfer", "mascotType": petID, "toUser": toUser})
}

func (c *Client) SetCurrentPet(ctx context.Context, petID string) (*model.Tamagotchi, error) {
	return c.mutateTamagotchi(ctx, map[string]any{"action": "setCurrent", "mascotType": petID})
}

func (c *Client) ClaimDaily(ctx context.Context) (*model.Tamagotchi, error) {
	return c.mutateTamagotchi(ctx, map[string]any{"action": "claimDaily"})
}

func (c *Client) BuyFood(ctx context.Context, foodID string) (*model.Tamagotchi, error) {
	return c.mutateTamagotchi(ctx, map[string]any{"action": "buyFood", "foodName": foodID})
}

func (c *Client) UseFood(ctx context.Context, foodID string) (*model.Tamagotchi, error) {
	return c.mutateTamagotchi(ctx, map[string]any{"action": "useFood", "foodName": foodID})
}

func (c *Client) GainXP(ctx context.Context, petID string, amount int) (*model.Tamagotchi, error) {
	return c.mutateTamagotchi(ctx, map[string]any{"action": "gainXP", "mascotType": petID, "amount": amount})
}

// Export returns the user's complete document as indented JSON, suitable
// for writing to a file. This is the data-export feature: the document IS
// the user's data, so exporting is a fresh load plus formatting.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	data, err := c.GetData(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("client: encoding export: %w", err)
	}
	return raw, nil
}

// QueueSkillsSave records a skills save to be sent by Flush. Used when the
// caller can't wait for the round-trip, like an exit hook.
func (c *Client) QueueSkillsSave(skills map[string]map[string]int) error {
	body, err := json.Marshal(map[string]any{"skills": skills})
	if err != nil {
		return fmt.Errorf("client: encoding queued save: %w", err)
	}
	c.mu.Lock()
	c.pending = append(c.pending, pendingSave{path: "/api/user/data", body: body})
	c.mu.Unlock()
	return nil
}

// Flush sends queued saves best-effort: failures are dropped along with the
// queue. Exit hooks have nowhere to report an error anyway; the data is
// still on the server from the last successful save.
func (c *Client) Flush(ctx context.Context) {
	c.mu.Lock()
	queue := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, save := range queue {
		req, err := c.newRequest(ctx, http.MethodPost, save.path, bytes.NewReader(save.body))
		if err != nil {
			continue
		}
		resp, err := c.http.Do(req)
		if err != nil {
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do runs one JSON round-trip. A 401 clears the session before the error is
// returned.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encoding request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("client: reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusUnauthorized {
			// The token is dead; keeping it would just repeat this failure.
			_ = c.Logout()
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Kind: "unknown", Message: string(raw)}
		var errBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
			apiErr.Kind = errBody.Error
			apiErr.Message = errBody.Message
		}
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("client: decoding response from %s: %w", path, err)
		}
	}
	return nil
}
