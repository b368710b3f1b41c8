package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
	"github.com/CauseImYourFat/real-life-rpg/internal/model"
)

// In-memory fakes for the repository interfaces. They reproduce the storage
// behaviour the services rely on (uniqueness conflicts, version-checked
// saves) without a database, so service tests run in microseconds and can
// inject failures.

type fakeUserRepo struct {
	users  map[string]*model.User // by ID
	nextID int
	data   *fakeDataRepo // CreateWithData writes the document here
}

func newFakeUserRepo(data *fakeDataRepo) *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}, data: data}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range f.users {
		if u.Username == user.Username {
			return apperror.Conflict("user", "username already exists")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) CreateWithData(ctx context.Context, user *model.User, data *model.UserData) error {
	if err := f.Create(ctx, user); err != nil {
		return err
	}
	data.UserID = user.ID
	return f.data.Save(ctx, data)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) GetByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	for _, u := range f.users {
		if u.GoogleID != "" && u.GoogleID == googleID {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", googleID)
}

func (f *fakeUserRepo) UpdateUsername(_ context.Context, id, newUsername string) error {
	for otherID, u := range f.users {
		if otherID != id && u.Username == newUsername {
			return apperror.Conflict("user", "username already exists")
		}
	}
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Username = newUsername
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	delete(f.data.docs, id)
	return nil
}

func (f *fakeUserRepo) Count(_ context.Context) (int, error) {
	return len(f.users), nil
}

type fakeDataRepo struct {
	docs map[string]*model.UserData // by user ID

	saveErr error // when set, Save and SaveBoth fail with it
}

func newFakeDataRepo() *fakeDataRepo {
	return &fakeDataRepo{docs: map[string]*model.UserData{}}
}

// cloneDoc deep-copies a document the way the real store does (serialize,
// store, deserialize), so callers can't mutate stored state without saving.
func cloneDoc(d *model.UserData) *model.UserData {
	raw, err := json.Marshal(d)
	if err != nil {
		panic(err)
	}
	var c model.UserData
	if err := json.Unmarshal(raw, &c); err != nil {
		panic(err)
	}
	c.Version = d.Version // excluded from JSON
	return &c
}

func (f *fakeDataRepo) Get(_ context.Context, userID string) (*model.UserData, error) {
	doc, ok := f.docs[userID]
	if !ok {
		return nil, apperror.NotFound("user data", userID)
	}
	return cloneDoc(doc), nil
}

// Save mirrors the version-checked write: Version 0 means insert, anything
// else must match the stored version or the save conflicts.
func (f *fakeDataRepo) Save(_ context.Context, data *model.UserData) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	data.LastSaved = time.Now().UTC()
	stored, exists := f.docs[data.UserID]
	if data.Version == 0 {
		if exists {
			return apperror.Conflict("user data", "document already exists")
		}
		data.Version = 1
	} else {
		if !exists || stored.Version != data.Version {
			return apperror.Conflict("user data", "document was modified concurrently")
		}
		data.Version++
	}
	f.docs[data.UserID] = cloneDoc(data)
	return nil
}

func (f *fakeDataRepo) SaveBoth(ctx context.Context, a, b *model.UserData) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	// Check both versions before writing either, so a conflict on the second
	// document doesn't leave the first one saved.
	for _, d := range []*model.UserData{a, b} {
		if d.Version != 0 {
			stored, exists := f.docs[d.UserID]
			if !exists || stored.Version != d.Version {
				return apperror.Conflict("user data", "document was modified concurrently")
			}
		}
	}
	if err := f.Save(ctx, a); err != nil {
		return err
	}
	return f.Save(ctx, b)
}

func (f *fakeDataRepo) DeleteData(_ context.Context, userID string) error {
	delete(f.docs, userID)
	return nil
}

// testLogger discards output; service logs aren't assertions.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mustRegister creates a user through the real registration path and returns
// the stored record.
func mustRegister(t *testing.T, svc *AuthService, username, password string) *model.User {
	t.Helper()
	result, err := svc.Register(context.Background(), username, password)
	if err != nil {
		t.Fatalf("Register(%q) error = %v", username, err)
	}
	return result.User
}
