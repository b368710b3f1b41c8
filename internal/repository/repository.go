// Package repository defines the storage interfaces the service layer
// depends on. Concrete implementations live in subpackages (sqlite).
// Services accept these interfaces so tests can substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/CauseImYourFat/real-life-rpg/internal/model"
)

// UserRepository manages credential records.
type UserRepository interface {
	// Create inserts a new user. Returns a conflict error when the username
	// is already taken.
	Create(ctx context.Context, user *model.User) error
	// CreateWithData inserts a user and their empty profile document in one
	// transaction, so a failure can't leave a credential without a document
	// (or vice versa).
	CreateWithData(ctx context.Context, user *model.User, data *model.UserData) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	// UpdateUsername renames the user. Returns a conflict error when the new
	// name is taken by someone else.
	UpdateUsername(ctx context.Context, id, newUsername string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// Delete removes the user; the profile document goes with it.
	Delete(ctx context.Context, id string) error
	// Count returns the number of registered users (health probe).
	Count(ctx context.Context) (int, error)
}

// UserDataRepository manages profile documents.
//
// Saves are guarded by an optimistic-concurrency version: Save writes only
// if the document still has the version it was loaded with, and returns a
// conflict error otherwise. Two browser tabs racing on the same document
// therefore surface a 409 instead of silently losing one tab's changes.
type UserDataRepository interface {
	// Get loads the document for a user. Returns a not-found error when no
	// document exists yet.
	Get(ctx context.Context, userID string) (*model.UserData, error)
	// Save persists the document if data.Version still matches the stored
	// row, then bumps data.Version.
	Save(ctx context.Context, data *model.UserData) error
	// SaveBoth persists two users' documents in a single transaction, with
	// the same version checks. Used for pet transfer, which must debit one
	// document and credit the other atomically.
	SaveBoth(ctx context.Context, a, b *model.UserData) error
	DeleteData(ctx context.Context, userID string) error
}
