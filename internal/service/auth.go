// Package service holds the business rules, between the HTTP handlers and
// the repositories:
//
//	handler (HTTP) → service (rules) → repository (storage)
//	              ↘ auth primitives (JWT, bcrypt, OAuth)
//
// Services never touch HTTP types and handlers never touch SQL — each layer
// is testable against fakes of the one below it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
	"github.com/CauseImYourFat/real-life-rpg/internal/auth"
	"github.com/CauseImYourFat/real-life-rpg/internal/model"
	"github.com/CauseImYourFat/real-life-rpg/internal/repository"
)

// usernamePattern: at least 3 characters, letters/digits/underscore only.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,}$`)

const minPasswordLen = 6

// deleteConfirmText is the literal phrase account deletion requires.
// Case-sensitive: "Delete" does not count.
const deleteConfirmText = "delete"

// AuthService owns registration, login (password and Google), credential
// changes, and account deletion.
type AuthService struct {
	users     repository.UserRepository
	data      repository.UserDataRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	data repository.UserDataRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		data:      data,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued session token.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account plus its empty profile document (one
// transaction) and issues a session token.
//
// Input is validated before storage is touched. The uniqueness pre-check
// gives the common case a clean 409; the repository's UNIQUE constraint
// catches the race where two registrations pass the check together.
func (s *AuthService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	if !usernamePattern.MatchString(username) {
		return nil, apperror.ValidationFailed("username",
			"Username must be at least 3 characters and contain only letters, numbers, and underscores.")
	}
	if len(password) < minPasswordLen {
		return nil, apperror.ValidationFailed("password",
			"Password must be at least 6 characters long")
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperror.Conflict("user", "username already exists")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{Username: username, PasswordHash: hash}
	if err := s.users.CreateWithData(ctx, user, model.NewUserData("")); err != nil {
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("username", username))

	return s.issueToken(user)
}

// Login verifies a username/password pair and issues a session token.
//
// Unknown user and wrong password return the identical error so a caller
// can't probe which usernames exist. When the user is missing we still burn
// a bcrypt comparison to keep the timing of both paths alike.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	invalid := apperror.Unauthorized("Invalid username or password")

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		_ = s.passwords.Verify("$2a$12$C6UzMDM.H6dfI/f/IKcEeO7Jr5EaPpjzz5dEujmJdFQtbeiyQpd0m", password)
		return nil, invalid
	}
	if user.PasswordHash == "" {
		// OAuth-only account; password login is never valid for it, and the
		// caller doesn't get to learn that distinction.
		return nil, invalid
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, invalid
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return s.issueToken(user)
}

// LoginOrRegisterGoogle completes an OAuth login: find the account by Google
// subject, create it (with document) on first login, then issue the same
// token format password logins get. No password hash is stored for accounts
// created this way.
func (s *AuthService) LoginOrRegisterGoogle(ctx context.Context, gUser *auth.GoogleUser) (*AuthResult, error) {
	if gUser == nil {
		return nil, fmt.Errorf("service/auth: Google user must not be nil")
	}

	user, err := s.users.GetByGoogleID(ctx, gUser.Sub)
	if err == nil {
		s.logger.Info("user logged in via Google", slog.String("userID", user.ID))
		return s.issueToken(user)
	}

	user = &model.User{
		Username: googleUsername(gUser),
		GoogleID: gUser.Sub,
	}
	if err := s.users.CreateWithData(ctx, user, model.NewUserData("")); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/auth: creating Google user (sub=%s): %w", gUser.Sub, err)
		}
		// Display-name collision with an existing handle; the subject-based
		// fallback is unique by construction.
		user.Username = "user_" + gUser.Sub
		if err := s.users.CreateWithData(ctx, user, model.NewUserData("")); err != nil {
			return nil, fmt.Errorf("service/auth: creating Google user (sub=%s): %w", gUser.Sub, err)
		}
	}

	s.logger.Info("user registered via Google",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issueToken(user)
}

// ChangeUsername renames the account after re-validating the handle. The
// conflict comes from the repository's uniqueness check, leaving the
// original name untouched on failure.
func (s *AuthService) ChangeUsername(ctx context.Context, userID, newUsername string) (*model.User, error) {
	if !usernamePattern.MatchString(newUsername) {
		return nil, apperror.ValidationFailed("newUsername",
			"Username must be at least 3 characters and contain only letters, numbers, and underscores.")
	}

	if err := s.users.UpdateUsername(ctx, userID, newUsername); err != nil {
		return nil, fmt.Errorf("service/auth: renaming user %s: %w", userID, err)
	}

	s.logger.Info("username changed", slog.String("userID", userID), slog.String("username", newUsername))

	return s.users.GetByID(ctx, userID)
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return apperror.ValidationFailed("newPassword",
			"New password must be at least 6 characters long")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	if user.PasswordHash == "" {
		return apperror.ValidationFailed("currentPassword",
			"This account has no password; it signs in with Google")
	}
	if err := s.passwords.Verify(user.PasswordHash, currentPassword); err != nil {
		return apperror.Unauthorized("Current password is incorrect")
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("service/auth: hashing new password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/auth: updating password for %s: %w", userID, err)
	}

	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

// DeleteAccount removes the credential and the profile document. The caller
// has to type the literal confirmation phrase — this is irreversible, there
// is no soft delete.
func (s *AuthService) DeleteAccount(ctx context.Context, userID, confirmText string) error {
	if confirmText != deleteConfirmText {
		return apperror.ValidationFailed("confirmText",
			`Must type "delete" to confirm account deletion`)
	}

	// The user row cascades to user_data; the explicit document delete
	// covers stores without the cascade wired.
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("service/auth: deleting user %s: %w", userID, err)
	}
	if err := s.data.DeleteData(ctx, userID); err != nil {
		return fmt.Errorf("service/auth: deleting user data %s: %w", userID, err)
	}

	s.logger.Info("account deleted", slog.String("userID", userID))
	return nil
}

// CountUsers reports the registered-user total for the health probe.
func (s *AuthService) CountUsers(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

func (s *AuthService) issueToken(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Identity{UserID: user.ID, Username: user.Username})
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// googleUsername derives a handle from the Google profile. Display names can
// contain anything, so strip to the allowed alphabet and pad with the
// subject when the result is too short.
func googleUsername(gUser *auth.GoogleUser) string {
	cleaned := make([]rune, 0, len(gUser.Name))
	for _, r := range gUser.Name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			cleaned = append(cleaned, r)
		case r == ' ':
			cleaned = append(cleaned, '_')
		}
	}
	name := string(cleaned)
	if len(name) < 3 {
		name = "user_" + gUser.Sub
	}
	return name
}
