package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
	"github.com/CauseImYourFat/real-life-rpg/internal/model"
	"github.com/CauseImYourFat/real-life-rpg/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Create inserts a new user, generating the internal ID and timestamps.
// A username collision comes back as apperror.ErrConflict.
//
// The registration flow checks uniqueness before calling Create, but two
// requests can pass that check simultaneously — the UNIQUE constraint is the
// backstop, and we translate its violation into the same conflict error the
// pre-check produces.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	return db.insertUser(ctx, db.conn, user)
}

// CreateWithData inserts the user and their empty profile document in a
// single transaction. Registration uses this so a crash between the two
// writes can't leave an orphaned credential.
func (db *DB) CreateWithData(ctx context.Context, user *model.User, data *model.UserData) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning tx: %w", err)
	}
	defer tx.Rollback()

	if err := db.insertUser(ctx, tx, user); err != nil {
		return err
	}

	data.UserID = user.ID
	if err := insertUserData(ctx, tx, data); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing user+data: %w", err)
	}
	return nil
}

// execer lets insertUser run against either the pool or a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (db *DB) insertUser(ctx context.Context, ex execer, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := ex.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, google_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		nullable(user.GoogleID),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "username already exists")
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// GetByID retrieves a user by internal ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetByUsername retrieves a user by their (unique) username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, `WHERE username = ?`, username)
}

// GetByGoogleID retrieves a user by their Google subject identifier.
func (db *DB) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return db.getUser(ctx, `WHERE google_id = ?`, googleID)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u        model.User
		googleID sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, google_id, created_at, updated_at
		 FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &googleID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user (%v): %w", arg, err)
	}
	u.GoogleID = googleID.String

	return &u, nil
}

// UpdateUsername renames a user. A collision with another account's name
// surfaces as apperror.ErrConflict; the row is untouched in that case.
func (db *DB) UpdateUsername(ctx context.Context, id, newUsername string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET username = ?, updated_at = ? WHERE id = ?`,
		newUsername, time.Now(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "username already exists")
		}
		return fmt.Errorf("sqlite: renaming user %s: %w", id, err)
	}
	return requireRow(res, "user", id)
}

// UpdatePassword replaces the stored password hash.
func (db *DB) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %s: %w", id, err)
	}
	return requireRow(res, "user", id)
}

// Delete removes the user. The user_data row goes with it via the
// ON DELETE CASCADE foreign key.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	return requireRow(res, "user", id)
}

// Count returns the number of registered users.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

// requireRow converts a zero-row update/delete into a not-found error.
func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

// nullable maps "" to NULL so the UNIQUE(google_id) constraint ignores
// password-only accounts.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation detects a UNIQUE constraint failure. The pure-Go driver
// exposes no typed error for this, so we match the SQLite message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
