package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
	"github.com/CauseImYourFat/real-life-rpg/internal/model"
	"github.com/CauseImYourFat/real-life-rpg/internal/repository"
)

// compile-time check that *DB implements repository.UserDataRepository
var _ repository.UserDataRepository = (*DB)(nil)

// Get loads a user's profile document.
func (db *DB) Get(ctx context.Context, userID string) (*model.UserData, error) {
	var (
		raw       []byte
		version   int64
		lastSaved time.Time
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT document, version, last_saved FROM user_data WHERE user_id = ?`,
		userID,
	).Scan(&raw, &version, &lastSaved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user data", userID)
		}
		return nil, fmt.Errorf("sqlite: getting user data %s: %w", userID, err)
	}

	var data model.UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("sqlite: decoding document for %s: %w", userID, err)
	}
	// UserID, Version and LastSaved are authoritative from the row, not the
	// blob.
	data.UserID = userID
	data.Version = version
	data.LastSaved = lastSaved

	return &data, nil
}

// Save persists a document if it hasn't been written since it was loaded.
//
// The UPDATE is conditional on the version column: if another request saved
// in between, zero rows match and the caller gets a conflict instead of
// overwriting the other writer's work. On success the version in the struct
// is bumped to match the row, so a caller can save again.
//
// A document that doesn't exist yet (Version == 0) is INSERTed; the primary
// key rejects a concurrent first-save the same way the version check rejects
// a concurrent update.
func (db *DB) Save(ctx context.Context, data *model.UserData) error {
	return db.save(ctx, db.conn, data)
}

// SaveBoth persists two documents in one transaction, used when a single
// command has to touch two users' documents (pet transfer). Either both
// writes land or neither does; a version conflict on either side aborts the
// whole transaction.
func (db *DB) SaveBoth(ctx context.Context, a, b *model.UserData) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning tx: %w", err)
	}
	defer tx.Rollback()

	if err := db.save(ctx, tx, a); err != nil {
		return err
	}
	if err := db.save(ctx, tx, b); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing two-document save: %w", err)
	}
	return nil
}

func (db *DB) save(ctx context.Context, ex execer, data *model.UserData) error {
	data.LastSaved = time.Now().UTC()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sqlite: encoding document for %s: %w", data.UserID, err)
	}

	if data.Version == 0 {
		_, err := ex.ExecContext(ctx,
			`INSERT INTO user_data (user_id, document, version, last_saved)
			 VALUES (?, ?, 1, ?)`,
			data.UserID, raw, data.LastSaved,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("user data", "document was created concurrently")
			}
			return fmt.Errorf("sqlite: inserting user data %s: %w", data.UserID, err)
		}
		data.Version = 1
		return nil
	}

	res, err := ex.ExecContext(ctx,
		`UPDATE user_data SET document = ?, version = version + 1, last_saved = ?
		 WHERE user_id = ? AND version = ?`,
		raw, data.LastSaved, data.UserID, data.Version,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving user data %s: %w", data.UserID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		// Either the document vanished (account deleted) or someone saved
		// first. Both are "your copy is stale".
		return apperror.Conflict("user data", "document was modified concurrently")
	}
	data.Version++
	return nil
}

// insertUserData is the transactional insert used by CreateWithData.
func insertUserData(ctx context.Context, ex execer, data *model.UserData) error {
	data.LastSaved = time.Now().UTC()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sqlite: encoding document for %s: %w", data.UserID, err)
	}

	if _, err := ex.ExecContext(ctx,
		`INSERT INTO user_data (user_id, document, version, last_saved)
		 VALUES (?, ?, 1, ?)`,
		data.UserID, raw, data.LastSaved,
	); err != nil {
		return fmt.Errorf("sqlite: inserting user data %s: %w", data.UserID, err)
	}
	data.Version = 1
	return nil
}

// DeleteData removes a user's document. Deleting a document that isn't there
// is a no-op — the users → user_data cascade may already have removed the row.
func (db *DB) DeleteData(ctx context.Context, userID string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM user_data WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting user data %s: %w", userID, err)
	}
	return nil
}
