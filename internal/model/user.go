// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account — the credential record.
//
// Accounts come in two flavours:
//   - Password accounts: created via /api/register, PasswordHash is set.
//   - Google accounts: created on first OAuth login, GoogleID is set and
//     PasswordHash stays empty (those users never chose a password).
//
// WHY ID string (xid) WHEN Username IS ALREADY UNIQUE?
// The username is mutable — users can rename themselves. Tokens, the
// user_data join key, and pet transfer references all use the immutable
// internal ID so a rename never invalidates a session or orphans a document.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialized; empty for OAuth-only accounts
	GoogleID     string    `json:"-"` // provider-assigned subject, unique when present
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
