package model

import (
	"encoding/json"
	"time"
)

// UserData is the per-user profile document: everything the app tracks for
// one account, stored as a single JSON aggregate keyed by the user's ID.
//
// The health and preferences sections are deliberately free-form
// (json.RawMessage) — the frontend owns their shape and the server never
// interprets them, it only stores and returns them. Skills and the
// tamagotchi sub-document ARE interpreted server-side, so they get real
// types.
//
// Version is the optimistic-concurrency token. Every save is conditional on
// the version the document was loaded with; a concurrent writer bumps it and
// the slower writer's save fails with a conflict instead of silently
// overwriting. The field is storage-level bookkeeping and never leaves the
// server.
type UserData struct {
	UserID      string                     `json:"userId"`
	Skills      map[string]map[string]int  `json:"skills"`      // category → skill → level (0–10)
	Health      map[string]json.RawMessage `json:"health"`      // category → arbitrary metric payload
	Preferences map[string]json.RawMessage `json:"preferences"` // free-form app settings
	Profile     Profile                    `json:"profile"`
	Tamagotchi  *Tamagotchi                `json:"tamagotchi,omitempty"`
	LastSaved   time.Time                  `json:"lastSaved"`
	Version     int64                      `json:"-"`
}

// Profile is the public-facing part of the document: a description blurb and
// a profile image (URL or data URI — the server doesn't care which).
type Profile struct {
	Description  string `json:"description"`
	ProfileImage string `json:"profileImage"`
}

// MinSkillLevel and MaxSkillLevel bound every stored skill level.
const (
	MinSkillLevel = 0
	MaxSkillLevel = 10
)

// NewUserData returns an empty document for a freshly registered user.
// Every collection is allocated so handlers never have to nil-check before
// writing into the maps.
func NewUserData(userID string) *UserData {
	return &UserData{
		UserID:      userID,
		Skills:      map[string]map[string]int{},
		Health:      map[string]json.RawMessage{},
		Preferences: map[string]json.RawMessage{},
		Profile:     Profile{},
		LastSaved:   time.Now().UTC(),
	}
}
