package model

import (
	"math"
	"time"
)

// Economy constants. Prices are in Gnee! points, the app's only currency.
const (
	// PetPrice is what a pet costs in the shop. The very first pet is free —
	// a new user has zero points and needs a way in.
	PetPrice = 5
	// FoodPrice is the cost of one food item.
	FoodPrice = 1
	// SellRefund is what a sold pet returns to the balance (half price,
	// rounded down).
	SellRefund = PetPrice / 2
	// DailyClaimAmount is the default daily point grant.
	DailyClaimAmount = 1
	// ClaimCooldown is the minimum gap between two daily claims.
	ClaimCooldown = 24 * time.Hour
	// BaseXPThreshold is the XP needed to go from level 1 to level 2.
	BaseXPThreshold = 100
)

// DefaultShop is the catalog shown to every new user. The entries double as
// pet IDs and as asset folder names under the pets directory.
func DefaultShop() []string {
	return []string{"white dog", "Frog", "Bird", "plant"}
}

// DefaultPetActions are the animations every pet starts with. Further
// actions unlock as the pet levels.
func DefaultPetActions() []string {
	return []string{"wake", "run", "sleep"}
}

// Tamagotchi is the virtual-pet economy sub-document.
//
// Hive is the ordered list of owned pet IDs (insertion order — the UI renders
// it left to right); Purchased holds the actual pet records keyed by the same
// IDs. CurrentMascot is the pet shown on the main page, empty when the hive
// is empty.
type Tamagotchi struct {
	MascotXP      map[string]int  `json:"mascotXP"`  // pet ID → XP inside the current level
	Purchased     map[string]*Pet `json:"purchased"` // pet ID → record
	Shop          []string        `json:"shop"`
	Hive          []string        `json:"hive"`
	CurrentMascot string          `json:"currentMascot"`
	GneePoints    int             `json:"gneePoints"`
	Food          []string        `json:"food"`  // owned food items, duplicates allowed
	Buffs         map[string]bool `json:"buffs"` // food ID → permanent buff active
	LastClaimAt   *time.Time      `json:"lastClaimAt,omitempty"`
	EditHistory   []ChangeRecord  `json:"editHistory"`
}

// Pet is one owned pet. Level starts at 1; XP toward the next level lives in
// Tamagotchi.MascotXP, not here, mirroring how the document was always laid
// out on the wire.
type Pet struct {
	Name        string         `json:"name"`
	AssetFolder string         `json:"assetFolder"`
	Actions     []string       `json:"actions"`
	Level       int            `json:"level"`
	CreatedAt   time.Time      `json:"createdAt"`
	EditHistory []ChangeRecord `json:"editHistory"`
}

// ChangeRecord is one entry in an edit history: what changed and when.
type ChangeRecord struct {
	ID        string         `json:"id"`
	Changes   map[string]any `json:"changes"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewTamagotchi returns the default sub-document a user gets on first access:
// full shop, empty hive, zero points.
func NewTamagotchi() *Tamagotchi {
	return &Tamagotchi{
		MascotXP:    map[string]int{},
		Purchased:   map[string]*Pet{},
		Shop:        DefaultShop(),
		Hive:        []string{},
		Food:        []string{},
		Buffs:       map[string]bool{},
		EditHistory: []ChangeRecord{},
	}
}

// XPThreshold returns the XP needed to advance FROM the given level.
// The requirement compounds roughly 5% per level:
//
//	threshold(1) = 100
//	threshold(n) = round(threshold(n-1) × (1 + 0.05 × n))
//
// so level 1→2 takes 100 XP, 2→3 takes 110, 3→4 takes 127, and so on.
func XPThreshold(level int) int {
	threshold := float64(BaseXPThreshold)
	for l := 2; l <= level; l++ {
		threshold = math.Round(threshold * (1 + 0.05*float64(l)))
	}
	return int(threshold)
}

// Owned reports whether the pet ID is in the hive.
func (t *Tamagotchi) Owned(petID string) bool {
	_, ok := t.Purchased[petID]
	return ok
}

// RemoveFromHive deletes petID from the hive list, preserving order of the
// rest. CurrentMascot falls back to the first remaining hive entry (or empty)
// when the removed pet was current.
func (t *Tamagotchi) RemoveFromHive(petID string) {
	hive := t.Hive[:0]
	for _, id := range t.Hive {
		if id != petID {
			hive = append(hive, id)
		}
	}
	t.Hive = hive
	if t.CurrentMascot == petID {
		if len(t.Hive) > 0 {
			t.CurrentMascot = t.Hive[0]
		} else {
			t.CurrentMascot = ""
		}
	}
}
