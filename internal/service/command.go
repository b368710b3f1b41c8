package service

import (
	"encoding/json"
	"fmt"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
)

// The tamagotchi endpoint accepts one flat JSON object with an action tag:
//
//	{"action": "buy", "mascotType": "Frog"}
//	{"action": "gainXP", "mascotType": "Frog", "amount": 150}
//
// Internally each action is its own command type with exactly the fields it
// needs, so the processor can't reach for a field that doesn't belong to the
// action and each payload is validated in one place (DecodeCommand).

// Command is the closed set of tamagotchi mutations. The unexported method
// keeps the union sealed to this package.
type Command interface {
	isCommand()
}

type BuyPet struct{ PetID string }

// EditPet merges Changes into the pet record and appends an edit-history
// entry. Applying it to a pet the user doesn't own is a no-op.
type EditPet struct {
	PetID   string
	Changes map[string]any
}

type DeletePet struct{ PetID string }

// SellPet removes the pet and refunds half its price.
type SellPet struct{ PetID string }

// TransferPet moves the pet (record, hive slot, XP) to another user.
type TransferPet struct {
	PetID  string
	ToUser string // recipient's username
}

type SetCurrent struct{ PetID string }

// ClaimDaily grants Amount points, at most once per 24h.
type ClaimDaily struct{ Amount int }

type BuyFood struct{ FoodID string }

type UseFood struct{ FoodID string }

type GainXP struct {
	PetID  string
	Amount int
}

func (BuyPet) isCommand()      {}
func (EditPet) isCommand()     {}
func (DeletePet) isCommand()   {}
func (SellPet) isCommand()     {}
func (TransferPet) isCommand() {}
func (SetCurrent) isCommand()  {}
func (ClaimDaily) isCommand()  {}
func (BuyFood) isCommand()     {}
func (UseFood) isCommand()     {}
func (GainXP) isCommand()      {}

// commandWire is the flat payload as it arrives. petId and foodId are
// accepted as aliases for the original mascotType/foodName field names so
// both generations of clients keep working.
type commandWire struct {
	Action     string         `json:"action"`
	MascotType string         `json:"mascotType"`
	PetID      string         `json:"petId"`
	Changes    map[string]any `json:"changes"`
	ToUser     string         `json:"toUser"`
	Amount     *int           `json:"amount"`
	FoodName   string         `json:"foodName"`
	FoodID     string         `json:"foodId"`
}

func (w commandWire) petID() string {
	if w.MascotType != "" {
		return w.MascotType
	}
	return w.PetID
}

func (w commandWire) foodID() string {
	if w.FoodName != "" {
		return w.FoodName
	}
	return w.FoodID
}

// DecodeCommand parses the wire payload into a typed command, validating the
// fields the action requires. Unknown actions and missing fields are
// validation errors — the client sent something malformed, not something
// forbidden.
func DecodeCommand(raw []byte) (Command, error) {
	var w commandWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, apperror.ValidationFailed("body", "invalid JSON body")
	}

	requirePet := func() (string, error) {
		if id := w.petID(); id != "" {
			return id, nil
		}
		return "", apperror.ValidationFailed("mascotType",
			fmt.Sprintf("action %q requires a pet", w.Action))
	}

	switch w.Action {
	case "buy", "buy-pet":
		id, err := requirePet()
		if err != nil {
			return nil, err
		}
		return BuyPet{PetID: id}, nil

	case "edit", "edit-pet":
		id, err := requirePet()
		if err != nil {
			return nil, err
		}
		if len(w.Changes) == 0 {
			return nil, apperror.ValidationFailed("changes", "edit requires a changes object")
		}
		return EditPet{PetID: id, Changes: w.Changes}, nil

	case "delete", "delete-pet":
		id, err := requirePet()
		if err != nil {
			return nil, err
		}
		return DeletePet{PetID: id}, nil

	case "sell", "sell-pet":
		id, err := requirePet()
		if err != nil {
			return nil, err
		}
		return SellPet{PetID: id}, nil

	case "transfer", "transfer-pet":
		id, err := requirePet()
		if err != nil {
			return nil, err
		}
		if w.ToUser == "" {
			return nil, apperror.ValidationFailed("toUser", "transfer requires a recipient")
		}
		return TransferPet{PetID: id, ToUser: w.ToUser}, nil

	case "setCurrent", "set-current":
		id, err := requirePet()
		if err != nil {
			return nil, err
		}
		return SetCurrent{PetID: id}, nil

	case "claimDaily", "claim-daily-points":
		amount := 1
		if w.Amount != nil {
			amount = *w.Amount
		}
		if amount <= 0 {
			return nil, apperror.ValidationFailed("amount", "claim amount must be positive")
		}
		return ClaimDaily{Amount: amount}, nil

	case "buyFood", "buy-food":
		id := w.foodID()
		if id == "" {
			return nil, apperror.ValidationFailed("foodName", "buyFood requires a food item")
		}
		return BuyFood{FoodID: id}, nil

	case "useFood", "use-food":
		id := w.foodID()
		if id == "" {
			return nil, apperror.ValidationFailed("foodName", "useFood requires a food item")
		}
		return UseFood{FoodID: id}, nil

	case "gainXP", "gain-xp":
		id, err := requirePet()
		if err != nil {
			return nil, err
		}
		if w.Amount == nil || *w.Amount <= 0 {
			return nil, apperror.ValidationFailed("amount", "gainXP requires a positive amount")
		}
		return GainXP{PetID: id, Amount: *w.Amount}, nil

	case "":
		return nil, apperror.ValidationFailed("action", "action is required")
	default:
		return nil, apperror.ValidationFailed("action", fmt.Sprintf("unknown action %q", w.Action))
	}
}
