package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
	"github.com/CauseImYourFat/real-life-rpg/internal/model"
	"github.com/CauseImYourFat/real-life-rpg/internal/repository"
)

// TamagotchiService is the command processor for the virtual-pet economy.
// Every mutation follows the same shape: load the document, apply exactly
// one command, save (version-checked), return the updated sub-document.
type TamagotchiService struct {
	data   repository.UserDataRepository
	users  repository.UserRepository
	logger *slog.Logger
	now    func() time.Time // injectable clock for the cooldown tests
}

func NewTamagotchiService(
	data repository.UserDataRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *TamagotchiService {
	return &TamagotchiService{
		data:   data,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the user's tamagotchi sub-document, materializing the default
// (full shop, empty hive, zero points) on first access.
func (s *TamagotchiService) Get(ctx context.Context, userID string) (*model.Tamagotchi, error) {
	data, err := s.loadDocument(ctx, userID)
	if err != nil {
		return nil, err
	}
	if data.Tamagotchi == nil {
		data.Tamagotchi = model.NewTamagotchi()
		if err := s.data.Save(ctx, data); err != nil {
			return nil, fmt.Errorf("service/tamagotchi: saving default for %s: %w", userID, err)
		}
	}
	return data.Tamagotchi, nil
}

// Apply runs one command against the user's document and persists the
// result. A version conflict (another command landed first) surfaces as a
// conflict error; the client reloads and retries at its own discretion.
func (s *TamagotchiService) Apply(ctx context.Context, userID string, cmd Command) (*model.Tamagotchi, error) {
	// Transfer touches two documents and has its own save path.
	if transfer, ok := cmd.(TransferPet); ok {
		return s.applyTransfer(ctx, userID, transfer)
	}

	data, err := s.loadDocument(ctx, userID)
	if err != nil {
		return nil, err
	}
	if data.Tamagotchi == nil {
		data.Tamagotchi = model.NewTamagotchi()
	}
	t := data.Tamagotchi
	now := s.now().UTC()

	switch c := cmd.(type) {
	case BuyPet:
		err = s.buyPet(t, c, now)
	case EditPet:
		err = s.editPet(t, c, now)
	case DeletePet:
		s.deletePet(t, c.PetID)
	case SellPet:
		err = s.sellPet(t, c)
	case SetCurrent:
		if t.Owned(c.PetID) {
			t.CurrentMascot = c.PetID
		}
	case ClaimDaily:
		err = s.claimDaily(t, c, now)
	case BuyFood:
		err = s.buyFood(t, c)
	case UseFood:
		err = s.useFood(t, c)
	case GainXP:
		err = s.gainXP(t, c)
	default:
		return nil, fmt.Errorf("service/tamagotchi: unhandled command %T", cmd)
	}
	if err != nil {
		return nil, err
	}

	s.record(t, cmd, now)

	if err := s.data.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("service/tamagotchi: saving document %s: %w", userID, err)
	}
	return t, nil
}

// buyPet creates the pet record and puts it in the hive. Buying a pet you
// already own is a no-op. The first pet is free; after that the fixed price
// is deducted, and an empty wallet is a hard rejection — points can't go
// negative.
func (s *TamagotchiService) buyPet(t *model.Tamagotchi, c BuyPet, now time.Time) error {
	if t.Owned(c.PetID) {
		return nil
	}

	price := 0
	if len(t.Purchased) > 0 {
		price = model.PetPrice
	}
	if t.GneePoints < price {
		return apperror.ValidationFailed("gneePoints",
			fmt.Sprintf("not enough Gnee! points: pet costs %d, balance is %d", price, t.GneePoints))
	}
	t.GneePoints -= price

	t.Purchased[c.PetID] = &model.Pet{
		Name:        c.PetID,
		AssetFolder: slug.Make(c.PetID),
		Actions:     model.DefaultPetActions(),
		Level:       1,
		CreatedAt:   now,
		EditHistory: []model.ChangeRecord{},
	}
	t.Hive = append(t.Hive, c.PetID)
	t.CurrentMascot = c.PetID
	return nil
}

// editPet merges the allowed fields into the pet record and appends the full
// change set to the pet's edit history. Unknown keys are recorded but not
// applied. Editing an unowned pet is a no-op.
func (s *TamagotchiService) editPet(t *model.Tamagotchi, c EditPet, now time.Time) error {
	pet, ok := t.Purchased[c.PetID]
	if !ok {
		return nil
	}

	if name, ok := c.Changes["name"].(string); ok && name != "" {
		pet.Name = name
	}
	if folder, ok := c.Changes["assetFolder"].(string); ok && folder != "" {
		pet.AssetFolder = slug.Make(folder)
	}
	if raw, ok := c.Changes["actions"].([]any); ok {
		actions := make([]string, 0, len(raw))
		for _, a := range raw {
			if str, ok := a.(string); ok {
				actions = append(actions, str)
			}
		}
		pet.Actions = actions
	}

	pet.EditHistory = append(pet.EditHistory, model.ChangeRecord{
		ID:        uuid.NewString(),
		Changes:   c.Changes,
		Timestamp: now,
	})
	return nil
}

func (s *TamagotchiService) deletePet(t *model.Tamagotchi, petID string) {
	delete(t.Purchased, petID)
	delete(t.MascotXP, petID)
	t.RemoveFromHive(petID)
}

// sellPet is a delete that refunds half the purchase price.
func (s *TamagotchiService) sellPet(t *model.Tamagotchi, c SellPet) error {
	if !t.Owned(c.PetID) {
		return apperror.NotFound("pet", c.PetID)
	}
	s.deletePet(t, c.PetID)
	t.GneePoints += model.SellRefund
	return nil
}

// claimDaily grants the daily points, at most once per 24 hours.
func (s *TamagotchiService) claimDaily(t *model.Tamagotchi, c ClaimDaily, now time.Time) error {
	if t.LastClaimAt != nil {
		if wait := model.ClaimCooldown - now.Sub(*t.LastClaimAt); wait > 0 {
			return apperror.ValidationFailed("lastClaimAt",
				fmt.Sprintf("daily points already claimed; next claim in %s", wait.Round(time.Minute)))
		}
	}
	t.GneePoints += c.Amount
	t.LastClaimAt = &now
	return nil
}

func (s *TamagotchiService) buyFood(t *model.Tamagotchi, c BuyFood) error {
	if t.GneePoints < model.FoodPrice {
		return apperror.ValidationFailed("gneePoints",
			fmt.Sprintf("not enough Gnee! points: food costs %d, balance is %d", model.FoodPrice, t.GneePoints))
	}
	t.GneePoints -= model.FoodPrice
	t.Food = append(t.Food, c.FoodID)
	return nil
}

// useFood consumes one inventory instance and sets the food's permanent buff
// flag on the document.
func (s *TamagotchiService) useFood(t *model.Tamagotchi, c UseFood) error {
	for i, f := range t.Food {
		if f == c.FoodID {
			t.Food = append(t.Food[:i], t.Food[i+1:]...)
			t.Buffs[c.FoodID] = true
			return nil
		}
	}
	return apperror.NotFound("food", c.FoodID)
}

// gainXP adds XP and applies level-ups. The threshold to leave a level grows
// about 5% per level (model.XPThreshold); leftover XP past a threshold
// carries into the new level, and a single large grant can cross several
// levels.
func (s *TamagotchiService) gainXP(t *model.Tamagotchi, c GainXP) error {
	pet, ok := t.Purchased[c.PetID]
	if !ok {
		return apperror.NotFound("pet", c.PetID)
	}

	xp := t.MascotXP[c.PetID] + c.Amount
	for threshold := model.XPThreshold(pet.Level); xp >= threshold; threshold = model.XPThreshold(pet.Level) {
		xp -= threshold
		pet.Level++
	}
	t.MascotXP[c.PetID] = xp
	return nil
}

// applyTransfer moves a pet between two users' documents in one storage
// transaction: the sender loses the record, hive slot and XP, the recipient
// gains all three. Either both documents persist or neither does.
func (s *TamagotchiService) applyTransfer(ctx context.Context, userID string, c TransferPet) (*model.Tamagotchi, error) {
	recipient, err := s.users.GetByUsername(ctx, c.ToUser)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("user", c.ToUser)
		}
		return nil, fmt.Errorf("service/tamagotchi: resolving recipient %q: %w", c.ToUser, err)
	}
	if recipient.ID == userID {
		return nil, apperror.ValidationFailed("toUser", "cannot transfer a pet to yourself")
	}

	sender, err := s.loadDocument(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sender.Tamagotchi == nil {
		sender.Tamagotchi = model.NewTamagotchi()
	}
	if !sender.Tamagotchi.Owned(c.PetID) {
		return nil, apperror.NotFound("pet", c.PetID)
	}

	receiver, err := s.loadDocument(ctx, recipient.ID)
	if err != nil {
		return nil, err
	}
	if receiver.Tamagotchi == nil {
		receiver.Tamagotchi = model.NewTamagotchi()
	}
	if receiver.Tamagotchi.Owned(c.PetID) {
		return nil, apperror.Conflict("pet", fmt.Sprintf("%s already owns a pet named %q", c.ToUser, c.PetID))
	}

	now := s.now().UTC()
	st, rt := sender.Tamagotchi, receiver.Tamagotchi

	// Move the record, hive membership, and accumulated XP.
	rt.Purchased[c.PetID] = st.Purchased[c.PetID]
	rt.Hive = append(rt.Hive, c.PetID)
	if rt.CurrentMascot == "" {
		rt.CurrentMascot = c.PetID
	}
	if xp, ok := st.MascotXP[c.PetID]; ok {
		rt.MascotXP[c.PetID] = xp
	}
	s.deletePet(st, c.PetID)

	s.record(st, c, now)

	if err := s.data.SaveBoth(ctx, sender, receiver); err != nil {
		return nil, fmt.Errorf("service/tamagotchi: saving transfer %s → %s: %w", userID, recipient.ID, err)
	}

	s.logger.Info("pet transferred",
		slog.String("pet", c.PetID),
		slog.String("from", userID),
		slog.String("to", recipient.ID),
	)
	return st, nil
}

// loadDocument fetches the document, materializing the default for users who
// have never saved anything.
func (s *TamagotchiService) loadDocument(ctx context.Context, userID string) (*model.UserData, error) {
	data, err := s.data.Get(ctx, userID)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/tamagotchi: loading document %s: %w", userID, err)
	}
	return model.NewUserData(userID), nil
}

// record appends a change record for the command to the document-level edit
// history.
func (s *TamagotchiService) record(t *model.Tamagotchi, cmd Command, now time.Time) {
	changes := map[string]any{}
	switch c := cmd.(type) {
	case BuyPet:
		changes["action"], changes["mascotType"] = "buy", c.PetID
	case EditPet:
		changes["action"], changes["mascotType"] = "edit", c.PetID
	case DeletePet:
		changes["action"], changes["mascotType"] = "delete", c.PetID
	case SellPet:
		changes["action"], changes["mascotType"] = "sell", c.PetID
	case TransferPet:
		changes["action"], changes["mascotType"], changes["toUser"] = "transfer", c.PetID, c.ToUser
	case SetCurrent:
		changes["action"], changes["mascotType"] = "setCurrent", c.PetID
	case ClaimDaily:
		changes["action"], changes["amount"] = "claimDaily", c.Amount
	case BuyFood:
		changes["action"], changes["foodName"] = "buyFood", c.FoodID
	case UseFood:
		changes["action"], changes["foodName"] = "useFood", c.FoodID
	case GainXP:
		changes["action"], changes["mascotType"], changes["amount"] = "gainXP", c.PetID, c.Amount
	}

	t.EditHistory = append(t.EditHistory, model.ChangeRecord{
		ID:        uuid.NewString(),
		Changes:   changes,
		Timestamp: now,
	})
}
