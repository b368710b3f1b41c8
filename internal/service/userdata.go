package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
	"github.com/CauseImYourFat/real-life-rpg/internal/model"
	"github.com/CauseImYourFat/real-life-rpg/internal/repository"
)

// UserDataService owns the profile document: loading it (creating the empty
// default on first access) and applying partial updates from the various
// save endpoints.
type UserDataService struct {
	data   repository.UserDataRepository
	logger *slog.Logger
}

func NewUserDataService(data repository.UserDataRepository, logger *slog.Logger) *UserDataService {
	return &UserDataService{data: data, logger: logger}
}

// DataUpdate is a partial document update: nil sections are left untouched,
// non-nil sections replace what's stored. This mirrors the wire contract —
// the client only sends the tabs the user actually edited.
type DataUpdate struct {
	Skills      map[string]map[string]int  `json:"skills"`
	Health      map[string]json.RawMessage `json:"health"`
	Preferences map[string]json.RawMessage `json:"preferences"`
	Profile     *model.Profile             `json:"profile"`
}

// Get loads the user's document, materializing the empty default if the user
// has never saved anything. (OAuth users created before the document existed
// and pre-migration accounts hit this path.)
func (s *UserDataService) Get(ctx context.Context, userID string) (*model.UserData, error) {
	data, err := s.data.Get(ctx, userID)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/userdata: loading document %s: %w", userID, err)
	}

	data = model.NewUserData(userID)
	if err := s.data.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("service/userdata: creating default document %s: %w", userID, err)
	}
	s.logger.Info("created default user document", slog.String("userID", userID))
	return data, nil
}

// SaveData applies a partial update and stamps LastSaved.
func (s *UserDataService) SaveData(ctx context.Context, userID string, update DataUpdate) (*model.UserData, error) {
	if err := validateSkills(update.Skills); err != nil {
		return nil, err
	}

	data, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Skills != nil {
		data.Skills = update.Skills
	}
	if update.Health != nil {
		data.Health = update.Health
	}
	if update.Preferences != nil {
		data.Preferences = update.Preferences
	}
	if update.Profile != nil {
		data.Profile = *update.Profile
	}

	if err := s.data.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("service/userdata: saving document %s: %w", userID, err)
	}
	return data, nil
}

// SaveHealth replaces the health section wholesale — the health tab always
// sends its complete state.
func (s *UserDataService) SaveHealth(ctx context.Context, userID string, health map[string]json.RawMessage) (*model.UserData, error) {
	data, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	data.Health = health
	if data.Health == nil {
		data.Health = map[string]json.RawMessage{}
	}

	if err := s.data.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("service/userdata: saving health %s: %w", userID, err)
	}
	return data, nil
}

// UpdateProfile replaces the description/image pair. Missing fields become
// empty strings, matching how the profile page always submits both.
func (s *UserDataService) UpdateProfile(ctx context.Context, userID string, profile model.Profile) (*model.UserData, error) {
	data, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	data.Profile = profile

	if err := s.data.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("service/userdata: saving profile %s: %w", userID, err)
	}
	return data, nil
}

// validateSkills bounds every level to [MinSkillLevel, MaxSkillLevel].
func validateSkills(skills map[string]map[string]int) error {
	for category, byName := range skills {
		for skill, level := range byName {
			if level < model.MinSkillLevel || level > model.MaxSkillLevel {
				return apperror.ValidationFailed("skills",
					fmt.Sprintf("skill level for %s/%s must be between %d and %d",
						category, skill, model.MinSkillLevel, model.MaxSkillLevel))
			}
		}
	}
	return nil
}
