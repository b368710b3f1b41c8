package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
	"github.com/CauseImYourFat/real-life-rpg/internal/model"
)

func TestUserDataSaveAndGet_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	data, err := db.Get(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	data.Skills["fitness"] = map[string]int{"running": 5}
	data.Profile.Description = "level 5 runner"
	if err := db.Save(context.Background(), data); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if data.Version != 2 {
		t.Errorf("Version after save = %d, want 2", data.Version)
	}

	got, err := db.Get(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Get() after save error = %v", err)
	}
	if got.Skills["fitness"]["running"] != 5 {
		t.Errorf("Skills round-trip = %v", got.Skills)
	}
	if got.Profile.Description != "level 5 runner" {
		t.Errorf("Profile round-trip = %+v", got.Profile)
	}
	if got.LastSaved.IsZero() {
		t.Error("LastSaved should be stamped")
	}
}

// The version check: whoever saves second with a stale copy gets a conflict,
// not a silent overwrite.
func TestUserDataSave_StaleVersionConflicts(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	// Two "tabs" load the same version of the document.
	tab1, _ := db.Get(context.Background(), user.ID)
	tab2, _ := db.Get(context.Background(), user.ID)

	tab1.Profile.Description = "from tab 1"
	if err := db.Save(context.Background(), tab1); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}

	tab2.Profile.Description = "from tab 2"
	err := db.Save(context.Background(), tab2)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Save() error = %v, want ErrConflict", err)
	}

	got, _ := db.Get(context.Background(), user.ID)
	if got.Profile.Description != "from tab 1" {
		t.Errorf("stored description = %q, want the first writer's", got.Profile.Description)
	}
}

func TestUserDataSaveBoth_Atomic(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	aData, _ := db.Get(context.Background(), alice.ID)
	bData, _ := db.Get(context.Background(), bob.ID)

	aData.Profile.Description = "sender"
	bData.Profile.Description = "receiver"
	if err := db.SaveBoth(context.Background(), aData, bData); err != nil {
		t.Fatalf("SaveBoth() error = %v", err)
	}

	gotB, _ := db.Get(context.Background(), bob.ID)
	if gotB.Profile.Description != "receiver" {
		t.Errorf("receiver document not saved: %+v", gotB.Profile)
	}
}

// If the second document's version is stale, neither document may change.
func TestUserDataSaveBoth_ConflictRollsBack(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	aData, _ := db.Get(context.Background(), alice.ID)
	bStale, _ := db.Get(context.Background(), bob.ID)

	// Someone else writes bob's document first.
	bFresh, _ := db.Get(context.Background(), bob.ID)
	bFresh.Profile.Description = "interleaved write"
	if err := db.Save(context.Background(), bFresh); err != nil {
		t.Fatalf("interleaved Save() error = %v", err)
	}

	aData.Profile.Description = "should not persist"
	bStale.Profile.Description = "should not persist"
	err := db.SaveBoth(context.Background(), aData, bStale)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("SaveBoth() error = %v, want ErrConflict", err)
	}

	gotA, _ := db.Get(context.Background(), alice.ID)
	if gotA.Profile.Description == "should not persist" {
		t.Error("first document was saved despite the aborted transaction")
	}
}

func TestUserDataTamagotchiDocument_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	data, _ := db.Get(context.Background(), user.ID)
	data.Tamagotchi = model.NewTamagotchi()
	data.Tamagotchi.GneePoints = 7
	data.Tamagotchi.Hive = []string{"Frog"}
	data.Tamagotchi.Purchased["Frog"] = &model.Pet{
		Name:        "Frog",
		AssetFolder: "frog",
		Actions:     model.DefaultPetActions(),
		Level:       1,
	}
	if err := db.Save(context.Background(), data); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, _ := db.Get(context.Background(), user.ID)
	if got.Tamagotchi == nil {
		t.Fatal("Tamagotchi sub-document lost in round-trip")
	}
	if got.Tamagotchi.GneePoints != 7 {
		t.Errorf("GneePoints = %d, want 7", got.Tamagotchi.GneePoints)
	}
	if got.Tamagotchi.Purchased["Frog"].AssetFolder != "frog" {
		t.Errorf("pet record = %+v", got.Tamagotchi.Purchased["Frog"])
	}
}

func TestUserDataDelete_Idempotent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	if err := db.DeleteData(context.Background(), user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := db.DeleteData(context.Background(), user.ID); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
}
