package service

import (
	"context"
	"errors"
	"testing"

	"github.com/CauseImYourFat/real-life-rpg/internal/apperror"
	"github.com/CauseImYourFat/real-life-rpg/internal/auth"
)

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, *fakeDataRepo) {
	t.Helper()
	data := newFakeDataRepo()
	users := newFakeUserRepo(data)
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	// Minimum bcrypt cost keeps the hashing in these tests fast.
	passwords := auth.NewPasswordService(4)
	return NewAuthService(users, data, tokens, passwords, testLogger()), users, data
}

func TestRegister(t *testing.T) {
	svc, _, data := newTestAuthService(t)

	result, err := svc.Register(context.Background(), "alice", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if result.Token == "" {
		t.Error("Register() should issue a session token")
	}
	if result.User.ID == "" {
		t.Error("Register() should assign a user ID")
	}
	if result.User.PasswordHash == "password123" {
		t.Error("password must be stored hashed, not plaintext")
	}

	// Registration creates the document alongside the credential.
	if _, err := data.Get(context.Background(), result.User.ID); err != nil {
		t.Errorf("Register() should create the user document: %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"username too short", "ab", "password123"},
		{"username with spaces", "bad name", "password123"},
		{"username with symbols", "alice!", "password123"},
		{"password too short", "alice", "12345"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.username, tc.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register(%q, %q) error = %v, want validation error", tc.username, tc.password, err)
			}
		})
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	mustRegister(t, svc, "alice", "password123")

	_, err := svc.Register(context.Background(), "alice", "different456")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Register() with taken username error = %v, want conflict", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	mustRegister(t, svc, "alice", "password123")

	result, err := svc.Login(context.Background(), "alice", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" {
		t.Error("Login() should issue a session token")
	}
}

// Wrong password and unknown user must be indistinguishable to the caller.
func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	mustRegister(t, svc, "alice", "password123")

	_, errWrongPass := svc.Login(context.Background(), "alice", "wrong-password")
	_, errNoUser := svc.Login(context.Background(), "nobody", "password123")

	for name, err := range map[string]error{"wrong password": errWrongPass, "unknown user": errNoUser} {
		if !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("Login() %s error = %v, want unauthorized", name, err)
		}
	}
	if errWrongPass.Error() != errNoUser.Error() {
		t.Errorf("login failures should share one message: %q vs %q",
			errWrongPass.Error(), errNoUser.Error())
	}
}

func TestLogin_OAuthOnlyAccount(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.LoginOrRegisterGoogle(context.Background(), &auth.GoogleUser{
		Sub: "google-sub-1", Name: "Alice Smith",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGoogle() error = %v", err)
	}

	// The account has no password hash, so password login must fail with the
	// same generic message as any bad credential.
	_, err = svc.Login(context.Background(), "Alice_Smith", "anything-at-all")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login() on OAuth-only account error = %v, want unauthorized", err)
	}
}

func TestLoginOrRegisterGoogle(t *testing.T) {
	svc, _, data := newTestAuthService(t)
	gUser := &auth.GoogleUser{Sub: "google-sub-42", Name: "Bob Jones", Email: "bob@example.com"}

	first, err := svc.LoginOrRegisterGoogle(context.Background(), gUser)
	if err != nil {
		t.Fatalf("LoginOrRegisterGoogle() first call error = %v", err)
	}
	if first.User.Username != "Bob_Jones" {
		t.Errorf("derived username = %q, want %q", first.User.Username, "Bob_Jones")
	}
	if _, err := data.Get(context.Background(), first.User.ID); err != nil {
		t.Errorf("Google registration should create the user document: %v", err)
	}

	// Second login resolves to the same account instead of creating another.
	second, err := svc.LoginOrRegisterGoogle(context.Background(), gUser)
	if err != nil {
		t.Fatalf("LoginOrRegisterGoogle() second call error = %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Errorf("second Google login created a new account: %q vs %q", second.User.ID, first.User.ID)
	}
}

func TestLoginOrRegisterGoogle_UsernameCollision(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	mustRegister(t, svc, "Bob_Jones", "password123")

	result, err := svc.LoginOrRegisterGoogle(context.Background(), &auth.GoogleUser{
		Sub: "google-sub-42", Name: "Bob Jones",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGoogle() error = %v", err)
	}
	if result.User.Username != "user_google-sub-42" {
		t.Errorf("collision fallback username = %q, want %q", result.User.Username, "user_google-sub-42")
	}
}

func TestChangeUsername(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	user := mustRegister(t, svc, "alice", "password123")

	updated, err := svc.ChangeUsername(context.Background(), user.ID, "alice_new")
	if err != nil {
		t.Fatalf("ChangeUsername() error = %v", err)
	}
	if updated.Username != "alice_new" {
		t.Errorf("Username = %q, want %q", updated.Username, "alice_new")
	}
}

func TestChangeUsername_Errors(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	alice := mustRegister(t, svc, "alice", "password123")
	mustRegister(t, svc, "bob", "password123")

	if _, err := svc.ChangeUsername(context.Background(), alice.ID, "a!"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("ChangeUsername() invalid handle error = %v, want validation", err)
	}
	if _, err := svc.ChangeUsername(context.Background(), alice.ID, "bob"); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("ChangeUsername() to taken handle error = %v, want conflict", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	user := mustRegister(t, svc, "alice", "password123")

	if err := svc.ChangePassword(context.Background(), user.ID, "password123", "newpassword456"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if _, err := svc.Login(context.Background(), "alice", "password123"); err == nil {
		t.Error("old password should stop working after a change")
	}
	if _, err := svc.Login(context.Background(), "alice", "newpassword456"); err != nil {
		t.Errorf("new password should work after a change: %v", err)
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	user := mustRegister(t, svc, "alice", "password123")

	err := svc.ChangePassword(context.Background(), user.ID, "not-my-password", "newpassword456")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("ChangePassword() with wrong current error = %v, want unauthorized", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	svc, users, data := newTestAuthService(t)
	user := mustRegister(t, svc, "alice", "password123")

	if err := svc.DeleteAccount(context.Background(), user.ID, "delete"); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	if _, err := users.GetByID(context.Background(), user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("user should be gone after deletion")
	}
	if _, err := data.Get(context.Background(), user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("user document should be gone after deletion")
	}
}

// The confirmation phrase is case-sensitive: "Delete" is not "delete".
func TestDeleteAccount_ConfirmText(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	user := mustRegister(t, svc, "alice", "password123")

	for _, confirm := range []string{"", "Delete", "DELETE", "yes"} {
		err := svc.DeleteAccount(context.Background(), user.ID, confirm)
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("DeleteAccount(confirm=%q) error = %v, want validation", confirm, err)
		}
	}
	if _, err := users.GetByID(context.Background(), user.ID); err != nil {
		t.Error("account must survive a failed confirmation")
	}
}

func TestCountUsers(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	mustRegister(t, svc, "alice", "password123")
	mustRegister(t, svc, "bob", "password123")

	count, err := svc.CountUsers(context.Background())
	if err != nil {
		t.Fatalf("CountUsers() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountUsers() = %d, want 2", count)
	}
}
