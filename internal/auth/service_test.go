package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/avdeck/cueroom/internal/store"
)

func newService() *Service {
	return NewService(store.NewMemory())
}

func TestRegister(t *testing.T) {
	s := newService()
	ctx := context.Background()

	user, err := s.Register(ctx, "Olive@Studio.Test", "secret1", "Olive")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "olive@studio.test" {
		t.Errorf("email not lowercased: %q", user.Email)
	}
	if user.DisplayName != "Olive" {
		t.Errorf("display name = %q", user.DisplayName)
	}
	if user.ID == "" {
		t.Error("no user id assigned")
	}
	if user.PasswordHash == "secret1" {
		t.Error("password stored in the clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newService()
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		display  string
		wantErr  error
	}{
		{"missing at", "olivestudio.test", "secret1", "Olive", ErrInvalidEmail},
		{"missing domain", "olive@", "secret1", "Olive", ErrInvalidEmail},
		{"spaces", "ol ive@studio.test", "secret1", "Olive", ErrInvalidEmail},
		{"empty email", "", "secret1", "Olive", ErrInvalidEmail},
		{"short password", "olive@studio.test", "12345", "Olive", ErrWeakPassword},
		{"long display name", "olive@studio.test", "secret1", strings.Repeat("x", 256), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Register(ctx, tc.email, tc.password, tc.display)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newService()
	ctx := context.Background()

	if _, err := s.Register(ctx, "olive@studio.test", "secret1", "Olive"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := s.Register(ctx, "OLIVE@studio.test", "other99", "Other")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email got %v, want ErrEmailTaken", err)
	}
}

func TestRegisterDefaultsDisplayName(t *testing.T) {
	s := newService()

	user, err := s.Register(context.Background(), "olive@studio.test", "secret1", "  ")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.DisplayName != "olive" {
		t.Fatalf("display name = %q, want email local part", user.DisplayName)
	}
}

func TestLogin(t *testing.T) {
	s := newService()
	ctx := context.Background()

	reg, err := s.Register(ctx, "olive@studio.test", "secret1", "Olive")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	user, err := s.Login(ctx, "Olive@Studio.Test", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != reg.ID {
		t.Fatalf("login resolved user %q, want %q", user.ID, reg.ID)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	s := newService()
	ctx := context.Background()

	if _, err := s.Register(ctx, "olive@studio.test", "secret1", "Olive"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, wrongPassword := s.Login(ctx, "olive@studio.test", "wrong99")
	_, unknownEmail := s.Login(ctx, "nobody@studio.test", "secret1")

	if !errors.Is(wrongPassword, ErrInvalidCredentials) {
		t.Fatalf("wrong password got %v", wrongPassword)
	}
	if !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("unknown email got %v", unknownEmail)
	}
}
