// Package auth provides email/password account registration and login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/avdeck/cueroom/internal/domain"
	"github.com/avdeck/cueroom/internal/store"
)

var (
	ErrInvalidEmail       = errors.New("auth: invalid email address")
	ErrWeakPassword       = errors.New("auth: password must be at least 6 characters")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
)

// bcryptCost is deliberately above the library default.
const bcryptCost = 12

const minPasswordLen = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserStore is the slice of the store the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

// Service registers and authenticates users against the store.
type Service struct {
	store UserStore
}

func NewService(st UserStore) *Service {
	return &Service{store: st}
}

// Register creates an account. The email is lowercased so logins are
// case-insensitive; the display name falls back to the email's local
// part when empty.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return domain.User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return domain.User{}, ErrWeakPassword
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}
	if err := domain.ValidateDisplayName(displayName); err != nil {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, domain.User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	})
	if errors.Is(err, store.ErrConflict) {
		return domain.User{}, ErrEmailTaken
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password return the same error so accounts cannot be enumerated.
func (s *Service) Login(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// UserByID loads the account behind a session.
func (s *Service) UserByID(ctx context.Context, id string) (domain.User, error) {
	return s.store.GetUserByID(ctx, id)
}
