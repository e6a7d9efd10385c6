package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chattykathys/chattykathy/domain"
)

// AuthService handles credential signup and login.
type AuthService struct {
	users  domain.UserRepository
	hasher domain.Hasher
}

func NewAuthService(users domain.UserRepository, hasher domain.Hasher) *AuthService {
	return &AuthService{users: users, hasher: hasher}
}

func (s *AuthService) Signup(ctx context.Context, email, password string) (domain.User, error) {
	email = normalizeEmail(email)

	_, err := s.users.UserByEmail(ctx, email)
	if err == nil {
		return domain.User{}, domain.ErrEmailTaken
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("looking up email: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, hash)
	if err != nil {
		return domain.User{}, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, error) {
	user, err := s.users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("looking up email: %w", err)
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
