package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattykathys/chattykathy/adapters/hasher"
	"github.com/chattykathys/chattykathy/domain"
)

type fakeUsers struct {
	mu    sync.Mutex
	users []domain.User
}

func (f *fakeUsers) CreateUser(ctx context.Context, email, passwordHash string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := domain.User{ID: email, Email: email, PasswordHash: passwordHash}
	f.users = append(f.users, user)
	return user, nil
}

func (f *fakeUsers) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (f *fakeUsers) UserByID(ctx context.Context, id string) (domain.User, error) {
	return f.UserByEmail(ctx, id)
}

func TestSignupAndLogin(t *testing.T) {
	svc := NewAuthService(&fakeUsers{}, hasher.New())
	ctx := context.Background()

	user, err := svc.Signup(ctx, "  Frodo@Shire.example ", "nine-fingers")
	require.NoError(t, err)
	assert.Equal(t, "frodo@shire.example", user.Email)
	assert.NotEqual(t, "nine-fingers", user.PasswordHash)

	_, err = svc.Signup(ctx, "frodo@shire.example", "another-pass")
	require.ErrorIs(t, err, domain.ErrEmailTaken)

	logged, err := svc.Login(ctx, "FRODO@shire.example", "nine-fingers")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	_, err = svc.Login(ctx, "frodo@shire.example", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@shire.example", "nine-fingers")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
