package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aruzhan/gostash/internal/config"
)

type fakeUserStore struct {
	mu      sync.Mutex
	users   map[string]User
	findErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]User)}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, email, passwordHash string, fullName *string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[email]; exists {
		return User{}, ErrEmailAlreadyExists
	}
	user := User{
		ID:           uuid.New(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.users[email] = user
	return user, nil
}

func (f *fakeUserStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return User{}, f.findErr
	}
	user, ok := f.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func newTestAuthService(store *fakeUserStore) *Service {
	return NewService(store, config.AuthConfig{
		TokenSecret: "test-secret",
		TokenTTL:    time.Hour,
		BcryptCost:  4,
	})
}

func TestRegisterIssuesValidToken(t *testing.T) {
	service := newTestAuthService(newFakeUserStore())

	result, err := service.Register(context.Background(), RegisterInput{
		Email:    "Alice@X.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if result.User.Email != "alice@x.com" {
		t.Fatalf("email must be stored lowercased, got %q", result.User.Email)
	}
	if result.User.PasswordHash != "" {
		t.Fatalf("response must not carry the password hash")
	}

	claims, err := service.ValidateToken(result.Token.Value)
	if err != nil {
		t.Fatalf("issued token must validate: %v", err)
	}
	if claims.UserID != result.User.ID || claims.Email != "alice@x.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	service := newTestAuthService(newFakeUserStore())

	input := RegisterInput{Email: "alice@x.com", Password: "correct-horse"}
	if _, err := service.Register(context.Background(), input); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := service.Register(context.Background(), input); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestRegisterValidatesCredentials(t *testing.T) {
	service := newTestAuthService(newFakeUserStore())

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"malformed email", "not-an-email", "correct-horse"},
		{"short password", "alice@x.com", "short"},
		{"oversized password", "alice@x.com", strings.Repeat("x", 73)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Register(context.Background(), RegisterInput{
				Email:    tc.email,
				Password: tc.password,
			})
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestLoginVerifiesPassword(t *testing.T) {
	store := newFakeUserStore()
	service := newTestAuthService(store)

	if _, err := service.Register(context.Background(), RegisterInput{
		Email:    "alice@x.com",
		Password: "correct-horse",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := service.Login(context.Background(), LoginInput{
		Email:    "ALICE@x.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Token.Value == "" {
		t.Fatalf("login must issue a token")
	}

	if _, err := service.Login(context.Background(), LoginInput{
		Email:    "alice@x.com",
		Password: "wrong-password",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginHidesUnknownUsers(t *testing.T) {
	service := newTestAuthService(newFakeUserStore())

	_, err := service.Login(context.Background(), LoginInput{
		Email:    "ghost@x.com",
		Password: "correct-horse",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user must look like bad credentials, got %v", err)
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	service := newTestAuthService(newFakeUserStore())

	result, err := service.Register(context.Background(), RegisterInput{
		Email:    "alice@x.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := service.ValidateToken(result.Token.Value + "x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("tampered token must be rejected, got %v", err)
	}

	other := NewService(newFakeUserStore(), config.AuthConfig{
		TokenSecret: "different-secret",
		TokenTTL:    time.Hour,
		BcryptCost:  4,
	})
	if _, err := other.ValidateToken(result.Token.Value); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("token signed with another secret must be rejected, got %v", err)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	store := newFakeUserStore()
	service := newTestAuthService(store)
	service.nowFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	result, err := service.Register(context.Background(), RegisterInput{
		Email:    "alice@x.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := service.ValidateToken(result.Token.Value); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired token must be rejected, got %v", err)
	}
}
