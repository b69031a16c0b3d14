package authgate_test

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/mritob/authgate"
	"github.com/stretchr/testify/mock"
)

func goerrNotFound() error {
	return errors.New("record not found", errors.CategoryNotFound).
		WithCode(errors.CodeNotFound)
}

// MockAccounts implements authgate.Accounts
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) FindByEmail(ctx context.Context, email string) (*authgate.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authgate.Account), args.Error(1)
}

func (m *MockAccounts) FindByUsername(ctx context.Context, username string) (*authgate.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authgate.Account), args.Error(1)
}

func (m *MockAccounts) Create(ctx context.Context, record *authgate.Account) (*authgate.Account, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authgate.Account), args.Error(1)
}

func (m *MockAccounts) PromoteToConfirmed(ctx context.Context, email, username, passwordHash string) (*authgate.Account, error) {
	args := m.Called(ctx, email, username, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authgate.Account), args.Error(1)
}

func (m *MockAccounts) UpdateAvatar(ctx context.Context, email, link string) (*authgate.Account, error) {
	args := m.Called(ctx, email, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authgate.Account), args.Error(1)
}

// MockTokenService implements authgate.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) IssueSession(identity authgate.Identity) (string, error) {
	args := m.Called(identity)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) IssuePending(email string) (string, time.Time, error) {
	args := m.Called(email)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockTokenService) SignClaims(claims *authgate.Claims) (string, error) {
	args := m.Called(claims)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Validate(token string) (*authgate.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authgate.Claims), args.Error(1)
}
