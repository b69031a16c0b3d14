package authgate_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mritob/authgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pendingClaims(email string) *authgate.Claims {
	return &authgate.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   authgate.PendingSubject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
		},
		Email: email,
	}
}

func sessionClaims(id, username, email string) *authgate.Claims {
	return &authgate.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
		Username: username,
		Email:    email,
	}
}

func TestResolve_FirstContact(t *testing.T) {
	ctx := context.Background()
	accounts := new(MockAccounts)
	tokens := new(MockTokenService)

	linker := authgate.NewIdentityLinker(accounts, tokens)

	profile := authgate.Profile{
		Email:      "bob@example.com",
		Username:   "bob",
		AvatarLink: "https://cdn.example.com/bob.png",
	}

	accounts.On("FindByEmail", ctx, "bob@example.com").
		Return(nil, goerrNotFound()).Once()

	accounts.On("Create", ctx, mock.MatchedBy(func(a *authgate.Account) bool {
		return a.Email == "bob@example.com" &&
			a.Username == "bob" &&
			a.TrustState == authgate.TrustProvisional &&
			a.PasswordHash != ""
	})).Return(&authgate.Account{
		Email:      "bob@example.com",
		Username:   "bob",
		TrustState: authgate.TrustProvisional,
	}, nil).Once()

	pendingExpiry := time.Now().Add(10 * time.Minute)
	tokens.On("IssuePending", "bob@example.com").
		Return("pending-token", pendingExpiry, nil).Once()

	outcome, err := linker.Resolve(ctx, profile)
	require.NoError(t, err)

	assert.True(t, outcome.Pending)
	assert.True(t, outcome.IsNew)
	assert.Equal(t, "pending-token", outcome.Token)
	assert.Equal(t, pendingExpiry, outcome.ExpiresAt)
	assert.Equal(t, authgate.TrustProvisional, outcome.Account.TrustState)

	accounts.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

func TestResolve_ReturningConfirmed(t *testing.T) {
	ctx := context.Background()
	accounts := new(MockAccounts)
	tokens := new(MockTokenService)

	linker := authgate.NewIdentityLinker(accounts, tokens)

	accounts.On("FindByEmail", ctx, "bob@example.com").Return(&authgate.Account{
		ID:         uuid.New(),
		Email:      "bob@example.com",
		Username:   "bob",
		TrustState: authgate.TrustConfirmed,
	}, nil).Once()

	tokens.On("IssueSession", mock.MatchedBy(func(i authgate.Identity) bool {
		return i.Email() == "bob@example.com"
	})).Return("session-token", nil).Once()

	outcome, err := linker.Resolve(ctx, authgate.Profile{Email: "bob@example.com"})
	require.NoError(t, err)

	assert.False(t, outcome.Pending)
	assert.False(t, outcome.IsNew)
	assert.Equal(t, "session-token", outcome.Token)

	accounts.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

func TestResolve_ReturningProvisional(t *testing.T) {
	ctx := context.Background()
	accounts := new(MockAccounts)
	tokens := new(MockTokenService)

	linker := authgate.NewIdentityLinker(accounts, tokens)

	// The user bailed mid signup last time. No new row, still pending.
	accounts.On("FindByEmail", ctx, "bob@example.com").Return(&authgate.Account{
		Email:      "bob@example.com",
		Username:   "bob",
		TrustState: authgate.TrustProvisional,
	}, nil).Once()

	tokens.On("IssuePending", "bob@example.com").
		Return("pending-token", time.Now().Add(10*time.Minute), nil).Once()

	outcome, err := linker.Resolve(ctx, authgate.Profile{Email: "bob@example.com"})
	require.NoError(t, err)

	assert.True(t, outcome.Pending)
	assert.False(t, outcome.IsNew)

	accounts.AssertExpectations(t)
}

func TestResolve_InsertRaceAdoptsWinner(t *testing.T) {
	ctx := context.Background()
	accounts := new(MockAccounts)
	tokens := new(MockTokenService)

	linker := authgate.NewIdentityLinker(accounts, tokens)

	accounts.On("FindByEmail", ctx, "bob@example.com").
		Return(nil, goerrNotFound()).Once()

	// A concurrent request won the insert.
	accounts.On("Create", ctx, mock.Anything).
		Return(nil, authgate.ErrDuplicateAccount).Once()

	accounts.On("FindByEmail", ctx, "bob@example.com").Return(&authgate.Account{
		Email:      "bob@example.com",
		Username:   "bob",
		TrustState: authgate.TrustProvisional,
	}, nil).Once()

	tokens.On("IssuePending", "bob@example.com").
		Return("pending-token", time.Now().Add(10*time.Minute), nil).Once()

	outcome, err := linker.Resolve(ctx, authgate.Profile{Email: "bob@example.com"})
	require.NoError(t, err)

	assert.True(t, outcome.Pending)

	accounts.AssertExpectations(t)
}

func TestResolve_MissingEmail(t *testing.T) {
	linker := authgate.NewIdentityLinker(new(MockAccounts), new(MockTokenService))

	_, err := linker.Resolve(context.Background(), authgate.Profile{Username: "bob"})
	assert.Error(t, err)
}

func TestPendingProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("valid sentinel token", func(t *testing.T) {
		accounts := new(MockAccounts)
		tokens := new(MockTokenService)
		linker := authgate.NewIdentityLinker(accounts, tokens)

		tokens.On("Validate", "raw-token").Return(pendingClaims("bob@example.com"), nil).Once()
		accounts.On("FindByEmail", ctx, "bob@example.com").Return(&authgate.Account{
			Email:      "bob@example.com",
			Username:   "bob",
			TrustState: authgate.TrustProvisional,
		}, nil).Once()

		account, err := linker.PendingProfile(ctx, "raw-token")
		require.NoError(t, err)
		assert.Equal(t, "bob", account.Username)
	})

	t.Run("session token rejected", func(t *testing.T) {
		tokens := new(MockTokenService)
		linker := authgate.NewIdentityLinker(new(MockAccounts), tokens)

		tokens.On("Validate", "raw-token").
			Return(sessionClaims("id-1", "bob", "bob@example.com"), nil).Once()

		_, err := linker.PendingProfile(ctx, "raw-token")
		assert.ErrorIs(t, err, authgate.ErrUnauthenticated)
	})

	t.Run("invalid token", func(t *testing.T) {
		tokens := new(MockTokenService)
		linker := authgate.NewIdentityLinker(new(MockAccounts), tokens)

		tokens.On("Validate", "raw-token").Return(nil, authgate.ErrInvalidToken).Once()

		_, err := linker.PendingProfile(ctx, "raw-token")
		assert.ErrorIs(t, err, authgate.ErrUnauthenticated)
	})

	t.Run("account gone", func(t *testing.T) {
		accounts := new(MockAccounts)
		tokens := new(MockTokenService)
		linker := authgate.NewIdentityLinker(accounts, tokens)

		tokens.On("Validate", "raw-token").Return(pendingClaims("bob@example.com"), nil).Once()
		accounts.On("FindByEmail", ctx, "bob@example.com").
			Return(nil, goerrNotFound()).Once()

		_, err := linker.PendingProfile(ctx, "raw-token")
		assert.ErrorIs(t, err, authgate.ErrAccountNotFound)
	})
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		accounts := new(MockAccounts)
		tokens := new(MockTokenService)
		linker := authgate.NewIdentityLinker(accounts, tokens)

		tokens.On("Validate", "raw-token").Return(pendingClaims("bob@example.com"), nil).Once()
		accounts.On("FindByEmail", ctx, "bob@example.com").Return(&authgate.Account{
			Email:      "bob@example.com",
			Username:   "bob42",
			TrustState: authgate.TrustProvisional,
		}, nil).Once()

		accounts.On("PromoteToConfirmed", ctx, "bob@example.com", "bob", mock.MatchedBy(func(hash string) bool {
			return authgate.ComparePasswordAndHash("chosen-password", hash) == nil
		})).Return(&authgate.Account{
			ID:         uuid.New(),
			Email:      "bob@example.com",
			Username:   "bob",
			TrustState: authgate.TrustConfirmed,
		}, nil).Once()

		tokens.On("IssueSession", mock.Anything).Return("session-token", nil).Once()

		token, account, err := linker.Confirm(ctx, "raw-token", "bob", "chosen-password", "chosen-password")
		require.NoError(t, err)

		assert.Equal(t, "session-token", token)
		assert.Equal(t, authgate.TrustConfirmed, account.TrustState)

		accounts.AssertExpectations(t)
		tokens.AssertExpectations(t)
	})

	t.Run("keeps provider username when none given", func(t *testing.T) {
		accounts := new(MockAccounts)
		tokens := new(MockTokenService)
		linker := authgate.NewIdentityLinker(accounts, tokens)

		tokens.On("Validate", "raw-token").Return(pendingClaims("bob@example.com"), nil).Once()
		accounts.On("FindByEmail", ctx, "bob@example.com").Return(&authgate.Account{
			Email:      "bob@example.com",
			Username:   "bob42",
			TrustState: authgate.TrustProvisional,
		}, nil).Once()

		accounts.On("PromoteToConfirmed", ctx, "bob@example.com", "bob42", mock.Anything).
			Return(&authgate.Account{
				Email:      "bob@example.com",
				Username:   "bob42",
				TrustState: authgate.TrustConfirmed,
			}, nil).Once()

		tokens.On("IssueSession", mock.Anything).Return("session-token", nil).Once()

		_, _, err := linker.Confirm(ctx, "raw-token", "", "chosen-password", "chosen-password")
		require.NoError(t, err)

		accounts.AssertExpectations(t)
	})

	t.Run("password mismatch", func(t *testing.T) {
		accounts := new(MockAccounts)
		tokens := new(MockTokenService)
		linker := authgate.NewIdentityLinker(accounts, tokens)

		tokens.On("Validate", "raw-token").Return(pendingClaims("bob@example.com"), nil).Once()
		accounts.On("FindByEmail", ctx, "bob@example.com").Return(&authgate.Account{
			Email:      "bob@example.com",
			TrustState: authgate.TrustProvisional,
		}, nil).Once()

		_, _, err := linker.Confirm(ctx, "raw-token", "bob", "password-one", "password-two")
		assert.ErrorIs(t, err, authgate.ErrPasswordMismatch)
	})

	t.Run("already confirmed", func(t *testing.T) {
		accounts := new(MockAccounts)
		tokens := new(MockTokenService)
		linker := authgate.NewIdentityLinker(accounts, tokens)

		tokens.On("Validate", "raw-token").Return(pendingClaims("bob@example.com"), nil).Once()
		accounts.On("FindByEmail", ctx, "bob@example.com").Return(&authgate.Account{
			Email:      "bob@example.com",
			TrustState: authgate.TrustConfirmed,
		}, nil).Once()

		_, _, err := linker.Confirm(ctx, "raw-token", "bob", "pw", "pw")
		assert.ErrorIs(t, err, authgate.ErrAlreadyConfirmed)
	})

	t.Run("session token rejected", func(t *testing.T) {
		tokens := new(MockTokenService)
		linker := authgate.NewIdentityLinker(new(MockAccounts), tokens)

		tokens.On("Validate", "raw-token").
			Return(sessionClaims("id-1", "bob", "bob@example.com"), nil).Once()

		_, _, err := linker.Confirm(ctx, "raw-token", "bob", "pw", "pw")
		assert.ErrorIs(t, err, authgate.ErrUnauthenticated)
	})
}
