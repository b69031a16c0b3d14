package authgate

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// Profile is the verified identity a federation provider hands us:
// the provider has already authenticated the user and vouches for the
// email.
type Profile struct {
	Email      string
	Username   string
	AvatarLink string
}

// LinkOutcome is the result of resolving a federated profile. When
// Pending is true the token is a sentinel token and the user still has
// to pick local credentials; otherwise it is a full session token.
type LinkOutcome struct {
	Account *Account
	Token   string

	// ExpiresAt is set for pending tokens so the transport can bound
	// the cookie to the token lifetime.
	ExpiresAt time.Time

	Pending bool
	IsNew   bool
}

// IdentityLinker reconciles federated identities with local accounts.
// First contact creates a provisional account; a later confirmation
// call promotes it. A returning confirmed user gets a session token
// straight away.
type IdentityLinker struct {
	accounts Accounts
	tokens   TokenService
	hasher   PasswordAuthenticator
	logger   Logger
}

// NewIdentityLinker returns a new IdentityLinker
func NewIdentityLinker(accounts Accounts, tokens TokenService) *IdentityLinker {
	return &IdentityLinker{
		accounts: accounts,
		tokens:   tokens,
		hasher:   NewPasswordAuthenticator(),
		logger:   defLogger{},
	}
}

func (l *IdentityLinker) WithLogger(logger Logger) *IdentityLinker {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// WithPasswordAuthenticator swaps the password hashing scheme.
func (l *IdentityLinker) WithPasswordAuthenticator(hasher PasswordAuthenticator) *IdentityLinker {
	if hasher != nil {
		l.hasher = hasher
	}
	return l
}

// Resolve maps a verified federated profile onto exactly one local
// account, creating a provisional one on first contact. The returned
// outcome branches on trust state: confirmed accounts get a session
// token, provisional ones get a sentinel token and are NOT logged in.
func (l *IdentityLinker) Resolve(ctx context.Context, profile Profile) (*LinkOutcome, error) {
	if profile.Email == "" {
		return nil, errors.New("federated profile has no email", errors.CategoryBadInput)
	}

	isNew := false
	account, err := l.accounts.FindByEmail(ctx, profile.Email)
	if err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}

		account, err = l.provisionAccount(ctx, profile)
		if err != nil {
			return nil, err
		}
		isNew = true
	}

	if account.Confirmed() {
		token, err := l.tokens.IssueSession(NewIdentityFromAccount(account))
		if err != nil {
			return nil, err
		}
		return &LinkOutcome{Account: account, Token: token, Pending: false, IsNew: isNew}, nil
	}

	token, expires, err := l.tokens.IssuePending(account.Email)
	if err != nil {
		return nil, err
	}

	return &LinkOutcome{Account: account, Token: token, ExpiresAt: expires, Pending: true, IsNew: isNew}, nil
}

// provisionAccount inserts the provisional record. Two concurrent
// first contacts for the same email race on the insert; the loser hits
// the uniqueness constraint and adopts the winner's row.
func (l *IdentityLinker) provisionAccount(ctx context.Context, profile Profile) (*Account, error) {
	draft := &Account{
		Email:        profile.Email,
		Username:     profile.Username,
		AvatarLink:   profile.AvatarLink,
		PasswordHash: RandomPasswordHash(),
		TrustState:   TrustProvisional,
	}

	created, err := l.accounts.Create(ctx, draft)
	if err == nil {
		l.logger.Info("provisioned federated account", "email", profile.Email)
		return created, nil
	}

	if errors.Is(err, ErrDuplicateAccount) {
		return l.accounts.FindByEmail(ctx, profile.Email)
	}

	return nil, err
}

// PendingProfile resolves the account referenced by a sentinel token,
// for the confirmation page to prefill. Any token problem collapses to
// ErrUnauthenticated.
func (l *IdentityLinker) PendingProfile(ctx context.Context, rawToken string) (*Account, error) {
	claims, err := l.tokens.Validate(rawToken)
	if err != nil || !claims.Pending() {
		return nil, ErrUnauthenticated
	}

	account, err := l.accounts.FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return account, nil
}

// Confirm finishes a federated signup: it verifies the sentinel token,
// hashes the chosen password, and promotes the account with a single
// conditional write so replays and concurrent confirms lose cleanly.
// On success the caller gets a full session token.
func (l *IdentityLinker) Confirm(ctx context.Context, rawToken, username, password, passwordConfirmation string) (string, *Account, error) {
	claims, err := l.tokens.Validate(rawToken)
	if err != nil || !claims.Pending() {
		return "", nil, ErrUnauthenticated
	}

	account, err := l.accounts.FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", nil, ErrAccountNotFound
		}
		return "", nil, err
	}

	if err := EnsureTrustTransition(account.TrustState, TrustConfirmed); err != nil {
		return "", nil, ErrAlreadyConfirmed
	}

	if password != passwordConfirmation {
		return "", nil, ErrPasswordMismatch
	}

	if username == "" {
		username = account.Username
	}

	hash, err := l.hasher.HashPassword(password)
	if err != nil {
		return "", nil, err
	}

	promoted, err := l.accounts.PromoteToConfirmed(ctx, account.Email, username, hash)
	if err != nil {
		return "", nil, err
	}

	token, err := l.tokens.IssueSession(NewIdentityFromAccount(promoted))
	if err != nil {
		return "", nil, err
	}

	l.logger.Info("confirmed federated account", "email", promoted.Email, "username", promoted.Username)

	return token, promoted, nil
}
