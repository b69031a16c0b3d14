package authgate

import (
	"context"

	"github.com/goliatone/go-errors"
)

// SignupInput carries the fields for a direct, non-federated signup.
type SignupInput struct {
	Email      string
	Username   string
	Password   string
	AvatarLink string
}

// Auther implements the local signup/signin flow. Accounts created
// here are confirmed immediately, there is no provisional stage for
// direct signups.
type Auther struct {
	accounts Accounts
	tokens   TokenService
	hasher   PasswordAuthenticator
	logger   Logger
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(accounts Accounts, tokens TokenService) *Auther {
	return &Auther{
		accounts: accounts,
		tokens:   tokens,
		hasher:   NewPasswordAuthenticator(),
		logger:   defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithPasswordAuthenticator swaps the password hashing scheme.
func (s *Auther) WithPasswordAuthenticator(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// Signup hashes the password first and only then touches the store, so
// a cancelled request never leaves a half-written account. Duplicate
// email or username surfaces as ErrDuplicateAccount from the insert
// itself, there is no check-then-act window.
func (s *Auther) Signup(ctx context.Context, in SignupInput) (string, *Account, error) {
	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return "", nil, richErr
		}
		return "", nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	account := &Account{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		AvatarLink:   in.AvatarLink,
		TrustState:   TrustConfirmed,
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		s.logger.Error("Signup create account error", "error", err, "email", in.Email)
		return "", nil, err
	}

	token, err := s.tokens.IssueSession(NewIdentityFromAccount(created))
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("Signup created account", "username", created.Username)

	return token, created, nil
}

// Signin verifies a username/password pair. Absent account, still
// provisional account, and wrong password all collapse into
// ErrInvalidCredentials so the response never reveals which check
// failed.
func (s *Auther) Signin(ctx context.Context, username, password string) (string, error) {
	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", ErrInvalidCredentials
		}
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during signin")
	}

	if !account.Confirmed() {
		return "", ErrInvalidCredentials
	}

	if err := s.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.IssueSession(NewIdentityFromAccount(account))
	if err != nil {
		return "", err
	}

	return token, nil
}
