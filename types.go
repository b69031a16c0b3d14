package authgate

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of a resolved account attached to a request
type Identity interface {
	ID() string
	Username() string
	Email() string
	AvatarLink() string
	TrustState() TrustState
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetPendingTokenDuration() time.Duration
	GetIssuer() string
	GetAudience() []string
}

// TokenService issues and verifies the two token shapes the service
// deals in: full session tokens for confirmed accounts, and short-lived
// pending tokens that carry a federated email through the confirmation
// step.
type TokenService interface {
	IssueSession(identity Identity) (string, error)
	IssuePending(email string) (string, time.Time, error)
	SignClaims(claims *Claims) (string, error)
	Validate(token string) (*Claims, error)
}

// Accounts is the contract the auth flows need from the account store.
// Uniqueness on email and username is enforced by the store: Create
// surfaces ErrDuplicateAccount rather than a generic failure, and
// PromoteToConfirmed is a conditional write that succeeds only while
// the account is still provisional.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	Create(ctx context.Context, record *Account) (*Account, error)
	PromoteToConfirmed(ctx context.Context, email, username, passwordHash string) (*Account, error)
	UpdateAvatar(ctx context.Context, email, link string) (*Account, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// DefaultLogger returns the fallback stdout logger used when no Logger
// is wired in.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
