package authgate

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TrustState is the account's trust level
type TrustState = string

const (
	// TrustProvisional marks an account whose identity was confirmed by
	// a federated provider but which has no usable local credential yet.
	TrustProvisional TrustState = "provisional"
	// TrustConfirmed marks an account with an independently set,
	// verifiable local credential.
	TrustConfirmed TrustState = "confirmed"
)

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	AvatarLink    string     `bun:"avatar_link" json:"avatar_link,omitempty"`
	TrustState    TrustState `bun:"trust_state,notnull" json:"trust_state,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Confirmed reports whether the account holds a usable local credential.
func (a *Account) Confirmed() bool {
	return a.TrustState == TrustConfirmed
}

// EnsureTrustState defaults a zero trust state to provisional.
func (a *Account) EnsureTrustState() {
	if a.TrustState == "" {
		a.TrustState = TrustProvisional
	}
}

type accountIdentity struct {
	id         string
	username   string
	email      string
	avatarLink string
	trustState TrustState
}

func (a accountIdentity) ID() string             { return a.id }
func (a accountIdentity) Username() string       { return a.username }
func (a accountIdentity) Email() string          { return a.email }
func (a accountIdentity) AvatarLink() string     { return a.avatarLink }
func (a accountIdentity) TrustState() TrustState { return a.trustState }

var _ Identity = accountIdentity{}

// NewIdentityFromAccount returns the identity view of an account, or
// nil when the account is nil.
func NewIdentityFromAccount(acc *Account) Identity {
	if acc == nil {
		return nil
	}
	return accountIdentity{
		id:         acc.ID.String(),
		username:   acc.Username,
		email:      acc.Email,
		avatarLink: acc.AvatarLink,
		trustState: acc.TrustState,
	}
}
