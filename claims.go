package authgate

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PendingSubject is the reserved subject for tokens that do not yet
// reference a confirmed session. It only carries a federated email
// through the confirmation step and is never accepted as proof of a
// session. The value is part of the wire format consumed by the
// frontend, keep it stable.
const PendingSubject = "-42"

// Claims is the payload carried by every token the service issues.
// Session tokens set Subject to the account id plus the username and
// email claims; pending tokens set Subject to PendingSubject and carry
// only the email.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// UserID returns the subject as the account identifier.
func (c *Claims) UserID() string {
	return c.RegisteredClaims.Subject
}

// Pending reports whether the token carries the reserved sentinel
// subject instead of an account id.
func (c *Claims) Pending() bool {
	return c.RegisteredClaims.Subject == PendingSubject
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedTime returns the issued at time
func (c *Claims) IssuedTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
