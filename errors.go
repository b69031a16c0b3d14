package authgate

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateAccount  = "DUPLICATE_ACCOUNT"
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeUnauthenticated   = "UNAUTHENTICATED"
	TextCodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	TextCodeAlreadyConfirmed  = "ALREADY_CONFIRMED"
	TextCodePasswordMismatch  = "PASSWORD_MISMATCH"
	TextCodeInvalidToken      = "INVALID_TOKEN"
	TextCodeInvalidTrustState = "INVALID_TRUST_TRANSITION"
)

// ErrDuplicateAccount is returned when email or username is already taken.
var ErrDuplicateAccount = errors.New("an account with that email or username already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(errors.CodeConflict)

// ErrInvalidCredentials covers absent account, unconfirmed account, and
// failed password verification. All three collapse into one message so
// callers cannot discover which accounts exist.
var ErrInvalidCredentials = errors.New("username or password incorrect", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrUnauthenticated covers a missing, invalid, or expired token as
// well as a token whose trust level is insufficient for the route.
var ErrUnauthenticated = errors.New("unauthenticated", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrAccountNotFound is returned on the confirmation path when the
// pending token references an email with no account behind it.
var ErrAccountNotFound = errors.New("no pending account for this identity, sign up with the provider first", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrAlreadyConfirmed is returned when confirming an account that has
// already been confirmed. It doubles as replay protection for pending
// tokens since the trust transition is irreversible.
var ErrAlreadyConfirmed = errors.New("account already confirmed", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyConfirmed).
	WithCode(errors.CodeConflict)

// ErrPasswordMismatch is returned when password and confirmation differ.
var ErrPasswordMismatch = errors.New("passwords don't match", errors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(errors.CodeBadRequest)

// ErrInvalidToken is the single error every token verification failure
// collapses into: bad signature, expired, malformed. Callers must not
// be able to distinguish the reasons.
var ErrInvalidToken = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString is the error we return for empty password input
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not
// match its stored digest.
var ErrMismatchedHashAndPassword = errors.New("hashed password mismatch", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// IsDuplicateConstraint will check a storage error for a uniqueness
// violation across the drivers we support.
func IsDuplicateConstraint(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "Duplicate entry")
}
