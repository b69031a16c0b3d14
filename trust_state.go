package authgate

import (
	"github.com/goliatone/go-errors"
)

// ErrInvalidTrustTransition is returned when a requested trust change
// is not allowed. The only legal transition is provisional→confirmed;
// a confirmed account never reverts.
var ErrInvalidTrustTransition = errors.New("invalid trust state transition", errors.CategoryConflict).
	WithTextCode(TextCodeInvalidTrustState).
	WithCode(errors.CodeConflict)

var trustTransitions = map[TrustState][]TrustState{
	TrustProvisional: {TrustConfirmed},
	TrustConfirmed:   {},
}

// CanTransitionTrust reports whether moving from one trust state to
// another is allowed.
func CanTransitionTrust(from, to TrustState) bool {
	for _, allowed := range trustTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// EnsureTrustTransition validates a trust state change, returning a
// rich error with both states attached when the move is illegal.
func EnsureTrustTransition(from, to TrustState) error {
	if CanTransitionTrust(from, to) {
		return nil
	}
	return errors.New("invalid trust state transition", errors.CategoryConflict).
		WithTextCode(TextCodeInvalidTrustState).
		WithCode(errors.CodeConflict).
		WithMetadata(map[string]any{
			"from": from,
			"to":   to,
		})
}
