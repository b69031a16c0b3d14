package authgate_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mritob/authgate"
	"github.com/stretchr/testify/assert"
)

func TestClaims(t *testing.T) {
	now := time.Now()

	claims := &authgate.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "account-id",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Username: "bob",
		Email:    "bob@example.com",
	}

	assert.Equal(t, "account-id", claims.UserID())
	assert.False(t, claims.Pending())
	assert.WithinDuration(t, now.Add(time.Hour), claims.Expires(), time.Second)
	assert.WithinDuration(t, now, claims.IssuedTime(), time.Second)
}

func TestClaims_Pending(t *testing.T) {
	claims := &authgate.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: authgate.PendingSubject,
		},
		Email: "bob@example.com",
	}

	assert.True(t, claims.Pending())
	assert.Equal(t, "-42", claims.UserID())
}
