package authgate

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

// HashParams tunes the argon2id digest.
type HashParams struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
}

// DefaultHashParams are sized for interactive logins.
var DefaultHashParams = HashParams{Memory: 64 * 1024, Time: 3, Parallelism: 1, KeyLen: 32}

// HashPassword will generate an argon2id password digest in PHC form:
// $argon2id$v=19$m=...,t=...,p=...$<saltB64>$<dkB64>
func HashPassword(password string) (string, error) {
	return HashPasswordWithParams(DefaultHashParams, password)
}

// HashPasswordWithParams hashes with explicit parameters. The salt is
// random per call and embedded in the digest.
func HashPasswordWithParams(p HashParams, password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	dk := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// ComparePasswordAndHash will validate the given cleartext password
// against a stored digest. A malformed digest never panics or errors
// out differently, it reports a mismatch.
func ComparePasswordAndHash(password, hash string) error {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return ErrMismatchedHashAndPassword
	}

	var m, t, p int
	if n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil || n != 3 {
		return ErrMismatchedHashAndPassword
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrMismatchedHashAndPassword
	}
	stored, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return ErrMismatchedHashAndPassword
	}

	key := argon2.IDKey([]byte(password), salt, uint32(t), uint32(m), uint8(p), uint32(len(stored)))
	if subtle.ConstantTimeCompare(key, stored) != 1 {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

// RandomPasswordHash is the placeholder credential a provisional
// account carries until its owner picks a real password.
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

type argon2Hasher struct{}

func (argon2Hasher) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

func (argon2Hasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// NewPasswordAuthenticator returns the default argon2id implementation.
func NewPasswordAuthenticator() PasswordAuthenticator {
	return argon2Hasher{}
}
