package federation

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// StateManager encodes the OAuth state parameter on the way out and
// verifies it on the way back.
type StateManager interface {
	Encode(state *State) (string, error)
	Decode(token string) (*State, error)
}

// State is the payload round-tripped through the provider. The nonce
// makes every envelope unique; IssuedAt/ExpiresAt bound the window in
// which the callback is honored.
type State struct {
	Nonce       string `json:"n"`
	Provider    string `json:"p"`
	RedirectURL string `json:"r,omitempty"`
	IssuedAt    int64  `json:"iat"`
	ExpiresAt   int64  `json:"exp"`
}

// Expired reports whether the callback window has closed.
func (s *State) Expired(now time.Time) bool {
	return now.Unix() > s.ExpiresAt
}

// EncryptedStateManager seals the state with AES-GCM and prepends an
// HMAC-SHA256 signature over the sealed bytes. The envelope on the
// wire is base64url(signature || gcmNonce || ciphertext).
type EncryptedStateManager struct {
	encryptionKey []byte
	hmacKey       []byte
	ttl           time.Duration
}

// NewEncryptedStateManager creates a new encrypted state manager.
func NewEncryptedStateManager(encryptionKey, hmacKey []byte, ttl time.Duration) *EncryptedStateManager {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &EncryptedStateManager{
		encryptionKey: encryptionKey,
		hmacKey:       hmacKey,
		ttl:           ttl,
	}
}

// Encode seals and signs the state, stamping defaults first.
func (sm *EncryptedStateManager) Encode(state *State) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}
	sm.stamp(state)

	plaintext, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	gcm, err := sm.aead()
	if err != nil {
		return "", err
	}

	gcmNonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(gcmNonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(gcmNonce, gcmNonce, plaintext, nil)
	envelope := append(sm.sign(sealed), sealed...)

	return base64.URLEncoding.EncodeToString(envelope), nil
}

// Decode verifies and opens the envelope before checking the callback
// window. Everything but expiry collapses to ErrInvalidState.
func (sm *EncryptedStateManager) Decode(token string) (*State, error) {
	envelope, err := base64.URLEncoding.DecodeString(token)
	if err != nil || len(envelope) < sha256.Size {
		return nil, ErrInvalidState
	}

	signature, sealed := envelope[:sha256.Size], envelope[sha256.Size:]
	if !hmac.Equal(signature, sm.sign(sealed)) {
		return nil, ErrInvalidState
	}

	gcm, err := sm.aead()
	if err != nil {
		return nil, err
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, ErrInvalidState
	}

	plaintext, err := gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrInvalidState
	}

	var state State
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, ErrInvalidState
	}

	if state.Expired(time.Now()) {
		return nil, ErrStateExpired
	}

	return &state, nil
}

// stamp fills the nonce and window fields callers left zero.
func (sm *EncryptedStateManager) stamp(state *State) {
	now := time.Now()
	if state.IssuedAt == 0 {
		state.IssuedAt = now.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = now.Add(sm.ttl).Unix()
	}
	if state.Nonce == "" {
		b := make([]byte, 16)
		_, _ = rand.Read(b)
		state.Nonce = base64.URLEncoding.EncodeToString(b)
	}
}

func (sm *EncryptedStateManager) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(sm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func (sm *EncryptedStateManager) sign(sealed []byte) []byte {
	mac := hmac.New(sha256.New, sm.hmacKey)
	mac.Write(sealed)
	return mac.Sum(nil)
}
