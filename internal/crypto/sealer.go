// Package crypto seals short values such as session ids into opaque,
// URL-safe tokens using AES-256-GCM with rotatable keys.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedToken = errors.New("malformed sealed token")

var enc = base64.RawURLEncoding

// Sealer encrypts with the current key and decrypts with any known key.
type Sealer struct {
	currentKeyID string
	keys         map[string][]byte
}

func NewSealer(currentKeyID string, keys map[string][]byte) (*Sealer, error) {
	if currentKeyID == "" {
		return nil, fmt.Errorf("current key id is empty")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("keys map is empty")
	}
	if _, ok := keys[currentKeyID]; !ok {
		return nil, fmt.Errorf("current key id %q not found", currentKeyID)
	}
	cp := make(map[string][]byte, len(keys))
	for id, key := range keys {
		if len(key) != 32 {
			return nil, fmt.Errorf("key %q must be 32 bytes", id)
		}
		if strings.Contains(id, ".") {
			return nil, fmt.Errorf("key id %q must not contain '.'", id)
		}
		buf := make([]byte, len(key))
		copy(buf, key)
		cp[id] = buf
	}
	return &Sealer{currentKeyID: currentKeyID, keys: cp}, nil
}

// NewEphemeral returns a sealer with a single random key. Tokens it issues
// do not survive a restart.
func NewEphemeral() (*Sealer, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewSealer("ephemeral", map[string][]byte{"ephemeral": key})
}

// Seal returns "<key id>.<nonce>.<ciphertext>". The key id is bound as
// additional data so a token cannot be replayed under a different key.
func (s *Sealer) Seal(plaintext string) (string, error) {
	aead, err := newAEAD(s.keys[s.currentKeyID])
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), []byte(s.currentKeyID))
	return s.currentKeyID + "." + enc.EncodeToString(nonce) + "." + enc.EncodeToString(ciphertext), nil
}

func (s *Sealer) Open(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrMalformedToken
	}
	keyID := parts[0]
	key, ok := s.keys[keyID]
	if !ok {
		return "", fmt.Errorf("unknown key id %q", keyID)
	}
	nonce, err := enc.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	if len(nonce) != aead.NonceSize() {
		return "", ErrMalformedToken
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(keyID))
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// IsCurrent reports whether token names the current key. It does not
// authenticate the token.
func (s *Sealer) IsCurrent(token string) bool {
	keyID, _, ok := strings.Cut(token, ".")
	return ok && keyID == s.currentKeyID
}

// Reseal re-encrypts a token under the current key.
func (s *Sealer) Reseal(token string) (string, error) {
	plain, err := s.Open(token)
	if err != nil {
		return "", err
	}
	return s.Seal(plain)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead, nil
}
