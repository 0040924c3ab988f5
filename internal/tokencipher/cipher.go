// Package tokencipher encrypts credential material before it reaches the
// database. Tokens are stored as base64-encoded AES-256-GCM ciphertext and
// only ever decrypted in memory.
package tokencipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// EnvKeyVar is the environment variable consulted when no key file is
// configured.
const EnvKeyVar = "QBSYNC_TOKEN_KEY"

// Cipher seals and opens token strings with a fixed symmetric key.
type Cipher struct {
	aead cipher.AEAD
}

// New creates a Cipher from a raw 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// NewFromSource loads the key from keyFile if set, otherwise from the
// QBSYNC_TOKEN_KEY environment variable (base64-encoded in both cases).
// There is deliberately no plaintext pass-through mode.
func NewFromSource(keyFile string) (*Cipher, error) {
	var encoded string
	if keyFile != "" {
		data, err := os.ReadFile(filepath.Clean(keyFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read token key file %s: %w", keyFile, err)
		}
		encoded = strings.TrimSpace(string(data))
	} else {
		encoded = os.Getenv(EnvKeyVar)
	}

	if encoded == "" {
		return nil, fmt.Errorf("no token key configured: set tokenKeyFile or %s", EnvKeyVar)
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("token key is not valid base64: %w", err)
	}

	return New(key)
}

// Encrypt seals plaintext and returns base64 ciphertext with the nonce
// prepended. An empty plaintext encrypts to an empty string so optional
// token columns stay NULL-equivalent.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered or truncated ciphertext fails
// authentication and returns an error.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("ciphertext is not valid base64: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("ciphertext too short: %d bytes", len(sealed))
	}

	plaintext, err := c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}

	return string(plaintext), nil
}
