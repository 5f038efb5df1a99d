package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/postpilothq/postpilot/pkg/apperr"
)

const (
	keySize   = 32
	nonceSize = 16
	tagSize   = 16
)

// Vault encrypts OAuth tokens at rest with AES-256-GCM. The key is supplied
// once at startup and never changes for the life of the process.
type Vault struct {
	aead cipher.AEAD
}

func NewVault(key []byte) (*Vault, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", keySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. The stored blob is
// hex(nonce):hex(tag):hex(ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext)), nil
}

// Decrypt opens a blob produced by Encrypt. A malformed blob or a failed tag
// verification returns a crypto error, never garbage plaintext.
func (v *Vault) Decrypt(blob string) (string, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return "", apperr.Crypto("invalid ciphertext blob: expected 3 segments, got %d", len(parts))
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", apperr.Crypto("invalid nonce encoding")
	}
	if len(nonce) != nonceSize {
		return "", apperr.Crypto("invalid nonce length %d", len(nonce))
	}

	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", apperr.Crypto("invalid tag encoding")
	}

	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", apperr.Crypto("invalid ciphertext encoding")
	}

	plaintext, err := v.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", apperr.Crypto("ciphertext authentication failed")
	}

	return string(plaintext), nil
}
