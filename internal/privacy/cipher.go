package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const cipherPrefix = "enc:v1:"

var ErrInvalidKey = errors.New("encryption key must be 32 bytes, base64-encoded")

// Cipher encrypts individual field values with AES-256-GCM. Ciphertexts are
// "enc:v1:" followed by base64url(nonce || sealed). It implements
// storage.FieldCipher.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a base64-encoded 32-byte key.
func NewCipher(key string) (*Cipher, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(key))
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(strings.TrimSpace(key))
	}
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("creating block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// GenerateKey returns a new random key in the format NewCipher accepts.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Encrypt seals plaintext. Empty strings stay empty.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return cipherPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values without the prefix are
// returned unchanged so rows written before encryption was enabled remain
// readable.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	enc, ok := strings.CutPrefix(ciphertext, cipherPrefix)
	if !ok {
		return ciphertext, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	n := c.aead.NonceSize()
	if len(data) < n {
		return "", errors.New("ciphertext too short")
	}
	plain, err := c.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypting field: %w", err)
	}
	return string(plain), nil
}
