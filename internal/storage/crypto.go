package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters used by DeriveKey.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keyLength    = 32
)

// Encrypt encrypts plaintext using AES-GCM with the provided key.
// The key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
// Returns base64-encoded ciphertext.
func Encrypt(plaintext []byte, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the encrypted data to nonce, so we get nonce + ciphertext + tag
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts base64-encoded ciphertext using AES-GCM with the provided key.
func Decrypt(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// DeriveKey stretches a passphrase into a 32-byte AES key with Argon2id.
// The same passphrase and salt always yield the same key.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLength)
}

// EncryptedKV encrypts values before handing them to the wrapped KV.
// Keys are stored in the clear.
type EncryptedKV struct {
	inner KV
	key   []byte
}

// NewEncryptedKV wraps inner. key must be a valid AES key length.
func NewEncryptedKV(inner KV, key []byte) (*EncryptedKV, error) {
	if _, err := newGCM(key); err != nil {
		return nil, err
	}
	return &EncryptedKV{inner: inner, key: key}, nil
}

func (e *EncryptedKV) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := e.inner.Get(ctx, key)
	if err != nil || raw == nil {
		return nil, err
	}
	plaintext, err := Decrypt(string(raw), e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %q: %w", key, err)
	}
	return plaintext, nil
}

func (e *EncryptedKV) Set(ctx context.Context, key string, value []byte) error {
	encoded, err := Encrypt(value, e.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt %q: %w", key, err)
	}
	return e.inner.Set(ctx, key, []byte(encoded))
}

func (e *EncryptedKV) Remove(ctx context.Context, key string) error {
	return e.inner.Remove(ctx, key)
}

func (e *EncryptedKV) Close() error {
	return e.inner.Close()
}
