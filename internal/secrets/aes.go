// Package secrets is the encrypted, process-local blob store backing the
// credential table. The blob is AES-256-GCM encrypted on disk; the key lives
// in the OS keychain, with a file fallback for headless machines.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

const prefix = "aes-gcm:"

// ErrCorrupt means the blob could not be authenticated with the current key.
var ErrCorrupt = errors.New("secrets: blob corrupt or key mismatch")

// encrypt seals plaintext with AES-256-GCM.
// Output is "aes-gcm:" + base64(nonce + ciphertext + tag).
func encrypt(plaintext, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return prefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt opens a blob produced by encrypt. Anything that does not parse or
// authenticate is reported as ErrCorrupt.
func decrypt(blob string, key []byte) ([]byte, error) {
	if !strings.HasPrefix(blob, prefix) {
		return nil, ErrCorrupt
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(blob, prefix))
	if err != nil {
		return nil, ErrCorrupt
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrCorrupt
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, ErrCorrupt
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// decodeKey converts a stored key string to 32 raw bytes.
// Accepts hex-encoded (64 chars) or raw 32 bytes.
func decodeKey(input string) ([]byte, error) {
	if len(input) == 64 {
		if b, err := hex.DecodeString(input); err == nil {
			return b, nil
		}
	}
	if len(input) == 32 {
		return []byte(input), nil
	}
	return nil, errors.New("secrets: key must be 32 bytes (raw or hex-encoded)")
}
