package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "tunedeck"
	keyringUser    = "credential-blob-key"
	blobFile       = "credentials.enc"
	keyFile        = "credentials.key"
)

// Store holds one encrypted blob under the data directory.
type Store struct {
	path string
	key  []byte
}

// Open prepares the store under dataDir, creating the encryption key on
// first use. The key is kept in the OS keychain when one is available,
// otherwise in a 0600 file next to the blob.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}

	key, err := loadOrCreateKey(dataDir)
	if err != nil {
		return nil, err
	}

	return &Store{
		path: filepath.Join(dataDir, blobFile),
		key:  key,
	}, nil
}

// Get returns the decrypted blob, or nil when no blob has been written yet.
// A blob that fails authentication returns ErrCorrupt.
func (s *Store) Get() ([]byte, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decrypt(string(raw), s.key)
}

// Set re-encrypts and rewrites the whole blob.
func (s *Store) Set(data []byte) error {
	blob, err := encrypt(data, s.key)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(blob), 0600)
}

func loadOrCreateKey(dataDir string) ([]byte, error) {
	stored, err := keyring.Get(keyringService, keyringUser)
	if err == nil {
		return decodeKey(stored)
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		// No usable keychain (headless session, locked daemon): fall back
		// to a key file in the data directory.
		slog.Warn("keychain unavailable, using key file", "error", err)
		return fileKey(dataDir)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := keyring.Set(keyringService, keyringUser, hex.EncodeToString(key)); err != nil {
		slog.Warn("keychain write failed, using key file", "error", err)
		return fileKey(dataDir)
	}
	slog.Info("created credential blob key in keychain")
	return key, nil
}

func fileKey(dataDir string) ([]byte, error) {
	path := filepath.Join(dataDir, keyFile)

	raw, err := os.ReadFile(path)
	if err == nil {
		return decodeKey(string(raw))
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, err
	}
	return key, nil
}
