// Package token is the durable table of issued bearer credentials. The raw
// secret is returned to the caller exactly once; the table stores only its
// SHA-256 hash. The table persists as a single JSON array, re-encrypted
// wholesale on every change.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// metadataVersion tags records so a future layout change can migrate them.
const metadataVersion = 1

// AuthToken is one issued credential. ID is the stable, non-secret handle
// used for revocation and realtime socket binding.
type AuthToken struct {
	ID         string   `json:"id"`
	AppID      string   `json:"appId"`
	AppName    string   `json:"appName"`
	AppVersion string   `json:"appVersion"`
	TokenHash  string   `json:"tokenHash"`
	CreatedAt  int64    `json:"createdAt"` // unix millis
	Metadata   Metadata `json:"metadata"`
}

type Metadata struct {
	Version int `json:"version"`
}

// Blob is the encrypted key/value seam the store persists through.
type Blob interface {
	Get() ([]byte, error)
	Set([]byte) error
}

// Store holds the decrypted credential table in memory and rewrites the
// blob on every mutation. Reads never touch disk.
type Store struct {
	mu        sync.RWMutex
	blob      Blob
	tokens    []AuthToken
	listeners []func()
}

// NewStore loads the table from the blob. A missing, corrupt, or
// undecryptable blob yields an empty table rather than an error: the server
// must come up even when the credential file is damaged.
func NewStore(blob Blob) *Store {
	s := &Store{blob: blob}

	data, err := blob.Get()
	if err != nil {
		slog.Warn("credential table unreadable, starting empty", "error", err)
		return s
	}
	if len(data) == 0 {
		return s
	}
	if err := json.Unmarshal(data, &s.tokens); err != nil {
		slog.Warn("credential table malformed, starting empty", "error", err)
		s.tokens = nil
	}
	return s
}

// OnChange registers a listener invoked after every table mutation. The
// realtime gateway uses this to sweep revoked connections.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Issue mints a new bearer secret for an app, replacing any prior credential
// for the same appID. The returned secret is never stored.
func (s *Store) Issue(appID, appName, appVersion string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(raw)

	record := AuthToken{
		ID:         uuid.NewString(),
		AppID:      appID,
		AppName:    appName,
		AppVersion: appVersion,
		TokenHash:  hashSecret(secret),
		CreatedAt:  time.Now().UnixMilli(),
		Metadata:   Metadata{Version: metadataVersion},
	}

	s.mu.Lock()
	kept := s.tokens[:0]
	for _, t := range s.tokens {
		if t.AppID != appID {
			kept = append(kept, t)
		}
	}
	s.tokens = append(kept, record)
	err := s.persistLocked()
	s.mu.Unlock()

	if err != nil {
		return "", err
	}

	slog.Info("token issued", "app", appID, "token_id", record.ID)
	s.notify()
	return secret, nil
}

// Validate hashes the presented secret and scans the table for a match.
// O(n) in token count; tables are tens of entries, not millions.
func (s *Store) Validate(secret string) (string, bool) {
	if secret == "" {
		return "", false
	}
	candidate := []byte(hashSecret(secret))

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if subtle.ConstantTimeCompare(candidate, []byte(t.TokenHash)) == 1 {
			return t.ID, true
		}
	}
	return "", false
}

// Tokens returns a copy of the table for listing. TokenHash is included;
// callers that display records should not print it.
func (s *Store) Tokens() []AuthToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuthToken, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// ValidIDs returns the set of live token ids, the only values the revocation
// sweep ever compares.
func (s *Store) ValidIDs() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]bool, len(s.tokens))
	for _, t := range s.tokens {
		ids[t.ID] = true
	}
	return ids
}

// Revoke removes one credential by id. A persist failure is returned so the
// caller knows the revocation would not survive a restart; the in-memory
// table is still updated and listeners still fire, so live connections are
// swept either way.
func (s *Store) Revoke(id string) (bool, error) {
	s.mu.Lock()
	found := false
	for i, t := range s.tokens {
		if t.ID == id {
			s.tokens = append(s.tokens[:i], s.tokens[i+1:]...)
			found = true
			break
		}
	}
	var err error
	if found {
		err = s.persistLocked()
	}
	s.mu.Unlock()

	if !found {
		return false, nil
	}
	slog.Info("token revoked", "token_id", id)
	s.notify()
	return true, err
}

// Clear wipes the whole table.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.tokens = nil
	err := s.persistLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	slog.Info("credential table cleared")
	s.notify()
	return nil
}

func (s *Store) persistLocked() error {
	data, err := json.Marshal(s.tokens)
	if err != nil {
		return err
	}
	return s.blob.Set(data)
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
