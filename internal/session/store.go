// Package session holds the authentication credential between requests.
package session

import (
	"sync"

	"github.com/filedock/filedock/internal/config"
)

// Store keeps the opaque bearer token issued at login.
// There is no client-side expiry; only server responses invalidate a token.
type Store interface {
	// Token returns the stored token, or false if none is present.
	Token() (string, bool)
	// SetToken persists the token until ClearToken is called.
	SetToken(token string) error
	// ClearToken removes the token. Clearing an absent token is not an error.
	ClearToken() error
}

// FileStore persists the token in a file readable only by its owner.
// The token is cached after the first read.
type FileStore struct {
	path string

	mu     sync.RWMutex
	token  string
	loaded bool
}

// NewFileStore creates a store backed by the given token file.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Token() (string, bool) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.token, s.token != ""
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		// Missing, empty and unreadable files all count as logged out.
		token, err := config.ReadTokenFile(s.path)
		if err != nil {
			token = ""
		}
		s.token = token
		s.loaded = true
	}
	return s.token, s.token != ""
}

func (s *FileStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := config.WriteTokenFile(s.path, token); err != nil {
		return err
	}
	s.token = token
	s.loaded = true
	return nil
}

func (s *FileStore) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.loaded = true
	return config.RemoveTokenFile(s.path)
}

// MemoryStore keeps the token for the lifetime of the process only.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates a store, optionally seeded with a token.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *MemoryStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
