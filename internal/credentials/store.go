// Package credentials holds the current access token for the session. The
// store is the single owner of the credential: the session controller writes
// it on login and renewal, the auth interceptor reads it on every call, and
// logout or renewal failure clears it.
package credentials

import (
	"sync"

	"github.com/pokedex-chat/console/internal/interfaces"
)

// Store is a mutex-guarded in-memory credential holder. An optional persist
// hook mirrors every change to durable storage so a restart can resume the
// session without re-login.
type Store struct {
	mu      sync.RWMutex
	cred    interfaces.Credential
	present bool
	persist interfaces.SessionStateStore
}

// Option customizes a store at construction time.
type Option func(*Store)

// WithPersistence mirrors credential changes into state. Load failures at
// construction are ignored; a missing persisted session just means starting
// anonymous.
func WithPersistence(state interfaces.SessionStateStore) Option {
	return func(s *Store) { s.persist = state }
}

// NewStore creates a credential store. When persistence is configured, any
// previously saved credential is loaded so the session resumes.
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.persist != nil {
		if cred, ok, err := s.persist.LoadCredential(); err == nil && ok {
			s.cred = cred
			s.present = true
		}
	}
	return s
}

// Get returns the current credential, if any.
func (s *Store) Get() (interfaces.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.present
}

// Set replaces the current credential.
func (s *Store) Set(cred interfaces.Credential) {
	s.mu.Lock()
	s.cred = cred
	s.present = true
	persist := s.persist
	s.mu.Unlock()

	if persist != nil {
		// Best effort: a failed write never blocks the in-memory session.
		_ = persist.SaveCredential(cred)
	}
}

// Clear removes the current credential and any persisted copy.
func (s *Store) Clear() {
	s.mu.Lock()
	s.cred = interfaces.Credential{}
	s.present = false
	persist := s.persist
	s.mu.Unlock()

	if persist != nil {
		_ = persist.ClearSession()
	}
}
