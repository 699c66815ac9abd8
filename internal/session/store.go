// Package session holds the single authenticated session of the client.
package session

import (
	"log"
	"sync"
	"time"

	"attendclient/internal/fault"
	"attendclient/internal/model"
)

// Store holds the current credential and profile.
type Store struct {
	mu      sync.RWMutex
	current *model.Session
	expires time.Time
	now     func() time.Time
}

// NewStore returns an unauthenticated store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Set replaces the active session.
func (s *Store) Set(credential string, profile *model.UserProfile) error {
	if credential == "" {
		return fault.E(fault.Unauthenticated, "session.Set", "empty credential")
	}
	var exp time.Time
	if t, err := expiry(credential); err == nil {
		exp = t
	}
	next := &model.Session{Credential: credential, Profile: cloneProfile(profile)}

	s.mu.Lock()
	s.current = next
	s.expires = exp
	s.mu.Unlock()
	return nil
}

// Clear drops the session.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.expires = time.Time{}
	s.mu.Unlock()
}

// Credential returns the bearer token, or an Unauthenticated error when no
// session is held or the credential has expired. An expired session is cleared.
func (s *Store) Credential() (string, error) {
	s.mu.RLock()
	cur, exp := s.current, s.expires
	s.mu.RUnlock()

	if cur == nil {
		return "", fault.E(fault.Unauthenticated, "session", "not signed in")
	}
	if !exp.IsZero() && !s.now().Before(exp) {
		s.mu.Lock()
		if s.current == cur {
			s.current = nil
			s.expires = time.Time{}
		}
		s.mu.Unlock()
		log.Printf("session expired at %s, cleared", exp.Format(time.RFC3339))
		return "", fault.E(fault.Unauthenticated, "session", "session expired")
	}
	return cur.Credential, nil
}

// Authenticated reports whether a usable credential is held.
func (s *Store) Authenticated() bool {
	_, err := s.Credential()
	return err == nil
}

// Profile returns a copy of the current profile.
func (s *Store) Profile() (*model.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Profile == nil {
		return nil, false
	}
	return cloneProfile(s.current.Profile), true
}

// SetProfile replaces the profile of the active session after a re-fetch.
// It is a no-op when signed out.
func (s *Store) SetProfile(profile *model.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current = &model.Session{Credential: s.current.Credential, Profile: cloneProfile(profile)}
}

// Snapshot returns a copy of the session.
func (s *Store) Snapshot() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Session{}, false
	}
	return model.Session{Credential: s.current.Credential, Profile: cloneProfile(s.current.Profile)}, true
}

// UserKey identifies the signed-in user for per-user caches.
func (s *Store) UserKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	if p := s.current.Profile; p != nil {
		if p.ID != "" {
			return p.ID
		}
		if p.Username != "" {
			return p.Username
		}
	}
	if claims, err := inspect(s.current.Credential); err == nil && claims.Subject != "" {
		return claims.Subject
	}
	return "current"
}

func cloneProfile(p *model.UserProfile) *model.UserProfile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.StudentID != nil {
		id := *p.StudentID
		cp.StudentID = &id
	}
	return &cp
}
