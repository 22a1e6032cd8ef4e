// Package auth holds the credentials the client presents to the backend.
package auth

import (
	"errors"
	"sync"
)

// ErrRequired is returned by operations that need a logged-in session when none is present.
var ErrRequired = errors.New("authentication required")

// Credentials pairs the tenant API key with the access token issued by the login endpoint.
type Credentials struct {
	APIKey      string
	AccessToken string
}

// Valid reports whether both parts needed by mutating calls are present.
func (c Credentials) Valid() bool {
	return c.APIKey != "" && c.AccessToken != ""
}

// Provider returns the current credentials. ok is false when nothing usable is stored.
type Provider interface {
	Credentials() (c Credentials, ok bool)
}

// Session is the process-wide credential holder.
type Session struct {
	mu    sync.RWMutex
	creds Credentials
}

func NewSession(apiKey string) *Session {
	return &Session{creds: Credentials{APIKey: apiKey}}
}

func (s *Session) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.APIKey = key
}

func (s *Session) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.AccessToken = token
}

// Clear drops the access token. The API key identifies the tenant and is kept.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.AccessToken = ""
}

func (s *Session) Credentials() (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, s.creds.Valid()
}

// APIKey returns the tenant key alone; the push channel needs nothing else.
func (s *Session) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.APIKey
}
