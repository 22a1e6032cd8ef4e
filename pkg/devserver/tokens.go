package devserver

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
)

const tokenType = "bearer"

type tokenStore struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	tokens map[string]time.Time // token -> expiry
}

func newTokenStore(ttl time.Duration) *tokenStore {
	return &tokenStore{
		ttl:    ttl,
		now:    time.Now,
		tokens: make(map[string]time.Time),
	}
}

func (s *tokenStore) Issue() (models.AccessToken, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return models.AccessToken{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for tok, exp := range s.tokens {
		if !now.Before(exp) {
			delete(s.tokens, tok)
		}
	}
	s.tokens[id.String()] = now.Add(s.ttl)

	return models.AccessToken{
		AccessToken: id.String(),
		ExpiresIn:   int(s.ttl / time.Second),
		TokenType:   tokenType,
	}, nil
}

func (s *tokenStore) Valid(token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.tokens[token]
	if !ok {
		return false
	}
	if !s.now().Before(exp) {
		delete(s.tokens, token)
		return false
	}
	return true
}
