package vote

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/storage"
)

// Store is the process-wide mapping of comment ID to the current user's vote.
// Every change is written through to the durable copy.
type Store struct {
	mu    sync.RWMutex
	votes map[string]models.Vote

	// saveMu orders writes so an older snapshot never lands after a newer one.
	saveMu sync.Mutex
	db     storage.VoteStorage
}

// NewStore loads the persisted votes from db.
func NewStore(ctx context.Context, db storage.VoteStorage) (*Store, error) {
	votes, err := db.LoadVotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	if votes == nil {
		votes = make(map[string]models.Vote)
	}

	return &Store{votes: votes, db: db}, nil
}

// Get returns the vote for commentID, VoteNone if the user never voted on it.
func (s *Store) Get(commentID string) models.Vote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.votes[commentID]
}

func (s *Store) Snapshot() map[string]models.Vote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.votes)
}

// Set records v for commentID in memory and persists the whole mapping.
// The in-memory value stays updated even when persisting fails.
func (s *Store) Set(ctx context.Context, commentID string, v models.Vote) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidVote, v)
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	s.votes[commentID] = v
	snapshot := maps.Clone(s.votes)
	s.mu.Unlock()

	if err := s.db.SaveVotes(ctx, snapshot); err != nil {
		return fmt.Errorf("persist votes: %w", err)
	}

	return nil
}
