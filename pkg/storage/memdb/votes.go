package memdb

import (
	"context"
	"sync"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/storage"
)

// Votes keeps the encoded UserVotes document in memory, under the same key a durable store uses.
type Votes struct {
	mu   sync.Mutex
	data map[string][]byte

	saves int
}

func NewVotes() *Votes {
	return &Votes{data: make(map[string][]byte)}
}

func (v *Votes) LoadVotes(ctx context.Context) (map[string]models.Vote, error) {
	v.mu.Lock()
	b, ok := v.data[storage.VotesKey]
	v.mu.Unlock()

	if !ok {
		return map[string]models.Vote{}, nil
	}
	return storage.DecodeVotes(b)
}

func (v *Votes) SaveVotes(ctx context.Context, votes map[string]models.Vote) error {
	b, err := storage.EncodeVotes(votes)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.data[storage.VotesKey] = b
	v.saves++

	return nil
}

// Saves reports how many times the document was written.
func (v *Votes) Saves() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.saves
}
