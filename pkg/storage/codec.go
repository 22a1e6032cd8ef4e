package storage

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
)

// EncodeVotes serializes the UserVotes mapping for VotesKey.
func EncodeVotes(votes map[string]models.Vote) ([]byte, error) {
	if votes == nil {
		votes = map[string]models.Vote{}
	}
	return json.Marshal(votes)
}

// DecodeVotes parses a stored UserVotes mapping. Entries outside {-1,0,1} are dropped.
func DecodeVotes(b []byte) (map[string]models.Vote, error) {
	raw := make(map[string]int)
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVotesSnapshot, err)
	}

	votes := make(map[string]models.Vote, len(raw))
	for id, v := range raw {
		vote := models.Vote(v)
		if v < -1 || v > 1 {
			log.Warnf("[storage] dropping stored vote %d for comment %s", v, id)
			continue
		}
		votes[id] = vote
	}

	return votes, nil
}
