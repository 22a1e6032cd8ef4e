// Package vote turns vote toggles into score-delta calls and keeps the user's vote state.
//
// The backend only exposes relative +1/-1 mutations, so moving between the
// three vote states may take up to two calls. Translate computes them; Executor
// runs them in order and records the new vote only when all of them succeed.
package vote

import (
	"fmt"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
)

// Call is a single relative score mutation.
type Call int

const (
	Increment Call = iota + 1
	Decrement
)

func (c Call) String() string {
	switch c {
	case Increment:
		return "increment"
	case Decrement:
		return "decrement"
	}
	return fmt.Sprintf("Call(%d)", int(c))
}

// Translate returns the remote calls needed to apply dir on top of current, and the resulting vote.
// Requesting the direction already held toggles the vote off.
//
// It panics if current is not one of -1, 0, 1 or dir is unknown.
func Translate(current models.Vote, dir models.Direction) ([]Call, models.Vote) {
	if !current.Valid() {
		panic(fmt.Sprintf("vote: invalid current vote %d", current))
	}

	switch dir {
	case models.Up:
		switch current {
		case models.VoteNone:
			return []Call{Increment}, models.VoteUp
		case models.VoteUp:
			return []Call{Decrement}, models.VoteNone
		default:
			return []Call{Increment, Increment}, models.VoteUp
		}
	case models.Down:
		switch current {
		case models.VoteNone:
			return []Call{Decrement}, models.VoteDown
		case models.VoteDown:
			return []Call{Increment}, models.VoteNone
		default:
			return []Call{Decrement, Decrement}, models.VoteDown
		}
	}

	panic(fmt.Sprintf("vote: unknown direction %d", dir))
}
