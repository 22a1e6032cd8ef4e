package vote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/auth"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
)

var (
	ErrInvalidVote    = errors.New("invalid vote value")
	ErrVoteFailed     = errors.New("vote failed")
	ErrVoteInProgress = errors.New("vote already in progress for comment")

	// ErrPartialVote means the first of two score calls went through and the second did not.
	// The remote score moved one step while the local vote kept its old value.
	ErrPartialVote = fmt.Errorf("%w: second score call failed", ErrVoteFailed)
)

// Scorer is the backend's score mutation surface.
type Scorer interface {
	VoteUp(ctx context.Context, creds auth.Credentials, commentID string) (models.Comment, error)
	VoteDown(ctx context.Context, creds auth.Credentials, commentID string) (models.Comment, error)
}

// Result describes a finished vote toggle.
type Result struct {
	// Vote is the user's vote after the operation; unchanged on failure.
	Vote models.Vote
	// Comment is the last comment returned by the backend, nil when no call succeeded.
	Comment *models.Comment
	// Calls lists the calls that succeeded, in order.
	Calls []Call
}

// Executor runs vote toggles against the backend.
//
// A second toggle on a comment whose previous toggle is still running is rejected
// with ErrVoteInProgress; the delta calls of two toggles never interleave.
type Executor struct {
	scorer Scorer
	store  *Store
	auth   auth.Provider

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewExecutor(scorer Scorer, store *Store, provider auth.Provider) *Executor {
	return &Executor{
		scorer:   scorer,
		store:    store,
		auth:     provider,
		inFlight: make(map[string]struct{}),
	}
}

// Execute applies dir to the user's vote on commentID.
func (e *Executor) Execute(ctx context.Context, commentID string, dir models.Direction) (Result, error) {
	creds, ok := e.auth.Credentials()
	if !ok {
		return Result{Vote: e.store.Get(commentID)}, auth.ErrRequired
	}

	if !e.acquire(commentID) {
		return Result{Vote: e.store.Get(commentID)}, ErrVoteInProgress
	}
	defer e.release(commentID)

	current := e.store.Get(commentID)
	calls, next := Translate(current, dir)
	res := Result{Vote: current}

	for i, call := range calls {
		c, err := e.call(ctx, creds, commentID, call)
		if err != nil {
			if i > 0 {
				log.Warnf("[vote] comment %s: %s %d/%d failed after earlier call succeeded, local vote kept at %s: %v",
					commentID, call, i+1, len(calls), current, err)
				return res, fmt.Errorf("%w: %w", ErrPartialVote, err)
			}
			log.Debugf("[vote] comment %s: %s failed: %v", commentID, call, err)
			return res, fmt.Errorf("%w: %w", ErrVoteFailed, err)
		}
		res.Comment = &c
		res.Calls = append(res.Calls, call)
	}

	if err := e.store.Set(ctx, commentID, next); err != nil {
		log.Errorf("[vote] comment %s: %v", commentID, err)
	}
	res.Vote = next
	log.Debugf("[vote] comment %s: %s -> %s via %v", commentID, current, next, calls)

	return res, nil
}

func (e *Executor) call(ctx context.Context, creds auth.Credentials, commentID string, call Call) (models.Comment, error) {
	switch call {
	case Increment:
		return e.scorer.VoteUp(ctx, creds, commentID)
	case Decrement:
		return e.scorer.VoteDown(ctx, creds, commentID)
	}
	panic(fmt.Sprintf("vote: unknown call %d", call))
}

func (e *Executor) acquire(commentID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inFlight[commentID]; busy {
		return false
	}
	e.inFlight[commentID] = struct{}{}
	return true
}

func (e *Executor) release(commentID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, commentID)
}
