package storage

import (
	"context"
	"errors"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
)

var (
	ErrDBNotResponding = errors.New("DB not responding")

	ErrArticleNotFound      = errors.New("article not found")
	ErrCommentNotFound      = errors.New("comment not found")
	ErrArticleIDNotProvided = errors.New("articleID not provided")
	ErrEmptyContent         = errors.New("comment content is empty")
	ErrInvalidVotesSnapshot = errors.New("invalid votes snapshot")
)

// VotesKey is the single storage key holding the JSON-encoded UserVotes mapping.
const VotesKey = "userVotes"

// VoteStorage persists the current user's votes as one document.
type VoteStorage interface {
	LoadVotes(ctx context.Context) (map[string]models.Vote, error)
	SaveVotes(ctx context.Context, votes map[string]models.Vote) error
}

// Storage is the backing store of the development backend.
type Storage interface {
	AddArticle(ctx context.Context, article models.ArticleDetail) (models.ArticleDetail, error)
	Article(ctx context.Context, id string) (models.ArticleDetail, error)
	CreateComment(ctx context.Context, comment models.Comment) (models.Comment, error)
	AdjustScore(ctx context.Context, commentID string, delta int) (models.Comment, error)
}

// ValidateComment checks the fields a client must supply when posting.
func ValidateComment(c models.Comment) error {
	if c.ArticleID == "" {
		return ErrArticleIDNotProvided
	}
	if c.Content == "" {
		return ErrEmptyContent
	}
	return nil
}
