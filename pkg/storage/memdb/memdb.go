package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/storage"
)

type Store struct {
	mu       sync.Mutex
	articles map[string]models.ArticleDetail
	comments map[string]models.Comment
}

func New() *Store {
	db := Store{
		articles: make(map[string]models.ArticleDetail),
		comments: make(map[string]models.Comment),
	}

	return &db
}

func (db *Store) AddArticle(ctx context.Context, article models.ArticleDetail) (models.ArticleDetail, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if article.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return models.ArticleDetail{}, err
		}
		article.ID = id.String()
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}
	article.Comments = nil
	db.articles[article.ID] = article

	return article, nil
}

// Article returns the article with its comments ordered newest first.
func (db *Store) Article(ctx context.Context, id string) (models.ArticleDetail, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	article, ok := db.articles[id]
	if !ok {
		return models.ArticleDetail{}, storage.ErrArticleNotFound
	}

	comments := []models.Comment{}
	for _, c := range db.comments {
		if c.ArticleID == id {
			comments = append(comments, c)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].PostedAt.After(comments[j].PostedAt)
	})
	article.Comments = comments

	return article, nil
}

func (db *Store) CreateComment(ctx context.Context, comment models.Comment) (models.Comment, error) {
	if err := storage.ValidateComment(comment); err != nil {
		return models.Comment{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.articles[comment.ArticleID]; !ok {
		return models.Comment{}, storage.ErrArticleNotFound
	}

	if comment.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return models.Comment{}, err
		}
		comment.ID = id.String()
	}
	if comment.PostedAt.IsZero() {
		comment.PostedAt = time.Now().UTC()
	}
	comment.Score = 0
	db.comments[comment.ID] = comment

	return comment, nil
}

func (db *Store) AdjustScore(ctx context.Context, commentID string, delta int) (models.Comment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.comments[commentID]
	if !ok {
		return models.Comment{}, storage.ErrCommentNotFound
	}
	c.Score += delta
	db.comments[commentID] = c

	return c, nil
}
