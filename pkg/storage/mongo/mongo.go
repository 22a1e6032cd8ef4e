// Package mongo stores articles and comments of the development backend in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/storage"
)

const (
	articlesColl = "articles"
	commentsColl = "comments"
)

var ErrConnectDB = fmt.Errorf("unable to establish DB connection")

type Storage struct {
	client *mongo.Client
	dbName string
}

func New(ctx context.Context, conf *Config) (*Storage, error) {
	client, err := mongo.Connect(ctx, conf.Options())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectDB, err)
	}

	s := Storage{client: client, dbName: conf.DBName}
	return &s, nil
}

// Init creates the collections and the index used to list an article's comments.
func (s *Storage) Init(ctx context.Context) error {
	for _, name := range []string{articlesColl, commentsColl} {
		if err := s.createCollection(ctx, name); err != nil {
			return err
		}
	}

	_, err := s.coll(commentsColl).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "article_id", Value: 1}, {Key: "posted_at", Value: -1}},
	})
	return err
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err)
	}
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Storage) AddArticle(ctx context.Context, article models.ArticleDetail) (models.ArticleDetail, error) {
	if article.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return models.ArticleDetail{}, err
		}
		article.ID = id.String()
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	article.Comments = nil

	if _, err := s.coll(articlesColl).InsertOne(ctx, article); err != nil {
		return models.ArticleDetail{}, err
	}

	return article, nil
}

// Article returns the article with its comments ordered newest first.
func (s *Storage) Article(ctx context.Context, id string) (models.ArticleDetail, error) {
	var article models.ArticleDetail
	err := s.coll(articlesColl).FindOne(ctx, bson.M{"_id": id}).Decode(&article)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ArticleDetail{}, storage.ErrArticleNotFound
	}
	if err != nil {
		return models.ArticleDetail{}, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "posted_at", Value: -1}})
	cur, err := s.coll(commentsColl).Find(ctx, bson.M{"article_id": id}, opts)
	if err != nil {
		return models.ArticleDetail{}, err
	}

	comments := []models.Comment{}
	if err := cur.All(ctx, &comments); err != nil {
		return models.ArticleDetail{}, err
	}
	article.Comments = comments

	return article, nil
}

// CreateComment inserts a comment on an existing article. ID and PostedAt are
// generated when empty and the score always starts at zero.
func (s *Storage) CreateComment(ctx context.Context, comment models.Comment) (models.Comment, error) {
	if err := storage.ValidateComment(comment); err != nil {
		return models.Comment{}, err
	}

	cnt, err := s.coll(articlesColl).CountDocuments(ctx, bson.M{"_id": comment.ArticleID})
	if err != nil {
		return models.Comment{}, err
	}
	if cnt == 0 {
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
		comment.PostedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	comment.Score = 0

	if _, err := s.coll(commentsColl).InsertOne(ctx, comment); err != nil {
		return models.Comment{}, err
	}

	return comment, nil
}

func (s *Storage) AdjustScore(ctx context.Context, commentID string, delta int) (models.Comment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var c models.Comment
	err := s.coll(commentsColl).FindOneAndUpdate(ctx,
		bson.M{"_id": commentID},
		bson.M{"$inc": bson.M{"score": delta}},
		opts,
	).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Comment{}, storage.ErrCommentNotFound
	}
	if err != nil {
		return models.Comment{}, err
	}

	return c, nil
}

func (s *Storage) coll(name string) *mongo.Collection {
	return s.client.Database(s.dbName).Collection(name)
}

// createCollection creates a collection with the given name in the database if it doesn't already exist.
func (s *Storage) createCollection(ctx context.Context, collName string) error {
	collExists, err := collectionExists(ctx, s.client.Database(s.dbName), collName)
	if err != nil {
		return err
	}

	if !collExists {
		if err := s.client.Database(s.dbName).CreateCollection(ctx, collName); err != nil {
			return err
		}
	}

	return nil
}

// collectionExists checks if a collection with the given name exists in the database.
func collectionExists(ctx context.Context, db *mongo.Database, collName string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return false, fmt.Errorf("failed to list collection names: %w", err)
	}

	for _, name := range names {
		if name == collName {
			return true, nil
		}
	}

	return false, nil
}
