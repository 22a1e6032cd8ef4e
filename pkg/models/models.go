package models

import (
	"fmt"
	"time"
)

type Article struct {
	ID            string    `bson:"_id" json:"articleId"`
	Title         string    `bson:"title" json:"title"`
	Perex         string    `bson:"perex" json:"perex"`
	ImageID       string    `bson:"image_id,omitempty" json:"imageId,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	LastUpdatedAt time.Time `bson:"last_updated_at,omitempty" json:"lastUpdatedAt,omitempty"`
}

// ArticleDetail is an article with its full content and the comments posted to it.
type ArticleDetail struct {
	Article  `bson:",inline"`
	Content  string    `bson:"content" json:"content"`
	Comments []Comment `bson:"-" json:"comments"`
}

type Comment struct {
	ID        string    `bson:"_id" json:"commentId"`
	ArticleID string    `bson:"article_id" json:"articleId"`
	Author    string    `bson:"author" json:"author"`
	Content   string    `bson:"content" json:"content"`
	PostedAt  time.Time `bson:"posted_at" json:"postedAt"`
	Score     int       `bson:"score" json:"score"`
}

// NewComment is the body of a comment submission.
type NewComment struct {
	ArticleID string `json:"articleId"`
	Author    string `json:"author,omitempty"`
	Content   string `json:"content"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Vote is the current user's own disposition toward a comment.
type Vote int8

const (
	VoteDown Vote = -1
	VoteNone Vote = 0
	VoteUp   Vote = 1
)

func (v Vote) Valid() bool {
	return v >= VoteDown && v <= VoteUp
}

func (v Vote) String() string {
	switch v {
	case VoteDown:
		return "down"
	case VoteNone:
		return "none"
	case VoteUp:
		return "up"
	}
	return fmt.Sprintf("Vote(%d)", int8(v))
}

// Direction is a vote toggle requested by the user.
type Direction int

const (
	Up Direction = iota + 1
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, fmt.Errorf("unknown vote direction %q", s)
}
