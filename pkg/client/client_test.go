package client

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/h2non/gock"
	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/auth"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
)

const testBase = "http://api.test"

var testCreds = auth.Credentials{APIKey: "tenant-key", AccessToken: "token-123"}

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: testBase, Timeout: time.Second})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestNew_InvalidBase(t *testing.T) {
	for _, base := range []string{"ftp://api.test", "::nope", ""} {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Errorf("want error for base %q", base)
		}
	}
}

func TestClient_Article(t *testing.T) {
	defer gock.Off()

	posted := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	gock.New(testBase).
		Get("/articles/a1").
		MatchHeader(headerRequestID, ".+").
		Reply(http.StatusOK).
		JSON(map[string]any{
			"articleId": "a1",
			"title":     "Title",
			"content":   "Body",
			"comments": []map[string]any{
				{"commentId": "c1", "articleId": "a1", "author": "Ann", "content": "hi", "postedAt": posted.Format(time.RFC3339), "score": 2},
			},
		})

	got, err := newTestClient(t).Article(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ID != "a1" || got.Title != "Title" || got.Content != "Body" {
		t.Errorf("want article a1, got %+v", got.Article)
	}
	if len(got.Comments) != 1 {
		t.Fatalf("want 1 comment, got %d", len(got.Comments))
	}
	c := got.Comments[0]
	if c.ID != "c1" || c.Score != 2 || !c.PostedAt.Equal(posted) {
		t.Errorf("want comment c1 with score 2 posted at %v, got %+v", posted, c)
	}
	if !gock.IsDone() {
		t.Error("want all mocks consumed")
	}
}

func TestClient_ArticleWithoutComments(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Get("/articles/a1").
		Reply(http.StatusOK).
		JSON(map[string]any{"articleId": "a1"})

	got, err := newTestClient(t).Article(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Comments == nil || len(got.Comments) != 0 {
		t.Errorf("want empty comment list, got %#v", got.Comments)
	}
}

func TestClient_ArticleNotFound(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Get("/articles/missing").
		Reply(http.StatusNotFound).
		BodyString("article not found")

	_, err := newTestClient(t).Article(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want error %v, got %v", ErrNotFound, err)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("want *StatusError, got %T", err)
	}
	if statusErr.Code != http.StatusNotFound || statusErr.Body != "article not found" {
		t.Errorf("want 404 with body, got %d %q", statusErr.Code, statusErr.Body)
	}
}

func TestClient_PostComment(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Post("/comments").
		MatchHeader(headerAPIKey, "^tenant-key$").
		MatchHeader(headerAuthorization, "^token-123$").
		MatchType("json").
		JSON(map[string]string{"articleId": "a1", "author": "Ann", "content": "hello"}).
		Reply(http.StatusCreated).
		JSON(map[string]any{"commentId": "c9", "articleId": "a1", "author": "Ann", "content": "hello", "score": 0})

	got, err := newTestClient(t).PostComment(context.Background(), testCreds, models.NewComment{ArticleID: "a1", Author: "Ann", Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "c9" || got.Content != "hello" {
		t.Errorf("want created comment c9, got %+v", got)
	}
	if !gock.IsDone() {
		t.Error("want all mocks consumed")
	}
}

func TestClient_Votes(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		call  func(c *Client) (models.Comment, error)
		score int
	}{
		{
			name:  "up",
			path:  "/comments/c1/vote/up",
			call:  func(c *Client) (models.Comment, error) { return c.VoteUp(context.Background(), testCreds, "c1") },
			score: 4,
		},
		{
			name:  "down",
			path:  "/comments/c1/vote/down",
			call:  func(c *Client) (models.Comment, error) { return c.VoteDown(context.Background(), testCreds, "c1") },
			score: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()

			gock.New(testBase).
				Post(tt.path).
				MatchHeader(headerAPIKey, "^tenant-key$").
				MatchHeader(headerAuthorization, "^token-123$").
				Reply(http.StatusOK).
				JSON(map[string]any{"commentId": "c1", "articleId": "a1", "score": tt.score})

			got, err := tt.call(newTestClient(t))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Score != tt.score {
				t.Errorf("want score %d, got %d", tt.score, got.Score)
			}
			if !gock.IsDone() {
				t.Error("want all mocks consumed")
			}
		})
	}
}

func TestClient_Unauthorized(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			defer gock.Off()

			gock.New(testBase).
				Post("/comments/c1/vote/up").
				Reply(code)

			_, err := newTestClient(t).VoteUp(context.Background(), testCreds, "c1")
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("want error %v, got %v", ErrUnauthorized, err)
			}
		})
	}
}

func TestClient_ServerError(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Post("/comments").
		Reply(http.StatusInternalServerError).
		BodyString("boom")

	_, err := newTestClient(t).PostComment(context.Background(), testCreds, models.NewComment{ArticleID: "a1", Content: "x"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("want *StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusInternalServerError {
		t.Errorf("want status %d, got %d", http.StatusInternalServerError, statusErr.Code)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized) {
		t.Errorf("want plain status error, got %v", err)
	}
}

func TestClient_Login(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Post("/login").
		MatchHeader(headerAPIKey, "^tenant-key$").
		JSON(map[string]string{"username": "admin", "password": "secret"}).
		Reply(http.StatusOK).
		JSON(map[string]any{"access_token": "token-123", "expires_in": 3600, "token_type": "bearer"})

	got, err := newTestClient(t).Login(context.Background(), "tenant-key", "admin", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AccessToken != "token-123" || got.ExpiresIn != 3600 {
		t.Errorf("want token-123 valid for 3600s, got %+v", got)
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Get("/articles/a1").
		Reply(http.StatusOK).
		BodyString("{not json")

	if _, err := newTestClient(t).Article(context.Background(), "a1"); err == nil {
		t.Error("want decode error")
	}
}
