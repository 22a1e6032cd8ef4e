// Package client talks to the article and comment REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/auth"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
)

const (
	headerAPIKey        = "X-API-KEY"
	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-Id"

	defaultTimeout = 10 * time.Second
	// Error bodies are kept for diagnostics only.
	maxErrorBody = 4 << 10
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	base *url.URL
	http *http.Client
}

func New(conf Config) (*Client, error) {
	base, err := url.Parse(conf.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", conf.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", conf.BaseURL)
	}

	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}, nil
}

// Article fetches an article with its comments.
func (c *Client) Article(ctx context.Context, articleID string) (models.ArticleDetail, error) {
	var detail models.ArticleDetail
	err := c.do(ctx, http.MethodGet, nil, &detail, nil, "articles", articleID)
	if detail.Comments == nil {
		detail.Comments = []models.Comment{}
	}
	return detail, err
}

func (c *Client) PostComment(ctx context.Context, creds auth.Credentials, comment models.NewComment) (models.Comment, error) {
	var created models.Comment
	err := c.do(ctx, http.MethodPost, &creds, &created, comment, "comments")
	return created, err
}

func (c *Client) VoteUp(ctx context.Context, creds auth.Credentials, commentID string) (models.Comment, error) {
	return c.vote(ctx, creds, commentID, "up")
}

func (c *Client) VoteDown(ctx context.Context, creds auth.Credentials, commentID string) (models.Comment, error) {
	return c.vote(ctx, creds, commentID, "down")
}

func (c *Client) vote(ctx context.Context, creds auth.Credentials, commentID, dir string) (models.Comment, error) {
	var updated models.Comment
	err := c.do(ctx, http.MethodPost, &creds, &updated, nil, "comments", commentID, "vote", dir)
	return updated, err
}

// Login exchanges tenant user credentials for an access token. Only the API key
// header is sent.
func (c *Client) Login(ctx context.Context, apiKey, username, password string) (models.AccessToken, error) {
	var token models.AccessToken
	creds := auth.Credentials{APIKey: apiKey}
	err := c.do(ctx, http.MethodPost, &creds, &token, models.LoginRequest{Username: username, Password: password}, "login")
	return token, err
}

// do sends one request. creds may be nil for public reads; body is JSON encoded
// when not nil and the response is decoded into out.
func (c *Client) do(ctx context.Context, method string, creds *auth.Credentials, out, body any, path ...string) error {
	target := c.base.JoinPath(path...)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("error creating request %s %s: %w", method, target.Path, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reqID, err := uuid.NewV4(); err == nil {
		req.Header.Set(headerRequestID, reqID.String())
	}
	if creds != nil {
		if creds.APIKey != "" {
			req.Header.Set(headerAPIKey, creds.APIKey)
		}
		if creds.AccessToken != "" {
			req.Header.Set(headerAuthorization, creds.AccessToken)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error calling %s %s: %w", method, target.Path, err)
	}
	defer resp.Body.Close()

	log.Debugf("[client][%s] %s %s -> %d", req.Header.Get(headerRequestID), method, target.Path, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: target.Path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response from %s %s: %w", method, target.Path, err)
	}

	return nil
}
