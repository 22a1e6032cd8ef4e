// Package section drives the comment list of one mounted article view: the initial
// load, live comments from the push channel, the user's own submissions and votes.
package section

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/auth"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/push"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/reconciler"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/vote"
)

var (
	ErrLoadFailed     = errors.New("failed to load article comments")
	ErrSubmitFailed   = errors.New("failed to submit comment")
	ErrEmptyContent   = errors.New("comment content is empty")
	ErrNotMounted     = errors.New("comment section is not mounted")
	ErrAlreadyMounted = errors.New("comment section is already mounted")
)

// Backend is the part of the REST API a comment section uses.
type Backend interface {
	vote.Scorer
	Article(ctx context.Context, articleID string) (models.ArticleDetail, error)
	PostComment(ctx context.Context, creds auth.Credentials, comment models.NewComment) (models.Comment, error)
}

// Stream delivers comments created by anyone. *push.Channel implements it.
type Stream interface {
	Subscribe(fn push.Listener) push.SubscriptionID
	Unsubscribe(id push.SubscriptionID)
}

type Deps struct {
	Backend Backend
	Channel Stream
	Votes   *vote.Store
	Auth    auth.Provider
}

// View is a comment together with the current user's vote on it.
type View struct {
	models.Comment
	Vote models.Vote
}

type Controller struct {
	articleID string
	deps      Deps
	exec      *vote.Executor
	rec       *reconciler.Reconciler

	mu         sync.Mutex
	mounted    bool
	epoch      uint64 // bumped on Mount and Unmount; work started in an older epoch is discarded
	sub        push.SubscriptionID
	subscribed bool
	onChange   []func()
}

func New(articleID string, deps Deps) *Controller {
	return &Controller{
		articleID: articleID,
		deps:      deps,
		exec:      vote.NewExecutor(deps.Backend, deps.Votes, deps.Auth),
		rec:       reconciler.New(articleID),
	}
}

func (c *Controller) ArticleID() string {
	return c.articleID
}

// OnChange registers fn to run after every change to the rendered list.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// Mount loads the article's comments, seeds the list and starts taking pushed comments.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	detail, err := c.deps.Backend.Article(ctx, c.articleID)
	if err != nil {
		c.mu.Lock()
		if c.epoch == epoch {
			c.mounted = false
		}
		c.mu.Unlock()
		return fmt.Errorf("%w: article %s: %w", ErrLoadFailed, c.articleID, err)
	}

	c.mu.Lock()
	if !c.currentLocked(epoch) {
		c.mu.Unlock()
		log.Debugf("[section] article %s: unmounted while loading, dropping %d comments", c.articleID, len(detail.Comments))
		return ErrNotMounted
	}
	c.rec.Seed(detail.Comments)
	c.sub = c.deps.Channel.Subscribe(c.pushed(epoch))
	c.subscribed = true
	c.mu.Unlock()

	log.Infof("[section] article %s: mounted with %d comments", c.articleID, len(detail.Comments))
	c.notify()

	return nil
}

// Unmount stops taking pushed comments. Operations still running finish remotely but
// leave the list untouched.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	c.epoch++
	sub, subscribed := c.sub, c.subscribed
	c.subscribed = false
	c.mu.Unlock()

	if subscribed {
		c.deps.Channel.Unsubscribe(sub)
	}
	log.Infof("[section] article %s: unmounted", c.articleID)
}

func (c *Controller) pushed(epoch uint64) push.Listener {
	return func(comment models.Comment) {
		c.apply(epoch, func() bool { return c.rec.IngestPushed(comment) })
	}
}

// Comments returns the list newest first.
func (c *Controller) Comments() []View {
	comments := c.rec.Render()
	views := make([]View, len(comments))
	for i, comment := range comments {
		views[i] = View{Comment: comment, Vote: c.deps.Votes.Get(comment.ID)}
	}
	return views
}

// Vote toggles the user's vote on a comment and returns the resulting vote. On
// failure the returned vote is the unchanged one.
func (c *Controller) Vote(ctx context.Context, commentID string, dir models.Direction) (models.Vote, error) {
	epoch, ok := c.current()
	if !ok {
		return c.deps.Votes.Get(commentID), ErrNotMounted
	}

	res, err := c.exec.Execute(ctx, commentID, dir)
	if res.Comment != nil {
		updated := *res.Comment
		c.apply(epoch, func() bool { return c.rec.Update(updated) })
	}
	if err != nil {
		return res.Vote, fmt.Errorf("comment %s: %w", commentID, err)
	}

	return res.Vote, nil
}

// Submit posts a new comment as author and shows it without waiting for the push echo.
func (c *Controller) Submit(ctx context.Context, author, content string) (models.Comment, error) {
	epoch, ok := c.current()
	if !ok {
		return models.Comment{}, ErrNotMounted
	}

	creds, ok := c.deps.Auth.Credentials()
	if !ok {
		return models.Comment{}, auth.ErrRequired
	}
	if strings.TrimSpace(content) == "" {
		return models.Comment{}, ErrEmptyContent
	}

	created, err := c.deps.Backend.PostComment(ctx, creds, models.NewComment{
		ArticleID: c.articleID,
		Author:    author,
		Content:   content,
	})
	if err != nil {
		return models.Comment{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	if !c.apply(epoch, func() bool { return c.rec.IngestLocallyCreated(created) }) {
		log.Debugf("[section] article %s: own comment %s not added to the list", c.articleID, created.ID)
	}

	return created, nil
}

func (c *Controller) current() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch, c.mounted
}

func (c *Controller) currentLocked(epoch uint64) bool {
	return c.mounted && c.epoch == epoch
}

// apply runs fn if the view is still mounted in epoch and notifies when fn reports a change.
func (c *Controller) apply(epoch uint64, fn func() bool) bool {
	c.mu.Lock()
	changed := c.currentLocked(epoch) && fn()
	c.mu.Unlock()

	if changed {
		c.notify()
	}
	return changed
}

func (c *Controller) notify() {
	c.mu.Lock()
	hooks := make([]func(), len(c.onChange))
	copy(hooks, c.onChange)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
