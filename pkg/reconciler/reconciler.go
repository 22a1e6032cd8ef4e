// Package reconciler merges the comments of one article view from the initial fetch,
// the push channel and the user's own submissions into a single deduplicated list.
package reconciler

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
)

// Reconciler is safe for concurrent use.
type Reconciler struct {
	articleID string

	mu       sync.Mutex
	known    map[string]int // comment ID -> index in comments
	comments []models.Comment
}

func New(articleID string) *Reconciler {
	return &Reconciler{
		articleID: articleID,
		known:     make(map[string]int),
	}
}

func (r *Reconciler) ArticleID() string {
	return r.articleID
}

// Seed resets the view to exactly the given comments. Repeated IDs in the input keep their first occurrence.
func (r *Reconciler) Seed(initial []models.Comment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.known = make(map[string]int, len(initial))
	r.comments = make([]models.Comment, 0, len(initial))
	for _, c := range initial {
		r.appendLocked(c)
	}
}

// IngestPushed adds a comment delivered by the push channel.
// It reports whether the comment was new to this view.
func (r *Reconciler) IngestPushed(c models.Comment) bool {
	added := r.ingest(c)
	if added {
		log.Debugf("[reconciler] article %s: pushed comment %s added", r.articleID, c.ID)
	}
	return added
}

// IngestLocallyCreated adds the backend's response to the user's own submission,
// so it shows up before the push channel echoes it back.
func (r *Reconciler) IngestLocallyCreated(c models.Comment) bool {
	added := r.ingest(c)
	if added {
		log.Debugf("[reconciler] article %s: own comment %s added", r.articleID, c.ID)
	}
	return added
}

func (r *Reconciler) ingest(c models.Comment) bool {
	if c.ArticleID != r.articleID || c.ID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.appendLocked(c)
}

func (r *Reconciler) appendLocked(c models.Comment) bool {
	if _, ok := r.known[c.ID]; ok {
		return false
	}
	r.known[c.ID] = len(r.comments)
	r.comments = append(r.comments, c)
	return true
}

// Update replaces the stored copy of an already known comment, e.g. with the score
// returned by a vote call. Unknown comments are ignored.
func (r *Reconciler) Update(c models.Comment) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.known[c.ID]
	if !ok {
		return false
	}
	r.comments[i] = c
	return true
}

func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.comments)
}

// Render returns the comments newest first. Comments posted at the same instant keep their arrival order.
func (r *Reconciler) Render() []models.Comment {
	r.mu.Lock()
	out := make([]models.Comment, len(r.comments))
	copy(out, r.comments)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PostedAt.After(out[j].PostedAt)
	})

	return out
}
