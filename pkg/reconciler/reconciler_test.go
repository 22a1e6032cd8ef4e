package reconciler

import (
	"fmt"
	"math/rand"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
)

const testArticleID = "article-1"

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func day(d int) time.Time {
	return time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC)
}

func comment(id string, posted time.Time) models.Comment {
	return models.Comment{ID: id, ArticleID: testArticleID, Author: "Tester", Content: "text " + id, PostedAt: posted}
}

func ids(comments []models.Comment) []string {
	out := make([]string, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.ID)
	}
	return out
}

func TestReconciler_PushedNewerComesFirst(t *testing.T) {
	r := New(testArticleID)
	r.Seed([]models.Comment{comment("a", day(2))})

	if !r.IngestPushed(comment("b", day(3))) {
		t.Fatal("want pushed comment added")
	}

	want := []string{"b", "a"}
	if got := ids(r.Render()); !reflect.DeepEqual(want, got) {
		t.Errorf("want render %v, got %v", want, got)
	}
}

func TestReconciler_EchoOfOwnComment(t *testing.T) {
	r := New(testArticleID)
	r.Seed(nil)

	own := comment("x", day(5))
	if !r.IngestLocallyCreated(own) {
		t.Fatal("want own comment added")
	}
	if r.IngestPushed(own) {
		t.Error("want echo of own comment ignored")
	}

	want := []string{"x"}
	if got := ids(r.Render()); !reflect.DeepEqual(want, got) {
		t.Errorf("want render %v, got %v", want, got)
	}
}

func TestReconciler_Ignored(t *testing.T) {
	r := New(testArticleID)
	r.Seed([]models.Comment{comment("a", day(1))})

	tests := []struct {
		name    string
		comment models.Comment
	}{
		{name: "other article", comment: models.Comment{ID: "b", ArticleID: "article-2", PostedAt: day(2)}},
		{name: "already seeded", comment: comment("a", day(9))},
		{name: "missing id", comment: comment("", day(3))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r.IngestPushed(tt.comment) {
				t.Error("want pushed comment ignored")
			}
			if r.IngestLocallyCreated(tt.comment) {
				t.Error("want local comment ignored")
			}
		})
	}

	if r.Len() != 1 {
		t.Errorf("want 1 comment, got %d", r.Len())
	}
	// A replayed delivery must not replace the seeded copy.
	if got := r.Render()[0].PostedAt; !got.Equal(day(1)) {
		t.Errorf("want seeded postedAt %v kept, got %v", day(1), got)
	}
}

func TestReconciler_StableTies(t *testing.T) {
	r := New(testArticleID)
	r.Seed([]models.Comment{comment("first", day(4)), comment("older", day(1))})
	r.IngestPushed(comment("second", day(4)))
	r.IngestLocallyCreated(comment("third", day(4)))
	r.IngestPushed(comment("newest", day(7)))

	want := []string{"newest", "first", "second", "third", "older"}
	if got := ids(r.Render()); !reflect.DeepEqual(want, got) {
		t.Errorf("want render %v, got %v", want, got)
	}
}

func TestReconciler_SeedResets(t *testing.T) {
	r := New(testArticleID)
	r.Seed([]models.Comment{comment("a", day(1))})
	r.IngestPushed(comment("b", day(2)))

	r.Seed([]models.Comment{comment("c", day(3)), comment("c", day(3))})

	want := []string{"c"}
	if got := ids(r.Render()); !reflect.DeepEqual(want, got) {
		t.Errorf("want render %v, got %v", want, got)
	}
	if !r.IngestPushed(comment("a", day(1))) {
		t.Error("want comment from before reseed accepted again")
	}
}

func TestReconciler_Update(t *testing.T) {
	r := New(testArticleID)
	r.Seed([]models.Comment{comment("a", day(1)), comment("b", day(2))})

	updated := comment("a", day(1))
	updated.Score = 7
	if !r.Update(updated) {
		t.Fatal("want known comment updated")
	}
	if r.Update(comment("zzz", day(1))) {
		t.Error("want unknown comment ignored")
	}

	got := r.Render()
	if len(got) != 2 {
		t.Fatalf("want 2 comments, got %d", len(got))
	}
	if got[1].ID != "a" || got[1].Score != 7 {
		t.Errorf("want comment a with score 7, got %+v", got[1])
	}
}

func TestReconciler_RenderIsCopy(t *testing.T) {
	r := New(testArticleID)
	r.Seed([]models.Comment{comment("a", day(1))})

	out := r.Render()
	out[0].Content = "changed"

	if got := r.Render()[0].Content; got == "changed" {
		t.Error("want Render to return a copy")
	}
}

// Any interleaving of deliveries with repeated IDs renders each ID once, newest first.
func TestReconciler_DedupAndOrderProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		r := New(testArticleID)

		pool := make([]models.Comment, 20)
		for i := range pool {
			pool[i] = comment(fmt.Sprintf("c%d", i), day(1).Add(time.Duration(rng.Intn(10))*time.Hour))
		}

		seed := pool[:rng.Intn(5)]
		r.Seed(seed)

		wantIDs := map[string]bool{}
		for _, c := range seed {
			wantIDs[c.ID] = true
		}

		var wg sync.WaitGroup
		for i := 0; i < 60; i++ {
			c := pool[rng.Intn(len(pool))]
			wantIDs[c.ID] = true
			local := rng.Intn(2) == 0

			wg.Add(1)
			go func() {
				defer wg.Done()
				if local {
					r.IngestLocallyCreated(c)
				} else {
					r.IngestPushed(c)
				}
			}()
		}
		wg.Wait()

		got := r.Render()
		seen := map[string]bool{}
		for i, c := range got {
			if seen[c.ID] {
				t.Fatalf("round %d: comment %s rendered twice", round, c.ID)
			}
			seen[c.ID] = true
			if i > 0 && got[i-1].PostedAt.Before(c.PostedAt) {
				t.Fatalf("round %d: render not sorted newest first at index %d", round, i)
			}
		}
		if len(seen) != len(wantIDs) {
			t.Fatalf("round %d: want %d distinct comments, got %d", round, len(wantIDs), len(seen))
		}
	}
}
