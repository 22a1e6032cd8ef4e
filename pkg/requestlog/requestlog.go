// Package requestlog moves HTTP request records from the Kafka request log topic
// into an Elasticsearch index.
package requestlog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Entry is one request record as published by the dev server's logging middleware.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Duration   float64   `json:"duration_sec"`
	Service    string    `json:"service"`
}

// DocumentID keys the indexed record so a redelivered message overwrites itself.
func (e Entry) DocumentID() string {
	return e.Service + e.RequestID
}

// Reader is satisfied by *kafka.Reader.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Indexer interface {
	Index(ctx context.Context, id string, body []byte) error
}

const indexTimeout = 10 * time.Second

type Keeper struct {
	r       Reader
	idx     Indexer
	workers int
}

func NewKeeper(r Reader, idx Indexer, workers int) *Keeper {
	if workers < 1 {
		workers = 1
	}
	return &Keeper{r: r, idx: idx, workers: workers}
}

// Run reads messages until ctx is cancelled or the reader is closed, and
// waits for the workers to drain what was already read.
func (k *Keeper) Run(ctx context.Context) {
	jobs := make(chan kafka.Message, k.workers*5) // buffer is needed to increase throughput
	var wg sync.WaitGroup
	wg.Add(k.workers)
	for workerID := 0; workerID < k.workers; workerID++ {
		go func(id int) {
			defer wg.Done()
			k.worker(ctx, jobs, id)
		}(workerID)
	}

	log.Info("[logkeeper] accepting logs...")
	for {
		msg, err := k.r.ReadMessage(ctx)
		if err != nil {
			// io.EOF means the reader was closed.
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				break
			}
			log.Errorf("[logkeeper] failed to read message from Kafka: %v", err)
			continue
		}
		log.Debugf("[logkeeper] received message: %s", string(msg.Value))

		select {
		case jobs <- msg:
		case <-ctx.Done():
		}
	}

	close(jobs)
	wg.Wait()
}

func (k *Keeper) worker(ctx context.Context, jobs <-chan kafka.Message, workerID int) {
	for msg := range jobs {
		var entry Entry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			log.Errorf("[logkeeper][workerID:%d] failed to unmarshal log entry: %v", workerID, err)
			continue
		}

		// Messages already read are indexed even while shutting down.
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), indexTimeout)
		err := k.idx.Index(ictx, entry.DocumentID(), msg.Value)
		cancel()
		if err != nil {
			log.Errorf("[logkeeper][workerID:%d] failed to index document: %v", workerID, err)
			continue
		}
		log.Infof("[logkeeper][workerID:%d][%s] log entry indexed", workerID, shorten(entry.RequestID))
	}
	log.Infof("[logkeeper][workerID:%d] jobs channel closed, exiting worker", workerID)
}

func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
