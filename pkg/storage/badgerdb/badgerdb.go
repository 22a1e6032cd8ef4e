// Package badgerdb keeps the user's votes in an embedded BadgerDB so they survive restarts.
package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/storage"
)

type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
}

type Store struct {
	db *badger.DB
}

// badgerLogger routes BadgerDB's internal messages through logrus.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) { log.Errorf("[badger] "+format, args...) }
func (badgerLogger) Warningf(format string, args ...interface{}) { log.Warnf("[badger] "+format, args...) }
func (badgerLogger) Infof(format string, args ...interface{}) { log.Debugf("[badger] "+format, args...) }
func (badgerLogger) Debugf(format string, args ...interface{}) { log.Tracef("[badger] "+format, args...) }

func New(conf Config) (*Store, error) {
	if !conf.InMemory && conf.Path == "" {
		return nil, errors.New("path is required for persistent vote storage")
	}

	var opts badger.Options
	if conf.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(conf.Path, 0750); err != nil {
			return nil, fmt.Errorf("create vote storage directory %s: %w", conf.Path, err)
		}
		opts = badger.DefaultOptions(conf.Path)
	}
	opts = opts.WithSyncWrites(conf.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadVotes reads the UserVotes document. A missing key yields an empty mapping.
func (s *Store) LoadVotes(ctx context.Context) (map[string]models.Vote, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(storage.VotesKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return map[string]models.Vote{}, nil
	}
	if err != nil {
		return nil, err
	}

	return storage.DecodeVotes(data)
}

// SaveVotes replaces the UserVotes document with votes.
func (s *Store) SaveVotes(ctx context.Context, votes map[string]models.Vote) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := storage.EncodeVotes(votes)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(storage.VotesKey), data)
	})
}
