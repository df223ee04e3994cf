// Package memory keeps a short-lived record of past interactions and derives
// patterns and situational awareness from it.
package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"go-firstresponder/types"
)

const (
	DefaultTTL         = 24 * time.Hour
	DefaultHistorySize = 50

	// maxConflictRetries bounds read-modify-write retries on one key.
	maxConflictRetries = 64
)

const (
	historyKey        = "history"
	interactionPrefix = "interaction:"
	locationPrefix    = "location:"
	categoryPrefix    = "category:"
	feedbackPrefix    = "feedback:"
)

// ErrUnknownInteraction is returned when feedback targets an interaction
// that is not (or no longer) in memory.
var ErrUnknownInteraction = errors.New("interaction not found in memory")

// ReportSource lists recently persisted reports.
type ReportSource interface {
	Recent(ctx context.Context, since time.Time, limit int) ([]types.EmergencyReport, error)
}

// Recorder receives memory operation outcomes.
type Recorder interface {
	RecordMemoryOperation(op string, success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordMemoryOperation(string, bool) {}

// Options configure the backing store. An empty Dir keeps everything in memory.
type Options struct {
	Dir         string
	TTL         time.Duration
	HistorySize int
}

type Store struct {
	db          *badger.DB
	ttl         time.Duration
	historySize int
	reports     ReportSource
	recorder    Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// Open opens the badger database. reports may be nil, in which case
// situational awareness is always empty.
func Open(opts Options, reports ReportSource, recorder Recorder, logger *slog.Logger) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Dir).WithLoggingLevel(badger.ERROR)
	if opts.Dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:          db,
		ttl:         opts.TTL,
		historySize: opts.HistorySize,
		reports:     reports,
		recorder:    recorder,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CollectGarbage rewrites value log files that are mostly expired entries.
// It is a no-op for in-memory stores.
func (s *Store) CollectGarbage() error {
	for {
		err := s.db.RunValueLogGC(0.5)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return nil
		default:
			return fmt.Errorf("memory value log gc: %w", err)
		}
	}
}

// LocationHash groups coordinates into ~100 m cells.
func LocationHash(loc types.Location) string {
	lat := strconv.FormatFloat(math.Round(loc.Lat*1000)/1000, 'f', -1, 64)
	lon := strconv.FormatFloat(math.Round(loc.Lon*1000)/1000, 'f', -1, 64)
	sum := md5.Sum([]byte(lat + "," + lon))
	return hex.EncodeToString(sum[:])[:8]
}

func categoryKey(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		c = "unknown"
	}
	return categoryPrefix + c
}

// get decodes key into v. It reports false when the key does not exist.
func (s *Store) get(key string, v any) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	return found, nil
}

func (s *Store) set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(s.ttl))
	})
}

// modify runs a read-modify-write of one JSON value in its own transaction,
// retrying when a concurrent writer touched the same key.
func modify[T any](s *Store, key string, fn func(v *T, found bool)) error {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err := s.db.Update(func(txn *badger.Txn) error {
			var v T
			found := false
			item, err := txn.Get([]byte(key))
			switch {
			case err == nil:
				found = true
				if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &v) }); err != nil {
					return fmt.Errorf("decode %s: %w", key, err)
				}
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}

			fn(&v, found)
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
			return txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(s.ttl))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: %w", key, badger.ErrConflict)
}
