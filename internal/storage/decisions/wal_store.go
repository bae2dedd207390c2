package decisions

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

const (
	DefaultDir   = "./wal/decisions"
	segmentLimit = 100
	maxSegments  = 10

	cycleKeyPrefix = "cycle_"
)

// WALStore journals cycle events in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed decision journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "decision_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init decision WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the cycle event and returns its journal index.
func (s *WALStore) Save(event domain.CycleEvent) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("decision store is not initialized")
	}
	if event.Action == "" {
		return 0, errors.New("cycle event action is required")
	}

	key := cycleKeyPrefix + event.Symbol

	s.mu.Lock()
	defer s.mu.Unlock()

	// the index travels with the payload so readers need no positional lookups
	nextIndex := s.wal.CurrentIndex() + 1
	payload, err := json.Marshal(domain.CycleEventRecord{Index: nextIndex, Event: event})
	if err != nil {
		return 0, errors.Wrap(err, "marshal cycle event")
	}

	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return 0, errors.Wrap(err, "write cycle event")
	}

	return nextIndex, nil
}

// EventsAfter returns all cycle events written after the provided WAL index.
func (s *WALStore) EventsAfter(index uint64) ([]domain.CycleEventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("decision store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wal.CurrentIndex() <= index {
		return nil, nil
	}

	var records []domain.CycleEventRecord
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, cycleKeyPrefix) {
			continue
		}
		var record domain.CycleEventRecord
		if err := json.Unmarshal(msg.Value, &record); err != nil {
			return nil, errors.Wrap(err, "decode cycle event")
		}
		if record.Index > index {
			records = append(records, record)
		}
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("decision store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
