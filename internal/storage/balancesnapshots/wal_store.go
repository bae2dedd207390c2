package balancesnapshots

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultSnapshotDir   = "./wal/balance"
	snapshotSegmentLimit = 1000
	snapshotMaxSegments  = 100
	snapshotKeyPrefix    = "account_"
)

// Snapshot account value sampled at the end of a cycle.
type Snapshot struct {
	Timestamp     time.Time `json:"ts"`
	Cycle         uint64    `json:"cycle"`
	AccountValue  float64   `json:"account_value"`
	AvailableCash float64   `json:"available_cash"`
	UnrealizedPnl float64   `json:"unrealized_pnl"`
}

// Record bundles a snapshot with its WAL index.
type Record struct {
	Index    uint64   `json:"index"`
	Snapshot Snapshot `json:"snapshot"`
}

// WALStore persists the account value curve in a WAL so performance
// metrics survive restarts.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed snapshot store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultSnapshotDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "snapshot_",
		SegmentThreshold: snapshotSegmentLimit,
		MaxSegments:      snapshotMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init balance snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the snapshot.
func (s *WALStore) Save(snapshot Snapshot) error {
	if s == nil || s.wal == nil {
		return errors.New("balance snapshot store is not initialized")
	}
	if snapshot.AccountValue <= 0 {
		return errors.New("balance snapshot account value must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	payload, err := json.Marshal(Record{Index: nextIndex, Snapshot: snapshot})
	if err != nil {
		return errors.Wrap(err, "marshal balance snapshot")
	}

	return s.wal.Write(nextIndex, snapshotKeyPrefix+"value", payload)
}

// SnapshotsAfter returns all snapshots written after the provided WAL index.
func (s *WALStore) SnapshotsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("balance snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wal.CurrentIndex() <= index {
		return nil, nil
	}

	var records []Record
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, snapshotKeyPrefix) {
			continue
		}
		var record Record
		if err := json.Unmarshal(msg.Value, &record); err != nil {
			return nil, errors.Wrap(err, "decode balance snapshot")
		}
		if record.Index > index {
			records = append(records, record)
		}
	}

	return records, nil
}

// AccountValues returns the stored account value curve in write order.
func (s *WALStore) AccountValues() ([]float64, error) {
	records, err := s.SnapshotsAfter(0)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Snapshot.AccountValue
	}
	return values, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("balance snapshot store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
