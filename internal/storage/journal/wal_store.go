// Package journal persists plan and rebalance events in a WAL so operators can
// audit what the engine decided and stream new decisions live.
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"lendplanner/internal/domain"
)

const (
	defaultJournalDir   = "./wal/journal"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100

	planKeyPrefix      = "plan_"
	rebalanceKeyPrefix = "rebalance_"
)

// WALStore is an append-only, WAL-backed journal of engine decisions.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes the journal under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// SavePlan appends a plan event.
func (s *WALStore) SavePlan(event domain.PlanEvent) error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}
	if event.Pair == "" {
		return fmt.Errorf("plan event pair is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal plan event")
	}

	return s.write(fmt.Sprintf("%s%s", planKeyPrefix, event.Pair), payload)
}

// SaveRebalance appends a rebalance event.
func (s *WALStore) SaveRebalance(event domain.RebalanceEvent) error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}
	if event.Pair == "" {
		return fmt.Errorf("rebalance event pair is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal rebalance event")
	}

	return s.write(fmt.Sprintf("%s%s", rebalanceKeyPrefix, event.Pair), payload)
}

func (s *WALStore) write(key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// PlansAfter returns plan events written after the provided WAL index.
func (s *WALStore) PlansAfter(index uint64) ([]domain.PlanEventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.PlanEventRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "read journal record %d", idx)
		}
		if !strings.HasPrefix(key, planKeyPrefix) {
			continue
		}
		var event domain.PlanEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "decode plan event")
		}
		records = append(records, domain.PlanEventRecord{Index: idx, Event: event})
	}

	return records, nil
}

// RebalancesAfter returns rebalance events written after the provided WAL index.
func (s *WALStore) RebalancesAfter(index uint64) ([]domain.RebalanceEventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.RebalanceEventRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "read journal record %d", idx)
		}
		if !strings.HasPrefix(key, rebalanceKeyPrefix) {
			continue
		}
		var event domain.RebalanceEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "decode rebalance event")
		}
		records = append(records, domain.RebalanceEventRecord{Index: idx, Event: event})
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
		return errors.New("journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
