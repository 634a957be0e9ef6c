// Package journal persists stage completion records in a local WAL so writes
// deferred by network failures survive a restart. Records are appended as the
// participant completes stages; an acknowledgement watermark marks everything
// up to an index as synced with the remote store.
package journal

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/stagerun/internal/domain"
)

const (
	segmentLimit = 1000
	maxSegments  = 10

	completionKeyPrefix = "completion_"
	ackKey              = "ack"
)

// Record is one journaled stage completion.
type Record struct {
	ExperimentID  string                `json:"experimentId"`
	ParticipantID string                `json:"participantId"`
	Response      *domain.StageResponse `json:"response"`
	RecordedAt    time.Time             `json:"recordedAt"`
}

// IndexedRecord bundles a record with its WAL index.
type IndexedRecord struct {
	Index  uint64
	Record Record
}

// Store is a gowal-backed completion journal.
type Store struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewStore opens (or creates) the journal in dir.
func NewStore(dir string) (*Store, error) {
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init completion journal")
	}
	return &Store{wal: wal}, nil
}

// Append journals one completion and returns its index.
func (s *Store) Append(rec Record) (uint64, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, errors.Wrap(err, "marshal completion record")
	}

	key := completionKeyPrefix
	if rec.Response != nil {
		key += rec.Response.StageID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(index, key, payload); err != nil {
		return 0, errors.Wrap(err, "append completion record")
	}
	return index, nil
}

// Ack advances the sync watermark: every completion at or below index is
// considered delivered to the remote store.
func (s *Store) Ack(index uint64) error {
	payload, err := json.Marshal(index)
	if err != nil {
		return errors.Wrap(err, "marshal ack watermark")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(next, ackKey, payload); err != nil {
		return errors.Wrap(err, "write ack watermark")
	}
	return nil
}

// Pending returns the completions above the latest acknowledgement watermark,
// oldest first.
func (s *Store) Pending() ([]IndexedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var watermark uint64
	var pending []IndexedRecord

	for idx := uint64(1); idx <= s.wal.CurrentIndex(); idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}

		if key == ackKey {
			var acked uint64
			if err := json.Unmarshal(payload, &acked); err != nil {
				return nil, errors.Wrap(err, "decode ack watermark "+strconv.FormatUint(idx, 10))
			}
			if acked > watermark {
				watermark = acked
			}
			continue
		}

		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, errors.Wrap(err, "decode completion record "+strconv.FormatUint(idx, 10))
		}
		pending = append(pending, IndexedRecord{Index: idx, Record: rec})
	}

	filtered := pending[:0]
	for _, rec := range pending {
		if rec.Index > watermark {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// Close releases the underlying WAL.
func (s *Store) Close() error {
	return s.wal.Close()
}
