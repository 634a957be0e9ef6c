// Package progress synchronizes participant progress with the remote store.
// Local state is the source of truth for navigation, the remote record is
// eventually consistent: every write is optimistic locally, attempted with
// bounded retries, and journaled so a deferred write survives a restart.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/stagerun/internal/clients"
	"github.com/vadiminshakov/stagerun/internal/domain"
	"github.com/vadiminshakov/stagerun/internal/storage/journal"
	"github.com/vadiminshakov/stagerun/pkg/retrier"
)

// ErrDeferred marks a recoverable write failure: the payload stays journaled
// and is replayed on the next sync, the participant keeps moving forward.
var ErrDeferred = errors.New("progress write deferred")

// ErrResumeLoad marks a failed progress read while resuming a run that is
// known to exist. The caller must surface it with a manual retry action.
var ErrResumeLoad = errors.New("cannot load progress for resume")

// StoreAPI is the slice of the remote store the synchronizer needs.
type StoreAPI interface {
	Progress(ctx context.Context, experimentID, participantID string) (*domain.ParticipantProgress, error)
	SaveProgress(ctx context.Context, p *domain.ParticipantProgress, completion *domain.StageResponse) error
}

// Journal persists completions not yet acknowledged by the remote store.
type Journal interface {
	Append(rec journal.Record) (uint64, error)
	Ack(index uint64) error
	Pending() ([]journal.IndexedRecord, error)
}

// Syncer owns the participant's progress record. It is driven by the
// sequencer's single-threaded control flow; the mutex only guards against
// UI callbacks arriving from timer goroutines.
type Syncer struct {
	api     StoreAPI
	journal Journal
	retr    *retrier.Retrier
	logger  *zap.Logger

	mu    sync.Mutex
	local *domain.ParticipantProgress
}

// NewSyncer creates a synchronizer. jrnl may be nil to run without local
// durability. A nil retr uses the default 3-attempt exponential policy.
func NewSyncer(api StoreAPI, jrnl Journal, retr *retrier.Retrier, logger *zap.Logger) *Syncer {
	if retr == nil {
		retr = retrier.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{api: api, journal: jrnl, retr: retr, logger: logger}
}

// Load fetches the participant's progress record. resume states explicitly
// whether a record is expected to exist: when false, a missing record (or an
// exhausted read) falls back to a fresh not_started record so a new
// participant is never blocked; when true the same failures are hard errors.
func (s *Syncer) Load(ctx context.Context, experimentID, participantID string, resume bool) (*domain.ParticipantProgress, error) {
	var notFound bool
	record, err := retrier.DoWithData(s.retr, ctx, func(ctx context.Context) (*domain.ParticipantProgress, error) {
		p, err := s.api.Progress(ctx, experimentID, participantID)
		if errors.Is(err, clients.ErrNotFound) {
			// a definitive "no record" answer, do not retry it
			notFound = true
			return nil, nil
		}
		notFound = false
		return p, err
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil && !notFound:
		s.local = record
		return record.Clone(), nil
	case notFound && resume:
		return nil, errors.Wrap(ErrResumeLoad, "no progress record found")
	case err != nil && resume:
		return nil, errors.Wrapf(ErrResumeLoad, "read failed after retries: %v", err)
	default:
		if err != nil {
			s.logger.Warn("progress read failed, starting with a fresh local record",
				zap.String("participant", participantID), zap.Error(err))
		}
		s.local = domain.NewParticipantProgress(experimentID, participantID)
		return s.local.Clone(), nil
	}
}

// Local returns a copy of the current local record, nil before Load.
func (s *Syncer) Local() *domain.ParticipantProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return nil
	}
	return s.local.Clone()
}

// AdvanceTo moves the local current-stage pointer. The change rides along
// with the next remote write.
func (s *Syncer) AdvanceTo(stageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local.CurrentStageID = stageID
}

// Begin marks the run started and issues a best-effort start write.
func (s *Syncer) Begin(ctx context.Context) error {
	s.mu.Lock()
	s.local.Status = domain.ProgressInProgress
	if s.local.StartedAt == nil {
		now := time.Now().UTC()
		s.local.StartedAt = &now
	}
	snapshot := s.local.Clone()
	s.mu.Unlock()

	err := s.retr.Do(ctx, func(ctx context.Context) error {
		return s.api.SaveProgress(ctx, snapshot, nil)
	})
	if err != nil {
		s.logger.Warn("start write failed, continuing locally", zap.Error(err))
		return errors.Wrapf(ErrDeferred, "start write: %v", err)
	}
	return nil
}

// RecordStageCompletion marks the stage complete locally, journals the
// payload and tries to deliver it (plus any earlier deferred payloads) to the
// remote store. On exhausted retries it returns a single ErrDeferred; the
// caller may keep navigating.
func (s *Syncer) RecordStageCompletion(ctx context.Context, stageID string, stageType domain.StageType, payload *domain.StageResponse) error {
	if payload == nil {
		payload = domain.NewCompletionMarker(stageID, stageType)
	}

	s.mu.Lock()
	s.local.MarkStageCompleted(stageID)
	snapshot := s.local.Clone()
	s.mu.Unlock()

	if s.journal != nil {
		_, err := s.journal.Append(journal.Record{
			ExperimentID:  snapshot.ExperimentID,
			ParticipantID: snapshot.ParticipantID,
			Response:      payload,
			RecordedAt:    time.Now().UTC(),
		})
		if err == nil {
			if err := s.Flush(ctx); err != nil {
				return errors.Wrapf(ErrDeferred, "stage %s: %v", stageID, err)
			}
			return nil
		}
		// journal unavailable, fall through to a direct write
		s.logger.Warn("journal append failed", zap.String("stage", stageID), zap.Error(err))
	}

	err := s.retr.Do(ctx, func(ctx context.Context) error {
		return s.api.SaveProgress(ctx, snapshot, payload)
	})
	if err != nil {
		return errors.Wrapf(ErrDeferred, "stage %s: %v", stageID, err)
	}
	return nil
}

// MarkExperimentComplete flushes deferred completions, then writes the
// terminal status. The local record turns immutable either way.
func (s *Syncer) MarkExperimentComplete(ctx context.Context) error {
	s.mu.Lock()
	s.local.Status = domain.ProgressCompleted
	if s.local.CompletedAt == nil {
		now := time.Now().UTC()
		s.local.CompletedAt = &now
	}
	snapshot := s.local.Clone()
	s.mu.Unlock()

	if err := s.Flush(ctx); err != nil {
		return errors.Wrapf(ErrDeferred, "completion write blocked by deferred stages: %v", err)
	}

	err := s.retr.Do(ctx, func(ctx context.Context) error {
		return s.api.SaveProgress(ctx, snapshot, nil)
	})
	if err != nil {
		return errors.Wrapf(ErrDeferred, "completion write: %v", err)
	}
	return nil
}

// Flush replays journaled completions that the remote store has not
// acknowledged yet, oldest first, and advances the watermark on success.
func (s *Syncer) Flush(ctx context.Context) error {
	if s.journal == nil {
		return nil
	}

	snapshot := s.Local()
	if snapshot == nil {
		return nil
	}

	pending, err := s.journal.Pending()
	if err != nil {
		return errors.Wrap(err, "read pending completions")
	}
	if len(pending) == 0 {
		return nil
	}
	var delivered uint64
	for _, rec := range pending {
		err := s.retr.Do(ctx, func(ctx context.Context) error {
			return s.api.SaveProgress(ctx, snapshot, rec.Record.Response)
		})
		if err != nil {
			if delivered > 0 {
				s.ack(delivered)
			}
			return errors.Wrapf(err, "deliver journaled completion %d", rec.Index)
		}
		delivered = rec.Index
	}

	s.ack(delivered)
	return nil
}

func (s *Syncer) ack(index uint64) {
	if err := s.journal.Ack(index); err != nil {
		s.logger.Warn("journal ack failed", zap.Uint64("index", index), zap.Error(err))
	}
}
