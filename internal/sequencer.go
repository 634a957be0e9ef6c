// Package internal wires the execution engine together: the Sequencer owns
// the macro state of a run (welcome, running, finished) and drives the
// participant through the stage list.
package internal

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/stagerun/internal/domain"
	"github.com/vadiminshakov/stagerun/internal/services/progress"
	"github.com/vadiminshakov/stagerun/internal/services/survey"
)

// State is the sequencer's macro state.
type State string

const (
	StateWelcome  State = "welcome"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateError    State = "error"
)

// DefinitionLoader fetches the experiment definition.
type DefinitionLoader interface {
	Experiment(ctx context.Context, experimentID string) (*domain.Experiment, error)
}

// ProgressSyncer is the slice of the progress synchronizer the sequencer
// drives.
type ProgressSyncer interface {
	Load(ctx context.Context, experimentID, participantID string, resume bool) (*domain.ParticipantProgress, error)
	Local() *domain.ParticipantProgress
	AdvanceTo(stageID string)
	Begin(ctx context.Context) error
	RecordStageCompletion(ctx context.Context, stageID string, stageType domain.StageType, payload *domain.StageResponse) error
	MarkExperimentComplete(ctx context.Context) error
}

// Sequencer steps a participant through an experiment's ordered stages.
// It is single-threaded: the front end calls it from one control flow, and
// completion writes never block the advance to the next stage.
type Sequencer struct {
	loader DefinitionLoader
	syncer ProgressSyncer
	logger *zap.Logger

	experimentID  string
	participantID string
	resume        bool

	experiment *domain.Experiment
	state      State
	index      int
	loadErr    error
}

// NewSequencer creates a sequencer for one run. resume states whether the
// participant is re-entering a run known to exist; it decides how a failed
// progress read is treated.
func NewSequencer(loader DefinitionLoader, syncer ProgressSyncer, experimentID, participantID string, resume bool, logger *zap.Logger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{
		loader:        loader,
		syncer:        syncer,
		logger:        logger,
		experimentID:  experimentID,
		participantID: participantID,
		resume:        resume,
		state:         StateWelcome,
	}
}

// Load fetches the experiment definition (once, cached for the whole run)
// and the progress record, then settles the initial state:
// completed runs go straight to finished with no new writes, in_progress
// runs resume at the recorded stage, everything else starts at welcome.
// The returned error is retryable via calling Load again.
func (s *Sequencer) Load(ctx context.Context) error {
	if s.experiment == nil {
		exp, err := s.loader.Experiment(ctx, s.experimentID)
		if err != nil {
			s.state = StateError
			s.loadErr = errors.Wrap(err, "load experiment definition")
			return s.loadErr
		}
		s.experiment = exp
	}

	record, err := s.syncer.Load(ctx, s.experimentID, s.participantID, s.resume)
	if err != nil {
		s.state = StateError
		s.loadErr = err
		return err
	}

	s.loadErr = nil
	switch record.Status {
	case domain.ProgressCompleted:
		s.state = StateFinished
	case domain.ProgressInProgress:
		s.index = s.resumeIndex(record)
		s.state = StateRunning
		s.logger.Info("resuming run",
			zap.String("participant", s.participantID),
			zap.Int("stage_index", s.index))
	default:
		s.state = StateWelcome
	}
	return nil
}

func (s *Sequencer) resumeIndex(record *domain.ParticipantProgress) int {
	if idx := s.experiment.StageIndex(record.CurrentStageID); idx >= 0 {
		return idx
	}
	// unknown stage pointer, fall back to the first not-yet-completed stage
	for i, stage := range s.experiment.Stages {
		if !record.StageCompleted(stage.Meta().ID) {
			return i
		}
	}
	return 0
}

// State returns the current macro state.
func (s *Sequencer) State() State { return s.state }

// LoadError returns the error that put the sequencer in the error state.
func (s *Sequencer) LoadError() error { return s.loadErr }

// Experiment returns the cached definition, nil before a successful Load.
func (s *Sequencer) Experiment() *domain.Experiment { return s.experiment }

// CurrentStage returns the active stage and its index. ok is false outside
// the running state.
func (s *Sequencer) CurrentStage() (stage domain.Stage, index int, ok bool) {
	if s.state != StateRunning || s.index >= len(s.experiment.Stages) {
		return nil, 0, false
	}
	return s.experiment.Stages[s.index], s.index, true
}

// Begin moves welcome to running on the participant's action. The start
// write is best-effort: a deferred write is logged, never blocking.
func (s *Sequencer) Begin(ctx context.Context) error {
	if s.state != StateWelcome {
		return errors.Errorf("cannot begin from state %q", s.state)
	}
	if len(s.experiment.Stages) == 0 {
		return s.finish(ctx)
	}

	s.state = StateRunning
	s.index = 0
	s.syncer.AdvanceTo(s.experiment.Stages[0].Meta().ID)

	if err := s.syncer.Begin(ctx); err != nil {
		if errors.Is(err, progress.ErrDeferred) {
			s.logger.Warn("start write deferred", zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}

// CompleteCurrent records the active stage as done and advances. For survey
// stages the response is validated first; a failed validation blocks the
// advance and is reported in the returned result, it is not an error.
// A deferred progress write is logged and reported via the second return
// value while the advance still happens, local state drives navigation.
func (s *Sequencer) CompleteCurrent(ctx context.Context, response *domain.StageResponse) (*survey.ValidationResult, error) {
	stage, _, ok := s.CurrentStage()
	if !ok {
		return nil, errors.Errorf("no active stage in state %q", s.state)
	}

	if sv, isSurvey := stage.(*domain.SurveyStage); isSurvey {
		var answers map[string]any
		if response != nil {
			answers = response.Answers
		}
		result := survey.Validate(sv.Questions, answers)
		if !result.OK {
			return &result, nil
		}
	}

	stageID := stage.Meta().ID
	if response == nil {
		response = domain.NewCompletionMarker(stageID, stage.Type())
	}

	var writeErr error
	if err := s.syncer.RecordStageCompletion(ctx, stageID, stage.Type(), response); err != nil {
		if !errors.Is(err, progress.ErrDeferred) {
			return nil, err
		}
		s.logger.Warn("stage completion write deferred", zap.String("stage", stageID), zap.Error(err))
		writeErr = err
	}

	if s.index == len(s.experiment.Stages)-1 {
		return nil, firstErr(writeErr, s.finish(ctx))
	}

	s.index++
	s.syncer.AdvanceTo(s.experiment.Stages[s.index].Meta().ID)
	return nil, writeErr
}

func (s *Sequencer) finish(ctx context.Context) error {
	s.state = StateFinished
	if err := s.syncer.MarkExperimentComplete(ctx); err != nil {
		if errors.Is(err, progress.ErrDeferred) {
			s.logger.Warn("completion write deferred", zap.Error(err))
			return err
		}
		return err
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
