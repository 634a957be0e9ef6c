package domain

import "time"

// ProgressStatus lifecycle state of a participant's run.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// ParticipantProgress is the durable per-participant record of a run. Exactly
// one exists per (experiment, participant) pair; re-entering a run resumes
// from CurrentStageID, never restarts. Once Status is completed the record is
// immutable.
type ParticipantProgress struct {
	ExperimentID      string         `json:"experimentId"`
	ParticipantID     string         `json:"participantId"`
	Status            ProgressStatus `json:"status"`
	CurrentStageID    string         `json:"currentStageId,omitempty"`
	CompletedStageIDs []string       `json:"completedStageIds"`
	StartedAt         *time.Time     `json:"startedAt,omitempty"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"`
}

// NewParticipantProgress builds a fresh not_started record.
func NewParticipantProgress(experimentID, participantID string) *ParticipantProgress {
	return &ParticipantProgress{
		ExperimentID:      experimentID,
		ParticipantID:     participantID,
		Status:            ProgressNotStarted,
		CompletedStageIDs: []string{},
	}
}

// StageCompleted reports whether the stage is already recorded as completed.
func (p *ParticipantProgress) StageCompleted(stageID string) bool {
	for _, id := range p.CompletedStageIDs {
		if id == stageID {
			return true
		}
	}
	return false
}

// MarkStageCompleted adds the stage to the completed set.
func (p *ParticipantProgress) MarkStageCompleted(stageID string) {
	if !p.StageCompleted(stageID) {
		p.CompletedStageIDs = append(p.CompletedStageIDs, stageID)
	}
}

// Clone returns a deep copy so optimistic local updates never alias the
// record handed out to callers.
func (p *ParticipantProgress) Clone() *ParticipantProgress {
	cp := *p
	cp.CompletedStageIDs = append([]string(nil), p.CompletedStageIDs...)
	if p.StartedAt != nil {
		t := *p.StartedAt
		cp.StartedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
