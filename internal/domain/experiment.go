package domain

import (
	"encoding/json"
	"fmt"
)

// ExperimentStatus lifecycle state of an experiment definition.
type ExperimentStatus string

const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentPublished ExperimentStatus = "published"
	ExperimentArchived  ExperimentStatus = "archived"
)

// Experiment is an ordered stage sequence. The execution engine loads it once
// per run and treats it as immutable afterwards.
type Experiment struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Status      ExperimentStatus `json:"status"`
	Stages      []Stage          `json:"-"`
}

// UnmarshalJSON decodes the experiment and its stage union list.
func (e *Experiment) UnmarshalJSON(data []byte) error {
	type alias Experiment
	tmp := struct {
		*alias
		Stages []json.RawMessage `json:"stages"`
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}

	e.Stages = make([]Stage, 0, len(tmp.Stages))
	for i, raw := range tmp.Stages {
		stage, err := DecodeStage(raw)
		if err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
		e.Stages = append(e.Stages, stage)
	}
	return nil
}

// StageIndex returns the position of the stage with the given id, or -1.
func (e *Experiment) StageIndex(stageID string) int {
	for i, stage := range e.Stages {
		if stage.Meta().ID == stageID {
			return i
		}
	}
	return -1
}
