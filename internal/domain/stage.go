// Package domain defines the core data structures of the experiment execution engine.
package domain

import (
	"encoding/json"
	"fmt"
)

// StageType discriminates the stage union.
type StageType string

const (
	StageInstructions StageType = "instructions"
	StageScenario     StageType = "scenario"
	StageSurvey       StageType = "survey"
	StageBreak        StageType = "break"
)

// StageMeta holds the fields common to every stage kind.
type StageMeta struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	Required        bool   `json:"required"`
	Order           int    `json:"order"`
}

// Stage is one unit of an experiment's timeline. The concrete type is one of
// InstructionsStage, ScenarioStage, SurveyStage or BreakStage; all field access
// goes through a type switch on the concrete variant.
type Stage interface {
	Meta() StageMeta
	Type() StageType
	// Duration returns the stage time limit in seconds, 0 meaning untimed.
	Duration() int
}

// InstructionsStage shows freeform text until the participant continues.
type InstructionsStage struct {
	StageMeta
	Content string `json:"content"`
}

func (s *InstructionsStage) Meta() StageMeta { return s.StageMeta }
func (s *InstructionsStage) Type() StageType { return StageInstructions }
func (s *InstructionsStage) Duration() int   { return s.DurationSeconds }

// ScenarioStage runs a round-based trading scenario resolved by ScenarioID.
type ScenarioStage struct {
	StageMeta
	ScenarioID    string `json:"scenarioId"`
	Rounds        int    `json:"rounds"`
	RoundDuration int    `json:"roundDuration"`
	// BranchTo is authored conditional-flow configuration. The engine never
	// reads it; stages always execute in order.
	BranchTo string `json:"branchTo,omitempty"`
}

func (s *ScenarioStage) Meta() StageMeta { return s.StageMeta }
func (s *ScenarioStage) Type() StageType { return StageScenario }

// Duration is always derived from rounds and round length. The authored
// durationSeconds field is ignored for scenario stages so the two can never drift.
func (s *ScenarioStage) Duration() int { return s.Rounds * s.RoundDuration }

// SurveyStage collects answers to an ordered question list.
type SurveyStage struct {
	StageMeta
	Questions []Question `json:"questions"`
}

func (s *SurveyStage) Meta() StageMeta { return s.StageMeta }
func (s *SurveyStage) Type() StageType { return StageSurvey }
func (s *SurveyStage) Duration() int   { return s.DurationSeconds }

// BreakStage shows a message for a timed pause between stages.
type BreakStage struct {
	StageMeta
	Message string `json:"message"`
}

func (s *BreakStage) Meta() StageMeta { return s.StageMeta }
func (s *BreakStage) Type() StageType { return StageBreak }
func (s *BreakStage) Duration() int   { return s.DurationSeconds }

// DecodeStage unmarshals one stage, dispatching on the type tag.
// Unknown tags are an error, the union is closed.
func DecodeStage(data []byte) (Stage, error) {
	var envelope struct {
		Type StageType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode stage envelope: %w", err)
	}

	var stage Stage
	switch envelope.Type {
	case StageInstructions:
		stage = &InstructionsStage{}
	case StageScenario:
		stage = &ScenarioStage{}
	case StageSurvey:
		stage = &SurveyStage{}
	case StageBreak:
		stage = &BreakStage{}
	default:
		return nil, fmt.Errorf("unknown stage type %q", envelope.Type)
	}

	if err := json.Unmarshal(data, stage); err != nil {
		return nil, fmt.Errorf("decode %s stage: %w", envelope.Type, err)
	}
	return stage, nil
}
