package domain

// ScenarioResult is what a finished (or skipped) scenario stage reports.
type ScenarioResult struct {
	ScenarioID      string `json:"scenarioId"`
	CompletedRounds int    `json:"completedRounds"`
	// Skipped marks a degraded run the participant chose to skip.
	Skipped bool `json:"skipped,omitempty"`
}

// StageResponse is the transient per-stage payload handed to the progress
// synchronizer. Instructions and break stages send a bare completion marker,
// scenario stages attach a ScenarioResult, survey stages attach the answers
// keyed by question id (string, []string or number by question type). It is
// not retained locally after a successful submission.
type StageResponse struct {
	StageID   string          `json:"stageId"`
	StageType StageType       `json:"stageType"`
	Scenario  *ScenarioResult `json:"scenario,omitempty"`
	Answers   map[string]any  `json:"answers,omitempty"`
}

// NewCompletionMarker builds the payload for stages without structured output.
func NewCompletionMarker(stageID string, stageType StageType) *StageResponse {
	return &StageResponse{StageID: stageID, StageType: stageType}
}

// NewScenarioResponse builds a scenario stage payload.
func NewScenarioResponse(stageID string, result ScenarioResult) *StageResponse {
	return &StageResponse{StageID: stageID, StageType: StageScenario, Scenario: &result}
}

// NewSurveyResponse builds a survey stage payload.
func NewSurveyResponse(stageID string, answers map[string]any) *StageResponse {
	return &StageResponse{StageID: stageID, StageType: StageSurvey, Answers: answers}
}
