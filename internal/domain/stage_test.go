package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStage(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, stage Stage)
		wantErr string
	}{
		{
			name:    "instructions",
			payload: `{"id":"s1","type":"instructions","title":"Intro","content":"Read me","required":true,"order":0}`,
			check: func(t *testing.T, stage Stage) {
				inst, ok := stage.(*InstructionsStage)
				require.True(t, ok)
				assert.Equal(t, "Read me", inst.Content)
				assert.Equal(t, StageInstructions, inst.Type())
			},
		},
		{
			name:    "scenario derives duration from rounds",
			payload: `{"id":"s2","type":"scenario","scenarioId":"sc-9","rounds":4,"roundDuration":30,"durationSeconds":999}`,
			check: func(t *testing.T, stage Stage) {
				sc, ok := stage.(*ScenarioStage)
				require.True(t, ok)
				// the authored durationSeconds must never win over the derived value
				assert.Equal(t, 120, sc.Duration())
			},
		},
		{
			name:    "survey",
			payload: `{"id":"s3","type":"survey","questions":[{"id":"q1","text":"Why?","type":"textarea","required":true}]}`,
			check: func(t *testing.T, stage Stage) {
				sv, ok := stage.(*SurveyStage)
				require.True(t, ok)
				require.Len(t, sv.Questions, 1)
				assert.Equal(t, QuestionTextarea, sv.Questions[0].Type)
			},
		},
		{
			name:    "break",
			payload: `{"id":"s4","type":"break","message":"Stretch your legs","durationSeconds":60}`,
			check: func(t *testing.T, stage Stage) {
				br, ok := stage.(*BreakStage)
				require.True(t, ok)
				assert.Equal(t, "Stretch your legs", br.Message)
				assert.Equal(t, 60, br.Duration())
			},
		},
		{
			name:    "unknown tag is rejected",
			payload: `{"id":"s5","type":"quiz"}`,
			wantErr: "unknown stage type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage, err := DecodeStage([]byte(tt.payload))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, stage)
		})
	}
}

func TestExperimentUnmarshal(t *testing.T) {
	payload := `{
		"id": "exp-1",
		"name": "Market study",
		"status": "published",
		"stages": [
			{"id":"a","type":"instructions","content":"hello","order":0},
			{"id":"b","type":"scenario","scenarioId":"sc-1","rounds":3,"roundDuration":10,"order":1},
			{"id":"c","type":"break","message":"pause","order":2}
		]
	}`

	var exp Experiment
	require.NoError(t, json.Unmarshal([]byte(payload), &exp))

	assert.Equal(t, ExperimentPublished, exp.Status)
	require.Len(t, exp.Stages, 3)
	assert.Equal(t, 1, exp.StageIndex("b"))
	assert.Equal(t, -1, exp.StageIndex("missing"))
	assert.Equal(t, 30, exp.Stages[1].Duration())
}
