// Package survey validates participant answers against per-question rules
// before submission. Validation is entirely local and never touches the
// network; a failed result is normal control flow, not an error.
package survey

import (
	"fmt"

	"github.com/vadiminshakov/stagerun/internal/domain"
)

// Failure describes one failing question.
type Failure struct {
	QuestionID string
	Reason     string
}

// ValidationResult reports every failing question at once so the UI can
// message all of them together.
type ValidationResult struct {
	OK       bool
	Failures []Failure
}

// Validate checks the responses against the question list. A required
// question fails on a missing, empty-string or empty-array answer; answers
// that are present are additionally checked against the question's format
// rules (choice membership, scale and rating bounds).
func Validate(questions []domain.Question, responses map[string]any) ValidationResult {
	var failures []Failure

	for _, q := range questions {
		answer, present := responses[q.ID]
		if !present || isEmpty(answer) {
			if q.Required {
				failures = append(failures, Failure{QuestionID: q.ID, Reason: "answer is required"})
			}
			continue
		}

		if reason := checkFormat(q, answer); reason != "" {
			failures = append(failures, Failure{QuestionID: q.ID, Reason: reason})
		}
	}

	return ValidationResult{OK: len(failures) == 0, Failures: failures}
}

func isEmpty(answer any) bool {
	switch v := answer.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

func checkFormat(q domain.Question, answer any) string {
	switch q.Type {
	case domain.QuestionText, domain.QuestionTextarea:
		if _, ok := answer.(string); !ok {
			return "answer must be text"
		}

	case domain.QuestionMultipleChoice:
		choice, ok := answer.(string)
		if !ok {
			return "answer must be one of the offered options"
		}
		if !contains(q.Options, choice) {
			return fmt.Sprintf("%q is not one of the offered options", choice)
		}

	case domain.QuestionCheckboxes:
		choices, ok := toStringSlice(answer)
		if !ok {
			return "answer must be a list of the offered options"
		}
		for _, choice := range choices {
			if !contains(q.Options, choice) {
				return fmt.Sprintf("%q is not one of the offered options", choice)
			}
		}

	case domain.QuestionScale:
		value, ok := toInt(answer)
		if !ok {
			return "answer must be a number"
		}
		if value < q.MinValue || value > q.MaxValue {
			return fmt.Sprintf("answer must be between %d and %d", q.MinValue, q.MaxValue)
		}

	case domain.QuestionRating:
		value, ok := toInt(answer)
		if !ok {
			return "answer must be a number"
		}
		if value < 1 || value > q.MaxRating {
			return fmt.Sprintf("answer must be between 1 and %d", q.MaxRating)
		}
	}

	return ""
}

func contains(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}

func toStringSlice(answer any) ([]string, bool) {
	switch v := answer.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toInt(answer any) (int, bool) {
	switch v := answer.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
