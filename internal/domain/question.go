package domain

// QuestionType enumerates the supported survey question kinds.
type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionTextarea       QuestionType = "textarea"
	QuestionMultipleChoice QuestionType = "multipleChoice"
	QuestionCheckboxes     QuestionType = "checkboxes"
	QuestionScale          QuestionType = "scale"
	QuestionRating         QuestionType = "rating"
)

// Question is one survey item. Options, MinValue/MaxValue and MaxRating are
// meaningful only for the choice, scale and rating kinds respectively.
type Question struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Type      QuestionType `json:"type"`
	Required  bool         `json:"required"`
	Options   []string     `json:"options,omitempty"`
	MinValue  int          `json:"minValue,omitempty"`
	MaxValue  int          `json:"maxValue,omitempty"`
	MaxRating int          `json:"maxRating,omitempty"`
}
