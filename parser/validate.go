package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"ai-question-service/models"
)

const OptionsPerQuestion = 5

// Violation describes one way the parsed output breaks the question schema.
// Index is the question position, or -1 for the document as a whole.
type Violation struct {
	Index   int    `json:"index"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type rawOption struct {
	Text      *string `json:"text"`
	IsCorrect *bool   `json:"is_correct"`
}

type rawQuestion struct {
	Text        *string     `json:"text"`
	Options     []rawOption `json:"options"`
	Explanation *string     `json:"explanation"`
	Type        *string     `json:"type"`
}

// ValidateQuestions decodes data as a question set and checks every item:
// required fields present, exactly five options, exactly one correct option.
// The questions are returned only when there are no violations.
func ValidateQuestions(data json.RawMessage) ([]models.Question, []Violation) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil || items == nil {
		return nil, []Violation{{Index: -1, Message: "expected a JSON array of questions"}}
	}
	if len(items) == 0 {
		return nil, []Violation{{Index: -1, Message: "no questions were generated"}}
	}

	var violations []Violation
	questions := make([]models.Question, 0, len(items))
	for i, item := range items {
		q, vs := validateQuestion(i, item)
		if len(vs) > 0 {
			violations = append(violations, vs...)
			continue
		}
		questions = append(questions, q)
	}
	if len(violations) > 0 {
		return nil, violations
	}
	return questions, nil
}

func validateQuestion(index int, item json.RawMessage) (models.Question, []Violation) {
	var raw rawQuestion
	if err := json.Unmarshal(item, &raw); err != nil {
		return models.Question{}, []Violation{{Index: index, Message: fmt.Sprintf("invalid question: %v", err)}}
	}

	var vs []Violation
	missing := func(field string, v *string) {
		if v == nil || strings.TrimSpace(*v) == "" {
			vs = append(vs, Violation{Index: index, Field: field, Message: "is required"})
		}
	}
	missing("text", raw.Text)
	missing("explanation", raw.Explanation)
	missing("type", raw.Type)

	if len(raw.Options) != OptionsPerQuestion {
		vs = append(vs, Violation{
			Index:   index,
			Field:   "options",
			Message: fmt.Sprintf("must have exactly %d options, got %d", OptionsPerQuestion, len(raw.Options)),
		})
	}

	correct := 0
	options := make([]models.Option, 0, len(raw.Options))
	for j, opt := range raw.Options {
		field := fmt.Sprintf("options[%d]", j)
		if opt.Text == nil || strings.TrimSpace(*opt.Text) == "" {
			vs = append(vs, Violation{Index: index, Field: field + ".text", Message: "is required"})
		}
		if opt.IsCorrect == nil {
			vs = append(vs, Violation{Index: index, Field: field + ".is_correct", Message: "is required"})
			continue
		}
		if *opt.IsCorrect {
			correct++
		}
		if opt.Text != nil {
			options = append(options, models.Option{Text: *opt.Text, IsCorrect: *opt.IsCorrect})
		}
	}
	if correct != 1 {
		vs = append(vs, Violation{
			Index:   index,
			Field:   "options",
			Message: fmt.Sprintf("must have exactly one correct option, got %d", correct),
		})
	}

	if len(vs) > 0 {
		return models.Question{}, vs
	}
	return models.Question{
		Text:        *raw.Text,
		Options:     options,
		Explanation: *raw.Explanation,
		Type:        *raw.Type,
	}, nil
}
