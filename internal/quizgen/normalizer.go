package quizgen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"quiz-forge/internal/domain"
)

var truePattern = regexp.MustCompile(`(?i)true`)

type rawOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type rawQuestion struct {
	Text    string      `json:"text"`
	Type    *string     `json:"type"`
	Options []rawOption `json:"options"`
}

type rawQuiz struct {
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	Questions   []rawQuestion `json:"questions"`
}

// Normalize validates a raw model response and reshapes it into a GeneratedQuiz whose
// questions all satisfy the option invariants. When forced is set every question is
// converted to that type.
func Normalize(raw string, forced domain.QuestionType) (*domain.GeneratedQuiz, error) {
	payload := ExtractFirstJSON(raw)
	if err := validateJSON(quizSchemaLoader, payload); err != nil {
		return nil, domain.NewMalformedOutputError("quiz does not match the expected shape", err)
	}

	var rq rawQuiz
	if err := json.Unmarshal([]byte(payload), &rq); err != nil {
		return nil, domain.NewMalformedOutputError("quiz json could not be decoded", err)
	}

	out := &domain.GeneratedQuiz{
		Title:     strings.TrimSpace(rq.Title),
		Questions: make([]domain.GeneratedQuestion, 0, len(rq.Questions)),
	}
	if rq.Description != nil {
		out.Description = strings.TrimSpace(*rq.Description)
	}

	for i, q := range rq.Questions {
		qType := domain.QuestionTypeMultipleChoice
		if q.Type != nil && strings.TrimSpace(*q.Type) != "" {
			parsed, ok := domain.ParseQuestionType(*q.Type)
			if !ok {
				return nil, domain.NewMalformedOutputError(fmt.Sprintf("question %d has unknown type %q", i+1, *q.Type), nil)
			}
			qType = parsed
		}

		gq := domain.GeneratedQuestion{
			Text:    strings.TrimSpace(q.Text),
			Type:    qType,
			Options: make([]domain.GeneratedOption, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			gq.Options = append(gq.Options, domain.GeneratedOption{Text: strings.TrimSpace(o.Text), IsCorrect: o.IsCorrect})
		}

		gq = normalizeQuestion(gq)
		if forced != "" && gq.Type != forced {
			gq.Type = forced
			gq = normalizeQuestion(gq)
		}

		if err := gq.Validate(); err != nil {
			return nil, domain.NewMalformedOutputError(fmt.Sprintf("question %d is invalid", i+1), err)
		}
		out.Questions = append(out.Questions, gq)
	}
	return out, nil
}

func normalizeQuestion(q domain.GeneratedQuestion) domain.GeneratedQuestion {
	switch q.Type {
	case domain.QuestionTypeTrueFalse:
		q.Options = trueFalseOptions(q.Options)
	default:
		q.Type = domain.QuestionTypeMultipleChoice
		q.Options = multipleChoiceOptions(q.Options)
	}
	return q
}

// multipleChoiceOptions keeps the first correct option (or the first option when none is
// flagged) and caps the set at the maximum size without dropping the correct answer.
func multipleChoiceOptions(opts []domain.GeneratedOption) []domain.GeneratedOption {
	if len(opts) == 0 {
		return []domain.GeneratedOption{
			{Text: domain.TrueOptionText, IsCorrect: true},
			{Text: domain.FalseOptionText},
		}
	}

	correct := 0
	for i, o := range opts {
		if o.IsCorrect {
			correct = i
			break
		}
	}

	out := make([]domain.GeneratedOption, 0, domain.MaxOptionsMultipleChoice)
	for i, o := range opts {
		if len(out) == domain.MaxOptionsMultipleChoice-1 && correct > i {
			continue
		}
		out = append(out, domain.GeneratedOption{Text: o.Text, IsCorrect: i == correct})
		if len(out) == domain.MaxOptionsMultipleChoice {
			break
		}
	}
	return out
}

// trueFalseOptions marks True correct only if an original option flagged correct reads as true.
func trueFalseOptions(opts []domain.GeneratedOption) []domain.GeneratedOption {
	trueCorrect := false
	for _, o := range opts {
		if o.IsCorrect && truePattern.MatchString(o.Text) {
			trueCorrect = true
			break
		}
	}
	return []domain.GeneratedOption{
		{Text: domain.TrueOptionText, IsCorrect: trueCorrect},
		{Text: domain.FalseOptionText, IsCorrect: !trueCorrect},
	}
}
