package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/dto"
	"quiz-forge/internal/util"

	"github.com/google/uuid"
)

const (
	maxTitleLength       = 255
	maxDescriptionLength = 2000
	maxQuestionLength    = 2000
	maxOptionLength      = 500
)

// Validator provides request validation functionality
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateQuizID validates a quiz id path parameter
func (v *Validator) ValidateQuizID(quizID string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(quizID) == "" {
		errors = append(errors, domain.NewMissingFieldError("id"))
	} else if !util.IsValidULID(quizID) {
		errors = append(errors, domain.NewInvalidFormatError("id", quizID))
	}

	return errors
}

// ValidateShareToken checks that the token is a UUID as issued by the sharing service
func (v *Validator) ValidateShareToken(token string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(token) == "" {
		errors = append(errors, domain.NewMissingFieldError("token"))
	} else if _, err := uuid.Parse(token); err != nil {
		errors = append(errors, domain.NewInvalidFormatError("token", token))
	}

	return errors
}

// ValidateGenerateRequest validates the enum and length fields of a generation request.
// Question count is clamped later and never rejected; content presence is checked after extraction.
func (v *Validator) ValidateGenerateRequest(req dto.GenerateQuizRequest) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if n := utf8.RuneCountInString(req.Title); n > maxTitleLength {
		errors = append(errors, domain.NewOutOfRangeError("title", n, 0, maxTitleLength))
	}
	if n := utf8.RuneCountInString(req.Description); n > maxDescriptionLength {
		errors = append(errors, domain.NewOutOfRangeError("description", n, 0, maxDescriptionLength))
	}
	if req.Difficulty != "" {
		if _, ok := domain.ParseDifficulty(req.Difficulty); !ok {
			errors = append(errors, domain.NewInvalidFormatError("difficulty", req.Difficulty))
		}
	}
	if req.QuestionType != "" {
		if _, ok := domain.ParseQuestionType(req.QuestionType); !ok {
			errors = append(errors, domain.NewInvalidFormatError("questionType", req.QuestionType))
		}
	}

	return errors
}

// ValidateUpdateRequest requires at least one field and a non-blank title when given
func (v *Validator) ValidateUpdateRequest(req dto.UpdateQuizRequest) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if req.Title == nil && req.Description == nil {
		errors = append(errors, domain.NewFieldError("body", "No fields to update"))
		return errors
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			errors = append(errors, domain.NewMissingFieldError("title"))
		} else if n := utf8.RuneCountInString(title); n > maxTitleLength {
			errors = append(errors, domain.NewOutOfRangeError("title", n, 1, maxTitleLength))
		}
	}
	if req.Description != nil {
		if n := utf8.RuneCountInString(*req.Description); n > maxDescriptionLength {
			errors = append(errors, domain.NewOutOfRangeError("description", n, 0, maxDescriptionLength))
		}
	}

	return errors
}

// ValidateReplaceQuestionsRequest checks shape and field presence.
// Option count and correctness rules are enforced by the domain model.
func (v *Validator) ValidateReplaceQuestionsRequest(req dto.ReplaceQuestionsRequest) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if len(req.Questions) == 0 {
		errors = append(errors, domain.NewMissingFieldError("questions"))
		return errors
	}
	if len(req.Questions) > domain.MaxQuestionCount {
		errors = append(errors, domain.NewOutOfRangeError("questions", len(req.Questions), domain.MinQuestionCount, domain.MaxQuestionCount))
		return errors
	}

	for i, q := range req.Questions {
		field := fmt.Sprintf("questions[%d]", i)

		if strings.TrimSpace(q.Text) == "" {
			errors = append(errors, domain.NewMissingFieldError(field+".text"))
		} else if n := utf8.RuneCountInString(q.Text); n > maxQuestionLength {
			errors = append(errors, domain.NewOutOfRangeError(field+".text", n, 1, maxQuestionLength))
		}

		if q.Type != "" {
			if _, ok := domain.ParseQuestionType(q.Type); !ok {
				errors = append(errors, domain.NewInvalidFormatError(field+".type", q.Type))
			}
		}

		for j, o := range q.Options {
			if n := utf8.RuneCountInString(o.Text); n > maxOptionLength {
				errors = append(errors, domain.NewOutOfRangeError(fmt.Sprintf("%s.options[%d].text", field, j), n, 1, maxOptionLength))
			}
		}
	}

	return errors
}
