package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// QuizState tracks the lifecycle of a generated quiz. PENDING only exists for async generation.
type QuizState string

const (
	QuizStatePending  QuizState = "PENDING"
	QuizStateFinished QuizState = "FINISHED"
	QuizStateError    QuizState = "ERROR"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "BEGINNER"
	DifficultyIntermediate Difficulty = "INTERMEDIATE"
	DifficultyExpert       Difficulty = "EXPERT"
)

const (
	MinOptionsMultipleChoice = 2
	MaxOptionsMultipleChoice = 5

	TrueOptionText  = "True"
	FalseOptionText = "False"
)

var typeSeparators = regexp.MustCompile(`[\s-]+`)

// ParseQuestionType accepts loose spellings such as "true-false" or "multiplechoice".
func ParseQuestionType(s string) (QuestionType, bool) {
	v := typeSeparators.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), "_")
	switch v {
	case "TRUE_FALSE", "TRUEFALSE":
		return QuestionTypeTrueFalse, true
	case "MULTIPLE_CHOICE", "MULTIPLECHOICE":
		return QuestionTypeMultipleChoice, true
	}
	return "", false
}

func ParseDifficulty(s string) (Difficulty, bool) {
	switch Difficulty(strings.ToUpper(strings.TrimSpace(s))) {
	case DifficultyBeginner:
		return DifficultyBeginner, true
	case DifficultyIntermediate:
		return DifficultyIntermediate, true
	case DifficultyExpert:
		return DifficultyExpert, true
	}
	return "", false
}

// Option is one answer choice of a Question.
type Option struct {
	ID        string
	Text      string
	IsCorrect bool
}

// Question belongs to exactly one Quiz. Position is 1-based.
type Question struct {
	ID       string
	Text     string
	Type     QuestionType
	Position int
	Options  []Option
}

// Quiz is the persisted aggregate. Questions are ordered by Position.
type Quiz struct {
	ID            string
	Title         string
	Description   string
	OwnerID       string
	IsShared      bool
	ShareToken    string
	State         QuizState
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Questions     []Question
}

func (q *Quiz) IsOwnedBy(userID string) bool {
	return userID != "" && q.OwnerID == userID
}

// ReadableBy reports whether userID (possibly empty for anonymous callers) may read the quiz.
func (q *Quiz) ReadableBy(userID string) bool {
	return q.IsOwnedBy(userID) || (q.IsShared && q.ShareToken != "")
}

// Validate checks the structural invariants of a complete quiz.
func (q *Quiz) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return errors.New("title is required")
	}
	if len(q.Questions) == 0 {
		return errors.New("at least one question is required")
	}
	for i := range q.Questions {
		if err := q.Questions[i].Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

func (q *Question) Validate() error {
	texts := make([]string, len(q.Options))
	flags := make([]bool, len(q.Options))
	for i, o := range q.Options {
		texts[i] = o.Text
		flags[i] = o.IsCorrect
	}
	return checkQuestion(q.Text, q.Type, texts, flags)
}

// GeneratedQuiz is the normalized model output before ids exist.
type GeneratedQuiz struct {
	Title       string
	Description string
	Questions   []GeneratedQuestion
}

type GeneratedQuestion struct {
	Text    string
	Type    QuestionType
	Options []GeneratedOption
}

type GeneratedOption struct {
	Text      string
	IsCorrect bool
}

func (g *GeneratedQuestion) Validate() error {
	texts := make([]string, len(g.Options))
	flags := make([]bool, len(g.Options))
	for i, o := range g.Options {
		texts[i] = o.Text
		flags[i] = o.IsCorrect
	}
	return checkQuestion(g.Text, g.Type, texts, flags)
}

func checkQuestion(text string, qType QuestionType, options []string, correct []bool) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("question text is required")
	}
	correctCount := 0
	for i := range options {
		if strings.TrimSpace(options[i]) == "" {
			return fmt.Errorf("option %d has no text", i+1)
		}
		if correct[i] {
			correctCount++
		}
	}
	if correctCount != 1 {
		return fmt.Errorf("expected exactly one correct option, got %d", correctCount)
	}

	switch qType {
	case QuestionTypeMultipleChoice:
		if len(options) < MinOptionsMultipleChoice || len(options) > MaxOptionsMultipleChoice {
			return fmt.Errorf("multiple choice needs %d-%d options, got %d",
				MinOptionsMultipleChoice, MaxOptionsMultipleChoice, len(options))
		}
	case QuestionTypeTrueFalse:
		if len(options) != 2 || options[0] != TrueOptionText || options[1] != FalseOptionText {
			return errors.New(`true/false options must be exactly "True", "False"`)
		}
	default:
		return fmt.Errorf("unknown question type %q", qType)
	}
	return nil
}

// GenerationRequest carries everything the pipeline needs for one quiz.
type GenerationRequest struct {
	OwnerID       string
	Title         string
	Description   string
	Text          string
	PDF           []byte
	QuestionCount int
	Difficulty    Difficulty
	QuestionType  QuestionType // empty means no constraint
	ModelID       string
}

const (
	DefaultQuestionCount = 5
	MinQuestionCount     = 1
	MaxQuestionCount     = 50
)

// ApplyDefaults clamps the question count and fills the difficulty.
func (r *GenerationRequest) ApplyDefaults() {
	if r.QuestionCount == 0 {
		r.QuestionCount = DefaultQuestionCount
	}
	if r.QuestionCount < MinQuestionCount {
		r.QuestionCount = MinQuestionCount
	}
	if r.QuestionCount > MaxQuestionCount {
		r.QuestionCount = MaxQuestionCount
	}
	if r.Difficulty == "" {
		r.Difficulty = DifficultyBeginner
	}
}
