package quizgen

import (
	"fmt"
	"strings"

	"quiz-forge/internal/domain"
)

const quizJSONShape = `{"title": string, "description": string, "questions": [{"text": string, "type": "MULTIPLE_CHOICE" | "TRUE_FALSE", "options": [{"text": string, "isCorrect": boolean}]}]}`

// PromptParams are the inputs of the quiz generation prompt.
type PromptParams struct {
	QuestionCount int
	Difficulty    domain.Difficulty
	QuestionType  domain.QuestionType
	Title         string
	Description   string
	Content       string
}

func BuildQuizPrompt(p PromptParams) string {
	lines := []string{
		"You are a quiz generator. Output ONLY JSON.",
		fmt.Sprintf("Generate %d questions. Difficulty: %s.", p.QuestionCount, p.Difficulty),
		typeConstraint(p.QuestionType),
		"Each MULTIPLE_CHOICE question must have 3-5 options with exactly one correct.",
		"Return JSON with this shape: " + quizJSONShape,
	}
	if title := strings.TrimSpace(p.Title); title != "" {
		lines = append(lines, "Use this title if it fits the content: "+title)
	}
	if desc := strings.TrimSpace(p.Description); desc != "" {
		lines = append(lines, "Use this description if it fits the content: "+desc)
	}
	lines = append(lines, "", "Content to base the quiz on:", p.Content)
	return strings.Join(lines, "\n")
}

func typeConstraint(t domain.QuestionType) string {
	switch t {
	case domain.QuestionTypeTrueFalse:
		return `All questions must be TRUE_FALSE with exactly two options, "True" and "False".`
	case domain.QuestionTypeMultipleChoice:
		return "All questions must be MULTIPLE_CHOICE."
	default:
		return "Prefer MULTIPLE_CHOICE questions; TRUE_FALSE is allowed where it fits."
	}
}

func buildSummaryPrompt(chunk string, index int) string {
	return strings.Join([]string{
		"Summarize key facts/definitions/takeaways for quiz creation.",
		"Return ONLY a JSON array of 6-10 short strings (<=160 chars).",
		fmt.Sprintf("Chunk %d.", index),
		"Content:",
		chunk,
	}, "\n")
}
