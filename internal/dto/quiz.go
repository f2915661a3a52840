package dto

import "time"

// GenerateQuizRequest is the JSON body of the generation endpoints.
// Multipart requests carry the same fields as form values plus a "file" part.
// @Description Request body for quiz generation
type GenerateQuizRequest struct {
	OwnerID       string `json:"ownerId,omitempty"`
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Text          string `json:"text,omitempty"`
	PDFBase64     string `json:"pdfBase64,omitempty"`
	QuestionCount int    `json:"questionCount,omitempty"`
	Difficulty    string `json:"difficulty,omitempty" example:"BEGINNER"`
	QuestionType  string `json:"questionType,omitempty" example:"MULTIPLE_CHOICE"`
	ModelID       string `json:"modelId,omitempty"`
	Model         string `json:"model,omitempty"`
}

// OptionResponse never exposes correctness; answers travel in AnswerKeyResponse.
type OptionResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type QuestionResponse struct {
	ID       string           `json:"id"`
	Text     string           `json:"text"`
	Type     string           `json:"type"`
	Position int              `json:"position"`
	Options  []OptionResponse `json:"options"`
}

// AnswerKeyResponse names the correct option of one question.
type AnswerKeyResponse struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
	OptionText string `json:"optionText"`
}

// QuizResponse represents a quiz in the API response
// @Description Quiz with its ordered questions
type QuizResponse struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Description   string              `json:"description,omitempty"`
	OwnerID       string              `json:"ownerId"`
	State         string              `json:"state"`
	FailureReason string              `json:"failureReason,omitempty"`
	IsShared      bool                `json:"isShared"`
	ShareToken    string              `json:"shareToken,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	Questions     []QuestionResponse  `json:"questions"`
	Answers       []AnswerKeyResponse `json:"answers,omitempty"`
}

type QuizSummaryResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	State       string    `json:"state"`
	IsShared    bool      `json:"isShared"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type QuizListResponse struct {
	Quizzes []QuizSummaryResponse `json:"quizzes"`
}

// QuizStatusResponse is returned by the polling endpoint.
type QuizStatusResponse struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	FailureReason string `json:"failureReason,omitempty"`
}

// UpdateQuizRequest changes quiz metadata. At least one field is required.
type UpdateQuizRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type OptionInput struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuestionInput struct {
	Text    string        `json:"text"`
	Type    string        `json:"type"`
	Options []OptionInput `json:"options"`
}

// ReplaceQuestionsRequest replaces the whole question tree of a quiz.
type ReplaceQuestionsRequest struct {
	Questions []QuestionInput `json:"questions"`
}

type ShareResponse struct {
	QuizID     string `json:"quizId"`
	IsShared   bool   `json:"isShared"`
	ShareToken string `json:"shareToken,omitempty"`
}
