package domain

import (
	"context"
	"time"
)

// QuizRepository is the persistence port for quizzes and their question trees.
// Lookups return (nil, nil) when the row does not exist.
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz *Quiz) error
	GetQuizByID(ctx context.Context, id string) (*Quiz, error)
	GetQuizByShareToken(ctx context.Context, token string) (*Quiz, error)
	ListQuizzesByOwner(ctx context.Context, ownerID string) ([]*Quiz, error)
	UpdateQuizFields(ctx context.Context, id string, title, description *string) error
	UpdateQuizState(ctx context.Context, id string, state QuizState, reason string) error
	ReplaceQuestions(ctx context.Context, quizID string, questions []Question) error
	DeleteQuiz(ctx context.Context, id string) error
	// SetShareToken stores token only if the quiz has none yet and reports whether it was written.
	SetShareToken(ctx context.Context, id, token string) (bool, error)
	SetSharing(ctx context.Context, id string, shared bool) error
	// FailStalePending moves PENDING quizzes created before cutoff to ERROR.
	FailStalePending(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// TransactionManager runs fn inside a database transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ModelCaller sends a single prompt to the named model and returns the raw text response.
type ModelCaller interface {
	Call(ctx context.Context, model, prompt string) (string, error)
}
