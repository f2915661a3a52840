package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/repository/models"
	"quiz-forge/internal/util"

	"github.com/jmoiron/sqlx"
)

const quizColumns = `
		id "id",
		title "title",
		description "description",
		owner_id "owner_id",
		is_shared "is_shared",
		share_token "share_token",
		state "state",
		failure_reason "failure_reason",
		created_at "created_at",
		updated_at "updated_at"`

// QuizDatabaseAdapter implements domain.QuizRepository on Oracle through sqlx.
// Every method runs on the transaction carried by ctx when there is one.
type QuizDatabaseAdapter struct {
	db DBTX
}

func NewQuizDatabaseAdapter(db *sqlx.DB) domain.QuizRepository {
	return &QuizDatabaseAdapter{db: db}
}

// CreateQuiz inserts the quiz row and its full question tree. Missing ids are generated.
func (a *QuizDatabaseAdapter) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	if quiz == nil {
		return fmt.Errorf("cannot save nil quiz")
	}
	exec := GetExecutor(ctx, a.db)

	if quiz.ID == "" {
		quiz.ID = util.NewULID()
	}
	now := time.Now().UTC()
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = now
	}
	quiz.UpdatedAt = now

	query := `INSERT INTO quizzes (
		id, title, description, owner_id, is_shared, share_token,
		state, failure_reason, created_at, updated_at
	) VALUES (:1, :2, :3, :4, :5, :6, :7, :8, :9, :10)`

	_, err := exec.ExecContext(ctx, query,
		quiz.ID,
		quiz.Title,
		models.NullString(quiz.Description),
		quiz.OwnerID,
		models.BoolToInt(quiz.IsShared),
		models.NullString(quiz.ShareToken),
		string(quiz.State),
		models.NullString(quiz.FailureReason),
		quiz.CreatedAt,
		quiz.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert quiz: %w", err)
	}

	return a.insertQuestions(ctx, exec, quiz.ID, quiz.Questions)
}

func (a *QuizDatabaseAdapter) insertQuestions(ctx context.Context, exec DBTX, quizID string, questions []domain.Question) error {
	questionQuery := `INSERT INTO quiz_questions (id, quiz_id, question_text, question_type, position)
		VALUES (:1, :2, :3, :4, :5)`
	optionQuery := `INSERT INTO question_options (id, question_id, option_text, is_correct, position)
		VALUES (:1, :2, :3, :4, :5)`

	for i := range questions {
		q := &questions[i]
		if q.ID == "" {
			q.ID = util.NewULID()
		}
		q.Position = i + 1

		if _, err := exec.ExecContext(ctx, questionQuery, q.ID, quizID, q.Text, string(q.Type), q.Position); err != nil {
			return fmt.Errorf("failed to insert question %d: %w", q.Position, err)
		}

		for j := range q.Options {
			o := &q.Options[j]
			if o.ID == "" {
				o.ID = util.NewULID()
			}
			if _, err := exec.ExecContext(ctx, optionQuery, o.ID, q.ID, o.Text, models.BoolToInt(o.IsCorrect), j+1); err != nil {
				return fmt.Errorf("failed to insert option %d of question %d: %w", j+1, q.Position, err)
			}
		}
	}
	return nil
}

// GetQuizByID returns the quiz with its questions and options, or nil if absent.
func (a *QuizDatabaseAdapter) GetQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	return a.getQuiz(ctx, "id = :1", id)
}

func (a *QuizDatabaseAdapter) GetQuizByShareToken(ctx context.Context, token string) (*domain.Quiz, error) {
	return a.getQuiz(ctx, "share_token = :1", token)
}

func (a *QuizDatabaseAdapter) getQuiz(ctx context.Context, where string, arg string) (*domain.Quiz, error) {
	exec := GetExecutor(ctx, a.db)

	var row models.Quiz
	query := `SELECT` + quizColumns + `
	FROM quizzes
	WHERE ` + where
	if err := exec.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	quiz := toDomainQuiz(&row)
	questions, err := a.loadQuestions(ctx, exec, quiz.ID)
	if err != nil {
		return nil, err
	}
	quiz.Questions = questions
	return quiz, nil
}

func (a *QuizDatabaseAdapter) loadQuestions(ctx context.Context, exec DBTX, quizID string) ([]domain.Question, error) {
	var questionRows []models.Question
	questionQuery := `SELECT
		id "id",
		quiz_id "quiz_id",
		question_text "question_text",
		question_type "question_type",
		position "position"
	FROM quiz_questions
	WHERE quiz_id = :1
	ORDER BY position`
	if err := exec.SelectContext(ctx, &questionRows, questionQuery, quizID); err != nil {
		return nil, fmt.Errorf("failed to load questions for quiz %s: %w", quizID, err)
	}
	if len(questionRows) == 0 {
		return []domain.Question{}, nil
	}

	var optionRows []models.Option
	optionQuery := `SELECT
		o.id "id",
		o.question_id "question_id",
		o.option_text "option_text",
		o.is_correct "is_correct",
		o.position "position"
	FROM question_options o
	JOIN quiz_questions q ON q.id = o.question_id
	WHERE q.quiz_id = :1
	ORDER BY q.position, o.position`
	if err := exec.SelectContext(ctx, &optionRows, optionQuery, quizID); err != nil {
		return nil, fmt.Errorf("failed to load options for quiz %s: %w", quizID, err)
	}

	byQuestion := make(map[string][]domain.Option, len(questionRows))
	for _, o := range optionRows {
		byQuestion[o.QuestionID] = append(byQuestion[o.QuestionID], domain.Option{
			ID:        o.ID,
			Text:      o.OptionText,
			IsCorrect: o.IsCorrect == 1,
		})
	}

	questions := make([]domain.Question, 0, len(questionRows))
	for _, q := range questionRows {
		questions = append(questions, domain.Question{
			ID:       q.ID,
			Text:     q.QuestionText,
			Type:     domain.QuestionType(q.QuestionType),
			Position: q.Position,
			Options:  byQuestion[q.ID],
		})
	}
	return questions, nil
}

// ListQuizzesByOwner returns quiz rows without their question trees, newest first.
func (a *QuizDatabaseAdapter) ListQuizzesByOwner(ctx context.Context, ownerID string) ([]*domain.Quiz, error) {
	var rows []models.Quiz
	query := `SELECT` + quizColumns + `
	FROM quizzes
	WHERE owner_id = :1
	ORDER BY created_at DESC`
	if err := GetExecutor(ctx, a.db).SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list quizzes for owner %s: %w", ownerID, err)
	}

	quizzes := make([]*domain.Quiz, 0, len(rows))
	for i := range rows {
		quizzes = append(quizzes, toDomainQuiz(&rows[i]))
	}
	return quizzes, nil
}

// UpdateQuizFields sets the non-nil fields only.
func (a *QuizDatabaseAdapter) UpdateQuizFields(ctx context.Context, id string, title, description *string) error {
	var sets []string
	var args []interface{}
	if title != nil {
		args = append(args, *title)
		sets = append(sets, fmt.Sprintf("title = :%d", len(args)))
	}
	if description != nil {
		args = append(args, models.NullString(*description))
		sets = append(sets, fmt.Sprintf("description = :%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = :%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE quizzes SET %s WHERE id = :%d", strings.Join(sets, ", "), len(args))
	if _, err := GetExecutor(ctx, a.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update quiz %s: %w", id, err)
	}
	return nil
}

func (a *QuizDatabaseAdapter) UpdateQuizState(ctx context.Context, id string, state domain.QuizState, reason string) error {
	query := `UPDATE quizzes SET state = :1, failure_reason = :2, updated_at = :3 WHERE id = :4`
	_, err := GetExecutor(ctx, a.db).ExecContext(ctx, query, string(state), models.NullString(reason), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update state of quiz %s: %w", id, err)
	}
	return nil
}

// ReplaceQuestions drops the existing question tree of a quiz and inserts the given one.
func (a *QuizDatabaseAdapter) ReplaceQuestions(ctx context.Context, quizID string, questions []domain.Question) error {
	exec := GetExecutor(ctx, a.db)

	deleteOptions := `DELETE FROM question_options
	WHERE question_id IN (SELECT id FROM quiz_questions WHERE quiz_id = :1)`
	if _, err := exec.ExecContext(ctx, deleteOptions, quizID); err != nil {
		return fmt.Errorf("failed to delete options of quiz %s: %w", quizID, err)
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM quiz_questions WHERE quiz_id = :1`, quizID); err != nil {
		return fmt.Errorf("failed to delete questions of quiz %s: %w", quizID, err)
	}
	return a.insertQuestions(ctx, exec, quizID, questions)
}

// DeleteQuiz removes the quiz; questions and options go with it through ON DELETE CASCADE.
func (a *QuizDatabaseAdapter) DeleteQuiz(ctx context.Context, id string) error {
	if _, err := GetExecutor(ctx, a.db).ExecContext(ctx, `DELETE FROM quizzes WHERE id = :1`, id); err != nil {
		return fmt.Errorf("failed to delete quiz %s: %w", id, err)
	}
	return nil
}

func (a *QuizDatabaseAdapter) SetShareToken(ctx context.Context, id, token string) (bool, error) {
	query := `UPDATE quizzes SET share_token = :1, updated_at = :2 WHERE id = :3 AND share_token IS NULL`
	res, err := GetExecutor(ctx, a.db).ExecContext(ctx, query, token, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to set share token of quiz %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (a *QuizDatabaseAdapter) SetSharing(ctx context.Context, id string, shared bool) error {
	query := `UPDATE quizzes SET is_shared = :1, updated_at = :2 WHERE id = :3`
	if _, err := GetExecutor(ctx, a.db).ExecContext(ctx, query, models.BoolToInt(shared), time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update sharing of quiz %s: %w", id, err)
	}
	return nil
}

func (a *QuizDatabaseAdapter) FailStalePending(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	query := `UPDATE quizzes SET state = :1, failure_reason = :2, updated_at = :3
	WHERE state = :4 AND created_at < :5`
	res, err := GetExecutor(ctx, a.db).ExecContext(ctx, query,
		string(domain.QuizStateError), reason, time.Now().UTC(), string(domain.QuizStatePending), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale pending quizzes: %w", err)
	}
	return res.RowsAffected()
}

func toDomainQuiz(m *models.Quiz) *domain.Quiz {
	return &domain.Quiz{
		ID:            m.ID,
		Title:         m.Title,
		Description:   m.Description.String,
		OwnerID:       m.OwnerID,
		IsShared:      m.IsShared == 1,
		ShareToken:    m.ShareToken.String,
		State:         domain.QuizState(m.State),
		FailureReason: m.FailureReason.String,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
