package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"quiz-forge/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

var quizRowColumns = []string{
	"id", "title", "description", "owner_id", "is_shared", "share_token",
	"state", "failure_reason", "created_at", "updated_at",
}

func TestCreateQuiz_InsertsTreeInTransaction(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuizDatabaseAdapter(db)
	txm := NewTransactionManagerAdapter(db)

	quiz := &domain.Quiz{
		Title:   "Go",
		OwnerID: "user-1",
		State:   domain.QuizStateFinished,
		Questions: []domain.Question{
			{Text: "Q1", Type: domain.QuestionTypeMultipleChoice, Options: []domain.Option{
				{Text: "a", IsCorrect: true}, {Text: "b"},
			}},
			{Text: "Q2", Type: domain.QuestionTypeTrueFalse, Options: []domain.Option{
				{Text: "True"}, {Text: "False", IsCorrect: true},
			}},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quizzes")).
		WithArgs(sqlmock.AnyArg(), "Go", nil, "user-1", 0, nil, "FINISHED", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_questions")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Q1", "MULTIPLE_CHOICE", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO question_options")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "a", 1, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO question_options")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "b", 0, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_questions")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Q2", "TRUE_FALSE", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO question_options")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "True", 0, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO question_options")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "False", 1, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := txm.WithTransaction(context.Background(), func(ctx context.Context) error {
		return repo.CreateQuiz(ctx, quiz)
	})

	require.NoError(t, err)
	assert.Len(t, quiz.ID, 26)
	assert.Equal(t, 2, quiz.Questions[1].Position)
	assert.NotEmpty(t, quiz.Questions[0].Options[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateQuiz_RollsBackOnFailure(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuizDatabaseAdapter(db)
	txm := NewTransactionManagerAdapter(db)

	quiz := &domain.Quiz{
		Title: "Go", OwnerID: "user-1", State: domain.QuizStateFinished,
		Questions: []domain.Question{{Text: "Q1", Type: domain.QuestionTypeMultipleChoice}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quizzes")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_questions")).WillReturnError(errors.New("ORA-00001: unique constraint violated"))
	mock.ExpectRollback()

	err := txm.WithTransaction(context.Background(), func(ctx context.Context) error {
		return repo.CreateQuiz(ctx, quiz)
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert question 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetQuizByID(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuizDatabaseAdapter(db)
	now := time.Now()

	mock.ExpectQuery(`FROM quizzes\s+WHERE id = :1`).
		WithArgs("quiz-1").
		WillReturnRows(sqlmock.NewRows(quizRowColumns).
			AddRow("quiz-1", "Go", "desc", "user-1", 1, "tok", "FINISHED", nil, now, now))
	mock.ExpectQuery(`FROM quiz_questions\s+WHERE quiz_id = :1\s+ORDER BY position`).
		WithArgs("quiz-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "quiz_id", "question_text", "question_type", "position"}).
			AddRow("q1", "quiz-1", "First?", "MULTIPLE_CHOICE", 1).
			AddRow("q2", "quiz-1", "Second?", "TRUE_FALSE", 2))
	mock.ExpectQuery(`FROM question_options o\s+JOIN quiz_questions q`).
		WithArgs("quiz-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "question_id", "option_text", "is_correct", "position"}).
			AddRow("o1", "q1", "a", 0, 1).
			AddRow("o2", "q1", "b", 1, 2).
			AddRow("o3", "q2", "True", 1, 1).
			AddRow("o4", "q2", "False", 0, 2))

	quiz, err := repo.GetQuizByID(context.Background(), "quiz-1")

	require.NoError(t, err)
	require.NotNil(t, quiz)
	assert.Equal(t, "desc", quiz.Description)
	assert.True(t, quiz.IsShared)
	assert.Equal(t, "tok", quiz.ShareToken)
	assert.Equal(t, domain.QuizStateFinished, quiz.State)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, "b", quiz.Questions[0].Options[1].Text)
	assert.True(t, quiz.Questions[0].Options[1].IsCorrect)
	assert.Equal(t, domain.QuestionTypeTrueFalse, quiz.Questions[1].Type)
	assert.NoError(t, quiz.Validate())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetQuizByShareToken_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuizDatabaseAdapter(db)

	mock.ExpectQuery(`FROM quizzes\s+WHERE share_token = :1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(quizRowColumns))

	quiz, err := repo.GetQuizByShareToken(context.Background(), "missing")

	assert.NoError(t, err)
	assert.Nil(t, quiz)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetShareToken_CheckAndSet(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuizDatabaseAdapter(db)
	query := regexp.QuoteMeta("UPDATE quizzes SET share_token = :1, updated_at = :2 WHERE id = :3 AND share_token IS NULL")

	mock.ExpectExec(query).WithArgs("tok-1", sqlmock.AnyArg(), "quiz-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("tok-2", sqlmock.AnyArg(), "quiz-1").WillReturnResult(sqlmock.NewResult(0, 0))

	written, err := repo.SetShareToken(context.Background(), "quiz-1", "tok-1")
	require.NoError(t, err)
	assert.True(t, written)

	written, err = repo.SetShareToken(context.Background(), "quiz-1", "tok-2")
	require.NoError(t, err)
	assert.False(t, written, "an existing token is never replaced")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateQuizFields(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuizDatabaseAdapter(db)
	title := "New title"
	desc := ""

	mock.ExpectExec(regexp.QuoteMeta("UPDATE quizzes SET title = :1, description = :2, updated_at = :3 WHERE id = :4")).
		WithArgs("New title", nil, sqlmock.AnyArg(), "quiz-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateQuizFields(context.Background(), "quiz-1", &title, &desc))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE quizzes SET title = :1, updated_at = :2 WHERE id = :3")).
		WithArgs("New title", sqlmock.AnyArg(), "quiz-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateQuizFields(context.Background(), "quiz-1", &title, nil))

	// nothing to update issues no statement
	require.NoError(t, repo.UpdateQuizFields(context.Background(), "quiz-1", nil, nil))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceQuestions(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuizDatabaseAdapter(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM question_options")).WithArgs("quiz-1").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM quiz_questions WHERE quiz_id = :1")).WithArgs("quiz-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_questions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO question_options")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO question_options")).WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ReplaceQuestions(context.Background(), "quiz-1", []domain.Question{
		{Text: "Q", Type: domain.QuestionTypeTrueFalse, Options: []domain.Option{{Text: "True", IsCorrect: true}, {Text: "False"}}},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailStalePending(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuizDatabaseAdapter(db)
	cutoff := time.Now().Add(-15 * time.Minute)

	mock.ExpectExec(`UPDATE quizzes SET state = :1, failure_reason = :2, updated_at = :3\s+WHERE state = :4 AND created_at < :5`).
		WithArgs("ERROR", "generation timed out", sqlmock.AnyArg(), "PENDING", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.FailStalePending(context.Background(), cutoff, "generation timed out")

	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListQuizzesByOwner(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuizDatabaseAdapter(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM quizzes\s+WHERE owner_id = :1\s+ORDER BY created_at DESC`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(quizRowColumns).
			AddRow("quiz-2", "Newer", nil, "user-1", 1, "tok", "FINISHED", nil, now, now).
			AddRow("quiz-1", "Older", "desc", "user-1", 0, nil, "ERROR", "model failed", now.Add(-time.Hour), now))

	quizzes, err := repo.ListQuizzesByOwner(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, quizzes, 2)
	assert.Equal(t, "quiz-2", quizzes[0].ID)
	assert.True(t, quizzes[0].IsShared)
	assert.Equal(t, "tok", quizzes[0].ShareToken)
	assert.Equal(t, domain.QuizStateError, quizzes[1].State)
	assert.Equal(t, "model failed", quizzes[1].FailureReason)
	assert.Empty(t, quizzes[1].Questions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateQuizState(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuizDatabaseAdapter(db)
	query := regexp.QuoteMeta("UPDATE quizzes SET state = :1, failure_reason = :2, updated_at = :3 WHERE id = :4")

	mock.ExpectExec(query).WithArgs("FINISHED", nil, sqlmock.AnyArg(), "quiz-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("ERROR", "boom", sqlmock.AnyArg(), "quiz-2").WillReturnError(errors.New("ORA-03113"))

	require.NoError(t, repo.UpdateQuizState(context.Background(), "quiz-1", domain.QuizStateFinished, ""))

	err := repo.UpdateQuizState(context.Background(), "quiz-2", domain.QuizStateError, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quiz-2")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteQuizAndSharing(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuizDatabaseAdapter(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE quizzes SET is_shared = :1, updated_at = :2 WHERE id = :3")).
		WithArgs(1, sqlmock.AnyArg(), "quiz-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM quizzes WHERE id = :1")).
		WithArgs("quiz-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetSharing(context.Background(), "quiz-1", true))
	require.NoError(t, repo.DeleteQuiz(context.Background(), "quiz-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
