package models

import (
	"database/sql"
	"strings"
	"time"
)

// Quiz maps a row of the quizzes table. Oracle has no boolean type so flags are NUMBER(1).
type Quiz struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	Description   sql.NullString `db:"description"`
	OwnerID       string         `db:"owner_id"`
	IsShared      int            `db:"is_shared"`
	ShareToken    sql.NullString `db:"share_token"`
	State         string         `db:"state"`
	FailureReason sql.NullString `db:"failure_reason"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// Question maps a row of quiz_questions.
type Question struct {
	ID           string `db:"id"`
	QuizID       string `db:"quiz_id"`
	QuestionText string `db:"question_text"`
	QuestionType string `db:"question_type"`
	Position     int    `db:"position"`
}

// Option maps a row of question_options.
type Option struct {
	ID         string `db:"id"`
	QuestionID string `db:"question_id"`
	OptionText string `db:"option_text"`
	IsCorrect  int    `db:"is_correct"`
	Position   int    `db:"position"`
}

func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NullString stores blank strings as NULL.
func NullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
