package service

import (
	"context"
	"sync"
	"time"

	"quiz-forge/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockQuizRepository ---
type MockQuizRepository struct {
	mock.Mock
}

var _ domain.QuizRepository = (*MockQuizRepository)(nil)

func (m *MockQuizRepository) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	args := m.Called(ctx, quiz)
	return args.Error(0)
}

func (m *MockQuizRepository) GetQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quiz), args.Error(1)
}

func (m *MockQuizRepository) GetQuizByShareToken(ctx context.Context, token string) (*domain.Quiz, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quiz), args.Error(1)
}

func (m *MockQuizRepository) ListQuizzesByOwner(ctx context.Context, ownerID string) ([]*domain.Quiz, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Quiz), args.Error(1)
}

func (m *MockQuizRepository) UpdateQuizFields(ctx context.Context, id string, title, description *string) error {
	args := m.Called(ctx, id, title, description)
	return args.Error(0)
}

func (m *MockQuizRepository) UpdateQuizState(ctx context.Context, id string, state domain.QuizState, reason string) error {
	args := m.Called(ctx, id, state, reason)
	return args.Error(0)
}

func (m *MockQuizRepository) ReplaceQuestions(ctx context.Context, quizID string, questions []domain.Question) error {
	args := m.Called(ctx, quizID, questions)
	return args.Error(0)
}

func (m *MockQuizRepository) DeleteQuiz(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuizRepository) SetShareToken(ctx context.Context, id, token string) (bool, error) {
	args := m.Called(ctx, id, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockQuizRepository) SetSharing(ctx context.Context, id string, shared bool) error {
	args := m.Called(ctx, id, shared)
	return args.Error(0)
}

func (m *MockQuizRepository) FailStalePending(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	args := m.Called(ctx, cutoff, reason)
	return args.Get(0).(int64), args.Error(1)
}

// --- MockTransactionManager ---
// Runs fn directly so repository expectations see every call.
type MockTransactionManager struct{}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- MockCache ---
type MockCache struct {
	mock.Mock
}

var _ domain.Cache = (*MockCache)(nil)

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- countingCaller ---
// Answers every prompt with a fixed response and counts model calls.
type countingCaller struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (c *countingCaller) Call(ctx context.Context, model, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.response, c.err
}

func (c *countingCaller) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
