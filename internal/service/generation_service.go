package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"quiz-forge/internal/cache"
	"quiz-forge/internal/domain"
	"quiz-forge/internal/logger"
	"quiz-forge/internal/quizgen"
	"quiz-forge/internal/util"
	"quiz-forge/internal/worker"

	"go.uber.org/zap"
)

const (
	pendingTitle         = "Untitled quiz"
	maxFailureReasonLen  = 1000
	finalizeWriteTimeout = 10 * time.Second
)

// QuizPipeline produces a normalized quiz from resolved content.
type QuizPipeline interface {
	Run(ctx context.Context, text string, req domain.GenerationRequest) (*domain.GeneratedQuiz, error)
}

// TaskQueue admits background generation tasks keyed by quiz id.
type TaskQueue interface {
	Enqueue(key string, task worker.Task) (*worker.Handle, error)
}

// GenerationService runs quiz generation synchronously or through the task queue.
type GenerationService interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.Quiz, error)
	GenerateAsync(ctx context.Context, req domain.GenerationRequest) (*domain.Quiz, *worker.Handle, error)
}

type generationService struct {
	repo      domain.QuizRepository
	txManager domain.TransactionManager
	pipeline  QuizPipeline
	queue     TaskQueue
	cache     domain.Cache
}

// NewGenerationService wires the generation flow. cache may be nil.
func NewGenerationService(
	repo domain.QuizRepository,
	txManager domain.TransactionManager,
	pipeline QuizPipeline,
	queue TaskQueue,
	cache domain.Cache,
) GenerationService {
	return &generationService{
		repo:      repo,
		txManager: txManager,
		pipeline:  pipeline,
		queue:     queue,
		cache:     cache,
	}
}

// resolveContent applies request defaults and extracts the text the quiz is built from.
func resolveContent(req *domain.GenerationRequest) (string, error) {
	req.ApplyDefaults()

	text, err := quizgen.ExtractText(req.Text, req.PDF)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.NewNoContentError(nil)
	}
	return text, nil
}

func (s *generationService) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.Quiz, error) {
	text, err := resolveContent(&req)
	if err != nil {
		return nil, err
	}

	generated, err := s.pipeline.Run(ctx, text, req)
	if err != nil {
		return nil, err
	}

	title, description := resolveMetadata(generated, req)
	quiz := &domain.Quiz{
		ID:          util.NewULID(),
		Title:       title,
		Description: description,
		OwnerID:     req.OwnerID,
		State:       domain.QuizStateFinished,
		Questions:   toQuestions(generated.Questions),
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.CreateQuiz(txCtx, quiz)
	})
	if err != nil {
		return nil, domain.NewInternalError("Failed to save generated quiz", err)
	}

	logger.Get().Info("Quiz saved",
		zap.String("quiz_id", quiz.ID),
		zap.String("owner_id", quiz.OwnerID),
		zap.Int("questions", len(quiz.Questions)))
	return quiz, nil
}

func (s *generationService) GenerateAsync(ctx context.Context, req domain.GenerationRequest) (*domain.Quiz, *worker.Handle, error) {
	text, err := resolveContent(&req)
	if err != nil {
		return nil, nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = pendingTitle
	}
	quiz := &domain.Quiz{
		ID:          util.NewULID(),
		Title:       title,
		Description: req.Description,
		OwnerID:     req.OwnerID,
		State:       domain.QuizStatePending,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.CreateQuiz(txCtx, quiz)
	})
	if err != nil {
		return nil, nil, domain.NewInternalError("Failed to save pending quiz", err)
	}

	quizID := quiz.ID
	handle, err := s.queue.Enqueue(quizID, func(taskCtx context.Context) error {
		return s.finalize(taskCtx, quizID, text, req)
	})
	if err != nil {
		s.markError(ctx, quizID, err)
		if errors.Is(err, worker.ErrQueueFull) {
			return nil, nil, domain.NewQueueFullError()
		}
		return nil, nil, domain.NewInternalError("Failed to enqueue quiz generation", err)
	}

	logger.Get().Info("Quiz generation queued", zap.String("quiz_id", quizID), zap.String("owner_id", quiz.OwnerID))
	return quiz, handle, nil
}

// finalize runs the pipeline for a PENDING quiz and moves it to FINISHED or ERROR.
// A panic anywhere in the run is recorded as ERROR and returned as an error.
func (s *generationService) finalize(ctx context.Context, quizID, text string, req domain.GenerationRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("quiz generation panicked: %v", r)
			logger.Get().Error("Recovered from panic during quiz generation",
				zap.String("quiz_id", quizID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			s.markError(ctx, quizID, err)
		}
	}()

	generated, err := s.pipeline.Run(ctx, text, req)
	if err != nil {
		s.markError(ctx, quizID, err)
		return err
	}

	title, description := resolveMetadata(generated, req)
	questions := toQuestions(generated.Questions)
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateQuizFields(txCtx, quizID, &title, &description); err != nil {
			return err
		}
		if err := s.repo.ReplaceQuestions(txCtx, quizID, questions); err != nil {
			return err
		}
		return s.repo.UpdateQuizState(txCtx, quizID, domain.QuizStateFinished, "")
	})
	if err != nil {
		s.markError(ctx, quizID, err)
		return err
	}

	s.invalidate(ctx, quizID)
	logger.Get().Info("Quiz generation finished", zap.String("quiz_id", quizID), zap.Int("questions", len(questions)))
	return nil
}

// markError records the failure even when ctx has been cancelled by shutdown.
func (s *generationService) markError(ctx context.Context, quizID string, cause error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeWriteTimeout)
	defer cancel()

	if err := s.repo.UpdateQuizState(writeCtx, quizID, domain.QuizStateError, failureReason(cause)); err != nil {
		logger.Get().Error("Failed to mark quiz as errored",
			zap.String("quiz_id", quizID),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	s.invalidate(writeCtx, quizID)
	logger.Get().Warn("Quiz generation failed", zap.String("quiz_id", quizID), zap.Error(cause))
}

func (s *generationService) invalidate(ctx context.Context, quizID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.QuizDetailKey(quizID)); err != nil {
		logger.Get().Warn("Failed to invalidate quiz cache", zap.String("quiz_id", quizID), zap.Error(err))
	}
}

// resolveMetadata keeps the caller's title and description when given and falls back
// to what the model produced.
func resolveMetadata(generated *domain.GeneratedQuiz, req domain.GenerationRequest) (string, string) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = generated.Title
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = generated.Description
	}
	return title, description
}

func failureReason(err error) string {
	msg := err.Error()
	if utf8.RuneCountInString(msg) > maxFailureReasonLen {
		msg = string([]rune(msg)[:maxFailureReasonLen])
	}
	return msg
}

func toQuestions(generated []domain.GeneratedQuestion) []domain.Question {
	questions := make([]domain.Question, 0, len(generated))
	for i, g := range generated {
		options := make([]domain.Option, 0, len(g.Options))
		for _, o := range g.Options {
			options = append(options, domain.Option{Text: o.Text, IsCorrect: o.IsCorrect})
		}
		questions = append(questions, domain.Question{
			Text:     g.Text,
			Type:     g.Type,
			Position: i + 1,
			Options:  options,
		})
	}
	return questions
}
