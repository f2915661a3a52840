package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"quiz-forge/internal/cache"
	"quiz-forge/internal/domain"
	"quiz-forge/internal/dto"
	"quiz-forge/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultQuizCacheTTL = 10 * time.Minute

// QuizService covers reading, editing, deleting and sharing persisted quizzes.
// callerID is empty for anonymous requests.
type QuizService interface {
	GetQuiz(ctx context.Context, quizID, callerID string, includeAnswers bool) (*dto.QuizResponse, error)
	ListQuizzes(ctx context.Context, ownerID string) (*dto.QuizListResponse, error)
	GetStatus(ctx context.Context, quizID, callerID string) (*dto.QuizStatusResponse, error)
	UpdateQuiz(ctx context.Context, quizID, callerID string, req dto.UpdateQuizRequest) (*dto.QuizResponse, error)
	ReplaceQuestions(ctx context.Context, quizID, callerID string, req dto.ReplaceQuestionsRequest) (*dto.QuizResponse, error)
	DeleteQuiz(ctx context.Context, quizID, callerID string) error
	EnableSharing(ctx context.Context, quizID, callerID string) (*dto.ShareResponse, error)
	DisableSharing(ctx context.Context, quizID, callerID string) (*dto.ShareResponse, error)
	GetSharedQuiz(ctx context.Context, token, callerID string) (*dto.QuizResponse, error)
}

type quizService struct {
	repo      domain.QuizRepository
	txManager domain.TransactionManager
	cache     domain.Cache
	cacheTTL  time.Duration
	sfGroup   singleflight.Group
}

// NewQuizService creates a new instance of quizService. cache may be nil.
func NewQuizService(
	repo domain.QuizRepository,
	txManager domain.TransactionManager,
	cache domain.Cache,
	cacheTTL time.Duration,
) QuizService {
	if cacheTTL <= 0 {
		cacheTTL = defaultQuizCacheTTL
	}
	return &quizService{
		repo:      repo,
		txManager: txManager,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

func (s *quizService) GetQuiz(ctx context.Context, quizID, callerID string, includeAnswers bool) (*dto.QuizResponse, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.ReadableBy(callerID) {
		return nil, domain.NewForbiddenError("You do not have access to this quiz")
	}
	if includeAnswers && !quiz.IsOwnedBy(callerID) {
		return nil, domain.NewForbiddenError("Only the owner can view answers")
	}
	return toQuizResponse(quiz, includeAnswers), nil
}

func (s *quizService) ListQuizzes(ctx context.Context, ownerID string) (*dto.QuizListResponse, error) {
	quizzes, err := s.repo.ListQuizzesByOwner(ctx, ownerID)
	if err != nil {
		return nil, domain.NewInternalError("Failed to list quizzes", err)
	}

	resp := &dto.QuizListResponse{Quizzes: make([]dto.QuizSummaryResponse, 0, len(quizzes))}
	for _, q := range quizzes {
		resp.Quizzes = append(resp.Quizzes, dto.QuizSummaryResponse{
			ID:          q.ID,
			Title:       q.Title,
			Description: q.Description,
			State:       string(q.State),
			IsShared:    q.IsShared,
			CreatedAt:   q.CreatedAt,
			UpdatedAt:   q.UpdatedAt,
		})
	}
	return resp, nil
}

func (s *quizService) GetStatus(ctx context.Context, quizID, callerID string) (*dto.QuizStatusResponse, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.ReadableBy(callerID) {
		return nil, domain.NewForbiddenError("You do not have access to this quiz")
	}
	return &dto.QuizStatusResponse{
		ID:            quiz.ID,
		State:         string(quiz.State),
		FailureReason: quiz.FailureReason,
	}, nil
}

func (s *quizService) UpdateQuiz(ctx context.Context, quizID, callerID string, req dto.UpdateQuizRequest) (*dto.QuizResponse, error) {
	if req.Title == nil && req.Description == nil {
		return nil, domain.ValidationErrors{domain.NewFieldError("body", "No fields to update")}
	}

	quiz, err := s.loadOwned(ctx, quizID, callerID)
	if err != nil {
		return nil, err
	}
	if quiz.State == domain.QuizStatePending {
		return nil, domain.NewInvalidInputError("Quiz is still being generated")
	}

	var title *string
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		title = &trimmed
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.UpdateQuizFields(txCtx, quizID, title, req.Description)
	})
	if err != nil {
		return nil, domain.NewInternalError("Failed to update quiz", err)
	}
	s.invalidate(ctx, cache.QuizDetailKey(quizID))

	return s.reload(ctx, quizID, true)
}

func (s *quizService) ReplaceQuestions(ctx context.Context, quizID, callerID string, req dto.ReplaceQuestionsRequest) (*dto.QuizResponse, error) {
	quiz, err := s.loadOwned(ctx, quizID, callerID)
	if err != nil {
		return nil, err
	}
	if quiz.State == domain.QuizStatePending {
		return nil, domain.NewInvalidInputError("Quiz is still being generated")
	}

	questions, verrs := buildQuestions(req.Questions)
	if len(verrs) > 0 {
		return nil, verrs
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.ReplaceQuestions(txCtx, quizID, questions); err != nil {
			return err
		}
		if quiz.State == domain.QuizStateError {
			return s.repo.UpdateQuizState(txCtx, quizID, domain.QuizStateFinished, "")
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewInternalError("Failed to replace questions", err)
	}
	s.invalidate(ctx, cache.QuizDetailKey(quizID))

	logger.Get().Info("Quiz questions replaced", zap.String("quiz_id", quizID), zap.Int("questions", len(questions)))
	return s.reload(ctx, quizID, true)
}

func (s *quizService) DeleteQuiz(ctx context.Context, quizID, callerID string) error {
	quiz, err := s.loadOwned(ctx, quizID, callerID)
	if err != nil {
		return err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.DeleteQuiz(txCtx, quizID)
	})
	if err != nil {
		return domain.NewInternalError("Failed to delete quiz", err)
	}

	keys := []string{cache.QuizDetailKey(quizID)}
	if quiz.ShareToken != "" {
		keys = append(keys, cache.SharedQuizKey(quiz.ShareToken))
	}
	s.invalidate(ctx, keys...)

	logger.Get().Info("Quiz deleted", zap.String("quiz_id", quizID), zap.String("owner_id", callerID))
	return nil
}

// EnableSharing issues the share token on first use and never rotates it.
// Concurrent enables converge on whichever token the database accepted first.
func (s *quizService) EnableSharing(ctx context.Context, quizID, callerID string) (*dto.ShareResponse, error) {
	quiz, err := s.loadOwned(ctx, quizID, callerID)
	if err != nil {
		return nil, err
	}

	token := quiz.ShareToken
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if token == "" {
			candidate := uuid.NewString()
			written, err := s.repo.SetShareToken(txCtx, quizID, candidate)
			if err != nil {
				return err
			}
			if written {
				token = candidate
			} else {
				current, err := s.repo.GetQuizByID(txCtx, quizID)
				if err != nil {
					return err
				}
				if current == nil || current.ShareToken == "" {
					return fmt.Errorf("share token of quiz %s vanished", quizID)
				}
				token = current.ShareToken
			}
		}
		if !quiz.IsShared {
			return s.repo.SetSharing(txCtx, quizID, true)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewInternalError("Failed to enable sharing", err)
	}
	s.invalidate(ctx, cache.QuizDetailKey(quizID))

	return &dto.ShareResponse{QuizID: quizID, IsShared: true, ShareToken: token}, nil
}

func (s *quizService) DisableSharing(ctx context.Context, quizID, callerID string) (*dto.ShareResponse, error) {
	quiz, err := s.loadOwned(ctx, quizID, callerID)
	if err != nil {
		return nil, err
	}

	if quiz.IsShared {
		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.repo.SetSharing(txCtx, quizID, false)
		})
		if err != nil {
			return nil, domain.NewInternalError("Failed to disable sharing", err)
		}
		s.invalidate(ctx, cache.QuizDetailKey(quizID))
	}

	return &dto.ShareResponse{QuizID: quizID, IsShared: false, ShareToken: quiz.ShareToken}, nil
}

// GetSharedQuiz hides quizzes whose sharing is off behind a not-found error.
func (s *quizService) GetSharedQuiz(ctx context.Context, token, callerID string) (*dto.QuizResponse, error) {
	quizID, err := s.resolveShareToken(ctx, token)
	if err != nil {
		return nil, err
	}

	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.ShareToken != token || !quiz.ReadableBy(callerID) {
		return nil, domain.NewNotFoundError("Shared quiz not found")
	}
	return toQuizResponse(quiz, false), nil
}

func (s *quizService) resolveShareToken(ctx context.Context, token string) (string, error) {
	key := cache.SharedQuizKey(token)
	if s.cache != nil {
		quizID, err := s.cache.Get(ctx, key)
		if err == nil && quizID != "" {
			return quizID, nil
		}
		if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Warn("Failed to read share token cache", zap.Error(err))
		}
	}

	quiz, err := s.repo.GetQuizByShareToken(ctx, token)
	if err != nil {
		return "", domain.NewInternalError("Failed to look up shared quiz", err)
	}
	if quiz == nil {
		return "", domain.NewNotFoundError("Shared quiz not found")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, quiz.ID, s.cacheTTL); err != nil {
			logger.Get().Warn("Failed to cache share token", zap.Error(err))
		}
	}
	return quiz.ID, nil
}

func (s *quizService) loadOwned(ctx context.Context, quizID, callerID string) (*domain.Quiz, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsOwnedBy(callerID) {
		return nil, domain.NewForbiddenError("You do not own this quiz")
	}
	return quiz, nil
}

// loadQuiz reads through the cache. PENDING quizzes are never cached.
// The returned quiz may be shared between callers and must not be modified.
func (s *quizService) loadQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	key := cache.QuizDetailKey(quizID)

	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		if err == nil {
			var cached domain.Quiz
			errDecode := json.Unmarshal([]byte(data), &cached)
			if errDecode == nil {
				return &cached, nil
			}
			logger.Get().Warn("Failed to decode cached quiz", zap.String("quiz_id", quizID), zap.Error(errDecode))
		} else if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Warn("Failed to read quiz cache", zap.String("quiz_id", quizID), zap.Error(err))
		}
	}

	res, err, _ := s.sfGroup.Do(key, func() (interface{}, error) {
		quiz, err := s.repo.GetQuizByID(ctx, quizID)
		if err != nil {
			return nil, domain.NewInternalError("Failed to get quiz", err)
		}
		if quiz == nil {
			return nil, domain.NewQuizNotFoundError(quizID)
		}

		if s.cache != nil && quiz.State != domain.QuizStatePending {
			if data, errEncode := json.Marshal(quiz); errEncode == nil {
				if errSet := s.cache.Set(ctx, key, string(data), s.cacheTTL); errSet != nil {
					logger.Get().Warn("Failed to cache quiz", zap.String("quiz_id", quizID), zap.Error(errSet))
				}
			}
		}
		return quiz, nil
	})
	if err != nil {
		return nil, err
	}

	quiz, ok := res.(*domain.Quiz)
	if !ok {
		return nil, domain.NewInternalError("Failed to get quiz", fmt.Errorf("unexpected type from singleflight.Do: %T", res))
	}
	return quiz, nil
}

func (s *quizService) reload(ctx context.Context, quizID string, includeAnswers bool) (*dto.QuizResponse, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return toQuizResponse(quiz, includeAnswers), nil
}

func (s *quizService) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.Get().Warn("Failed to invalidate quiz cache", zap.Strings("keys", keys), zap.Error(err))
	}
}

// buildQuestions converts request input into domain questions and enforces their invariants.
func buildQuestions(inputs []dto.QuestionInput) ([]domain.Question, domain.ValidationErrors) {
	var verrs domain.ValidationErrors
	questions := make([]domain.Question, 0, len(inputs))

	for i, in := range inputs {
		field := fmt.Sprintf("questions[%d]", i)

		qType := domain.QuestionTypeMultipleChoice
		if in.Type != "" {
			parsed, ok := domain.ParseQuestionType(in.Type)
			if !ok {
				verrs = append(verrs, domain.NewInvalidFormatError(field+".type", in.Type))
				continue
			}
			qType = parsed
		}

		options := make([]domain.Option, 0, len(in.Options))
		for _, o := range in.Options {
			options = append(options, domain.Option{Text: strings.TrimSpace(o.Text), IsCorrect: o.IsCorrect})
		}
		q := domain.Question{
			Text:     strings.TrimSpace(in.Text),
			Type:     qType,
			Position: i + 1,
			Options:  options,
		}
		if err := q.Validate(); err != nil {
			verrs = append(verrs, domain.NewFieldError(field, err.Error()))
			continue
		}
		questions = append(questions, q)
	}
	return questions, verrs
}

func toQuizResponse(q *domain.Quiz, includeAnswers bool) *dto.QuizResponse {
	resp := &dto.QuizResponse{
		ID:            q.ID,
		Title:         q.Title,
		Description:   q.Description,
		OwnerID:       q.OwnerID,
		State:         string(q.State),
		FailureReason: q.FailureReason,
		IsShared:      q.IsShared,
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
		Questions:     make([]dto.QuestionResponse, 0, len(q.Questions)),
	}
	if q.IsShared {
		resp.ShareToken = q.ShareToken
	}

	for _, question := range q.Questions {
		options := make([]dto.OptionResponse, 0, len(question.Options))
		for _, o := range question.Options {
			options = append(options, dto.OptionResponse{ID: o.ID, Text: o.Text})
			if includeAnswers && o.IsCorrect {
				resp.Answers = append(resp.Answers, dto.AnswerKeyResponse{
					QuestionID: question.ID,
					OptionID:   o.ID,
					OptionText: o.Text,
				})
			}
		}
		resp.Questions = append(resp.Questions, dto.QuestionResponse{
			ID:       question.ID,
			Text:     question.Text,
			Type:     string(question.Type),
			Position: question.Position,
			Options:  options,
		})
	}
	return resp
}
