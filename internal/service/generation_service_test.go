package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/quizgen"
	"quiz-forge/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const twoQuestionQuiz = `{"title":"Photosynthesis","description":"Basics","questions":[
	{"text":"Where does photosynthesis happen?","type":"MULTIPLE_CHOICE","options":[
		{"text":"Chloroplast","isCorrect":true},{"text":"Nucleus","isCorrect":false},{"text":"Ribosome","isCorrect":false}]},
	{"text":"Which gas is produced?","type":"MULTIPLE_CHOICE","options":[
		{"text":"Oxygen","isCorrect":true},{"text":"Helium","isCorrect":false},{"text":"Neon","isCorrect":true}]}
]}`

func newTestPipeline(caller domain.ModelCaller) *quizgen.Pipeline {
	client := quizgen.NewModelClient(caller, 2, time.Millisecond).
		WithSleep(func(context.Context, time.Duration) error { return nil })
	opts := quizgen.DefaultOptions()
	opts.DefaultModel = "gemini-2.0-flash"
	return quizgen.NewPipeline(client, opts)
}

func newStartedQueue(t *testing.T) *worker.Queue {
	t.Helper()
	q := worker.NewQueue(worker.Options{Concurrency: 1, Size: 4}, nil)
	q.Start(context.Background())
	t.Cleanup(func() { _ = q.Shutdown(context.Background()) })
	return q
}

func waitTask(t *testing.T, h *worker.Handle) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := h.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "task did not finish")
	return err
}

func exactlyOneCorrect(q domain.Question) bool {
	n := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			n++
		}
	}
	return n == 1
}

func TestGenerate_EndToEndMultipleChoice(t *testing.T) {
	caller := &countingCaller{response: "```json\n" + twoQuestionQuiz + "\n```"}
	repo := new(MockQuizRepository)
	repo.On("CreateQuiz", mock.Anything, mock.MatchedBy(func(q *domain.Quiz) bool {
		return q.State == domain.QuizStateFinished && q.OwnerID == "user-1" && len(q.Questions) == 2
	})).Return(nil)

	svc := NewGenerationService(repo, &MockTransactionManager{}, newTestPipeline(caller), nil, nil)
	quiz, err := svc.Generate(context.Background(), domain.GenerationRequest{
		OwnerID:       "user-1",
		Text:          "Plants convert light into chemical energy inside chloroplasts and release oxygen.",
		QuestionCount: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, "Photosynthesis", quiz.Title)
	assert.Equal(t, domain.QuizStateFinished, quiz.State)
	require.Len(t, quiz.Questions, 2)
	for i, q := range quiz.Questions {
		assert.Equal(t, domain.QuestionTypeMultipleChoice, q.Type)
		assert.Equal(t, i+1, q.Position)
		assert.GreaterOrEqual(t, len(q.Options), domain.MinOptionsMultipleChoice)
		assert.LessOrEqual(t, len(q.Options), domain.MaxOptionsMultipleChoice)
		assert.True(t, exactlyOneCorrect(q), "question %d", i+1)
		assert.NoError(t, q.Validate())
	}
	// first correct option wins when the model flags several
	assert.True(t, quiz.Questions[1].Options[0].IsCorrect)
	assert.False(t, quiz.Questions[1].Options[2].IsCorrect)
	assert.Equal(t, 1, caller.Calls())
	repo.AssertExpectations(t)
}

func TestGenerate_EmptyInputMakesNoModelCalls(t *testing.T) {
	caller := &countingCaller{response: twoQuestionQuiz}
	repo := new(MockQuizRepository)
	svc := NewGenerationService(repo, &MockTransactionManager{}, newTestPipeline(caller), nil, nil)

	for _, text := range []string{"", "   \n\t "} {
		_, err := svc.Generate(context.Background(), domain.GenerationRequest{OwnerID: "user-1", Text: text})
		assert.True(t, domain.HasCode(err, domain.CodeNoContent), "text %q", text)

		_, _, err = svc.GenerateAsync(context.Background(), domain.GenerationRequest{OwnerID: "user-1", Text: text})
		assert.True(t, domain.HasCode(err, domain.CodeNoContent), "text %q", text)
	}

	assert.Zero(t, caller.Calls())
	repo.AssertNotCalled(t, "CreateQuiz", mock.Anything, mock.Anything)
}

func TestGenerate_ModelFailureSavesNothing(t *testing.T) {
	caller := &countingCaller{err: errors.New("permission denied")}
	repo := new(MockQuizRepository)
	svc := NewGenerationService(repo, &MockTransactionManager{}, newTestPipeline(caller), nil, nil)

	_, err := svc.Generate(context.Background(), domain.GenerationRequest{OwnerID: "user-1", Text: "Some content"})
	assert.True(t, domain.HasCode(err, domain.CodeGeneration))
	repo.AssertNotCalled(t, "CreateQuiz", mock.Anything, mock.Anything)
}

func TestGenerate_PersistenceFailure(t *testing.T) {
	caller := &countingCaller{response: twoQuestionQuiz}
	repo := new(MockQuizRepository)
	repo.On("CreateQuiz", mock.Anything, mock.Anything).Return(errors.New("db down"))

	svc := NewGenerationService(repo, &MockTransactionManager{}, newTestPipeline(caller), nil, nil)
	_, err := svc.Generate(context.Background(), domain.GenerationRequest{OwnerID: "user-1", Text: "Some content"})
	assert.True(t, domain.HasCode(err, domain.CodeInternal))
}

func TestGenerateAsync_Finishes(t *testing.T) {
	caller := &countingCaller{response: twoQuestionQuiz}
	repo := new(MockQuizRepository)
	repo.On("CreateQuiz", mock.Anything, mock.MatchedBy(func(q *domain.Quiz) bool {
		return q.State == domain.QuizStatePending && q.Title == "Plants" && len(q.Questions) == 0
	})).Return(nil)
	repo.On("UpdateQuizFields", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("ReplaceQuestions", mock.Anything, mock.Anything, mock.MatchedBy(func(qs []domain.Question) bool {
		return len(qs) == 2
	})).Return(nil)
	repo.On("UpdateQuizState", mock.Anything, mock.Anything, domain.QuizStateFinished, "").Return(nil)

	cache := new(MockCache)
	cache.On("Delete", mock.Anything, mock.Anything).Return(nil)

	svc := NewGenerationService(repo, &MockTransactionManager{}, newTestPipeline(caller), newStartedQueue(t), cache)
	quiz, handle, err := svc.GenerateAsync(context.Background(), domain.GenerationRequest{
		OwnerID: "user-1",
		Title:   "Plants",
		Text:    "Plants convert light into chemical energy.",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.QuizStatePending, quiz.State)
	assert.Equal(t, quiz.ID, handle.Key())

	assert.NoError(t, waitTask(t, handle))
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "UpdateQuizState", mock.Anything, mock.Anything, domain.QuizStateError, mock.Anything)
	cache.AssertExpectations(t)
}

func TestGenerateAsync_PersistenceFailureMarksError(t *testing.T) {
	caller := &countingCaller{response: twoQuestionQuiz}
	repo := new(MockQuizRepository)
	repo.On("CreateQuiz", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateQuizFields", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("ReplaceQuestions", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("insert failed"))
	repo.On("UpdateQuizState", mock.Anything, mock.Anything, domain.QuizStateError, mock.MatchedBy(func(reason string) bool {
		return reason == "insert failed"
	})).Return(nil)

	svc := NewGenerationService(repo, &MockTransactionManager{}, newTestPipeline(caller), newStartedQueue(t), nil)
	_, handle, err := svc.GenerateAsync(context.Background(), domain.GenerationRequest{OwnerID: "user-1", Text: "Some content"})
	require.NoError(t, err)

	assert.EqualError(t, waitTask(t, handle), "insert failed")
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "UpdateQuizState", mock.Anything, mock.Anything, domain.QuizStateFinished, mock.Anything)
}

func TestGenerateAsync_ModelFailureMarksError(t *testing.T) {
	caller := &countingCaller{err: errors.New("429 quota exceeded")}
	repo := new(MockQuizRepository)
	repo.On("CreateQuiz", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateQuizState", mock.Anything, mock.Anything, domain.QuizStateError, mock.Anything).Return(nil)

	svc := NewGenerationService(repo, &MockTransactionManager{}, newTestPipeline(caller), newStartedQueue(t), nil)
	_, handle, err := svc.GenerateAsync(context.Background(), domain.GenerationRequest{OwnerID: "user-1", Text: "Some content"})
	require.NoError(t, err)

	taskErr := waitTask(t, handle)
	assert.True(t, domain.HasCode(taskErr, domain.CodeGeneration))
	var upstream *domain.UpstreamError
	require.ErrorAs(t, taskErr, &upstream)
	assert.Equal(t, 429, upstream.Status)
	repo.AssertExpectations(t)
}

type panickingPipeline struct{}

func (panickingPipeline) Run(context.Context, string, domain.GenerationRequest) (*domain.GeneratedQuiz, error) {
	panic("nil options")
}

func TestGenerateAsync_PanicMarksError(t *testing.T) {
	repo := new(MockQuizRepository)
	repo.On("CreateQuiz", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateQuizState", mock.Anything, mock.Anything, domain.QuizStateError, mock.MatchedBy(func(reason string) bool {
		return strings.Contains(reason, "nil options")
	})).Return(nil)

	svc := NewGenerationService(repo, &MockTransactionManager{}, panickingPipeline{}, newStartedQueue(t), nil)
	quiz, handle, err := svc.GenerateAsync(context.Background(), domain.GenerationRequest{OwnerID: "user-1", Text: "Some content"})
	require.NoError(t, err)

	taskErr := waitTask(t, handle)
	require.Error(t, taskErr)
	assert.Contains(t, taskErr.Error(), "panicked")
	repo.AssertCalled(t, "UpdateQuizState", mock.Anything, quiz.ID, domain.QuizStateError, mock.Anything)
	repo.AssertNotCalled(t, "UpdateQuizState", mock.Anything, mock.Anything, domain.QuizStateFinished, mock.Anything)
}

const untitledDescriptionQuiz = `{"title":"Photosynthesis","questions":[
	{"text":"Where does photosynthesis happen?","type":"MULTIPLE_CHOICE","options":[
		{"text":"Chloroplast","isCorrect":true},{"text":"Nucleus","isCorrect":false},{"text":"Ribosome","isCorrect":false}]}
]}`

func TestGenerate_KeepsRequestTitleAndDescription(t *testing.T) {
	caller := &countingCaller{response: untitledDescriptionQuiz}
	repo := new(MockQuizRepository)
	repo.On("CreateQuiz", mock.Anything, mock.Anything).Return(nil)

	svc := NewGenerationService(repo, &MockTransactionManager{}, newTestPipeline(caller), nil, nil)

	quiz, err := svc.Generate(context.Background(), domain.GenerationRequest{
		OwnerID:     "user-1",
		Title:       "Biology week 3",
		Description: "Chapter 4 review",
		Text:        "Plants convert light into chemical energy.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Biology week 3", quiz.Title)
	assert.Equal(t, "Chapter 4 review", quiz.Description)

	quiz, err = svc.Generate(context.Background(), domain.GenerationRequest{
		OwnerID: "user-1",
		Text:    "Plants convert light into chemical energy.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis", quiz.Title)
	assert.Empty(t, quiz.Description)
}

func TestGenerateAsync_KeepsRequestDescription(t *testing.T) {
	caller := &countingCaller{response: untitledDescriptionQuiz}
	repo := new(MockQuizRepository)
	repo.On("CreateQuiz", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateQuizFields", mock.Anything, mock.Anything,
		mock.MatchedBy(func(title *string) bool { return title != nil && *title == "Photosynthesis" }),
		mock.MatchedBy(func(desc *string) bool { return desc != nil && *desc == "Chapter 4 review" }),
	).Return(nil)
	repo.On("ReplaceQuestions", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateQuizState", mock.Anything, mock.Anything, domain.QuizStateFinished, "").Return(nil)

	svc := NewGenerationService(repo, &MockTransactionManager{}, newTestPipeline(caller), newStartedQueue(t), nil)
	_, handle, err := svc.GenerateAsync(context.Background(), domain.GenerationRequest{
		OwnerID:     "user-1",
		Description: "Chapter 4 review",
		Text:        "Plants convert light into chemical energy.",
	})
	require.NoError(t, err)

	assert.NoError(t, waitTask(t, handle))
	repo.AssertExpectations(t)
}

type rejectingQueue struct {
	err error
}

func (q rejectingQueue) Enqueue(string, worker.Task) (*worker.Handle, error) {
	return nil, q.err
}

func TestGenerateAsync_QueueFull(t *testing.T) {
	repo := new(MockQuizRepository)
	repo.On("CreateQuiz", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateQuizState", mock.Anything, mock.Anything, domain.QuizStateError, mock.Anything).Return(nil)

	caller := &countingCaller{response: twoQuestionQuiz}
	svc := NewGenerationService(repo, &MockTransactionManager{}, newTestPipeline(caller),
		rejectingQueue{err: worker.ErrQueueFull}, nil)

	_, _, err := svc.GenerateAsync(context.Background(), domain.GenerationRequest{OwnerID: "user-1", Text: "Some content"})
	assert.True(t, domain.HasCode(err, domain.CodeQueueFull))
	assert.Zero(t, caller.Calls())
	repo.AssertExpectations(t)
}

func TestFailureReason_Truncates(t *testing.T) {
	long := make([]rune, maxFailureReasonLen+50)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, []rune(failureReason(errors.New(string(long)))), maxFailureReasonLen)
}
