package quizgen

import (
	"context"
	"time"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/logger"

	"go.uber.org/zap"
)

// Options tunes the generation pipeline.
type Options struct {
	MaxDirectChars int
	ChunkSize      int
	ChunkOverlap   int
	MaxBullets     int
	DefaultModel   string
	FallbackModels []string
}

func DefaultOptions() Options {
	return Options{
		MaxDirectChars: 20000,
		ChunkSize:      8000,
		ChunkOverlap:   500,
		MaxBullets:     80,
	}
}

// Pipeline turns resolved content into a normalized quiz: condense, prompt, generate, normalize.
type Pipeline struct {
	gen       Generator
	condenser *Condenser
	opts      Options
}

func NewPipeline(gen Generator, opts Options) *Pipeline {
	return &Pipeline{
		gen:       gen,
		condenser: NewCondenser(gen, opts),
		opts:      opts,
	}
}

// Run expects non-blank text; emptiness is checked by the caller before any model call.
func (p *Pipeline) Run(ctx context.Context, text string, req domain.GenerationRequest) (*domain.GeneratedQuiz, error) {
	start := time.Now()
	models := CandidateModels(req.ModelID, p.opts.DefaultModel, p.opts.FallbackModels)

	content, err := p.condenser.Condense(ctx, text, models)
	if err != nil {
		return nil, err
	}

	prompt := BuildQuizPrompt(PromptParams{
		QuestionCount: req.QuestionCount,
		Difficulty:    req.Difficulty,
		QuestionType:  req.QuestionType,
		Title:         req.Title,
		Description:   req.Description,
		Content:       content,
	})

	raw, err := p.gen.Generate(ctx, prompt, models)
	if err != nil {
		return nil, err
	}

	quiz, err := Normalize(raw, req.QuestionType)
	if err != nil {
		logger.Get().Warn("Model output rejected", zap.Error(err), zap.Int("raw_length", len(raw)))
		return nil, err
	}

	logger.Get().Info("Quiz generated",
		zap.Int("questions", len(quiz.Questions)),
		zap.Strings("models", models),
		zap.Duration("duration", time.Since(start)))
	return quiz, nil
}
