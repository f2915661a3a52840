package quizgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/logger"

	"go.uber.org/zap"
)

const keyPointsHeader = "Key points for quiz generation:"

// Condenser shrinks oversized content into a bullet list of key points.
type Condenser struct {
	gen            Generator
	maxDirectChars int
	chunkSize      int
	chunkOverlap   int
	maxBullets     int
}

func NewCondenser(gen Generator, opts Options) *Condenser {
	return &Condenser{
		gen:            gen,
		maxDirectChars: opts.MaxDirectChars,
		chunkSize:      opts.ChunkSize,
		chunkOverlap:   opts.ChunkOverlap,
		maxBullets:     opts.MaxBullets,
	}
}

// Condense returns text unchanged when it is short enough. Longer text is split into
// overlapping windows, each summarized into bullets, and the de-duplicated bullets are
// rendered under a header. Any window failure fails the whole condensation.
func (c *Condenser) Condense(ctx context.Context, text string, models []string) (string, error) {
	length := utf8.RuneCountInString(text)
	if length <= c.maxDirectChars {
		return text, nil
	}

	start := time.Now()
	windows := SplitWindows(text, c.chunkSize, c.chunkOverlap)
	seen := make(map[string]struct{})
	bullets := make([]string, 0, c.maxBullets)

	for i, window := range windows {
		raw, err := c.gen.Generate(ctx, buildSummaryPrompt(window, i+1), models)
		if err != nil {
			return "", err
		}
		items, err := parseBullets(raw)
		if err != nil {
			return "", domain.NewGenerationError(fmt.Errorf("summary of chunk %d: %w", i+1, err))
		}
		for _, b := range items {
			b = strings.TrimSpace(b)
			if b == "" {
				continue
			}
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			bullets = append(bullets, b)
			if len(bullets) >= c.maxBullets {
				break
			}
		}
		if len(bullets) >= c.maxBullets {
			break
		}
	}

	logger.Get().Info("Condensed oversized content",
		zap.Int("input_chars", length),
		zap.Int("chunks", len(windows)),
		zap.Int("bullets", len(bullets)),
		zap.Duration("duration", time.Since(start)))

	var sb strings.Builder
	sb.WriteString(keyPointsHeader)
	for _, b := range bullets {
		sb.WriteString("\n- ")
		sb.WriteString(b)
	}
	return sb.String(), nil
}

func parseBullets(raw string) ([]string, error) {
	payload := extractFirstArray(raw)
	if err := validateJSON(bulletsSchemaLoader, payload); err != nil {
		return nil, err
	}
	var items []string
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("decode bullets: %w", err)
	}
	return items, nil
}
