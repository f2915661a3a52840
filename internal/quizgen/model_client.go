package quizgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/logger"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

var (
	retriablePattern  = regexp.MustCompile(`(?i)503|429|overloaded|rate|quota`)
	rateLimitPattern  = regexp.MustCompile(`(?i)429|quota|rate`)
	overloadedPattern = regexp.MustCompile(`(?i)503|overloaded`)
	retryDelayPattern = regexp.MustCompile(`(?i)retrydelay"?\s*:\s*"?(\d+)(?:\.\d+)?s`)
)

// Generator produces a raw model response for prompt, trying the candidate models in order.
type Generator interface {
	Generate(ctx context.Context, prompt string, models []string) (string, error)
}

// ModelClient wraps a ModelCaller with per-model retries and model fallback.
type ModelClient struct {
	caller      domain.ModelCaller
	maxAttempts int
	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewModelClient(caller domain.ModelCaller, maxAttempts int, backoffBase time.Duration) *ModelClient {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ModelClient{
		caller:      caller,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		sleep:       sleepContext,
	}
}

// WithSleep replaces the backoff sleep, mainly for tests.
func (c *ModelClient) WithSleep(fn func(ctx context.Context, d time.Duration) error) *ModelClient {
	c.sleep = fn
	return c
}

// Generate returns the first successful response. A retriable failure is retried on the
// same model after base*attempt; any other failure moves on to the next model. When all
// models are exhausted the last failure is returned as a GenerationError carrying an
// *domain.UpstreamError.
func (c *ModelClient) Generate(ctx context.Context, prompt string, models []string) (string, error) {
	log := logger.Get()
	if len(models) == 0 {
		return "", domain.NewGenerationError(errors.New("no candidate models configured"))
	}

	var lastErr error
	for _, model := range models {
		for attempt := 1; attempt <= c.maxAttempts; attempt++ {
			start := time.Now()
			out, err := c.caller.Call(ctx, model, prompt)
			if err == nil {
				log.Debug("Model call succeeded",
					zap.String("model", model),
					zap.Int("attempt", attempt),
					zap.Duration("duration", time.Since(start)))
				return out, nil
			}

			lastErr = fmt.Errorf("model %s: %w", model, err)
			retriable := IsRetriable(err)
			log.Warn("Model call failed",
				zap.String("model", model),
				zap.Int("attempt", attempt),
				zap.Bool("retriable", retriable),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))

			if ctx.Err() != nil {
				return "", domain.NewGenerationError(ctx.Err())
			}
			if !retriable || attempt == c.maxAttempts {
				break
			}
			if err := c.sleep(ctx, c.backoffBase*time.Duration(attempt)); err != nil {
				return "", domain.NewGenerationError(err)
			}
		}
	}

	return "", domain.NewGenerationError(&domain.UpstreamError{
		Status:     StatusClass(lastErr),
		RetryAfter: retryAfterSeconds(lastErr),
		Err:        lastErr,
	})
}

// CandidateModels builds the ordered, de-duplicated list of models to try.
func CandidateModels(requested, defaultModel string, fallbacks []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(m string) {
		m = strings.TrimSpace(m)
		if m == "" {
			return
		}
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	add(requested)
	add(defaultModel)
	for _, m := range fallbacks {
		add(m)
	}
	return out
}

// IsRetriable reports whether err looks like transient overload or rate limiting.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	switch upstreamCode(err) {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return retriablePattern.MatchString(err.Error())
}

// StatusClass maps an upstream failure to 429, 503 or 500.
func StatusClass(err error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	code := upstreamCode(err)
	msg := err.Error()
	switch {
	case code == http.StatusTooManyRequests || rateLimitPattern.MatchString(msg):
		return http.StatusTooManyRequests
	case code == http.StatusServiceUnavailable || overloadedPattern.MatchString(msg):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func upstreamCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) {
		return coded.HTTPCode()
	}
	return 0
}

func retryAfterSeconds(err error) int {
	if err == nil {
		return 0
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Header != nil {
		if v, convErr := strconv.Atoi(gerr.Header.Get("Retry-After")); convErr == nil && v > 0 {
			return v
		}
	}
	if m := retryDelayPattern.FindStringSubmatch(err.Error()); m != nil {
		if v, convErr := strconv.Atoi(m[1]); convErr == nil {
			return v
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
