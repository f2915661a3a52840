package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quiz-forge/internal/config"
	"quiz-forge/internal/domain"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainCaller implements domain.ModelCaller on top of any langchaingo model.
// The model id is passed per call so one client can serve the whole fallback list.
type LangchainCaller struct {
	model       llms.Model
	temperature float64
	timeout     time.Duration
}

func NewLangchainCaller(model llms.Model, temperature float64, timeout time.Duration) *LangchainCaller {
	return &LangchainCaller{model: model, temperature: temperature, timeout: timeout}
}

func (c *LangchainCaller) Call(ctx context.Context, model, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithModel(model),
		llms.WithTemperature(c.temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("empty response from model %s", model)
	}
	return out, nil
}

var _ domain.ModelCaller = (*LangchainCaller)(nil)

// NewModel builds the provider client selected by cfg.Provider.
func NewModel(ctx context.Context, cfg config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "", "googleai", "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm api key is required for googleai")
		}
		return googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.DefaultModel),
		)
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(cfg.ServerURL),
			ollama.WithModel(cfg.DefaultModel),
			ollama.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		)
	case "openai":
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.DefaultModel),
		}
		if cfg.ServerURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ServerURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
