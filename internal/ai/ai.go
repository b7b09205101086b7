// Package ai turns a text-generation provider into a joke source.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"joke-server/internal/config"
	"joke-server/internal/models"
	"joke-server/pkg/logger"
)

const (
	SystemPrompt = "You are a comedian. Generate a short, clean, and funny joke. Return only the joke text, nothing else."
	UserPrompt   = "Tell me a funny joke."
)

// ErrNotConfigured means no provider credential is set. Callers report it as
// "service unavailable", never as a generation failure.
var ErrNotConfigured = errors.New("ai joke generation is not configured")

var ErrEmptyCompletion = errors.New("provider returned no joke text")

type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s joke generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Completer performs one chat completion and returns the raw text of the first choice.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Name() string
}

type Generator struct {
	completer Completer
	timeout   time.Duration
}

// New builds a generator for cfg.Provider. Without a credential the generator is
// still returned and fails every call with ErrNotConfigured.
func New(ctx context.Context, cfg config.AIConfig) (*Generator, error) {
	g := &Generator{timeout: cfg.Timeout}
	if g.timeout <= 0 {
		g.timeout = 15 * time.Second
	}

	if cfg.APIKey() == "" {
		logger.Info("AI joke generation disabled, no credential configured",
			logger.String("provider", cfg.Provider),
		)
		return g, nil
	}

	httpClient := &http.Client{Timeout: g.timeout}

	switch cfg.Provider {
	case config.ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg, WithGeminiHTTPClient(httpClient))
		if err != nil {
			return nil, err
		}
		g.completer = c
	default:
		g.completer = NewOpenAIClient(cfg, WithOpenAIHTTPClient(httpClient))
	}

	return g, nil
}

// NewWithCompleter wires an explicit provider; a nil completer behaves as unconfigured.
func NewWithCompleter(c Completer, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Generator{completer: c, timeout: timeout}
}

func (g *Generator) Configured() bool {
	return g.completer != nil
}

func (g *Generator) Generate(ctx context.Context) (*models.Joke, error) {
	if g.completer == nil {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.completer.Complete(ctx, SystemPrompt, UserPrompt)
	if err != nil {
		logger.Warn("AI provider call failed",
			logger.String("provider", g.completer.Name()),
			logger.Duration("elapsed", time.Since(start)),
			logger.Err(err),
		)
		return nil, &GenerationError{Provider: g.completer.Name(), Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &GenerationError{Provider: g.completer.Name(), Err: ErrEmptyCompletion}
	}

	logger.Debug("AI joke generated",
		logger.String("provider", g.completer.Name()),
		logger.Duration("elapsed", time.Since(start)),
	)

	return &models.Joke{
		Type:     models.TypeSingle,
		Joke:     text,
		Category: models.CategoryAIGenerated,
	}, nil
}
