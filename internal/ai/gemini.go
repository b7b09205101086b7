package ai

import (
	"context"
	"fmt"
	"net/http"

	"joke-server/internal/config"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash-lite"

// GeminiClient generates text through Google's Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

type GeminiOption func(*genai.ClientConfig)

// WithGeminiBaseURL points the client at another endpoint (used by tests).
func WithGeminiBaseURL(url string) GeminiOption {
	return func(cc *genai.ClientConfig) {
		cc.HTTPOptions.BaseURL = url
	}
}

func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(cc *genai.ClientConfig) {
		cc.HTTPClient = client
	}
}

func NewGeminiClient(ctx context.Context, cfg config.AIConfig, opts ...GeminiOption) (*GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, ErrNotConfigured
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: float32(cfg.Temperature),
	}, nil
}

func (c *GeminiClient) Name() string {
	return config.ProviderGemini
}

func (c *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
		MaxOutputTokens:   c.maxTokens,
		CandidateCount:    1,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", ErrNoChoices
	}

	return resp.Text(), nil
}
