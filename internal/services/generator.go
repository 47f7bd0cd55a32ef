package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/iamai-org/iamai-chat/internal/logger"
)

const generateTimeout = 30 * time.Second

// Generator produces a completion for prompt using the named model.
type Generator interface {
	Generate(ctx context.Context, model string, prompt string) (string, error)
}

// llmGenerator talks to any OpenAI compatible endpoint (ollama, llama.cpp server, ...).
type llmGenerator struct {
	log     *logger.Logger
	baseURL string
	token   string

	mu     sync.Mutex
	models map[string]llms.Model
}

func NewLLMGenerator(log *logger.Logger, baseURL, token string) Generator {
	if token == "" {
		// OpenAI compatible local servers ignore the key but the client insists on one.
		token = "local"
	}
	return &llmGenerator{
		log:     log.With("service", "LLMGenerator", "baseURL", baseURL),
		baseURL: baseURL,
		token:   token,
		models:  make(map[string]llms.Model),
	}
}

func (g *llmGenerator) client(model string) (llms.Model, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.models[model]; ok {
		return m, nil
	}
	m, err := openai.New(
		openai.WithToken(g.token),
		openai.WithBaseURL(g.baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("init llm client for %s: %w", model, err)
	}
	g.models[model] = m
	return m, nil
}

func (g *llmGenerator) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if model == "" {
		return "", ErrNoModelLoaded
	}
	llm, err := g.client(model)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	start := time.Now()
	completion, err := llms.GenerateFromSinglePrompt(ctx, llm, prompt)
	if err != nil {
		g.log.Warn("generation failed", "model", model, "error", err)
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	g.log.Debug("generation finished", "model", model, "took", time.Since(start))
	return strings.TrimSpace(completion), nil
}
