package genservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/wrench/internal/composer"
	"github.com/kalambet/wrench/internal/ollama"
)

// DefaultOllamaModel is used when no model is configured for the ollama
// backend.
const DefaultOllamaModel = "llama3.1"

// OllamaClient answers lookups with a local model. Internet grounding is
// unavailable locally, so AddContextFromInternet is ignored.
type OllamaClient struct {
	client  *ollama.Client
	model   string
	timeout time.Duration
}

// NewOllamaClient creates an Invoker for the Ollama server at baseURL.
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if model == "" || model == DefaultGeminiModel {
		model = DefaultOllamaModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OllamaClient{client: ollama.New(baseURL), model: model, timeout: timeout}
}

// Client exposes the underlying Ollama client for readiness checks.
func (c *OllamaClient) Client() *ollama.Client { return c.client }

// Model is the local model lookups are sent to.
func (c *OllamaClient) Model() string { return c.model }

func (c *OllamaClient) Invoke(ctx context.Context, p composer.Payload) (RawResponse, error) {
	if p.AddContextFromInternet {
		slog.Debug("ollama backend cannot search the internet; answering from model knowledge", "model", c.model)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var format any = "json"
	if p.Schema != nil {
		format = p.Schema
	}

	text, err := c.client.Chat(ctx, c.model, []ollama.Message{
		{Role: "user", Content: p.Prompt},
	}, format)
	if err != nil {
		var se *ollama.StatusError
		if errors.As(err, &se) {
			return nil, rejected(&RejectedError{Status: se.Status, Body: se.Body})
		}
		return nil, transportError(fmt.Errorf("ollama: %w", err))
	}
	return decodeText(text)
}
