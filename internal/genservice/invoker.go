// Package genservice sends composed lookup payloads to a generative
// inference service and returns its raw JSON answer.
//
// Every backend makes exactly one attempt per Invoke. Failures are always
// *ServiceError; callers decide whether to resubmit.
package genservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kalambet/wrench/internal/composer"
)

// RawResponse is the service's answer before normalization.
type RawResponse = json.RawMessage

// Invoker performs one generative call.
type Invoker interface {
	Invoke(ctx context.Context, p composer.Payload) (RawResponse, error)
}

// Backend names accepted by New.
const (
	BackendHTTP   = "http"
	BackendGemini = "gemini"
	BackendOllama = "ollama"
)

// Backends lists every supported backend name.
var Backends = []string{BackendHTTP, BackendGemini, BackendOllama}

// DefaultTimeout bounds a single invocation when Options.Timeout is zero.
const DefaultTimeout = 90 * time.Second

// Options selects and configures a backend.
type Options struct {
	Backend   string
	BaseURL   string
	Model     string
	APIKey    string
	Timeout   time.Duration
	RPS       float64
	OllamaURL string
}

// New builds the Invoker described by opts, rate limited when opts.RPS > 0.
func New(ctx context.Context, opts Options) (Invoker, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	var (
		inv Invoker
		err error
	)
	switch strings.ToLower(opts.Backend) {
	case BackendHTTP, "":
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("http backend: service.base_url is not set")
		}
		inv = NewHTTPClient(opts.BaseURL, opts.APIKey, opts.Timeout)
	case BackendGemini:
		inv, err = NewGeminiClient(ctx, opts.APIKey, opts.Model, opts.Timeout)
	case BackendOllama:
		inv = NewOllamaClient(opts.OllamaURL, opts.Model, opts.Timeout)
	default:
		return nil, fmt.Errorf("unknown backend %q (valid: %s)", opts.Backend, strings.Join(Backends, ", "))
	}
	if err != nil {
		return nil, err
	}

	if opts.RPS > 0 {
		inv = Limit(inv, rate.NewLimiter(rate.Limit(opts.RPS), 1))
	}
	return inv, nil
}

// Limit throttles inv with l. A call that cannot get a token before ctx
// expires fails with KindTimeout and never reaches the service.
func Limit(inv Invoker, l *rate.Limiter) Invoker {
	return &limited{next: inv, limiter: l}
}

type limited struct {
	next    Invoker
	limiter *rate.Limiter
}

func (l *limited) Invoke(ctx context.Context, p composer.Payload) (RawResponse, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, &ServiceError{Kind: KindTimeout, Err: fmt.Errorf("waiting for rate limiter: %w", err)}
	}
	return l.next.Invoke(ctx, p)
}

// decodeText turns model text into a RawResponse. Models often wrap JSON in
// a markdown fence; it is removed before validation.
func decodeText(text string) (RawResponse, error) {
	s := stripFences(text)
	if s == "" {
		return nil, malformed(fmt.Errorf("empty response text"))
	}
	if !json.Valid([]byte(s)) {
		return nil, malformed(fmt.Errorf("response text is not JSON: %.80q", s))
	}
	return RawResponse(s), nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string ("json") up to the first newline.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
