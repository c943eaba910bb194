package genservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kalambet/wrench/internal/composer"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient answers lookups with the Gemini API, grounding them with
// Google Search when the payload asks for internet context.
type GeminiClient struct {
	cli     *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a Gemini-backed Invoker. An empty apiKey lets the
// SDK fall back to GEMINI_API_KEY / GOOGLE_API_KEY.
func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	return newGeminiClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model, timeout)
}

func newGeminiClient(ctx context.Context, cfg *genai.ClientConfig, model string, timeout time.Duration) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GeminiClient{cli: cli, model: model, timeout: timeout}, nil
}

// Invoke sends p as a single user turn.
//
// The API refuses a response schema together with the search tool, so a
// grounded request carries the schema inside the prompt instead.
func (g *GeminiClient) Invoke(ctx context.Context, p composer.Payload) (RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{}
	prompt := p.Prompt

	schema, native := toGenaiSchema(p.Schema)
	switch {
	case p.AddContextFromInternet:
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
		prompt = withInlineSchema(prompt, p.Schema)
	case native:
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	default:
		cfg.ResponseMIMEType = "application/json"
		prompt = withInlineSchema(prompt, p.Schema)
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		cfg,
	)
	if err != nil {
		return nil, geminiError(err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, malformed(errors.New("gemini returned no candidates"))
	}
	return decodeText(text)
}

func geminiError(err error) *ServiceError {
	var ae genai.APIError
	if errors.As(err, &ae) {
		return rejected(fmt.Errorf("gemini: %w", err))
	}
	return transportError(fmt.Errorf("gemini: %w", err))
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range c.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func withInlineSchema(prompt string, s *composer.Schema) string {
	if s == nil {
		return prompt
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return prompt
	}
	return prompt + "\n\nRespond with a single JSON object and nothing else. It must match this JSON schema:\n" + string(b)
}

// toGenaiSchema converts s to the API's schema type. It reports false when s
// uses something the API cannot express, such as an open object with no
// declared properties.
func toGenaiSchema(s *composer.Schema) (*genai.Schema, bool) {
	if s == nil {
		return nil, false
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    append([]string(nil), s.Required...),
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
		if len(s.Properties) == 0 {
			return nil, false
		}
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			ps, ok := toGenaiSchema(prop)
			if !ok {
				return nil, false
			}
			out.Properties[name] = ps
		}
	case "array":
		out.Type = genai.TypeArray
		items, ok := toGenaiSchema(s.Items)
		if !ok {
			return nil, false
		}
		out.Items = items
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		return nil, false
	}
	return out, true
}
