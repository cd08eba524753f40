// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package model sends prompts to an OpenAI-compatible chat-completion
// provider (OpenRouter or OpenAI) and returns the raw model text.
// The client is stateless per call and never retries; transport failures
// surface as *NetworkError and non-success statuses as *UpstreamError.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/atlas/internal/httputil"
	"github.com/pdiddy/atlas/pkg/types"
)

const (
	defaultTemperature = 0.4

	// analyzeInstruction is the user turn sent with every pipeline stage.
	analyzeInstruction = "Analyze the text according to system instructions."
)

// Client sends one prompt and context pair to a model and returns its text.
type Client interface {
	Send(ctx context.Context, model, systemPrompt, contextText string) (string, error)
}

// Request is a single chat completion with explicit system and user turns.
type Request struct {
	Model  string
	System string
	User   string
}

// Completer runs free-form chat completions.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// endpoint is one provider resolved from configuration.
type endpoint struct {
	provider types.Provider
	client   openai.Client
}

// OpenAICompat implements Client and Completer against OpenAI-compatible
// Chat Completions endpoints. Endpoints and credentials are resolved once in
// NewOpenAICompat; each call only picks among them by model name.
type OpenAICompat struct {
	cfg       types.ModelConfig
	endpoints map[types.Provider]*endpoint
}

var (
	_ Client    = (*OpenAICompat)(nil)
	_ Completer = (*OpenAICompat)(nil)
)

// NewOpenAICompat builds a client for every provider that has a credential.
// It fails with ErrMissingCredential when none does.
func NewOpenAICompat(cfg types.ModelConfig) (*OpenAICompat, error) {
	providers := []types.Provider{types.ProviderOpenRouter, types.ProviderOpenAI}
	if cfg.Provider != "" {
		if _, err := BaseURL(cfg.Provider); err != nil {
			return nil, err
		}
		providers = []types.Provider{cfg.Provider}
	}

	c := &OpenAICompat{cfg: cfg, endpoints: make(map[types.Provider]*endpoint)}
	for _, p := range providers {
		key := cfg.Credentials.For(p)
		if key == "" {
			continue
		}
		baseURL, _ := BaseURL(p)
		if cfg.Endpoint != "" {
			baseURL = cfg.Endpoint
		}
		opts := []option.RequestOption{
			option.WithAPIKey(key),
			option.WithBaseURL(baseURL),
			option.WithHTTPClient(httputil.NewClient(cfg.HTTPConfig, nil)),
			option.WithMaxRetries(0),
		}
		for k, v := range attributionHeaders(p, cfg) {
			opts = append(opts, option.WithHeader(k, v))
		}
		c.endpoints[p] = &endpoint{provider: p, client: openai.NewClient(opts...)}
	}

	if len(c.endpoints) == 0 {
		if cfg.Provider != "" {
			return nil, fmt.Errorf("provider %s: %w", cfg.Provider, ErrMissingCredential)
		}
		return nil, ErrMissingCredential
	}
	return c, nil
}

// Send analyzes contextText under systemPrompt. When a context budget is
// configured the text is truncated to that many characters; otherwise it is
// sent whole and an oversized payload surfaces as an UpstreamError (413).
func (c *OpenAICompat) Send(ctx context.Context, model, systemPrompt, contextText string) (string, error) {
	user := analyzeInstruction
	if contextText != "" {
		user += "\n\nTEXT TO ANALYZE:\n" + Truncate(contextText, c.cfg.ContextBudget)
	}
	return c.Complete(ctx, Request{Model: model, System: systemPrompt, User: user})
}

// Complete runs one chat completion and returns choices[0].message.content.
func (c *OpenAICompat) Complete(ctx context.Context, req Request) (string, error) {
	ep, err := c.route(req.Model)
	if err != nil {
		return "", err
	}

	temperature := defaultTemperature
	if c.cfg.Temperature != nil {
		temperature = *c.cfg.Temperature
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    messages,
		Temperature: openai.Float(temperature),
	}

	resp, err := ep.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(ep.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Provider: ep.provider, StatusCode: 200, Message: ErrEmptyResponse.Error(), Err: ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

// Providers returns the providers this client can reach.
func (c *OpenAICompat) Providers() []types.Provider {
	var out []types.Provider
	for _, p := range []types.Provider{types.ProviderOpenRouter, types.ProviderOpenAI} {
		if _, ok := c.endpoints[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// route returns the endpoint ResolveProvider picks for model.
func (c *OpenAICompat) route(model string) (*endpoint, error) {
	p, err := ResolveProvider(c.cfg, model)
	if err != nil {
		return nil, err
	}
	ep, ok := c.endpoints[p]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", p, ErrMissingCredential)
	}
	return ep, nil
}

// classify maps an openai-go error onto the upstream/network taxonomy.
func classify(p types.Provider, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &UpstreamError{
			Provider:   p,
			StatusCode: apiErr.StatusCode,
			Message:    upstreamMessage(apiErr),
			Err:        err,
		}
	}
	return &NetworkError{Provider: p, Err: err}
}

// errorEnvelope is the provider error body: {"error": {"message": "..."}}.
type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

// upstreamMessage returns the provider message verbatim, reading the error
// envelope from the response body when the SDK did not populate it.
func upstreamMessage(apiErr *openai.Error) string {
	if apiErr.Message != "" {
		return apiErr.Message
	}
	if apiErr.Response != nil && apiErr.Response.Body != nil {
		body, _ := io.ReadAll(apiErr.Response.Body)
		if msg := envelopeMessage(body); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("HTTP %d", apiErr.StatusCode)
}

// envelopeMessage extracts error.message, or error when it is a plain string.
func envelopeMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Error, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var s string
	if err := json.Unmarshal(env.Error, &s); err == nil {
		return s
	}
	return ""
}

// Truncate returns at most budget characters of text. A budget of zero or
// less leaves text unchanged.
func Truncate(text string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text
	}
	n := 0
	for i := range text {
		if n == budget {
			return text[:i]
		}
		n++
	}
	return text
}
