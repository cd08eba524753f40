// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/atlas/pkg/types"
)

// captured is one request seen by the fake provider.
type captured struct {
	Path    string
	Auth    string
	Referer string
	Title   string
	Body    chatBody
}

type chatBody struct {
	Model       string  `json:"model"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []captured
}

func (f *fakeProvider) last(t *testing.T) captured {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no request reached the provider")
	return f.requests[len(f.requests)-1]
}

func (f *fakeProvider) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// newProvider starts a fake chat-completion server. handle writes the
// response; when nil the server answers with content.
func newProvider(t *testing.T, content string, handle http.HandlerFunc) (*httptest.Server, *fakeProvider) {
	t.Helper()
	fp := &fakeProvider{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		fp.mu.Lock()
		fp.requests = append(fp.requests, captured{
			Path:    r.URL.Path,
			Auth:    r.Header.Get("Authorization"),
			Referer: r.Header.Get("HTTP-Referer"),
			Title:   r.Header.Get("X-Title"),
			Body:    body,
		})
		fp.mu.Unlock()
		if handle != nil {
			handle(w, r)
			return
		}
		writeCompletion(w, content)
	}))
	t.Cleanup(srv.Close)
	return srv, fp
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "cmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
}

func openRouterConfig(endpoint string) types.ModelConfig {
	return types.ModelConfig{
		HTTPConfig:  types.HTTPConfig{Timeout: 5 * time.Second},
		Provider:    types.ProviderOpenRouter,
		Endpoint:    endpoint,
		Credentials: types.Credentials{OpenRouter: "sk-or-test"},
	}
}

func TestSend_RequestShape(t *testing.T) {
	srv, fp := newProvider(t, `{"chapters": ["I"]}`, nil)
	c, err := NewOpenAICompat(openRouterConfig(srv.URL))
	require.NoError(t, err)

	got, err := c.Send(context.Background(), "meta-llama/llama-4-maverick", "Map the structure.", "Testo del libro.")
	require.NoError(t, err)
	assert.Equal(t, `{"chapters": ["I"]}`, got)

	req := fp.last(t)
	assert.Equal(t, "/chat/completions", req.Path)
	assert.Equal(t, "Bearer sk-or-test", req.Auth)
	assert.Equal(t, "meta-llama/llama-4-maverick", req.Body.Model)
	require.NotNil(t, req.Body.Temperature)
	assert.InDelta(t, defaultTemperature, *req.Body.Temperature, 1e-9)
	require.Len(t, req.Body.Messages, 2)
	assert.Equal(t, "system", req.Body.Messages[0].Role)
	assert.Equal(t, "Map the structure.", req.Body.Messages[0].Content)
	assert.Equal(t, "user", req.Body.Messages[1].Role)
	assert.Equal(t, analyzeInstruction+"\n\nTEXT TO ANALYZE:\nTesto del libro.", req.Body.Messages[1].Content)
}

func TestSend_EmptyContextSendsInstructionOnly(t *testing.T) {
	srv, fp := newProvider(t, "{}", nil)
	c, err := NewOpenAICompat(openRouterConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "m/x", "Synthesize.", "")
	require.NoError(t, err)
	assert.Equal(t, analyzeInstruction, fp.last(t).Body.Messages[1].Content)
}

func TestSend_OpenRouterAttribution(t *testing.T) {
	srv, fp := newProvider(t, "ok", nil)
	c, err := NewOpenAICompat(openRouterConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "m/x", "p", "t")
	require.NoError(t, err)
	req := fp.last(t)
	assert.Equal(t, defaultReferer, req.Referer)
	assert.Equal(t, defaultTitle, req.Title)
}

func TestSend_OpenAIHasNoAttribution(t *testing.T) {
	srv, fp := newProvider(t, "ok", nil)
	c, err := NewOpenAICompat(types.ModelConfig{
		Provider:    types.ProviderOpenAI,
		Endpoint:    srv.URL,
		Credentials: types.Credentials{OpenAI: "sk-test"},
	})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "gpt-4o-mini", "p", "t")
	require.NoError(t, err)
	req := fp.last(t)
	assert.Empty(t, req.Referer)
	assert.Empty(t, req.Title)
	assert.Equal(t, "Bearer sk-test", req.Auth)
}

func TestSend_UpstreamErrorCarriesMessage(t *testing.T) {
	srv, fp := newProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "context length exceeded", "code": 400}}`))
	})
	c, err := NewOpenAICompat(openRouterConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "m/x", "p", "t")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadRequest, ue.StatusCode)
	assert.Contains(t, ue.Message, "context length exceeded")
	assert.False(t, ue.IsCredential())
	assert.False(t, ue.Retryable())
	assert.Equal(t, 1, fp.count(), "client must not retry")
}

func TestSend_NoRetryOnServerError(t *testing.T) {
	srv, fp := newProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded"}}`))
	})
	c, err := NewOpenAICompat(openRouterConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "m/x", "p", "t")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 1, fp.count())
}

func TestSend_CredentialRejected(t *testing.T) {
	srv, _ := newProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "No auth credentials found"}}`))
	})
	c, err := NewOpenAICompat(openRouterConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "m/x", "p", "t")
	assert.True(t, IsCredentialProblem(err))
}

func TestSend_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewOpenAICompat(openRouterConfig(url))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "m/x", "p", "t")
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, types.ProviderOpenRouter, ne.Provider)
}

func TestSend_DeadlineIsNetworkTimeout(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	c, err := NewOpenAICompat(openRouterConfig(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Send(ctx, "m/x", "p", "t")
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestSend_EmptyChoices(t *testing.T) {
	srv, _ := newProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "choices": []}`))
	})
	c, err := NewOpenAICompat(openRouterConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "m/x", "p", "t")
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}

func TestSend_ContextBudgetTruncates(t *testing.T) {
	srv, fp := newProvider(t, "ok", nil)
	cfg := openRouterConfig(srv.URL)
	cfg.ContextBudget = 5
	c, err := NewOpenAICompat(cfg)
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "m/x", "p", "àèìòùxyz")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(fp.last(t).Body.Messages[1].Content, "TEXT TO ANALYZE:\nàèìòù"))
}

func TestComplete_Temperature(t *testing.T) {
	tests := []struct {
		name string
		set  *float64
		want float64
	}{
		{"unset uses default", nil, defaultTemperature},
		{"zero is kept", new(float64), 0},
		{"explicit value", func() *float64 { v := 1.1; return &v }(), 1.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, fp := newProvider(t, "ok", nil)
			cfg := openRouterConfig(srv.URL)
			cfg.Temperature = tt.set
			c, err := NewOpenAICompat(cfg)
			require.NoError(t, err)

			_, err = c.Complete(context.Background(), Request{Model: "m/x", User: "hi"})
			require.NoError(t, err)
			got := fp.last(t).Body.Temperature
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, *got, 1e-9)
		})
	}
}

func TestComplete_RoutesByModel(t *testing.T) {
	orSrv, orFP := newProvider(t, "from openrouter", nil)
	oaSrv, oaFP := newProvider(t, "from openai", nil)

	saved := openAIBaseURL
	savedOR := openRouterBaseURL
	openAIBaseURL, openRouterBaseURL = oaSrv.URL, orSrv.URL
	t.Cleanup(func() { openAIBaseURL, openRouterBaseURL = saved, savedOR })

	c, err := NewOpenAICompat(types.ModelConfig{
		Credentials: types.Credentials{OpenRouter: "or", OpenAI: "oa"},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.Provider{types.ProviderOpenRouter, types.ProviderOpenAI}, c.Providers())

	got, err := c.Complete(context.Background(), Request{Model: "gpt-4o-mini", User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from openai", got)

	got, err = c.Complete(context.Background(), Request{Model: "deepseek/deepseek-v3.2", User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from openrouter", got)

	assert.Equal(t, 1, orFP.count())
	assert.Equal(t, 1, oaFP.count())
	require.Len(t, oaFP.last(t).Body.Messages, 1, "no system message when System is empty")
}

func TestNewOpenAICompat_MissingCredential(t *testing.T) {
	_, err := NewOpenAICompat(types.ModelConfig{})
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = NewOpenAICompat(types.ModelConfig{
		Provider:    types.ProviderOpenAI,
		Credentials: types.Credentials{OpenRouter: "or"},
	})
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.True(t, IsCredentialProblem(err))

	_, err = NewOpenAICompat(types.ModelConfig{Provider: "anthropic"})
	assert.Error(t, err)
}

func TestResolveProvider(t *testing.T) {
	both := types.Credentials{OpenRouter: "or", OpenAI: "oa"}
	tests := []struct {
		name    string
		cfg     types.ModelConfig
		model   string
		want    types.Provider
		wantErr bool
	}{
		{"openai model with openai key", types.ModelConfig{Credentials: both}, "gpt-4o-mini", types.ProviderOpenAI, false},
		{"namespaced model", types.ModelConfig{Credentials: both}, "openai/gpt-4o", types.ProviderOpenRouter, false},
		{"openai model without openai key", types.ModelConfig{Credentials: types.Credentials{OpenRouter: "or"}}, "gpt-4o-mini", types.ProviderOpenRouter, false},
		{"openrouter model with only openai key", types.ModelConfig{Credentials: types.Credentials{OpenAI: "oa"}}, "deepseek/deepseek-v3.2", types.ProviderOpenAI, false},
		{"configured provider wins", types.ModelConfig{Provider: types.ProviderOpenRouter, Credentials: both}, "gpt-4o-mini", types.ProviderOpenRouter, false},
		{"no credentials", types.ModelConfig{}, "gpt-4o-mini", "", true},
		{"unknown provider", types.ModelConfig{Provider: "x", Credentials: both}, "m", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveProvider(tt.cfg, tt.model)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "éè", Truncate("éèà", 2))
	assert.Equal(t, "", Truncate("", 4))
}

func TestEnvelopeMessage(t *testing.T) {
	assert.Equal(t, "bad", envelopeMessage([]byte(`{"error": {"message": "bad"}}`)))
	assert.Equal(t, "plain", envelopeMessage([]byte(`{"error": "plain"}`)))
	assert.Equal(t, "", envelopeMessage([]byte(`not json`)))
	assert.Equal(t, "", envelopeMessage([]byte(`{}`)))
}

func TestUpstreamError_Retryable(t *testing.T) {
	for code, want := range map[int]bool{400: false, 401: false, 408: true, 413: false, 429: true, 500: true, 503: true} {
		e := &UpstreamError{StatusCode: code}
		assert.Equal(t, want, e.Retryable(), "status %d", code)
	}
}
