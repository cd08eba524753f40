// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"fmt"
	"strings"

	"github.com/pdiddy/atlas/pkg/types"
)

// Default base URLs and attribution values. Package-level vars for test substitution.
var (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openAIBaseURL     = "https://api.openai.com/v1"

	defaultReferer = "https://atlas-phil.vercel.app"
	defaultTitle   = "Atlas.phil Research Suite"
)

// openAIPrefixes are model-name prefixes served natively by OpenAI.
var openAIPrefixes = []string{"gpt-", "chatgpt-", "o1", "o3", "o4"}

// IsOpenAIModel reports whether model follows OpenAI's naming convention.
// OpenRouter identifiers are namespaced ("vendor/model") and never match.
func IsOpenAIModel(model string) bool {
	if strings.Contains(model, "/") {
		return false
	}
	for _, p := range openAIPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// BaseURL returns the default chat-completion base URL for p.
func BaseURL(p types.Provider) (string, error) {
	switch p {
	case types.ProviderOpenRouter:
		return openRouterBaseURL, nil
	case types.ProviderOpenAI:
		return openAIBaseURL, nil
	}
	return "", fmt.Errorf("unknown provider %q", p)
}

// attributionHeaders returns the extra headers p requires.
func attributionHeaders(p types.Provider, cfg types.ModelConfig) map[string]string {
	if p != types.ProviderOpenRouter {
		return nil
	}
	referer, title := cfg.Referer, cfg.Title
	if referer == "" {
		referer = defaultReferer
	}
	if title == "" {
		title = defaultTitle
	}
	return map[string]string{
		"HTTP-Referer": referer,
		"X-Title":      title,
	}
}

// ResolveProvider picks the provider that serves model. A configured
// provider always wins; otherwise OpenAI-style names go to OpenAI when an
// OpenAI credential exists, and everything else goes to whichever provider
// has a credential, OpenRouter first.
func ResolveProvider(cfg types.ModelConfig, model string) (types.Provider, error) {
	creds := cfg.Credentials
	if cfg.Provider != "" {
		if _, err := BaseURL(cfg.Provider); err != nil {
			return "", err
		}
		if creds.For(cfg.Provider) == "" {
			return "", fmt.Errorf("provider %s: %w", cfg.Provider, ErrMissingCredential)
		}
		return cfg.Provider, nil
	}

	switch {
	case IsOpenAIModel(model) && creds.OpenAI != "":
		return types.ProviderOpenAI, nil
	case creds.OpenRouter != "":
		return types.ProviderOpenRouter, nil
	case creds.OpenAI != "":
		return types.ProviderOpenAI, nil
	}
	return "", ErrMissingCredential
}
