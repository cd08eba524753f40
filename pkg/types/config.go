// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout. Zero leaves timing to the
	// per-stage deadline.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests (e.g. "atlas/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// Provider names an upstream chat-completion provider.
type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderOpenAI     Provider = "openai"
)

// Credentials holds one API key per provider. Resolved once per process
// from .secrets/, .env, or the environment.
type Credentials struct {
	OpenRouter string `json:"-" yaml:"-"`
	OpenAI     string `json:"-" yaml:"-"`
}

// For returns the credential configured for p.
func (c Credentials) For(p Provider) string {
	switch p {
	case ProviderOpenRouter:
		return c.OpenRouter
	case ProviderOpenAI:
		return c.OpenAI
	}
	return ""
}

// ModelConfig configures the Model Client.
type ModelConfig struct {
	HTTPConfig `yaml:",inline"`

	// Provider forces a provider. Empty selects by model prefix and by
	// which credential is configured.
	Provider Provider `json:"provider,omitempty" yaml:"provider,omitempty"`

	// Endpoint overrides the provider base URL (e.g. a local gateway).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Credentials are never serialized.
	Credentials Credentials `json:"-" yaml:"-"`

	// Temperature is the sampling temperature. Nil uses 0.4; zero is kept.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// ContextBudget caps the document text sent per call, in characters.
	// Zero sends the full text and lets the provider reject oversized payloads.
	ContextBudget int `json:"context_budget" yaml:"context_budget"`

	// Referer and Title are the attribution headers OpenRouter expects.
	Referer string `json:"referer,omitempty" yaml:"referer,omitempty"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
}

// PipelineConfig configures the analysis pipeline.
type PipelineConfig struct {
	// Variant selects the stage set: "squad" or "atlas".
	Variant string `json:"variant" yaml:"variant"`

	// StageTimeout bounds each model call (default 5m). Zero disables the bound.
	StageTimeout time.Duration `json:"stage_timeout" yaml:"stage_timeout"`

	// Concurrency is the number of documents analyzed at once in batch mode (default 1).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Models overrides the target model per stage ID.
	Models map[string]string `json:"models,omitempty" yaml:"models,omitempty"`
}

// IngestConfig configures document text extraction.
type IngestConfig struct {
	// ProgressEvery emits a page progress event every N pages (default 5).
	ProgressEvery int `json:"progress_every" yaml:"progress_every"`

	// PDFBackend selects the PDF extractor: "native" (default) or
	// "container", which pipes the file through Image.
	PDFBackend string `json:"pdf_backend" yaml:"pdf_backend"`

	// Runtime forces "docker" or "podman"; empty detects one.
	Runtime string `json:"runtime,omitempty" yaml:"runtime,omitempty"`

	// Image is a container image that reads a PDF on stdin and writes its
	// text to stdout (e.g. a pdftotext wrapper).
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
}

// DossierConfig configures the dossier store.
type DossierConfig struct {
	// Dir holds atlas.db and the export files (default "dossiers").
	Dir string `json:"dir" yaml:"dir"`
}

// ChatConfig configures the chat assistant.
type ChatConfig struct {
	// Model is the chat model identifier (default "deepseek/deepseek-v3.2").
	Model string `json:"model" yaml:"model"`

	// Bibliography is the path of the static bibliography dataset.
	Bibliography string `json:"bibliography" yaml:"bibliography"`

	// MaxEntries caps the bibliography entries included as context (default 40).
	MaxEntries int `json:"max_entries" yaml:"max_entries"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Config groups all component configurations.
type Config struct {
	Model    ModelConfig    `json:"model" yaml:"model"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Ingest   IngestConfig   `json:"ingest" yaml:"ingest"`
	Dossier  DossierConfig  `json:"dossier" yaml:"dossier"`
	Chat     ChatConfig     `json:"chat" yaml:"chat"`
	Log      LogConfig      `json:"log" yaml:"log"`
}
