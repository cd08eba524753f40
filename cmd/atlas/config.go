// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/atlas/internal/chat"
	"github.com/pdiddy/atlas/internal/ingest"
	"github.com/pdiddy/atlas/internal/logging"
	"github.com/pdiddy/atlas/internal/pipeline"
	"github.com/pdiddy/atlas/internal/secrets"
	"github.com/pdiddy/atlas/internal/stage"
	"github.com/pdiddy/atlas/pkg/types"
)

const (
	defaultUserAgent = "atlas/0.1"
	defaultReferer   = "https://atlas-phil.vercel.app"
	defaultTitle     = "Atlas.phil Research Suite"
)

// setDefaults registers the default value of every configuration key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model.provider", "")
	v.SetDefault("model.endpoint", "")
	v.SetDefault("model.temperature", 0.4)
	v.SetDefault("model.context_budget", 0)
	v.SetDefault("model.referer", defaultReferer)
	v.SetDefault("model.title", defaultTitle)
	v.SetDefault("http.timeout", time.Duration(0))
	v.SetDefault("http.user_agent", defaultUserAgent)

	v.SetDefault("pipeline.variant", stage.VariantSquad)
	v.SetDefault("pipeline.stage_timeout", pipeline.DefaultStageTimeout)
	v.SetDefault("pipeline.concurrency", 1)

	v.SetDefault("ingest.progress_every", ingest.DefaultProgressEvery)
	v.SetDefault("ingest.pdf_backend", ingest.BackendNative)
	v.SetDefault("ingest.runtime", "")
	v.SetDefault("ingest.image", "")

	v.SetDefault("dossier.dir", "dossiers")

	v.SetDefault("chat.model", chat.DefaultModel)
	v.SetDefault("chat.bibliography", "")
	v.SetDefault("chat.max_entries", chat.DefaultMaxEntries)

	v.SetDefault("log.level", "")
	v.SetDefault("log.format", "text")
}

// loadConfig reads every component configuration from v. Credentials are
// resolved separately.
func loadConfig(v *viper.Viper) types.Config {
	temperature := v.GetFloat64("model.temperature")
	return types.Config{
		Model: types.ModelConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration("http.timeout"),
				UserAgent: v.GetString("http.user_agent"),
			},
			Provider:      types.Provider(v.GetString("model.provider")),
			Endpoint:      v.GetString("model.endpoint"),
			Temperature:   &temperature,
			ContextBudget: v.GetInt("model.context_budget"),
			Referer:       v.GetString("model.referer"),
			Title:         v.GetString("model.title"),
		},
		Pipeline: types.PipelineConfig{
			Variant:      v.GetString("pipeline.variant"),
			StageTimeout: v.GetDuration("pipeline.stage_timeout"),
			Concurrency:  v.GetInt("pipeline.concurrency"),
			Models:       v.GetStringMapString("pipeline.models"),
		},
		Ingest: types.IngestConfig{
			ProgressEvery: v.GetInt("ingest.progress_every"),
			PDFBackend:    v.GetString("ingest.pdf_backend"),
			Runtime:       v.GetString("ingest.runtime"),
			Image:         v.GetString("ingest.image"),
		},
		Dossier: types.DossierConfig{
			Dir: v.GetString("dossier.dir"),
		},
		Chat: types.ChatConfig{
			Model:        v.GetString("chat.model"),
			Bibliography: v.GetString("chat.bibliography"),
			MaxEntries:   v.GetInt("chat.max_entries"),
		},
		Log: types.LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
}

// modelConfig returns cfg.Model with credentials resolved from the
// --secrets-dir and --env-file sources and the environment.
func modelConfig(cmd *cobra.Command, cfg types.Config) (types.ModelConfig, error) {
	dir, _ := cmd.Flags().GetString("secrets-dir")
	envFile, _ := cmd.Flags().GetString("env-file")
	creds, err := secrets.Resolve(dir, envFile)
	if err != nil {
		return types.ModelConfig{}, fmt.Errorf("resolving credentials: %w", err)
	}
	mc := cfg.Model
	mc.Credentials = creds
	return mc, nil
}

// newLogger builds the process logger; it writes to the command's stderr.
func newLogger(cmd *cobra.Command, cfg types.Config) (*slog.Logger, error) {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
}
