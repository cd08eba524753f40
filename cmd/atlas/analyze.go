// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/atlas/internal/dossier"
	"github.com/pdiddy/atlas/internal/ingest"
	"github.com/pdiddy/atlas/internal/model"
	"github.com/pdiddy/atlas/internal/pipeline"
	"github.com/pdiddy/atlas/internal/progress"
	"github.com/pdiddy/atlas/internal/stage"
	"github.com/pdiddy/atlas/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [files...]",
	Short: "Analyze PDF, text or Markdown documents",
	Long: `Analyze extracts the text of each document and runs it through the
stages of the selected variant. Stage progress is printed to stderr as it
happens. Completed and failed runs are saved to the dossier store unless
--no-save is given.

Variants:
  squad  structure, definitions, quotes, connections, then a model synthesis
  atlas  mindmap diagram, concept relations, reading notes, connections,
         merged without a synthesis call`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("variant", "", "pipeline variant: squad or atlas (default from config, squad)")
	analyzeCmd.Flags().String("title", "", "document title (overrides the model's guess)")
	analyzeCmd.Flags().String("author", "", "document author (overrides the model's guess)")
	analyzeCmd.Flags().String("year", "", "publication year (overrides the model's guess)")
	analyzeCmd.Flags().Int("concurrency", 0, "documents analyzed at once (default from config, 1)")
	analyzeCmd.Flags().Bool("no-save", false, "do not store the results in the dossier store")
	analyzeCmd.Flags().Bool("json", false, "print the runs as JSON")
	analyzeCmd.Flags().Bool("quiet", false, "do not print stage progress")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more documents (.pdf, .txt, .md)")
	}
	title, _ := cmd.Flags().GetString("title")
	author, _ := cmd.Flags().GetString("author")
	year, _ := cmd.Flags().GetString("year")
	if len(args) > 1 && (title != "" || author != "" || year != "") {
		return fmt.Errorf("--title, --author and --year apply to a single document")
	}

	cfg := loadConfig(viper.GetViper())
	if v, _ := cmd.Flags().GetString("variant"); v != "" {
		cfg.Pipeline.Variant = v
	}
	if c, _ := cmd.Flags().GetInt("concurrency"); c > 0 {
		cfg.Pipeline.Concurrency = c
	}
	noSave, _ := cmd.Flags().GetBool("no-save")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	stages, err := stage.ForVariant(cfg.Pipeline.Variant, cfg.Pipeline.Models)
	if err != nil {
		return err
	}
	mc, err := modelConfig(cmd, cfg)
	if err != nil {
		return err
	}
	client, err := model.NewOpenAICompat(mc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	board := progress.NewBoard()
	var reporter progress.Reporter = board
	rendered := make(chan struct{})
	ch := progress.NewChannel(0)
	if quiet {
		close(rendered)
	} else {
		reporter = progress.Multi{ch, board}
		go func() {
			defer close(rendered)
			progress.Render(cmd.ErrOrStderr(), ch.Subscribe())
		}()
	}
	finishProgress := func() {
		ch.Close()
		<-rendered
	}

	loader, err := ingest.NewConfiguredLoader(ctx, cfg.Ingest)
	if err != nil {
		finishProgress()
		return err
	}
	docs := make([]types.Document, 0, len(args))
	for _, path := range args {
		doc, err := loader.Load(ctx, path, reporter)
		if err != nil {
			finishProgress()
			return err
		}
		doc.Title, doc.Author, doc.Year = title, author, year
		docs = append(docs, doc)
	}

	orch, err := pipeline.New(client, stages,
		pipeline.WithReporter(reporter),
		pipeline.WithLogger(logger),
		pipeline.WithStageTimeout(cfg.Pipeline.StageTimeout),
		pipeline.WithVariant(cfg.Pipeline.Variant),
	)
	if err != nil {
		finishProgress()
		return err
	}

	runs, runErr := orch.AnalyzeBatch(ctx, docs, cfg.Pipeline.Concurrency)
	finishProgress()

	if !noSave {
		if err := saveRuns(ctx, cfg.Dossier, runs); err != nil {
			return errors.Join(runErr, err)
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := writeRunsJSON(out, runs); err != nil {
			return err
		}
	} else {
		for _, run := range runs {
			if run == nil {
				continue
			}
			var snap *progress.Snapshot
			if s, ok := board.Snapshot(run.ID); ok {
				snap = &s
			}
			printRun(out, run, snap)
		}
	}
	return runErr
}

func saveRuns(ctx context.Context, cfg types.DossierConfig, runs []*types.PipelineRun) error {
	store, err := dossier.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Runs are saved even after an interrupt.
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for _, run := range runs {
		if run == nil || (run.Status != types.RunCompleted && run.Status != types.RunFailed) {
			continue
		}
		if err := store.Save(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeRunsJSON(w io.Writer, runs []*types.PipelineRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(runs)
}
