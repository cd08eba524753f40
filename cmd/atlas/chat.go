// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/atlas/internal/bibliography"
	"github.com/pdiddy/atlas/internal/chat"
	"github.com/pdiddy/atlas/internal/dossier"
	"github.com/pdiddy/atlas/internal/model"
	"github.com/pdiddy/atlas/pkg/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message...>",
	Short: "Ask the research assistant a question",
	Long: `Chat sends a question to the research assistant, an expert in French
philosophy who answers in academic Italian. Matching bibliography entries and
stored dossiers are attached as context.

Modes:
  research      answer the question (default)
  bibliography  recommend readings from the bibliography`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("mode", string(chat.ModeResearch), "assistant mode: research or bibliography")
	chatCmd.Flags().String("model", "", "chat model (default from config, deepseek/deepseek-v3.2)")
	chatCmd.Flags().String("system", "", "replace the mode's system prompt")
	chatCmd.Flags().Bool("json", false, "print the reply and its context as JSON")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(viper.GetViper())
	logger, err := newLogger(cmd, cfg)
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

	bib, err := loadBibliography(cfg.Chat)
	if err != nil {
		return err
	}
	opts := []chat.Option{
		chat.WithBibliography(bib),
		chat.WithModel(cfg.Chat.Model),
		chat.WithMaxEntries(cfg.Chat.MaxEntries),
		chat.WithLogger(logger),
	}

	// Dossiers are optional context; the store is not created just to chat.
	if _, err := os.Stat(filepath.Join(cfg.Dossier.Dir, "atlas.db")); err == nil {
		store, err := dossier.Open(cfg.Dossier)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, chat.WithDossiers(store))
	}

	mode, _ := cmd.Flags().GetString("mode")
	modelName, _ := cmd.Flags().GetString("model")
	system, _ := cmd.Flags().GetString("system")

	resp, err := chat.New(client, opts...).Ask(cmd.Context(), chat.Request{
		Message:        strings.Join(args, " "),
		Mode:           chat.Mode(mode),
		SystemOverride: system,
		Model:          modelName,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Fprintln(w, resp.Reply)
	return nil
}

func loadBibliography(cfg types.ChatConfig) (*bibliography.Bibliography, error) {
	if cfg.Bibliography == "" {
		return bibliography.Default()
	}
	return bibliography.Load(cfg.Bibliography)
}
