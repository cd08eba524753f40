// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/atlas/internal/stage"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the stages of a pipeline variant",
	Long: `Stages prints the stages of the selected variant in execution order:
id, display name, target model (after config overrides), expected output
shape, and task description.`,
	RunE: runStages,
}

func init() {
	stagesCmd.Flags().String("variant", "", "pipeline variant: squad or atlas (default from config, squad)")
	stagesCmd.Flags().Bool("json", false, "output stages as JSON")

	rootCmd.AddCommand(stagesCmd)
}

func runStages(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(viper.GetViper())
	if v, _ := cmd.Flags().GetString("variant"); v != "" {
		cfg.Pipeline.Variant = v
	}
	stages, err := stage.ForVariant(cfg.Pipeline.Variant, cfg.Pipeline.Models)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatStages(cmd.OutOrStdout(), stages, jsonOutput)
}

func formatStages(w io.Writer, stages []stage.Stage, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stages)
	}

	fmt.Fprintf(w, "%-3s  %-14s  %-16s  %-28s  %-12s  %s\n",
		"#", "ID", "Name", "Model", "Shape", "Task")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for i, s := range stages {
		fmt.Fprintf(w, "%-3d  %-14s  %-16s  %-28s  %-12s  %s\n",
			i+1, s.ID, s.DisplayName, s.Model, s.Shape, s.Task)
	}
	return nil
}
