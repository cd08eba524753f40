// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/atlas/internal/dossier"
)

var dossierCmd = &cobra.Command{
	Use:   "dossier",
	Short: "Browse and export stored dossiers",
	Long: `Dossier manages the local SQLite store of analyzed documents. Every
analyze run is stored with its final record and all stage outputs.`,
}

// --- list subcommand ---

var dossierListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List stored dossiers, newest first",
	Long: `List shows stored dossiers, most recent first. With a query, only
dossiers whose title, author, description or source contain it are shown.`,
	RunE: runDossierList,
}

func runDossierList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	sums, err := store.Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSummaries(cmd.OutOrStdout(), sums, jsonOutput)
}

func formatSummaries(w io.Writer, sums []dossier.Summary, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sums)
	}

	if len(sums) == 0 {
		fmt.Fprintln(w, "No dossiers found.")
		return nil
	}

	fmt.Fprintf(w, "%-8s  %-10s  %-7s  %-40s  %-24s  %s\n",
		"ID", "Status", "Variant", "Title", "Author", "Year")
	fmt.Fprintln(w, strings.Repeat("-", 104))
	for _, s := range sums {
		fmt.Fprintf(w, "%-8s  %-10s  %-7s  %-40s  %-24s  %s\n",
			shortID(s.ID), s.Status, s.Variant, truncate(s.Title, 40), truncate(s.Author, 24), s.Year)
	}
	fmt.Fprintf(w, "\n%d dossiers\n", len(sums))
	return nil
}

// --- show subcommand ---

var dossierShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one dossier",
	Long: `Show prints the final record of a dossier. The id may be any unique
prefix of the run id. Use --stages to include the raw output of every stage.`,
	Args: cobra.ExactArgs(1),
	RunE: runDossierShow,
}

func runDossierShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(d)
	case "text", "":
	default:
		return fmt.Errorf("unsupported format %q: use text, yaml or json", format)
	}

	fmt.Fprintf(w, "== %s  [%s, %s, run %s, %s]\n", d.Source, d.Variant, d.Status, shortID(d.ID), d.CreatedAt.Format("2006-01-02 15:04"))
	if d.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", d.Error)
	}
	if d.Record != nil {
		printRecord(w, d.Record)
	}
	if withStages, _ := cmd.Flags().GetBool("stages"); withStages {
		for _, s := range d.Stages {
			fmt.Fprintf(w, "\n--- %s (%s, %s)\n", s.StageID, s.State, s.Duration().Round(100*time.Millisecond))
			if s.Error != "" {
				fmt.Fprintf(w, "error: %s\n", s.Error)
			}
			if s.RawText != "" {
				fmt.Fprintln(w, s.RawText)
			}
		}
	}
	return nil
}

// --- export subcommand ---

var dossierExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all dossiers to YAML or JSON",
	Long: `Export writes every stored dossier, with records and stage outputs,
to export.yaml or export.json in the dossier directory.`,
	RunE: runDossierExport,
}

func runDossierExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(cmd.Context())
	case "json":
		path, err = store.ExportJSON(cmd.Context())
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}

// --- shared helpers ---

func openStore() (*dossier.Store, error) {
	cfg := loadConfig(viper.GetViper())
	return dossier.Open(cfg.Dossier)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	dossierListCmd.Flags().Int("limit", dossier.DefaultLimit, "maximum number of dossiers")
	dossierListCmd.Flags().Bool("json", false, "output dossiers as JSON")

	dossierShowCmd.Flags().String("format", "text", "output format: text, yaml or json")
	dossierShowCmd.Flags().Bool("stages", false, "include raw stage outputs")

	dossierExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	dossierCmd.AddCommand(dossierListCmd)
	dossierCmd.AddCommand(dossierShowCmd)
	dossierCmd.AddCommand(dossierExportCmd)

	rootCmd.AddCommand(dossierCmd)
}
