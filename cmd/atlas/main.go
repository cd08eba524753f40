// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the atlas CLI: multi-stage LLM
// analysis of philosophy texts, a local dossier store, and a research chat.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the atlas CLI.
var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Multi-agent analysis of philosophy texts",
	Long: `atlas extracts the text of a book or article and runs it through a
fixed sequence of LLM stages (structure, concepts, quotes, connections,
synthesis), producing one dossier per document.

Dossiers are stored in a local SQLite database and can be listed, shown,
exported, and used as context by the research chat.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./atlas.yaml or ~/.config/atlas/atlas.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of API key files (openrouter-api-key, openai-api-key)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file with OPENROUTER_KEY or OPENAI_API_KEY")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("atlas")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "atlas"))
		}
	}

	viper.SetEnvPrefix("ATLAS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "warning: reading config %s: %v\n", cfgFile, err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", explain(err))
		os.Exit(1)
	}
}
