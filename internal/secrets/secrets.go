// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets resolves model provider credentials. Sources, highest
// precedence first: a directory of plain-text key files (filename is the key
// name, trimmed contents the value), a .env file, the process environment.
//
// Supported key files: openrouter-api-key, openai-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pdiddy/atlas/pkg/types"
)

const (
	// DefaultDir is the key file directory relative to the working directory.
	DefaultDir = ".secrets"

	// DefaultEnvFile is the dotenv file relative to the working directory.
	DefaultEnvFile = ".env"

	fileOpenRouter = "openrouter-api-key"
	fileOpenAI     = "openai-api-key"
)

// Environment variables checked per provider, in order.
var (
	openRouterVars = []string{"OPENROUTER_KEY", "OPENROUTER_API_KEY"}
	openAIVars     = []string{"OPENAI_API_KEY"}
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// LoadEnvFile reads KEY=VALUE pairs from path without touching the process
// environment. A missing file yields an empty map.
func LoadEnvFile(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return vars, nil
}

// Resolve returns the credentials found in dir, envFile and the process
// environment. Empty dir or envFile skips that source.
func Resolve(dir, envFile string) (types.Credentials, error) {
	files := map[string]string{}
	if dir != "" {
		var err error
		if files, err = Load(dir); err != nil {
			return types.Credentials{}, err
		}
	}
	dotenv := map[string]string{}
	if envFile != "" {
		var err error
		if dotenv, err = LoadEnvFile(envFile); err != nil {
			return types.Credentials{}, err
		}
	}

	return types.Credentials{
		OpenRouter: first(files[fileOpenRouter], fromVars(dotenv, openRouterVars), fromEnv(openRouterVars)),
		OpenAI:     first(files[fileOpenAI], fromVars(dotenv, openAIVars), fromEnv(openAIVars)),
	}, nil
}

func fromVars(vars map[string]string, names []string) string {
	for _, n := range names {
		if v := strings.TrimSpace(vars[n]); v != "" {
			return v
		}
	}
	return ""
}

func fromEnv(names []string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
