// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/atlas/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "openrouter-api-key", "  sk-or-v1-abc  \n")
				writeFile(t, dir, "openai-api-key", "sk-proj-xyz")
				return dir
			},
			want: map[string]string{
				"openrouter-api-key": "sk-or-v1-abc",
				"openai-api-key":     "sk-proj-xyz",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files, dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "openai-api-key", "valid-key")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				writeFile(t, dir, ".hidden-key", "secret")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{
				"openai-api-key": "valid-key",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}
	dir := t.TempDir()
	writeFile(t, dir, "openai-api-key", "value123")

	badPath := filepath.Join(dir, "openrouter-api-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "value123", got["openai-api-key"])
	assert.NotContains(t, got, "openrouter-api-key")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "# local keys\nOPENROUTER_KEY=sk-or-env\nexport OPENAI_API_KEY=\"sk-quoted\"\n")

	got, err := LoadEnvFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"OPENROUTER_KEY": "sk-or-env", "OPENAI_API_KEY": "sk-quoted"}, got)
	assert.Empty(t, os.Getenv("OPENROUTER_KEY"))

	got, err = LoadEnvFile(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolve_Precedence(t *testing.T) {
	for _, v := range []string{"OPENROUTER_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(v, "")
	}

	tests := []struct {
		name  string
		files map[string]string
		env   string
		vars  map[string]string
		want  types.Credentials
	}{
		{
			name:  "key files win",
			files: map[string]string{"openrouter-api-key": "from-file"},
			env:   "OPENROUTER_KEY=from-dotenv\n",
			vars:  map[string]string{"OPENROUTER_KEY": "from-env"},
			want:  types.Credentials{OpenRouter: "from-file"},
		},
		{
			name: "dotenv beats process environment",
			env:  "OPENAI_API_KEY=from-dotenv\n",
			vars: map[string]string{"OPENAI_API_KEY": "from-env", "OPENROUTER_API_KEY": "or-env"},
			want: types.Credentials{OpenAI: "from-dotenv", OpenRouter: "or-env"},
		},
		{
			name: "legacy OPENROUTER_KEY before OPENROUTER_API_KEY",
			vars: map[string]string{"OPENROUTER_KEY": "legacy", "OPENROUTER_API_KEY": "current"},
			want: types.Credentials{OpenRouter: "legacy"},
		},
		{
			name: "nothing configured",
			want: types.Credentials{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			keys := filepath.Join(dir, DefaultDir)
			require.NoError(t, os.Mkdir(keys, 0o755))
			for name, v := range tt.files {
				writeFile(t, keys, name, v)
			}
			if tt.env != "" {
				writeFile(t, dir, DefaultEnvFile, tt.env)
			}
			for k, v := range tt.vars {
				t.Setenv(k, v)
			}

			got, err := Resolve(keys, filepath.Join(dir, DefaultEnvFile))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_SkipsEmptySources(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENROUTER_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	got, err := Resolve("", "")
	require.NoError(t, err)
	assert.Equal(t, types.Credentials{OpenAI: "sk-env"}, got)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
