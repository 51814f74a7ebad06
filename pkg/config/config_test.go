package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://api.github.com", cfg.Forge.BaseURL)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.True(t, cfg.Automerge.AllowPatch)
	assert.True(t, cfg.Automerge.AllowMinor)
	assert.False(t, cfg.Automerge.AllowMajor, "major bumps must never auto-merge by default")
	assert.Equal(t, 5, cfg.Limits.MaxActionsPerTick)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no repositories",
			mutate:  func(_ *Config) {},
			wantErr: "at least one repository",
		},
		{
			name: "bad repo format",
			mutate: func(c *Config) {
				c.Repositories = []string{"not-a-repo"}
			},
			wantErr: "owner/repo form",
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Repositories = []string{"octo/widgets"}
				c.LLM.Provider = "psychic"
			},
			wantErr: "unknown llm provider",
		},
		{
			name: "inverted thresholds",
			mutate: func(c *Config) {
				c.Repositories = []string{"octo/widgets"}
				c.Decision.NotifyThreshold = 90
			},
			wantErr: "notify_threshold",
		},
		{
			name: "valid",
			mutate: func(c *Config) {
				c.Repositories = []string{"octo/widgets"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
repositories: ["octo/widgets", "octo/gadgets"]
bot_username: fixit-bot
dry_run: true
llm:
  provider: ollama
decision:
  respond_threshold: 60
limits:
  max_actions_per_tick: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"octo/widgets", "octo/gadgets"}, cfg.Repositories)
	assert.Equal(t, "fixit-bot", cfg.BotUsername)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, DefaultOllamaModel, cfg.LLM.Model, "model defaults per provider")
	assert.Equal(t, 60, cfg.Decision.RespondThreshold)
	assert.Equal(t, 3, cfg.Limits.MaxActionsPerTick)
	// Untouched sections keep defaults.
	assert.Equal(t, 48, cfg.Limits.StalePRHours)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "repositories: [\"octo/widgets\"]\nbot_username: from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("CARETAKER_BOT_USERNAME", "from-env")
	t.Setenv("CARETAKER_DRY_RUN", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.BotUsername)
	assert.True(t, cfg.DryRun)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
