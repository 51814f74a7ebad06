// Package config provides configuration loading, validation, and secret
// management for the caretaker agent.
package config

import (
	"fmt"
	"strings"
)

// LLM provider identifiers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

// Default models per provider.
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-5"
	DefaultGeminiModel    = "gemini-2.5-pro"
	DefaultOllamaModel    = "qwen3:8b"
	DefaultOllamaHost     = "http://localhost:11434"
)

// Secret names resolved through the secrets store or environment.
const (
	SecretForgeToken      = "FORGE_TOKEN"
	SecretAnthropicAPIKey = "ANTHROPIC_API_KEY"
	SecretOpenAIAPIKey    = "OPENAI_API_KEY"
	SecretGeminiAPIKey    = "GEMINI_API_KEY"
)

// ForgeConfig configures the forge API client.
type ForgeConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LLMConfig selects the language-model provider and model.
type LLMConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	OllamaHost string `yaml:"ollama_host"`
}

// DecisionConfig holds the heuristic scoring parameters.
type DecisionConfig struct {
	RespondThreshold int      `yaml:"respond_threshold"`
	NotifyThreshold  int      `yaml:"notify_threshold"`
	RespondLabels    []string `yaml:"respond_labels"`
	InterestKeywords []string `yaml:"interest_keywords"`
	PriorityRepos    []string `yaml:"priority_repos"`
	MaxEventAgeHours int      `yaml:"max_event_age_hours"`
}

// AutomergeConfig gates the dependency-upgrade merge path.
type AutomergeConfig struct {
	RequireCIPass bool `yaml:"require_ci_pass"`
	AllowPatch    bool `yaml:"allow_patch"`
	AllowMinor    bool `yaml:"allow_minor"`
	AllowMajor    bool `yaml:"allow_major"`
}

// LimitsConfig bounds per-tick work and classification thresholds.
type LimitsConfig struct {
	MaxActionsPerTick    int `yaml:"max_actions_per_tick"`
	TickIntervalSeconds  int `yaml:"tick_interval_seconds"`
	StalePRHours         int `yaml:"stale_pr_hours"`
	UnansweredIssueHours int `yaml:"unanswered_issue_hours"`
	MaxIssueAgeHours     int `yaml:"max_issue_age_hours"`
}

// CodeContextConfig configures the two-phase source-context cache.
type CodeContextConfig struct {
	TreeRefreshIntervalMinutes int      `yaml:"tree_refresh_interval_minutes"`
	IncludePatterns            []string `yaml:"include_patterns"`
	ExcludePatterns            []string `yaml:"exclude_patterns"`
	MaxFiles                   int      `yaml:"max_files"`
	MaxContextChars            int      `yaml:"max_context_chars"`
	MaxFileBytes               int      `yaml:"max_file_bytes"`
}

// Config is the top-level caretaker configuration.
type Config struct {
	Repositories []string          `yaml:"repositories"`
	BotUsername  string            `yaml:"bot_username" env:"CARETAKER_BOT_USERNAME"`
	DryRun       bool              `yaml:"dry_run" env:"CARETAKER_DRY_RUN"`
	Forge        ForgeConfig       `yaml:"forge"`
	LLM          LLMConfig         `yaml:"llm"`
	Decision     DecisionConfig    `yaml:"decision"`
	Automerge    AutomergeConfig   `yaml:"automerge"`
	Limits       LimitsConfig      `yaml:"limits"`
	CodeContext  CodeContextConfig `yaml:"codectx"`
	OwnerInbox   string            `yaml:"owner_inbox" env:"CARETAKER_OWNER_INBOX"`
	StatusAddr   string            `yaml:"status_addr" env:"CARETAKER_STATUS_ADDR"`
}

// DefaultConfig returns a configuration with conservative defaults.
// A loaded file overrides these field by field.
func DefaultConfig() *Config {
	return &Config{
		BotUsername: "caretaker-bot",
		DryRun:      false,
		Forge: ForgeConfig{
			BaseURL:        "https://api.github.com",
			TimeoutSeconds: 30,
		},
		LLM: LLMConfig{
			Provider:   ProviderAnthropic,
			Model:      DefaultAnthropicModel,
			OllamaHost: DefaultOllamaHost,
		},
		Decision: DecisionConfig{
			RespondThreshold: 50,
			NotifyThreshold:  20,
			RespondLabels:    []string{"question", "help wanted", "bug"},
			MaxEventAgeHours: 72,
		},
		Automerge: AutomergeConfig{
			RequireCIPass: true,
			AllowPatch:    true,
			AllowMinor:    true,
			AllowMajor:    false,
		},
		Limits: LimitsConfig{
			MaxActionsPerTick:    5,
			TickIntervalSeconds:  300,
			StalePRHours:         48,
			UnansweredIssueHours: 24,
			MaxIssueAgeHours:     168,
		},
		CodeContext: CodeContextConfig{
			TreeRefreshIntervalMinutes: 60,
			IncludePatterns: []string{
				"*.go", "*.py", "*.js", "*.ts", "*.rs", "*.java", "*.rb",
				"*.md", "*.yaml", "*.yml", "*.json", "*.toml", "*.mod",
			},
			ExcludePatterns: []string{
				"*.lock", "*.sum", "*.min.js", "*.min.css", "*_pb2.py",
				"*.pb.go", "vendor/*", "node_modules/*", "dist/*", "build/*",
			},
			MaxFiles:        6,
			MaxContextChars: 48000,
			MaxFileBytes:    65536,
		},
		StatusAddr: ":8844",
	}
}

// Validate checks the configuration for errors that would make the agent
// misbehave rather than merely idle.
func (c *Config) Validate() error {
	if len(c.Repositories) == 0 {
		return fmt.Errorf("at least one repository must be configured")
	}
	for _, repo := range c.Repositories {
		if !strings.Contains(repo, "/") {
			return fmt.Errorf("repository %q must be in owner/repo form", repo)
		}
	}
	if c.BotUsername == "" {
		return fmt.Errorf("bot_username is required")
	}
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}
	if c.Decision.NotifyThreshold > c.Decision.RespondThreshold {
		return fmt.Errorf("notify_threshold (%d) must not exceed respond_threshold (%d)",
			c.Decision.NotifyThreshold, c.Decision.RespondThreshold)
	}
	if c.Limits.MaxActionsPerTick <= 0 {
		return fmt.Errorf("max_actions_per_tick must be positive")
	}
	if c.CodeContext.MaxFiles <= 0 || c.CodeContext.MaxContextChars <= 0 {
		return fmt.Errorf("codectx max_files and max_context_chars must be positive")
	}
	return nil
}

// DefaultModelForProvider returns the model to use when none is configured.
func DefaultModelForProvider(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderGemini:
		return DefaultGeminiModel
	case ProviderOllama:
		return DefaultOllamaModel
	default:
		return DefaultAnthropicModel
	}
}
