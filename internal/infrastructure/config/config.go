package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/eschatch/internal/safety"
	"github.com/GriffinCanCode/eschatch/internal/shared/paths"
	"github.com/GriffinCanCode/eschatch/internal/transcript"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	envPrefix = "eschatch"
)

var ErrConfigExists = errors.New("config file already exists")

// Config holds all application configuration.
type Config struct {
	General GeneralConfig `toml:"general" yaml:"general"`
	Context ContextConfig `toml:"context" yaml:"context"`
	LLM     LLMConfig     `toml:"llm" yaml:"llm"`
	Prompt  PromptConfig  `toml:"prompt" yaml:"prompt"`
	Safety  SafetyConfig  `toml:"safety" yaml:"safety"`
	Logging LogConfig     `toml:"logging" yaml:"logging"`
}

// GeneralConfig holds session-level settings.
type GeneralConfig struct {
	EscapeKey    string `toml:"escape_key" yaml:"escape_key"`
	SessionDir   string `toml:"session_dir" yaml:"session_dir"`
	CompressLogs bool   `toml:"compress_logs" yaml:"compress_logs"`
}

// ContextConfig bounds the transcript handed to the model.
type ContextConfig struct {
	MaxBytes      int  `toml:"max_bytes" yaml:"max_bytes"`
	SlidingWindow bool `toml:"sliding_window" yaml:"sliding_window"`
}

// LLMConfig holds generation backend settings.
type LLMConfig struct {
	Provider          string  `toml:"provider" yaml:"provider"`
	Model             string  `toml:"model" yaml:"model"`
	BaseURL           string  `toml:"base_url" yaml:"base_url"`
	APIKey            string  `toml:"api_key" yaml:"api_key"`
	Temperature       float64 `toml:"temperature" yaml:"temperature"`
	MaxTokens         int     `toml:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds    int     `toml:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries        int     `toml:"max_retries" yaml:"max_retries"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second"`
}

// Timeout converts TimeoutSeconds; zero means no deadline.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PromptConfig holds system instructions.
type PromptConfig struct {
	System string `toml:"system" yaml:"system"`
	Chat   string `toml:"chat" yaml:"chat"`
}

// SafetyConfig holds injection screening settings.
type SafetyConfig struct {
	ConfirmDestructive  bool     `toml:"confirm_destructive" yaml:"confirm_destructive"`
	PreviewMode         bool     `toml:"preview_mode" yaml:"preview_mode"`
	DestructivePatterns []string `toml:"destructive_patterns" yaml:"destructive_patterns"`
}

// LogConfig holds logging configuration. An empty File logs to
// eschatch.log under the session directory.
type LogConfig struct {
	Level       string `toml:"level" yaml:"level"`
	Development bool   `toml:"development" yaml:"development"`
	File        string `toml:"file" yaml:"file"`
}

// envOverrides are read with the ESCHATCH_ prefix.
type envOverrides struct {
	Provider  string
	Model     string
	BaseURL   string `split_words:"true"`
	APIKey    string `split_words:"true"`
	EscapeKey string `split_words:"true"`
	LogLevel  string `split_words:"true"`
}

// vendorKeys are the provider SDK conventions, read without a prefix.
type vendorKeys struct {
	OpenAI    string `envconfig:"OPENAI_API_KEY"`
	Anthropic string `envconfig:"ANTHROPIC_API_KEY"`
}

const defaultSystemPrompt = "You are a terminal command generator. Given the recent terminal " +
	"session and a task, reply with exactly one shell command on a single line that " +
	"accomplishes the task. Do not add explanations, markdown or code fences."

const defaultChatPrompt = "You are a terminal assistant in an ongoing conversation with the " +
	"operator. Use the conversation so far and the recent terminal session to decide the " +
	"next step. Reply with exactly one shell command on a single line, without " +
	"explanations, markdown or code fences."

// Default returns default configuration.
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			EscapeKey:  "ctrl+x",
			SessionDir: paths.DefaultSessionRoot,
		},
		Context: ContextConfig{
			MaxBytes:      transcript.DefaultMaxBytes,
			SlidingWindow: true,
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   512,
			MaxRetries:  2,
		},
		Prompt: PromptConfig{
			System: defaultSystemPrompt,
			Chat:   defaultChatPrompt,
		},
		Safety: SafetyConfig{
			ConfirmDestructive:  true,
			DestructivePatterns: append([]string(nil), safety.DefaultPatterns...),
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath is ~/.config/eschatch/config.toml, honoring XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	return paths.DefaultConfigFile()
}

// Load layers the file at path and the environment over Default. An empty
// path selects DefaultPath, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// no file: defaults and environment only
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration or returns default on any error.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = Default()
		_ = cfg.normalize()
	}
	return cfg
}

func decode(path string, data []byte, cfg *Config) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	var keys vendorKeys
	if err := envconfig.Process("", &keys); err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.LLM.Provider, env.Provider)
	set(&c.LLM.Model, env.Model)
	set(&c.LLM.BaseURL, env.BaseURL)
	set(&c.LLM.APIKey, env.APIKey)
	set(&c.General.EscapeKey, env.EscapeKey)
	set(&c.Logging.Level, env.LogLevel)

	if c.LLM.APIKey == "" {
		switch strings.ToLower(c.LLM.Provider) {
		case ProviderAnthropic:
			c.LLM.APIKey = keys.Anthropic
		default:
			c.LLM.APIKey = keys.OpenAI
		}
	}
	return nil
}

func (c *Config) normalize() error {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	dir, err := ExpandHome(c.General.SessionDir)
	if err != nil {
		return err
	}
	c.General.SessionDir = dir
	if c.Logging.File != "" {
		if c.Logging.File, err = ExpandHome(c.Logging.File); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the session cannot start with.
func (c *Config) Validate() error {
	if _, err := ParseEscapeKey(c.General.EscapeKey); err != nil {
		return err
	}
	if c.Context.MaxBytes <= 0 {
		return fmt.Errorf("context.max_bytes must be positive, got %d", c.Context.MaxBytes)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.TimeoutSeconds < 0 || c.LLM.MaxRetries < 0 || c.LLM.RequestsPerSecond < 0 {
		return errors.New("llm timeout, retries and rate must not be negative")
	}
	if _, err := safety.NewGate(c.Safety.ConfirmDestructive, c.Safety.DestructivePatterns); err != nil {
		return err
	}
	return nil
}

// LogFile resolves the log destination.
func (c *Config) LogFile() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.General.SessionDir, paths.LogFile)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// InstallDefault writes the default configuration as TOML to path, or to
// DefaultPath when path is empty, and returns the path written. An existing
// file is never overwritten.
func InstallDefault(path string) (string, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	data, err := toml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encode default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
