package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Topic describes one classification target. Keywords gate the cheap
// prefilter; Description drives the oracle classification prompt.
// UserInterest, when set, enables relevance scoring for confirmed articles.
type Topic struct {
	Name         string   `yaml:"name"`
	Keywords     []string `yaml:"keywords"`
	Description  string   `yaml:"description"`
	UserInterest string   `yaml:"user_interest,omitempty"`
}

type AIConfig struct {
	Provider string `yaml:"provider"` // "claude", "openai" or "local"
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url,omitempty"` // local provider endpoint
}

// Summary fallback policies applied when oracle summarization fails.
const (
	FallbackPlaceholder = "placeholder"
	FallbackOriginal    = "original"
)

type Config struct {
	Feeds             []string  `yaml:"feeds"`
	Topics            []Topic   `yaml:"topics"`
	MaxProcessingTime int       `yaml:"max_processing_time,omitempty"` // seconds, 0 = unlimited
	SummaryFallback   string    `yaml:"summary_fallback,omitempty"`
	Retention         string    `yaml:"retention,omitempty"`
	OutputDir         string    `yaml:"output_dir,omitempty"`
	AI                *AIConfig `yaml:"ai,omitempty"`
}

// AIKey returns the resolved API key (config or env var).
func (c *Config) AIKey() string {
	if c.AI != nil && c.AI.APIKey != "" {
		return c.AI.APIKey
	}
	return os.Getenv("NEWSFEEDER_AI_KEY")
}

// ProcessingBudget returns the wall-clock ceiling for one batch run.
// Zero means unlimited.
func (c *Config) ProcessingBudget() time.Duration {
	if c.MaxProcessingTime <= 0 {
		return 0
	}
	return time.Duration(c.MaxProcessingTime) * time.Second
}

// FallbackPolicy returns the configured summary fallback, defaulting to
// the placeholder marker.
func (c *Config) FallbackPolicy() string {
	if c.SummaryFallback == "" {
		return FallbackPlaceholder
	}
	return c.SummaryFallback
}

func (c *Config) RetentionDuration() time.Duration {
	if c.Retention == "" {
		return 30 * 24 * time.Hour
	}
	// Support "Nd" day syntax
	if len(c.Retention) > 1 && c.Retention[len(c.Retention)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(c.Retention, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(c.Retention)
	if err != nil {
		return 30 * 24 * time.Hour
	}
	return d
}

// ResolveOutputDir returns the directory topic files are written to.
func (c *Config) ResolveOutputDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return filepath.Join(xdg.DataHome, "newsfeeder", "topics")
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "newsfeeder", "config.yaml")
}

func CachePath() string {
	return filepath.Join(xdg.CacheHome, "newsfeeder", "processing_cache.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			defaults, derr := loadDefaults()
			if derr != nil {
				return nil, derr
			}
			// Write defaults to config path on first run; non-fatal if it fails.
			_ = writeDefaults(path)
			if err := validate(defaults); err != nil {
				return nil, err
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

// validate enforces the startup contract: a broken topic or feed definition
// cannot be worked around per-article, so it stops the run before any
// processing begins.
func validate(cfg *Config) error {
	if len(cfg.Feeds) == 0 {
		return fmt.Errorf("at least one feed is required")
	}
	for _, f := range cfg.Feeds {
		u, err := url.Parse(f)
		if err != nil {
			return fmt.Errorf("feed %q: invalid url: %w", f, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("feed %q: url scheme must be http or https, got %q", f, u.Scheme)
		}
	}

	if len(cfg.Topics) == 0 {
		return fmt.Errorf("at least one topic is required")
	}
	seen := map[string]bool{}
	for i, t := range cfg.Topics {
		if t.Name == "" {
			return fmt.Errorf("topic %d: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("topic %q: duplicate name", t.Name)
		}
		seen[t.Name] = true
		if len(t.Keywords) == 0 {
			return fmt.Errorf("topic %q: at least one keyword is required", t.Name)
		}
		if t.Description == "" {
			return fmt.Errorf("topic %q: description is required", t.Name)
		}
	}

	switch cfg.FallbackPolicy() {
	case FallbackPlaceholder, FallbackOriginal:
	default:
		return fmt.Errorf("unknown summary_fallback %q (valid: %s, %s)",
			cfg.SummaryFallback, FallbackPlaceholder, FallbackOriginal)
	}

	if cfg.AI != nil {
		switch cfg.AI.Provider {
		case "claude", "openai", "local":
		default:
			return fmt.Errorf("unknown AI provider %q (valid: claude, openai, local)", cfg.AI.Provider)
		}
	}

	return nil
}
