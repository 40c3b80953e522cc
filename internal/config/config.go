// Package config loads democoach configuration from file, environment and
// built-in defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/democoach/internal/model"
)

// EnvPrefix prefixes environment overrides, e.g. DEMOCOACH_SETTINGS_MODEL
const EnvPrefix = "DEMOCOACH"

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// DefaultPath returns $HOME/.democoach/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".democoach", "config.yaml"), nil
}

// Load reads configuration. An explicit path must exist; without one the
// default location is tried and defaults are used when it is missing.
// It returns the config and the file it was read from ("" for none).
func Load(path string) (*model.Config, string, error) {
	v := viper.New()
	setDefaults(v, model.DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("read config %s: %w", path, err)
		}
	} else if def, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(def); statErr == nil {
			v.SetConfigFile(def)
			if err := v.ReadInConfig(); err != nil {
				return nil, "", fmt.Errorf("read config %s: %w", def, err)
			}
		}
	}

	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", fmt.Errorf("decode config: %w", err)
	}

	applyEnvKeys(cfg)
	return cfg, v.ConfigFileUsed(), nil
}

// setDefaults registers every scalar setting so environment overrides apply
// even when the file omits a section
func setDefaults(v *viper.Viper, d *model.Config) {
	v.SetDefault("settings.model", d.Settings.Model)
	v.SetDefault("settings.participant_model", d.Settings.ParticipantModel)
	v.SetDefault("settings.quote_mode", d.Settings.QuoteMode)
	v.SetDefault("settings.max_book_chunks", d.Settings.MaxReferenceChunks)
	v.SetDefault("settings.summary_book_chunks", d.Settings.SummaryReferenceChunks)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.http_proxy", "")
	v.SetDefault("llm.https_proxy", "")
	v.SetDefault("llm.no_proxy", "")

	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", d.Embedding.BaseURL)

	v.SetDefault("vector_store.driver", d.VectorStore.Driver)
	v.SetDefault("vector_store.dsn", d.VectorStore.DSN)
	v.SetDefault("vector_store.dimension", d.VectorStore.Dimension)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.memory_ttl", d.Cache.MemoryTTL)
	v.SetDefault("cache.disk_ttl", d.Cache.DiskTTL)

	v.SetDefault("concurrency.workers", d.Concurrency.Workers)
	v.SetDefault("rate_limiting.requests_per_second", d.RateLimiting.RequestsPerSecond)
	v.SetDefault("rate_limiting.burst", d.RateLimiting.BurstSize)

	v.SetDefault("input.max_bytes", d.Input.MaxBytes)
	v.SetDefault("input.fetch_timeout", d.Input.FetchTimeout)
	v.SetDefault("input.user_agent", d.Input.UserAgent)

	v.SetDefault("output.results_dir", d.Output.ResultsDir)
	v.SetDefault("output.verbose", d.Output.Verbose)
}

// applyEnvKeys fills credentials from the providers' conventional variables
func applyEnvKeys(cfg *model.Config) {
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "", "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && strings.ToLower(cfg.LLM.Provider) == "ollama" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate checks the parts of the config a scoring run depends on
func Validate(cfg *model.Config) error {
	var errs []error

	if len(cfg.Frameworks) == 0 {
		errs = append(errs, errors.New("coaching_frameworks: at least one framework is required"))
	}
	for i, fw := range cfg.Frameworks {
		if strings.TrimSpace(fw.Name) == "" {
			errs = append(errs, fmt.Errorf("coaching_frameworks[%d]: name is required", i))
		}
		if len(fw.ScoringKeys) == 0 {
			errs = append(errs, fmt.Errorf("coaching_frameworks[%d]: scoring_framework_keys must not be empty", i))
		}
	}

	if len(cfg.Metrics) == 0 {
		errs = append(errs, errors.New("metrics: at least one metric is required"))
	}
	seen := make(map[string]bool, len(cfg.Metrics))
	for i, m := range cfg.Metrics {
		switch {
		case strings.TrimSpace(m.Name) == "":
			errs = append(errs, fmt.Errorf("metrics[%d]: name is required", i))
		case seen[m.Name]:
			errs = append(errs, fmt.Errorf("metrics[%d]: duplicate metric %q", i, m.Name))
		}
		seen[m.Name] = true
		if m.Weight < 0 {
			errs = append(errs, fmt.Errorf("metrics[%d]: weight must not be negative", i))
		}
	}

	switch cfg.Settings.QuoteMode {
	case "", model.QuoteModePost, model.QuoteModeNone:
	default:
		errs = append(errs, fmt.Errorf("settings.quote_mode: must be %q or %q", model.QuoteModePost, model.QuoteModeNone))
	}

	if cfg.Input.MaxBytes < 0 {
		errs = append(errs, errors.New("input.max_bytes: must not be negative"))
	}

	if cfg.Settings.MaxReferenceChunks < 0 || cfg.Settings.SummaryReferenceChunks < 0 {
		errs = append(errs, errors.New("settings: chunk counts must not be negative"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Marshal renders cfg as YAML with durations in their readable form.
// Credentials are never written.
func Marshal(cfg *model.Config) ([]byte, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	setPath(doc, cfg.LLM.Timeout.String(), "llm", "timeout")
	setPath(doc, cfg.Cache.MemoryTTL.String(), "cache", "memory_ttl")
	setPath(doc, cfg.Cache.DiskTTL.String(), "cache", "disk_ttl")
	setPath(doc, cfg.Input.FetchTimeout.String(), "input", "fetch_timeout")
	setPath(doc, cfg.Input.MaxBytes, "input", "max_bytes")

	return yaml.Marshal(doc)
}

func setPath(doc map[string]any, value any, section, key string) {
	if m, ok := doc[section].(map[string]any); ok {
		m[key] = value
	}
}

// Example returns defaults plus a sample framework and metrics, as written
// by "config init"
func Example() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Frameworks = []model.Framework{{
		Name:    "7 Habits",
		Context: "The 7 Habits of Highly Effective People applied to technical sales",
		ScoringKeys: []string{
			"Habit 1: Be Proactive",
			"Habit 2: Begin with the End in Mind",
			"Habit 5: Seek First to Understand, Then to Be Understood",
		},
	}}
	cfg.Metrics = []model.Metric{
		{Name: "clarity", Description: "Explains features and value in plain language", Weight: 0.4},
		{Name: "discovery", Description: "Asks questions and ties the demo to customer needs", Weight: 0.3},
		{Name: "structure", Description: "Follows a clear agenda from problem to next steps", Weight: 0.3},
	}
	cfg.Settings.ScoringGuide = &model.ScoringGuide{
		Scale: []string{
			"1: Not demonstrated",
			"2: Attempted but ineffective",
			"3: Adequate",
			"4: Strong",
			"5: Exemplary",
		},
		StrictnessNote: "Reserve 5 for behaviour you would use as a training example.",
	}
	return cfg
}
