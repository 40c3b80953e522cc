package model

import "time"

// Quote modes
const (
	QuoteModePost = "post" // Ask for best/worst quotes per metric
	QuoteModeNone = "none" // Score and explanation only
)

// Metric is a weighted evaluation dimension
type Metric struct {
	Name        string  `json:"name" yaml:"name" mapstructure:"name"`
	Description string  `json:"description" yaml:"description" mapstructure:"description"`
	Weight      float64 `json:"weight" yaml:"weight" mapstructure:"weight"`
}

// Framework is a coaching methodology with its scoring keys.
// Its name doubles as the vector collection holding its reference passages.
type Framework struct {
	Name        string   `json:"name" yaml:"name" mapstructure:"name"`
	Context     string   `json:"context" yaml:"context" mapstructure:"context"`
	ScoringKeys []string `json:"scoring_framework_keys" yaml:"scoring_framework_keys" mapstructure:"scoring_framework_keys"`
}

// ScoringGuide describes the 1-5 scale to the model
type ScoringGuide struct {
	Scale          []string `json:"scale" yaml:"scale" mapstructure:"scale"`
	StrictnessNote string   `json:"strictness_note,omitempty" yaml:"strictness_note,omitempty" mapstructure:"strictness_note"`
}

// Settings controls a scoring run
type Settings struct {
	Model                  string        `json:"model" yaml:"model" mapstructure:"model"`
	ParticipantModel       string        `json:"participant_model" yaml:"participant_model" mapstructure:"participant_model"`
	QuoteMode              string        `json:"quote_mode" yaml:"quote_mode" mapstructure:"quote_mode"`
	ScoringGuide           *ScoringGuide `json:"scoring_guide,omitempty" yaml:"scoring_guide,omitempty" mapstructure:"scoring_guide"`
	MaxReferenceChunks     int           `json:"max_book_chunks" yaml:"max_book_chunks" mapstructure:"max_book_chunks"`
	SummaryReferenceChunks int           `json:"summary_book_chunks" yaml:"summary_book_chunks" mapstructure:"summary_book_chunks"`
}

// LLMConfig selects and configures the text-generation provider
type LLMConfig struct {
	Provider   string        `json:"provider" yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	APIKey     string        `json:"-" yaml:"-" mapstructure:"api_key"`
	BaseURL    string        `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"` // Per call
	MaxTokens  int           `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	HTTPProxy  string        `json:"http_proxy,omitempty" yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `json:"https_proxy,omitempty" yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string        `json:"no_proxy,omitempty" yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// EmbeddingConfig configures the query embedder
type EmbeddingConfig struct {
	Model   string `json:"model" yaml:"model" mapstructure:"model"`
	APIKey  string `json:"-" yaml:"-" mapstructure:"api_key"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// VectorStoreConfig selects the reference passage store
type VectorStoreConfig struct {
	Driver    string `json:"driver" yaml:"driver" mapstructure:"driver"` // sqlite, postgres
	DSN       string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	Dimension int    `json:"dimension" yaml:"dimension" mapstructure:"dimension"`
}

// CacheConfig controls the embedding cache
type CacheConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `json:"dir" yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `json:"memory_ttl" yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `json:"disk_ttl" yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls batch scoring
type ConcurrencyConfig struct {
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// RateLimitConfig throttles calls to the LLM endpoint
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `json:"burst" yaml:"burst" mapstructure:"burst"`
}

// InputConfig bounds transcript loading
type InputConfig struct {
	MaxBytes     int64         `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" mapstructure:"fetch_timeout"` // For http(s) transcript sources
	UserAgent    string        `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// OutputConfig controls where results go
type OutputConfig struct {
	ResultsDir string `json:"results_dir" yaml:"results_dir" mapstructure:"results_dir"`
	Verbose    bool   `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
}

// Config is the complete democoach configuration
type Config struct {
	Frameworks   []Framework       `json:"coaching_frameworks" yaml:"coaching_frameworks" mapstructure:"coaching_frameworks"`
	Metrics      []Metric          `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Settings     Settings          `json:"settings" yaml:"settings" mapstructure:"settings"`
	LLM          LLMConfig         `json:"llm" yaml:"llm" mapstructure:"llm"`
	Embedding    EmbeddingConfig   `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	VectorStore  VectorStoreConfig `json:"vector_store" yaml:"vector_store" mapstructure:"vector_store"`
	Cache        CacheConfig       `json:"cache" yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `json:"rate_limiting" yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Input        InputConfig       `json:"input" yaml:"input" mapstructure:"input"`
	Output       OutputConfig      `json:"output" yaml:"output" mapstructure:"output"`
}

// DefaultConfig returns the built-in defaults. Frameworks and metrics are
// left empty: they always come from the user's config file.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			Model:                  "gpt-4",
			ParticipantModel:       "gpt-3.5-turbo",
			QuoteMode:              QuoteModePost,
			MaxReferenceChunks:     3,
			SummaryReferenceChunks: 5,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Timeout:   60 * time.Second,
			MaxTokens: 2000,
		},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small",
		},
		VectorStore: VectorStoreConfig{
			Driver:    "sqlite",
			DSN:       "democoach.db",
			Dimension: 1536,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".democoach/cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 2,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         2,
		},
		Input: InputConfig{
			MaxBytes:     2 << 20,
			FetchTimeout: 30 * time.Second,
			UserAgent:    "democoach/1.0",
		},
		Output: OutputConfig{
			ResultsDir: ".democoach/results",
		},
	}
}

// ActiveFramework returns the framework used for scoring. Only the first
// configured framework is used.
func (c *Config) ActiveFramework() (Framework, bool) {
	if len(c.Frameworks) == 0 {
		return Framework{}, false
	}
	return c.Frameworks[0], true
}
