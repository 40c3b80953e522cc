package llm

import (
	"context"
	"time"

	"github.com/ppiankov/democoach/internal/model"
)

// Sampling temperatures used by the pipeline. Zero leaves the provider default.
const (
	TemperatureParticipants float32 = 0.2
	TemperatureScoring      float32 = 0.3
	TemperatureDefault      float32 = 0
)

// systemPrompt frames every request sent by democoach
const systemPrompt = "You are a sales engineering coach who evaluates demo transcripts carefully and follows output format instructions exactly."

// Provider is the text-generation collaborator
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate sends a single prompt and returns the model's raw reply
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest is one prompt for the provider
type GenerateRequest struct {
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// Temperature of zero means provider default
	Temperature float32

	// MaxTokens limits the response length
	MaxTokens int
}

// GenerateResponse contains the provider's reply
type GenerateResponse struct {
	// Text is the untrimmed reply
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific), used when a request names none
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Timeout:   60,
		MaxTokens: 2000,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig, defaultModel string) Config {
	return Config{
		Provider:   modelConfig.Provider,
		Model:      defaultModel,
		APIKey:     modelConfig.APIKey,
		BaseURL:    modelConfig.BaseURL,
		Timeout:    int(modelConfig.Timeout / time.Second),
		MaxTokens:  modelConfig.MaxTokens,
		HTTPProxy:  modelConfig.HTTPProxy,
		HTTPSProxy: modelConfig.HTTPSProxy,
		NoProxy:    modelConfig.NoProxy,
	}
}

func resolveMaxTokens(reqTokens, configTokens int) int {
	if reqTokens > 0 {
		return reqTokens
	}
	if configTokens > 0 {
		return configTokens
	}
	return 2000
}
