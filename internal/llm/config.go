package llm

import "fmt"

// Config represents the configuration for LLM integration
type Config struct {
	// Provider specifies which LLM provider to use (e.g., "openai")
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the LLM provider
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model specifies which model to use (e.g., "gpt-4")
	Model string `json:"model" yaml:"model"`

	// BaseURL points at an OpenAI-compatible endpoint. Optional.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Temperature controls the randomness of the output (0.0 to 1.0)
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MaxTokens limits the length of the generated response
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// NewDefaultConfig returns a default configuration
func NewDefaultConfig() *Config {
	return &Config{
		Provider:    "openai",
		Model:       "gpt-4",
		Temperature: 0.7,
		MaxTokens:   2000,
	}
}

// Validate reports missing required fields
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("LLM provider is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}
