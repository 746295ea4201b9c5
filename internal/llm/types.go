package llm

import (
	"context"
)

// ValueRequest asks for sample values of one API input
type ValueRequest struct {
	Name        string         `json:"name"`
	In          string         `json:"in"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
	Count       int            `json:"count"`
}

// LLMClient defines the interface for LLM interactions
type LLMClient interface {
	// GenerateValues asks the model for realistic values of an input
	GenerateValues(ctx context.Context, req ValueRequest) ([]any, error)

	// callLLM handles the actual LLM API call
	callLLM(ctx context.Context, prompt string) (string, error)
}
