package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"api-contract-fuzzer/internal/logger"
)

// BaseClient holds the provider-independent part of an LLM client: prompt
// construction and reply parsing
type BaseClient struct {
	config *Config
	logger *logger.Logger
	call   func(ctx context.Context, prompt string) (string, error)
}

// NewBaseClient creates a new base LLM client sending prompts through call
func NewBaseClient(config *Config, logger *logger.Logger, call func(ctx context.Context, prompt string) (string, error)) *BaseClient {
	return &BaseClient{
		config: config,
		logger: logger,
		call:   call,
	}
}

// GenerateValues implements the LLMClient interface
func (c *BaseClient) GenerateValues(ctx context.Context, req ValueRequest) ([]any, error) {
	schemaJSON, _ := json.Marshal(req.Schema)
	prompt := fmt.Sprintf(`Generate %d distinct, realistic values for the %s parameter "%s" of an HTTP API.
Description: %s
JSON Schema: %s

Every value must satisfy the schema. Respond with a JSON array only, without explanations.`,
		req.Count, req.In, req.Name, req.Description, string(schemaJSON))

	response, err := c.callLLM(ctx, prompt)
	if err != nil {
		c.logger.LogLLMInteraction("GenerateValues", req, nil, err)
		return nil, fmt.Errorf("failed to generate values: %w", err)
	}

	values, err := ParseValues(response)
	if err != nil {
		c.logger.LogLLMInteraction("GenerateValues", req, response, err)
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	c.logger.LogLLMInteraction("GenerateValues", req, values, nil)
	return values, nil
}

// callLLM forwards the prompt to the provider
func (c *BaseClient) callLLM(ctx context.Context, prompt string) (string, error) {
	if c.call == nil {
		return "", fmt.Errorf("no LLM provider configured")
	}
	return c.call(ctx, prompt)
}

// ParseValues extracts the JSON array from a model reply, tolerating Markdown
// code fences and surrounding prose
func ParseValues(response string) ([]any, error) {
	text := strings.TrimSpace(response)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			// drop the language tag
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start, end := strings.IndexByte(text, '['), strings.LastIndexByte(text, ']')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var values []any
	if err := json.Unmarshal([]byte(text[start:end+1]), &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("response array is empty")
	}
	return values, nil
}
