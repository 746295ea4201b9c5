package llm

import (
	"context"
	"fmt"

	"api-contract-fuzzer/internal/schema"
	"api-contract-fuzzer/internal/types"
)

// Source fills token pools with values suggested by a model. Suggestions that
// violate the token schema are discarded.
type Source struct {
	client LLMClient
}

// NewSource creates a pool source backed by client
func NewSource(client LLMClient) *Source {
	return &Source{client: client}
}

// Sample asks the model for n values of token
func (s *Source) Sample(ctx context.Context, token types.Token, n int) ([]any, error) {
	values, err := s.client.GenerateValues(ctx, ValueRequest{
		Name:        token.Name,
		In:          token.In,
		Description: token.Description,
		Schema:      schema.Encode(token.Schema.Schema),
		Count:       n,
	})
	if err != nil {
		return nil, err
	}

	valid := make([]any, 0, len(values))
	for _, v := range values {
		if token.Schema.Schema != nil && schema.Validate(token.Schema.Schema, nil, v) != nil {
			continue
		}
		valid = append(valid, v)
		if len(valid) == n {
			break
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("none of the %d suggested values match the schema", len(values))
	}
	return valid, nil
}
