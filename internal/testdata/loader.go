package testdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"api-contract-fuzzer/internal/types"
)

// NewPools builds an empty pool file for the extracted tokens
func NewPools(tokens map[string]types.Token) types.Pools {
	pools := make(types.Pools, len(tokens))
	for name, token := range tokens {
		pools[name] = &types.MappedToken{
			Token:           token,
			AvailableTokens: []any{},
		}
	}
	return pools
}

// LoadPools reads a token pool file
func LoadPools(path string) (types.Pools, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token pool file: %w", err)
	}

	var pools types.Pools
	if err := json.Unmarshal(file, &pools); err != nil {
		return nil, fmt.Errorf("failed to parse token pool file: %w", err)
	}
	for name, mt := range pools {
		if mt == nil {
			return nil, fmt.Errorf("token pool file: entry %q is empty", name)
		}
		if mt.AvailableTokens == nil {
			mt.AvailableTokens = []any{}
		}
		if mt.Token.Name == "" {
			mt.Token.Name = name
		}
	}
	return pools, nil
}

// SavePools writes a token pool file, creating its directory if needed
func SavePools(path string, pools types.Pools) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(pools, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token pools: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write token pool file: %w", err)
	}
	return nil
}
