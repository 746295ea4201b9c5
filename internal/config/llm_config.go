package config

import (
	"fmt"

	"api-contract-fuzzer/internal/llm"
	"api-contract-fuzzer/internal/testdata"
	"api-contract-fuzzer/internal/testdata/generator"
)

// Pool sources
const (
	SourceFaker    = testdata.SourceFaker
	SourceDatabase = testdata.SourceDatabase
	SourceLLM      = testdata.SourceLLM
)

// PoolsConfig controls how token pools are filled
type PoolsConfig struct {
	// Quantity is the number of values drawn per token
	Quantity int `yaml:"quantity"`
	// Source is the default source for every token
	Source string `yaml:"source"`
	// Overrides maps token names to a source other than the default
	Overrides map[string]string  `yaml:"overrides"`
	Database  generator.DBConfig `yaml:"database"`
	LLM       LLMConfig          `yaml:"llm"`
}

// LLMConfig holds configuration for LLM services
type LLMConfig struct {
	llm.Config `yaml:",inline"`
}

func (c *LLMConfig) applyDefaults() {
	defaults := llm.NewDefaultConfig()
	if c.Provider == "" {
		c.Provider = defaults.Provider
	}
	if c.Model == "" {
		c.Model = defaults.Model
	}
	if c.Temperature == 0 {
		c.Temperature = defaults.Temperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaults.MaxTokens
	}
}

// Sources lists every source the configuration selects, default first
func (p PoolsConfig) Sources() []string {
	seen := map[string]bool{p.Source: true}
	out := []string{p.Source}
	for _, s := range p.Overrides {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Uses reports whether any token is filled from source
func (p PoolsConfig) Uses(source string) bool {
	for _, s := range p.Sources() {
		if s == source {
			return true
		}
	}
	return false
}

func (p PoolsConfig) validate() error {
	for _, s := range p.Sources() {
		switch s {
		case SourceFaker, SourceDatabase, SourceLLM:
		default:
			return fmt.Errorf("pools: unknown source %q", s)
		}
	}
	return nil
}
