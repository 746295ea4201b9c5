package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where LoadConfig looks when no path is given
const DefaultPath = "config/config.yaml"

// Config holds the application configuration
type Config struct {
	Environment Environment      `yaml:"environment"`
	Generation  GenerationConfig `yaml:"generation"`
	Pools       PoolsConfig      `yaml:"pools"`
	Test        TestConfig       `yaml:"test"`
	Reporting   ReportingConfig  `yaml:"reporting"`
	Workspace   WorkspaceConfig  `yaml:"workspace"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// Environment holds environment-specific configuration
type Environment struct {
	// BaseURL overrides the server URL declared by the spec
	BaseURL string     `yaml:"base_url"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Type   string `yaml:"type"`
	Header string `yaml:"header"`
	Token  string `yaml:"token"`
}

// Value renders the header value for the configured scheme
func (a AuthConfig) Value() string {
	if a.Token == "" {
		return ""
	}
	switch a.Type {
	case "bearer":
		return "Bearer " + a.Token
	default:
		return a.Token
	}
}

// GenerationConfig controls test case generation
type GenerationConfig struct {
	Quantity int `yaml:"quantity"`
	// Seed makes generation reproducible; zero picks a fresh seed per run
	Seed    int64    `yaml:"seed"`
	Methods []string `yaml:"methods"`
}

// TestConfig holds test execution configuration
type TestConfig struct {
	MaxWorkers int `yaml:"max_workers"`
	Timeout    int `yaml:"timeout"`
}

// ReportingConfig holds reporting configuration
type ReportingConfig struct {
	Format    []string `yaml:"format"`
	OutputDir string   `yaml:"output_dir"`
	Detailed  bool     `yaml:"detailed"`
}

// WorkspaceConfig locates the saved specs and their artifacts
type WorkspaceConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// LoadConfig loads the configuration from path, or from DefaultPath when path
// is empty. A missing default file yields the built-in defaults; a missing
// explicit file is an error.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	var config Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config file not found at %s", path)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &config, nil
}

// Default returns the built-in configuration
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

// applyEnv overrides secrets from environment variables if set
func (c *Config) applyEnv() {
	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		c.Environment.Auth.Token = token
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Pools.LLM.APIKey = key
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		c.Pools.Database.Password = password
	}
}

// applyDefaults sets default values if not specified
func (c *Config) applyDefaults() {
	if c.Environment.Auth.Header == "" {
		c.Environment.Auth.Header = "Authorization"
	}
	if c.Generation.Quantity == 0 {
		c.Generation.Quantity = 5
	}
	if len(c.Generation.Methods) == 0 {
		c.Generation.Methods = []string{"get"}
	}
	for i, m := range c.Generation.Methods {
		c.Generation.Methods[i] = strings.ToLower(strings.TrimSpace(m))
	}
	if c.Pools.Quantity == 0 {
		c.Pools.Quantity = 10
	}
	if c.Pools.Source == "" {
		c.Pools.Source = SourceFaker
	}
	c.Pools.LLM.applyDefaults()
	if c.Test.Timeout == 0 {
		c.Test.Timeout = 30
	}
	if len(c.Reporting.Format) == 0 {
		c.Reporting.Format = []string{"json"}
	}
	if c.Reporting.OutputDir == "" {
		c.Reporting.OutputDir = "reports"
	}
	if c.Workspace.Dir == "" {
		c.Workspace.Dir = "specs"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports settings no command could run with
func (c *Config) Validate() error {
	var errs error
	if c.Generation.Quantity < 0 {
		errs = multierr.Append(errs, fmt.Errorf("generation.quantity must not be negative"))
	}
	for _, m := range c.Generation.Methods {
		if !knownMethods[m] {
			errs = multierr.Append(errs, fmt.Errorf("generation.methods: unknown method %q", m))
		}
	}
	if c.Pools.Quantity < 0 {
		errs = multierr.Append(errs, fmt.Errorf("pools.quantity must not be negative"))
	}
	if err := c.Pools.validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.Test.MaxWorkers < 0 {
		errs = multierr.Append(errs, fmt.Errorf("test.max_workers must not be negative"))
	}
	if c.Test.Timeout < 0 {
		errs = multierr.Append(errs, fmt.Errorf("test.timeout must not be negative"))
	}
	for _, f := range c.Reporting.Format {
		if f != "json" && f != "html" {
			errs = multierr.Append(errs, fmt.Errorf("reporting.format: unsupported format %q", f))
		}
	}
	return errs
}

var knownMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}
