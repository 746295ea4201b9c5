package testdata

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"api-contract-fuzzer/internal/types"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Pool source names
const (
	SourceFaker    = "faker"
	SourceDatabase = "database"
	SourceLLM      = "llm"
)

// Source produces sample values for a token
type Source interface {
	Sample(ctx context.Context, token types.Token, n int) ([]any, error)
}

// FakerSource samples values from the token schema
type FakerSource struct {
	faker *Faker
}

// NewFakerSource creates a schema-driven source drawing from rng. Token
// schemas are self-contained, so no definitions are needed.
func NewFakerSource(rng *rand.Rand) *FakerSource {
	return &FakerSource{faker: NewFaker(rng, nil)}
}

// Sample implements Source
func (s *FakerSource) Sample(_ context.Context, token types.Token, n int) ([]any, error) {
	values := make([]any, 0, n)
	for len(values) < n {
		v, err := s.faker.Sample(token.Schema.Schema)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Filler fills token pools from the configured sources. Filling is
// best-effort per token: a failing token is left with an empty pool and the
// remaining tokens are still filled.
type Filler struct {
	sources       map[string]Source
	defaultSource string
	overrides     map[string]string
	logger        *zap.Logger
}

// NewFiller creates a filler. overrides maps token names to source names.
func NewFiller(defaultSource string, sources map[string]Source, overrides map[string]string, logger *zap.Logger) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{
		sources:       sources,
		defaultSource: defaultSource,
		overrides:     overrides,
		logger:        logger,
	}
}

// Fill replaces the pool of every token with quantity fresh values. The
// returned error combines the failures of individual tokens.
func (f *Filler) Fill(ctx context.Context, pools types.Pools, quantity int) error {
	names := make([]string, 0, len(pools))
	for name := range pools {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs error
	for _, name := range names {
		mt := pools[name]
		mt.AvailableTokens = []any{}

		sourceName := f.defaultSource
		if override, ok := f.overrides[name]; ok {
			sourceName = override
		}
		source, ok := f.sources[sourceName]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("token %s: pool source %q is not configured", name, sourceName))
			continue
		}

		values, err := source.Sample(ctx, mt.Token, quantity)
		if err != nil {
			f.logger.Warn("failed to fill token pool", zap.String("token", name), zap.String("source", sourceName), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("token %s: %w", name, err))
			continue
		}
		if len(values) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("token %s: source %q returned no values", name, sourceName))
			continue
		}
		mt.AvailableTokens = values
		f.logger.Debug("filled token pool", zap.String("token", name), zap.String("source", sourceName), zap.Int("values", len(values)))
	}
	return errs
}
