package testcase

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"api-contract-fuzzer/internal/spec"
	"api-contract-fuzzer/internal/testdata"
	"api-contract-fuzzer/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var placeholder = regexp.MustCompile(`\{[^{}]*\}`)

// ValueGenerationError reports a value that could not be drawn for a case.
// The affected case is dropped.
type ValueGenerationError struct {
	Endpoint types.EndpointKey
	Name     string
	Err      error
}

func (e *ValueGenerationError) Error() string {
	return fmt.Sprintf("%s: cannot generate %s: %v", e.Endpoint, e.Name, e.Err)
}

func (e *ValueGenerationError) Unwrap() error { return e.Err }

// Generator turns the spec model and the sample pools into test cases
type Generator struct {
	rng     *rand.Rand
	baseURL string
	logger  *zap.Logger
}

// Option configures a Generator
type Option func(*Generator)

// WithBaseURL overrides the server URL declared by the spec
func WithBaseURL(u string) Option {
	return func(g *Generator) { g.baseURL = strings.TrimSuffix(u, "/") }
}

// WithLogger sets the logger that receives dropped cases
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a generator drawing every random decision from rng
func NewGenerator(rng *rand.Rand, opts ...Option) *Generator {
	g := &Generator{
		rng:    rng,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewSeeded creates a generator with a fresh source seeded by seed
func NewSeeded(seed int64, opts ...Option) *Generator {
	return NewGenerator(rand.New(rand.NewSource(seed)), opts...)
}

// Generate produces up to quantity cases for every testable operation. An
// operation without parameters yields exactly one case. Cases whose values
// cannot be drawn are dropped and reported through the returned errors; the
// pools are never modified.
func (g *Generator) Generate(model *spec.Model, pools types.Pools, methods []string, quantity int) ([]types.TestCase, []error) {
	var (
		cases   []types.TestCase
		dropped []error
	)
	if quantity <= 0 {
		return cases, nil
	}

	baseURL := model.ServerURL
	if g.baseURL != "" {
		baseURL = g.baseURL
	}
	faker := testdata.NewFaker(g.rng, model.Definitions)

	for _, ep := range model.Endpoints {
		for _, method := range methods {
			op, ok := ep.Operation(method)
			if !ok {
				continue
			}
			for i := 0; i < quantity; i++ {
				tc, err := g.build(baseURL, op, pools, faker)
				if err != nil {
					g.logger.Debug("dropping test case", zap.Error(err))
					dropped = append(dropped, err)
				} else {
					cases = append(cases, tc)
				}
				if len(op.Effective) == 0 {
					break
				}
			}
		}
	}
	return cases, dropped
}

func (g *Generator) build(baseURL string, op *spec.Operation, pools types.Pools, faker *testdata.Faker) (types.TestCase, error) {
	key := types.EndpointKey{Path: op.Path, Method: op.Method}
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		return types.TestCase{}, &ValueGenerationError{Endpoint: key, Name: "id", Err: err}
	}

	tc := types.TestCase{
		ID:       id.String(),
		BaseURL:  baseURL,
		Method:   op.Method,
		URL:      op.Path,
		Params:   map[string]any{},
		Endpoint: op.Path,
	}

	for _, p := range op.Effective {
		switch p.In {
		case spec.InPath:
			value, err := g.draw(pools, p.Name)
			if err != nil {
				return types.TestCase{}, &ValueGenerationError{Endpoint: key, Name: p.Name, Err: err}
			}
			segment := formatValue(value)
			if segment == "" {
				return types.TestCase{}, &ValueGenerationError{Endpoint: key, Name: p.Name, Err: fmt.Errorf("path parameter value is empty")}
			}
			tc.URL = strings.ReplaceAll(tc.URL, "{"+p.Name+"}", url.PathEscape(segment))
		case spec.InQuery:
			if !p.Required && g.rng.Intn(2) == 0 {
				continue
			}
			value, err := g.draw(pools, p.Name)
			if err != nil {
				return types.TestCase{}, &ValueGenerationError{Endpoint: key, Name: p.Name, Err: err}
			}
			tc.Params[p.Name] = value
		}
	}

	if leftover := placeholder.FindString(tc.URL); leftover != "" {
		return types.TestCase{}, &ValueGenerationError{Endpoint: key, Name: leftover, Err: fmt.Errorf("no path parameter declared for placeholder")}
	}

	if body := op.RequestBody; body != nil && body.Schema != nil {
		if body.Required || g.rng.Intn(2) == 1 {
			data, err := faker.Sample(body.Schema)
			if err != nil {
				return types.TestCase{}, &ValueGenerationError{Endpoint: key, Name: "request body", Err: err}
			}
			tc.Data = data
		}
	}
	return tc, nil
}

// draw picks one value uniformly from the named pool
func (g *Generator) draw(pools types.Pools, name string) (any, error) {
	values := pools.Values(name)
	if len(values) == 0 {
		return nil, fmt.Errorf("sample pool %q is empty", name)
	}
	return values[g.rng.Intn(len(values))], nil
}

// formatValue renders a pool value the way it appears in a URL
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return fmt.Sprint(t)
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// FormatValue is formatValue for callers encoding query strings
func FormatValue(v any) string { return formatValue(v) }

// CheckPools lists the tokens needed by methods whose pools are missing or empty
func CheckPools(required []string, pools types.Pools) []string {
	var missing []string
	for _, name := range required {
		if len(pools.Values(name)) == 0 {
			missing = append(missing, name)
		}
	}
	return missing
}
