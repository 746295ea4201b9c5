package testdata

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"api-contract-fuzzer/internal/schema"

	"github.com/google/uuid"
)

const (
	defaultMaxDepth = 6
	charset         = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// SampleError reports a schema the faker could not produce a value for
type SampleError struct {
	Path   string
	Reason string
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("cannot sample %s: %s", e.Path, e.Reason)
}

// Faker produces random values that satisfy a schema
type Faker struct {
	rng      *rand.Rand
	defs     schema.Definitions
	maxDepth int
	// now anchors generated dates
	now time.Time
}

// NewFaker creates a faker drawing from rng. defs resolves references.
func NewFaker(rng *rand.Rand, defs schema.Definitions) *Faker {
	return &Faker{
		rng:      rng,
		defs:     defs,
		maxDepth: defaultMaxDepth,
		now:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Sample generates one value for s
func (f *Faker) Sample(s schema.Schema) (any, error) {
	return f.sample(s, "$", 0, nil)
}

func (f *Faker) sample(s schema.Schema, path string, depth int, active map[string]bool) (any, error) {
	if s == nil {
		return nil, nil
	}
	if depth > f.maxDepth {
		return nil, &SampleError{Path: path, Reason: "schema nests too deeply"}
	}

	switch n := s.(type) {
	case *schema.Ref:
		if active[n.Name] {
			return nil, &SampleError{Path: path, Reason: fmt.Sprintf("schema %q refers to itself", n.Name)}
		}
		resolved, err := f.defs.Resolve(n)
		if err != nil {
			return nil, &SampleError{Path: path, Reason: err.Error()}
		}
		next := map[string]bool{n.Name: true}
		for k := range active {
			next[k] = true
		}
		return f.sample(resolved, path, depth, next)
	case *schema.Any:
		switch f.rng.Intn(3) {
		case 0:
			return f.randomString(8), nil
		case 1:
			return f.rng.Intn(1000), nil
		default:
			return f.rng.Intn(2) == 0, nil
		}
	case *schema.Enum:
		if len(n.Values) == 0 {
			return nil, &SampleError{Path: path, Reason: "enum has no values"}
		}
		return n.Values[f.rng.Intn(len(n.Values))], nil
	case *schema.Boolean:
		return f.rng.Intn(2) == 0, nil
	case *schema.Number:
		return f.number(n, path)
	case *schema.String:
		return f.string(n, path)
	case *schema.Array:
		return f.array(n, path, depth)
	case *schema.Object:
		return f.object(n, path, depth)
	case *schema.AllOf:
		return f.allOf(n, path, depth, active)
	case *schema.AnyOf:
		if len(n.Schemas) == 0 {
			return nil, &SampleError{Path: path, Reason: "no alternatives"}
		}
		start := f.rng.Intn(len(n.Schemas))
		var lastErr error
		for i := range n.Schemas {
			v, err := f.sample(n.Schemas[(start+i)%len(n.Schemas)], path, depth, active)
			if err == nil {
				return v, nil
			}
			lastErr = err
		}
		return nil, lastErr
	default:
		return nil, &SampleError{Path: path, Reason: fmt.Sprintf("unsupported schema node %T", s)}
	}
}

func (f *Faker) number(n *schema.Number, path string) (any, error) {
	lo, hi := 0.0, 1000.0
	switch {
	case n.Minimum != nil && n.Maximum != nil:
		lo, hi = *n.Minimum, *n.Maximum
	case n.Minimum != nil:
		lo, hi = *n.Minimum, *n.Minimum+1000
	case n.Maximum != nil:
		lo, hi = *n.Maximum-1000, *n.Maximum
	}

	if n.Integer {
		ilo, ihi := math.Ceil(lo), math.Floor(hi)
		if n.ExclusiveMinimum && n.Minimum != nil && ilo == *n.Minimum {
			ilo++
		}
		if n.ExclusiveMaximum && n.Maximum != nil && ihi == *n.Maximum {
			ihi--
		}
		if n.MultipleOf != nil && *n.MultipleOf > 0 {
			return f.multiple(ilo, ihi, *n.MultipleOf, path, true)
		}
		if ilo > ihi {
			return nil, &SampleError{Path: path, Reason: "empty integer range"}
		}
		return f.intBetween(ilo, ihi, path)
	}

	if n.MultipleOf != nil && *n.MultipleOf > 0 {
		return f.multiple(lo, hi, *n.MultipleOf, path, false)
	}
	if lo > hi || (lo == hi && (n.ExclusiveMinimum || n.ExclusiveMaximum)) {
		return nil, &SampleError{Path: path, Reason: "empty number range"}
	}
	v := lo + f.rng.Float64()*(hi-lo)
	if (n.ExclusiveMinimum && v == lo) || (n.ExclusiveMaximum && v == hi) {
		v = lo + (hi-lo)/2
	}
	return math.Round(v*100) / 100, nil
}

func (f *Faker) multiple(lo, hi, m float64, path string, integer bool) (any, error) {
	kLo, kHi := math.Ceil(lo/m), math.Floor(hi/m)
	if kLo > kHi {
		return nil, &SampleError{Path: path, Reason: fmt.Sprintf("no multiple of %v in range", m)}
	}
	ik, err := f.intBetween(kLo, kHi, path)
	if err != nil {
		return nil, err
	}
	k := float64(ik)
	if integer {
		return clampInt64(k * m), nil
	}
	return k * m, nil
}

// twoTo63 is the first float64 past math.MaxInt64
const twoTo63 = float64(1 << 63)

// intBetween draws uniformly from the integers in [lo, hi], both already whole
func (f *Faker) intBetween(lo, hi float64, path string) (int64, error) {
	if math.IsNaN(lo) || math.IsNaN(hi) || lo >= twoTo63 || hi < -twoTo63 {
		return 0, &SampleError{Path: path, Reason: "integer range outside int64"}
	}
	a, b := clampInt64(lo), clampInt64(hi)
	span := uint64(b) - uint64(a)
	switch {
	case span < math.MaxInt64:
		return a + f.rng.Int63n(int64(span)+1), nil
	case span == math.MaxUint64:
		return int64(f.rng.Uint64()), nil
	default:
		return int64(uint64(a) + f.rng.Uint64()%(span+1)), nil
	}
}

func clampInt64(x float64) int64 {
	switch {
	case x >= twoTo63:
		return math.MaxInt64
	case x <= -twoTo63:
		return math.MinInt64
	default:
		return int64(x)
	}
}

func (f *Faker) string(n *schema.String, path string) (any, error) {
	var value string
	switch n.Format {
	case "email":
		value = fmt.Sprintf("user_%d@example.com", f.rng.Intn(1000))
	case "date":
		value = f.now.AddDate(0, 0, -f.rng.Intn(3650)).Format("2006-01-02")
	case "date-time":
		value = f.now.Add(-time.Duration(f.rng.Intn(87600)) * time.Hour).Format(time.RFC3339)
	case "time":
		value = f.now.Add(time.Duration(f.rng.Intn(86400)) * time.Second).Format("15:04:05")
	case "uuid":
		id, err := uuid.NewRandomFromReader(f.rng)
		if err != nil {
			return nil, &SampleError{Path: path, Reason: err.Error()}
		}
		value = id.String()
	case "uri", "url":
		value = fmt.Sprintf("https://example.com/%s", f.randomString(6))
	case "hostname":
		value = fmt.Sprintf("%s.example.com", strings.ToLower(f.randomString(6)))
	case "ipv4":
		value = fmt.Sprintf("192.168.%d.%d", f.rng.Intn(256), f.rng.Intn(254)+1)
	case "ipv6":
		value = fmt.Sprintf("2001:db8::%x", f.rng.Intn(0xffff)+1)
	case "byte":
		value = base64.StdEncoding.EncodeToString([]byte(f.randomString(6)))
	}

	if value == "" && n.Pattern != "" {
		// Simple candidates for common patterns; anything else is rejected
		for _, candidate := range patternCandidates(n.Pattern) {
			if re, err := regexp.Compile(n.Pattern); err == nil && re.MatchString(candidate) {
				value = candidate
				break
			}
		}
		if value == "" {
			return nil, &SampleError{Path: path, Reason: fmt.Sprintf("pattern %q is too complex to sample", n.Pattern)}
		}
	}

	if value == "" {
		length := uint64(10)
		if length < n.MinLength {
			length = n.MinLength
		}
		if n.MaxLength != nil && length > *n.MaxLength {
			length = *n.MaxLength
		}
		if n.MaxLength != nil && *n.MaxLength > n.MinLength {
			span := *n.MaxLength - n.MinLength
			if span > 16 {
				span = 16
			}
			length = n.MinLength + uint64(f.rng.Int63n(int64(span)+1))
		}
		return f.randomString(int(length)), nil
	}

	if uint64(len(value)) < n.MinLength || (n.MaxLength != nil && uint64(len(value)) > *n.MaxLength) {
		return nil, &SampleError{Path: path, Reason: fmt.Sprintf("format %q cannot honor the length bounds", n.Format)}
	}
	return value, nil
}

func patternCandidates(pattern string) []string {
	var out []string
	switch {
	case strings.Contains(pattern, `\d`), strings.Contains(pattern, "[0-9]"):
		out = append(out, "12345", "1")
	case strings.Contains(pattern, "[a-zA-Z]"), strings.Contains(pattern, "[a-z]"), strings.Contains(pattern, `\w`):
		out = append(out, "abc", "a")
	case strings.Contains(pattern, "[A-Z]"):
		out = append(out, "ABC", "A")
	}
	return append(out, "sample_string")
}

func (f *Faker) array(n *schema.Array, path string, depth int) (any, error) {
	lo := int(n.MinItems)
	hi := lo + 3
	if n.MaxItems != nil && int(*n.MaxItems) < hi {
		hi = int(*n.MaxItems)
	}
	if depth >= f.maxDepth-1 {
		hi = lo
	}
	if lo > hi {
		return nil, &SampleError{Path: path, Reason: "empty item count range"}
	}
	count := lo + f.rng.Intn(hi-lo+1)
	items := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, err := f.sample(n.Items, fmt.Sprintf("%s[%d]", path, i), depth+1, nil)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func (f *Faker) object(n *schema.Object, path string, depth int) (any, error) {
	result := make(map[string]any)
	for _, name := range n.PropertyNames() {
		required := n.IsRequired(name)
		if !required && (depth >= f.maxDepth-1 || f.rng.Intn(2) == 0) {
			continue
		}
		v, err := f.sample(n.Properties[name], path+"."+name, depth+1, nil)
		if err != nil {
			return nil, err
		}
		result[name] = v
	}
	for _, name := range n.Required {
		if _, ok := result[name]; !ok {
			if _, declared := n.Properties[name]; !declared {
				result[name] = f.randomString(8)
			}
		}
	}
	return result, nil
}

func (f *Faker) allOf(n *schema.AllOf, path string, depth int, active map[string]bool) (any, error) {
	var merged map[string]any
	var last any
	for _, m := range n.Schemas {
		v, err := f.sample(m, path, depth, active)
		if err != nil {
			return nil, err
		}
		if obj, ok := v.(map[string]any); ok {
			if merged == nil {
				merged = make(map[string]any)
			}
			for k, val := range obj {
				merged[k] = val
			}
			continue
		}
		last = v
	}
	if merged != nil {
		return merged, nil
	}
	return last, nil
}

func (f *Faker) randomString(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[f.rng.Intn(len(charset))]
	}
	return string(b)
}
