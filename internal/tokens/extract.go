package tokens

import (
	"sort"
	"strings"

	"api-contract-fuzzer/internal/schema"
	"api-contract-fuzzer/internal/spec"
	"api-contract-fuzzer/internal/types"
)

// inlineDepth bounds how far component references are expanded into a
// token's schema, so a pool file stays self-contained
const inlineDepth = 8

// Extract collects the path and query parameters of every testable operation
// into a map keyed by parameter name. A name seen again later overwrites the
// earlier token.
func Extract(model *spec.Model, methods []string) map[string]types.Token {
	out := make(map[string]types.Token)
	for _, ep := range model.Endpoints {
		for _, method := range methods {
			op, ok := ep.Operation(method)
			if !ok {
				continue
			}
			for _, p := range op.Effective {
				if !Fuzzable(p) {
					continue
				}
				out[p.Name] = types.Token{
					Name:        p.Name,
					Description: p.Description,
					In:          p.In,
					Schema:      schema.JSON{Schema: schema.Inline(p.Schema, model.Definitions, inlineDepth)},
				}
			}
		}
	}
	return out
}

// Fuzzable reports whether a parameter is drawn from a sample pool
func Fuzzable(p spec.Parameter) bool {
	return p.In == spec.InPath || p.In == spec.InQuery
}

// NormalizeMethods lowercases, deduplicates and filters methods against the
// closed method set
func NormalizeMethods(methods []string) []string {
	seen := make(map[string]bool, len(methods))
	var out []string
	for _, m := range methods {
		m = strings.ToLower(strings.TrimSpace(m))
		if !spec.IsMethod(m) || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Names returns the token names in sorted order
func Names(tokens map[string]types.Token) []string {
	names := make([]string, 0, len(tokens))
	for name := range tokens {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Required lists the token names a generation run over methods will draw from
func Required(model *spec.Model, methods []string) []string {
	return Names(Extract(model, methods))
}
