package spec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const componentsPrefix = "#/components/"

// resolver follows local component references. Every chain is walked
// iteratively with the set of references already visited on it, so a cycle
// fails with CircularReferenceError instead of recursing forever.
type resolver struct {
	components *openapi3.Components
}

type component struct {
	ref   string
	value any
	set   bool
}

func newResolver(doc *openapi3.T) *resolver {
	c := doc.Components
	if c == nil {
		c = &openapi3.Components{}
	}
	return &resolver{components: c}
}

// lookup reads one entry of a component map. Each category reads its own map.
func (r *resolver) lookup(category, name string) (component, bool) {
	c := r.components
	switch category {
	case "parameters":
		if e, ok := c.Parameters[name]; ok && e != nil {
			return component{ref: e.Ref, value: e.Value, set: e.Value != nil}, true
		}
	case "requestBodies":
		if e, ok := c.RequestBodies[name]; ok && e != nil {
			return component{ref: e.Ref, value: e.Value, set: e.Value != nil}, true
		}
	case "responses":
		if e, ok := c.Responses[name]; ok && e != nil {
			return component{ref: e.Ref, value: e.Value, set: e.Value != nil}, true
		}
	case "headers":
		if e, ok := c.Headers[name]; ok && e != nil {
			return component{ref: e.Ref, value: e.Value, set: e.Value != nil}, true
		}
	case "examples":
		if e, ok := c.Examples[name]; ok && e != nil {
			return component{ref: e.Ref, value: e.Value, set: e.Value != nil}, true
		}
	case "securitySchemes":
		if e, ok := c.SecuritySchemes[name]; ok && e != nil {
			return component{ref: e.Ref, value: e.Value, set: e.Value != nil}, true
		}
	case "links":
		if e, ok := c.Links[name]; ok && e != nil {
			return component{ref: e.Ref, value: e.Value, set: e.Value != nil}, true
		}
	case "callbacks":
		if e, ok := c.Callbacks[name]; ok && e != nil {
			return component{ref: e.Ref, value: e.Value, set: e.Value != nil}, true
		}
	case "schemas":
		if e, ok := c.Schemas[name]; ok && e != nil {
			return component{ref: e.Ref, value: e.Value, set: e.Value != nil}, true
		}
	}
	return component{}, false
}

// follow walks ref through the component maps of category until it reaches
// an entry that is not itself a reference
func (r *resolver) follow(category, ref string) (any, error) {
	var chain []string
	visited := make(map[string]bool)
	for {
		chain = append(chain, ref)
		if visited[ref] {
			return nil, &CircularReferenceError{Chain: chain}
		}
		visited[ref] = true

		cat, name, err := splitRef(ref)
		if err != nil {
			return nil, &MalformedSpecError{Field: ref, Reason: err.Error()}
		}
		if cat != category {
			return nil, &MalformedSpecError{Field: ref, Reason: fmt.Sprintf("expected a reference to components/%s in", category)}
		}
		entry, ok := r.lookup(category, name)
		if !ok {
			return nil, &MalformedSpecError{Field: ref, Reason: "dangling reference"}
		}
		if entry.ref == "" {
			if !entry.set {
				return nil, &MalformedSpecError{Field: ref, Reason: "empty component"}
			}
			return entry.value, nil
		}
		ref = entry.ref
	}
}

// checkComponents resolves every component entry that is itself a reference,
// so a cycle among components fails the load even when no operation uses it
func (r *resolver) checkComponents() error {
	categories := []string{"parameters", "requestBodies", "responses", "headers", "examples", "securitySchemes", "links", "callbacks"}
	for _, category := range categories {
		for _, name := range r.names(category) {
			entry, _ := r.lookup(category, name)
			if entry.ref == "" {
				continue
			}
			if _, err := r.follow(category, componentsPrefix+category+"/"+escapeToken(name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *resolver) names(category string) []string {
	c := r.components
	var names []string
	switch category {
	case "parameters":
		for k := range c.Parameters {
			names = append(names, k)
		}
	case "requestBodies":
		for k := range c.RequestBodies {
			names = append(names, k)
		}
	case "responses":
		for k := range c.Responses {
			names = append(names, k)
		}
	case "headers":
		for k := range c.Headers {
			names = append(names, k)
		}
	case "examples":
		for k := range c.Examples {
			names = append(names, k)
		}
	case "securitySchemes":
		for k := range c.SecuritySchemes {
			names = append(names, k)
		}
	case "links":
		for k := range c.Links {
			names = append(names, k)
		}
	case "callbacks":
		for k := range c.Callbacks {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func (r *resolver) parameter(p *openapi3.ParameterRef) (*openapi3.Parameter, error) {
	if p == nil {
		return nil, nil
	}
	if p.Ref == "" {
		return p.Value, nil
	}
	v, err := r.follow("parameters", p.Ref)
	if err != nil {
		return nil, err
	}
	return v.(*openapi3.Parameter), nil
}

func (r *resolver) requestBody(b *openapi3.RequestBodyRef) (*openapi3.RequestBody, error) {
	if b == nil {
		return nil, nil
	}
	if b.Ref == "" {
		return b.Value, nil
	}
	v, err := r.follow("requestBodies", b.Ref)
	if err != nil {
		return nil, err
	}
	return v.(*openapi3.RequestBody), nil
}

func (r *resolver) response(resp *openapi3.ResponseRef) (*openapi3.Response, error) {
	if resp == nil {
		return nil, nil
	}
	if resp.Ref == "" {
		return resp.Value, nil
	}
	v, err := r.follow("responses", resp.Ref)
	if err != nil {
		return nil, err
	}
	return v.(*openapi3.Response), nil
}

func splitRef(ref string) (string, string, error) {
	if !strings.HasPrefix(ref, componentsPrefix) {
		return "", "", fmt.Errorf("only local component references are supported, got")
	}
	parts := strings.SplitN(strings.TrimPrefix(ref, componentsPrefix), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", "", fmt.Errorf("invalid component reference")
	}
	return parts[0], unescapeToken(parts[1]), nil
}

func unescapeToken(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}

func escapeToken(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}
