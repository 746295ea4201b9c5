package spec

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"api-contract-fuzzer/internal/schema"

	"github.com/getkin/kin-openapi/openapi3"
)

// Normalize turns a decoded API description into a Model. order lists the
// path templates in their declaration order; templates missing from it are
// appended in sorted order. Normalization fails as a whole: no partial model
// is returned.
func Normalize(doc *openapi3.T, order []string) (*Model, error) {
	if doc == nil {
		return nil, &MalformedSpecError{Field: "document"}
	}
	if doc.Paths == nil {
		return nil, &MalformedSpecError{Field: "paths"}
	}

	r := newResolver(doc)
	if err := r.checkComponents(); err != nil {
		return nil, err
	}

	defs, err := definitions(r.components)
	if err != nil {
		return nil, err
	}

	model := &Model{
		ServerURL:   serverURL(doc.Servers),
		Definitions: defs,
	}
	if doc.Info != nil {
		model.Title = doc.Info.Title
		model.Version = doc.Info.Version
	}

	for _, path := range orderedPaths(doc.Paths, order) {
		item := doc.Paths.Value(path)
		if item == nil {
			return nil, &MalformedSpecError{Path: path, Field: "path item"}
		}
		ep, err := normalizeEndpoint(r, path, item)
		if err != nil {
			return nil, err
		}
		model.Endpoints = append(model.Endpoints, ep)
	}

	if err := checkRefs(model); err != nil {
		return nil, err
	}
	return model, nil
}

func normalizeEndpoint(r *resolver, path string, item *openapi3.PathItem) (*Endpoint, error) {
	if item.Ref != "" {
		return nil, &MalformedSpecError{Path: path, Field: item.Ref, Reason: "path item references are not supported"}
	}

	shared, err := normalizeParameters(r, item.Parameters)
	if err != nil {
		return nil, annotate(err, path, "")
	}

	ep := &Endpoint{
		Path:       path,
		Shared:     shared,
		Operations: make(map[string]*Operation),
	}
	for _, method := range Methods {
		raw := item.GetOperation(strings.ToUpper(method))
		if raw == nil {
			continue
		}
		op, err := normalizeOperation(r, path, method, raw, shared)
		if err != nil {
			return nil, annotate(err, path, method)
		}
		ep.Operations[method] = op
	}
	return ep, nil
}

func normalizeOperation(r *resolver, path, method string, raw *openapi3.Operation, shared []Parameter) (*Operation, error) {
	if raw.Responses == nil || raw.Responses.Len() == 0 {
		return nil, &MalformedSpecError{Field: "responses"}
	}

	own, err := normalizeParameters(r, raw.Parameters)
	if err != nil {
		return nil, err
	}

	op := &Operation{
		Method:      method,
		Path:        path,
		OperationID: raw.OperationID,
		Summary:     raw.Summary,
		Parameters:  own,
		Effective:   MergeParameters(shared, own),
		Responses:   make(map[string]*Response),
	}

	if raw.RequestBody != nil {
		body, err := r.requestBody(raw.RequestBody)
		if err != nil {
			return nil, err
		}
		if body != nil {
			contentType, media := pickMedia(body.Content)
			rb := &RequestBody{Required: body.Required, ContentType: contentType}
			if media != nil {
				if rb.Schema, err = schema.FromOpenAPI(media.Schema); err != nil {
					return nil, &MalformedSpecError{Field: "requestBody.schema", Reason: err.Error()}
				}
			}
			op.RequestBody = rb
		}
	}

	for code, ref := range raw.Responses.Map() {
		resp, err := r.response(ref)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, &MalformedSpecError{Field: "responses." + code}
		}
		out := &Response{}
		if resp.Description != nil {
			out.Description = *resp.Description
		}
		contentType, media := pickMedia(resp.Content)
		out.ContentType = contentType
		if media != nil && media.Schema != nil {
			if out.Schema, err = schema.FromOpenAPI(media.Schema); err != nil {
				return nil, &MalformedSpecError{Field: "responses." + code + ".schema", Reason: err.Error()}
			}
		}
		op.Responses[code] = out
	}
	return op, nil
}

func normalizeParameters(r *resolver, refs openapi3.Parameters) ([]Parameter, error) {
	out := make([]Parameter, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for i, ref := range refs {
		p, err := r.parameter(ref)
		if err != nil {
			return nil, err
		}
		field := fmt.Sprintf("parameters[%d]", i)
		if p == nil {
			return nil, &MalformedSpecError{Field: field}
		}
		if p.Name == "" {
			return nil, &MalformedSpecError{Field: field + ".name"}
		}
		if p.In == "" {
			return nil, &MalformedSpecError{Field: field + ".in"}
		}
		key := p.In + ":" + p.Name
		if seen[key] {
			return nil, &MalformedSpecError{Field: field, Reason: "duplicate parameter " + p.Name + " at"}
		}
		seen[key] = true

		sref := p.Schema
		if sref == nil {
			if _, media := pickMedia(p.Content); media != nil {
				sref = media.Schema
			}
		}
		s, err := schema.FromOpenAPI(sref)
		if err != nil {
			return nil, &MalformedSpecError{Field: field + ".schema", Reason: err.Error()}
		}
		if s == nil {
			s = &schema.Any{}
		}
		out = append(out, Parameter{
			Name:        p.Name,
			In:          p.In,
			Required:    p.Required,
			Description: p.Description,
			Schema:      s,
		})
	}
	return out, nil
}

func definitions(c *openapi3.Components) (schema.Definitions, error) {
	defs := make(schema.Definitions, len(c.Schemas))
	for name, ref := range c.Schemas {
		s, err := schema.FromOpenAPI(ref)
		if err != nil {
			return nil, &MalformedSpecError{Field: componentsPrefix + "schemas/" + name, Reason: err.Error()}
		}
		if s == nil {
			s = &schema.Any{}
		}
		defs[name] = s
	}
	if err := defs.Check(); err != nil {
		return nil, schemaError(err)
	}
	return defs, nil
}

// checkRefs makes sure every schema used by an operation points at an
// existing definition
func checkRefs(m *Model) error {
	for _, ep := range m.Endpoints {
		for _, method := range ep.Methods() {
			op := ep.Operations[method]
			var schemas []schema.Schema
			for _, p := range op.Effective {
				schemas = append(schemas, p.Schema)
			}
			if op.RequestBody != nil {
				schemas = append(schemas, op.RequestBody.Schema)
			}
			for _, resp := range op.Responses {
				schemas = append(schemas, resp.Schema)
			}
			for _, s := range schemas {
				for _, name := range schema.Refs(s) {
					if _, ok := m.Definitions[name]; !ok {
						return annotate(schemaError(&schema.MissingRefError{Name: name}), ep.Path, method)
					}
				}
			}
		}
	}
	return nil
}

func schemaError(err error) error {
	var cycle *schema.CycleError
	if errors.As(err, &cycle) {
		chain := make([]string, len(cycle.Chain))
		for i, name := range cycle.Chain {
			chain[i] = componentsPrefix + "schemas/" + escapeToken(name)
		}
		return &CircularReferenceError{Chain: chain}
	}
	var missing *schema.MissingRefError
	if errors.As(err, &missing) {
		return &MalformedSpecError{Field: componentsPrefix + "schemas/" + escapeToken(missing.Name), Reason: "dangling reference"}
	}
	return err
}

// annotate adds the endpoint location to a MalformedSpecError that lacks one
func annotate(err error, path, method string) error {
	var malformed *MalformedSpecError
	if errors.As(err, &malformed) && malformed.Path == "" {
		malformed.Path = path
		malformed.Method = method
	}
	return err
}

// pickMedia prefers application/json, then any JSON media type, then the
// first media type in sorted order
func pickMedia(content openapi3.Content) (string, *openapi3.MediaType) {
	if len(content) == 0 {
		return "", nil
	}
	if m, ok := content["application/json"]; ok {
		return "application/json", m
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, "json") {
			return k, content[k]
		}
	}
	return keys[0], content[keys[0]]
}

func serverURL(servers openapi3.Servers) string {
	if len(servers) == 0 || servers[0] == nil {
		return ""
	}
	s := servers[0]
	url := s.URL
	for name, v := range s.Variables {
		if v == nil {
			continue
		}
		url = strings.ReplaceAll(url, "{"+name+"}", v.Default)
	}
	return strings.TrimSuffix(url, "/")
}

func orderedPaths(paths *openapi3.Paths, order []string) []string {
	all := paths.Map()
	out := make([]string, 0, len(all))
	seen := make(map[string]bool, len(all))
	for _, p := range order {
		if _, ok := all[p]; ok && !seen[p] {
			out = append(out, p)
			seen[p] = true
		}
	}
	var rest []string
	for p := range all {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
