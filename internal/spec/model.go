package spec

import (
	"fmt"
	"strings"

	"api-contract-fuzzer/internal/schema"
)

// Methods is the closed set of operation keys a path item may carry, in the
// order they are reported
var Methods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// Parameter locations
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
	InCookie = "cookie"
)

// IsMethod reports whether m belongs to Methods (case-insensitive)
func IsMethod(m string) bool {
	m = strings.ToLower(m)
	for _, known := range Methods {
		if known == m {
			return true
		}
	}
	return false
}

// Model is the normalized, operation-centric view of an API description.
// It is read-only once built.
type Model struct {
	Title       string
	Version     string
	ServerURL   string
	Endpoints   []*Endpoint
	Definitions schema.Definitions
}

// Endpoint is a URL template and the operations it supports
type Endpoint struct {
	Path string
	// Shared parameters apply to every operation of the endpoint
	Shared     []Parameter
	Operations map[string]*Operation
}

// Operation is one HTTP method on one endpoint
type Operation struct {
	Method      string
	Path        string
	OperationID string
	Summary     string
	// Parameters are the operation's own parameters
	Parameters []Parameter
	// Effective is Parameters merged over the endpoint's shared parameters
	Effective   []Parameter
	RequestBody *RequestBody
	// Responses is keyed by status code, a range such as "4XX", or "default"
	Responses map[string]*Response
}

// Parameter is a single named input of an operation
type Parameter struct {
	Name        string
	In          string
	Required    bool
	Description string
	Schema      schema.Schema
}

// RequestBody describes the payload an operation accepts
type RequestBody struct {
	Required    bool
	ContentType string
	Schema      schema.Schema
}

// Response describes one declared response. A nil Schema means the response
// declares no content, and any payload is accepted.
type Response struct {
	Description string
	ContentType string
	Schema      schema.Schema
}

// Operation looks up the operation registered for path and method
func (m *Model) Operation(path, method string) (*Operation, bool) {
	for _, ep := range m.Endpoints {
		if ep.Path == path {
			return ep.Operation(method)
		}
	}
	return nil, false
}

// Endpoint looks up an endpoint by its URL template
func (m *Model) Endpoint(path string) (*Endpoint, bool) {
	for _, ep := range m.Endpoints {
		if ep.Path == path {
			return ep, true
		}
	}
	return nil, false
}

// Operation returns the operation for method, if the endpoint implements it
func (e *Endpoint) Operation(method string) (*Operation, bool) {
	op, ok := e.Operations[strings.ToLower(method)]
	return op, ok
}

// Methods lists the implemented methods in canonical order
func (e *Endpoint) Methods() []string {
	var out []string
	for _, m := range Methods {
		if _, ok := e.Operations[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ResponseFor returns the declared response for an observed status code,
// trying the exact code, then its range ("4XX"), then "default". The key that
// matched is returned alongside.
func (o *Operation) ResponseFor(status int) (*Response, string, bool) {
	exact := fmt.Sprintf("%d", status)
	if r, ok := o.Responses[exact]; ok {
		return r, exact, true
	}
	if status >= 100 && status < 600 {
		rng := fmt.Sprintf("%dXX", status/100)
		for key, r := range o.Responses {
			if strings.EqualFold(key, rng) {
				return r, key, true
			}
		}
	}
	if r, ok := o.Responses["default"]; ok {
		return r, "default", true
	}
	return nil, "", false
}

// MergeParameters applies the merge rule: an own parameter replaces a shared
// parameter of the same name. Own parameters come first in declaration order,
// followed by the shared parameters that were not overridden.
func MergeParameters(shared, own []Parameter) []Parameter {
	names := make(map[string]bool, len(own))
	out := make([]Parameter, 0, len(shared)+len(own))
	for _, p := range own {
		names[p.Name] = true
		out = append(out, p)
	}
	for _, p := range shared {
		if names[p.Name] {
			continue
		}
		out = append(out, p)
	}
	return out
}
