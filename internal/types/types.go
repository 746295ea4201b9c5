package types

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"api-contract-fuzzer/internal/schema"
)

// Token is a spec-wide fuzzable input, keyed by parameter name
type Token struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	In          string      `json:"in"`
	Schema      schema.JSON `json:"schema"`
}

// MappedToken is one entry of the token pool file
type MappedToken struct {
	Token           Token `json:"token"`
	AvailableTokens []any `json:"availableTokens"`
}

// Pools maps token names to their sample pools
type Pools map[string]*MappedToken

// Values returns the sample pool for name
func (p Pools) Values(name string) []any {
	if mt, ok := p[name]; ok && mt != nil {
		return mt.AvailableTokens
	}
	return nil
}

// Empty lists the tokens whose pools hold no values, sorted by name
func (p Pools) Empty() []string {
	var out []string
	for name, mt := range p {
		if mt == nil || len(mt.AvailableTokens) == 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// EndpointKey identifies the operation a test case was generated for
type EndpointKey struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func (k EndpointKey) String() string {
	return fmt.Sprintf("%s %s", strings.ToUpper(k.Method), k.Path)
}

// TestCase is one concrete request descriptor
type TestCase struct {
	ID      string         `json:"id"`
	BaseURL string         `json:"baseURL"`
	Method  string         `json:"method"`
	URL     string         `json:"url"`
	Params  map[string]any `json:"params,omitempty"`
	Data    any            `json:"data,omitempty"`
	// Endpoint is the URL template the case was generated from
	Endpoint string `json:"endpoint"`
}

// Key returns the endpoint/method pair the case belongs to
func (tc TestCase) Key() EndpointKey {
	return EndpointKey{Path: tc.Endpoint, Method: strings.ToLower(tc.Method)}
}

// TestResult is a TestCase paired with its observed outcome. Status is 0 when
// no response was received.
type TestResult struct {
	TestCase
	Status   int           `json:"status"`
	Response any           `json:"response,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// EvaluationRecord aggregates the outcome of every result for one endpoint
type EvaluationRecord struct {
	Endpoint       string       `json:"endpoint"`
	Method         string       `json:"method"`
	Total          int          `json:"total"`
	Succeeded      int          `json:"succeeded"`
	Failed         int          `json:"failed"`
	SuccessRate    float64      `json:"successRate"`
	Success        bool         `json:"success"`
	FailureDetails []TestResult `json:"failureDetails"`
	Errors         []string     `json:"errors"`
}

// NewEvaluationRecord starts an empty, successful record for key
func NewEvaluationRecord(key EndpointKey) *EvaluationRecord {
	return &EvaluationRecord{
		Endpoint:       key.Path,
		Method:         key.Method,
		Success:        true,
		FailureDetails: []TestResult{},
		Errors:         []string{},
	}
}

// Pass records a conforming result
func (r *EvaluationRecord) Pass() {
	r.Total++
	r.Succeeded++
}

// Fail records a non-conforming result. Success never returns to true.
func (r *EvaluationRecord) Fail(result TestResult, message string) {
	r.Total++
	r.Failed++
	r.Success = false
	r.FailureDetails = append(r.FailureDetails, result)
	r.Errors = append(r.Errors, message)
}

// Finalize computes the success rate
func (r *EvaluationRecord) Finalize() {
	if r.Total == 0 {
		r.SuccessRate = 0
		return
	}
	r.SuccessRate = float64(r.Succeeded) / float64(r.Total)
}
