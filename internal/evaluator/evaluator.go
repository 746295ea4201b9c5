package evaluator

import (
	"fmt"
	"sort"

	"api-contract-fuzzer/internal/schema"
	"api-contract-fuzzer/internal/spec"
	"api-contract-fuzzer/internal/types"

	"go.uber.org/zap"
)

// ResponseNotDefinedError records an observed status code the operation does
// not declare
type ResponseNotDefinedError struct {
	Status int
}

func (e *ResponseNotDefinedError) Error() string {
	return fmt.Sprintf("response %d not defined", e.Status)
}

// SchemaValidationError records a payload that does not satisfy the declared
// response schema
type SchemaValidationError struct {
	Status int
	// Key is the response entry the payload was checked against
	Key string
	Err error
}

func (e *SchemaValidationError) Error() string {
	return e.Err.Error()
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// Failure messages for results that never reach a status lookup
const (
	MsgNoResponse = "no response received"
	MsgNotInModel = "operation not defined"
)

// Report is the outcome of one evaluation run, keyed by endpoint and method
type Report map[types.EndpointKey]*types.EvaluationRecord

// Keys returns the report keys ordered by path, then method
func (r Report) Keys() []types.EndpointKey {
	keys := make([]types.EndpointKey, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Method < keys[j].Method
	})
	return keys
}

// Evaluator checks captured responses against the declared response schemas
type Evaluator struct {
	model  *spec.Model
	logger *zap.Logger
}

// NewEvaluator creates a new evaluator for model
func NewEvaluator(model *spec.Model, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{model: model, logger: logger}
}

// Evaluate is a shorthand for NewEvaluator(model, nil).Evaluate(results)
func Evaluate(model *spec.Model, results []types.TestResult) Report {
	return NewEvaluator(model, nil).Evaluate(results)
}

// Evaluate processes results in input order. Every result counts toward its
// endpoint's record; a single failure marks the endpoint unsuccessful for the
// rest of the run.
func (e *Evaluator) Evaluate(results []types.TestResult) Report {
	report := make(Report)
	for _, result := range results {
		key := result.Key()
		record, ok := report[key]
		if !ok {
			record = types.NewEvaluationRecord(key)
			report[key] = record
		}

		if err := e.check(result); err != nil {
			e.logger.Debug("result failed evaluation",
				zap.String("endpoint", key.String()),
				zap.Int("status", result.Status),
				zap.Error(err))
			record.Fail(result, err.Error())
			continue
		}
		record.Pass()
	}

	for _, record := range report {
		record.Finalize()
	}
	return report
}

// check returns nil when result conforms to its operation
func (e *Evaluator) check(result types.TestResult) error {
	op, ok := e.model.Operation(result.Endpoint, result.Method)
	if !ok {
		return fmt.Errorf("%s", MsgNotInModel)
	}
	if result.Status == 0 {
		if result.Error != "" {
			return fmt.Errorf("%s: %s", MsgNoResponse, result.Error)
		}
		return fmt.Errorf("%s", MsgNoResponse)
	}

	resp, key, ok := op.ResponseFor(result.Status)
	if !ok {
		return &ResponseNotDefinedError{Status: result.Status}
	}
	if resp.Schema == nil {
		return nil
	}
	if err := schema.Validate(resp.Schema, e.model.Definitions, result.Response); err != nil {
		return &SchemaValidationError{Status: result.Status, Key: key, Err: err}
	}
	return nil
}
