package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"api-contract-fuzzer/internal/testcase"
	"api-contract-fuzzer/internal/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TestConfig holds configuration for test execution
type TestConfig struct {
	// MaxWorkers bounds in-flight requests; zero dispatches every case at once
	MaxWorkers int
	// Timeout is the per-request transport timeout in seconds
	Timeout int
	// AuthHeader and AuthToken are sent with every request when the token is set
	AuthHeader string
	AuthToken  string
	Headers    map[string]string
}

// TestExecutor sends test cases and records what came back
type TestExecutor struct {
	config TestConfig
	client *http.Client
	logger *zap.Logger
}

// NewTestExecutor creates a new test executor
func NewTestExecutor(config TestConfig, client *http.Client, logger *zap.Logger) *TestExecutor {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(config.Timeout) * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AuthHeader == "" {
		config.AuthHeader = "Authorization"
	}
	return &TestExecutor{
		config: config,
		client: client,
		logger: logger,
	}
}

// RunTests executes every case concurrently and waits for the whole batch.
// A failing request is recorded as a result and never cancels its siblings.
// Results are returned in completion order.
func (e *TestExecutor) RunTests(ctx context.Context, cases []types.TestCase) []types.TestResult {
	results := make([]types.TestResult, 0, len(cases))
	var mu sync.Mutex

	var g errgroup.Group
	if e.config.MaxWorkers > 0 {
		g.SetLimit(e.config.MaxWorkers)
	}
	for _, tc := range cases {
		tc := tc
		g.Go(func() error {
			result := e.executeTest(ctx, tc)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("executed test cases", zap.Int("count", len(results)))
	return results
}

// buildRequest creates an HTTP request for the given test case
func (e *TestExecutor) buildRequest(ctx context.Context, tc types.TestCase) (*http.Request, error) {
	target := strings.TrimSuffix(tc.BaseURL, "/") + tc.URL
	if len(tc.Params) > 0 {
		keys := make([]string, 0, len(tc.Params))
		for k := range tc.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		query := url.Values{}
		for _, k := range keys {
			query.Set(k, testcase.FormatValue(tc.Params[k]))
		}
		target = target + "?" + query.Encode()
	}

	var body io.Reader
	if tc.Data != nil {
		bodyBytes, err := json.Marshal(tc.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(tc.Method), target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range e.config.Headers {
		req.Header.Set(key, value)
	}
	if e.config.AuthToken != "" {
		req.Header.Set(e.config.AuthHeader, e.config.AuthToken)
	}
	return req, nil
}

// executeTest executes a single test and returns the result
func (e *TestExecutor) executeTest(ctx context.Context, tc types.TestCase) types.TestResult {
	result := types.TestResult{TestCase: tc}

	req, err := e.buildRequest(ctx, tc)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		e.logger.Debug("request failed", zap.String("method", req.Method), zap.String("url", req.URL.String()), zap.Error(err))
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	result.Status = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read response body: %v", err)
		return result
	}
	result.Response = decodeBody(body)

	e.logger.Debug("received response",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", result.Duration))
	return result
}

// decodeBody returns the JSON value of body, or the raw text when it is not JSON
func decodeBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(trimmed, &payload); err == nil {
		return payload
	}
	return string(body)
}
