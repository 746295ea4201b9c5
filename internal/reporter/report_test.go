package reporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"api-contract-fuzzer/internal/evaluator"
	"api-contract-fuzzer/internal/types"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() evaluator.Report {
	getKey := types.EndpointKey{Path: "/pets/{id}", Method: "get"}
	listKey := types.EndpointKey{Path: "/pets", Method: "get"}

	get := types.NewEvaluationRecord(getKey)
	get.Pass()
	failed := types.TestResult{TestCase: types.TestCase{ID: "x", Method: "get", URL: "/pets/9", Endpoint: "/pets/{id}"}, Status: 500}
	get.Fail(failed, "response 500 not defined")
	get.Fail(failed, "response 500 not defined")
	get.Finalize()

	list := types.NewEvaluationRecord(listKey)
	list.Pass()
	list.Finalize()

	return evaluator.Report{getKey: get, listKey: list}
}

func newTestReporter(t *testing.T, formats []string, detailed bool) *Reporter {
	r := NewReporter(ReportingConfig{Format: formats, OutputDir: filepath.Join(t.TempDir(), "reports"), Detailed: detailed})
	r.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return r
}

func TestBuild(t *testing.T) {
	report := newTestReporter(t, nil, false).Build("Petstore", sampleResult())

	assert.Equal(t, "Petstore", report.Spec)
	assert.Equal(t, 4, report.TotalTests)
	assert.Equal(t, 2, report.PassedTests)
	assert.Equal(t, 2, report.FailedTests)
	assert.Equal(t, []string{"GET /pets", "GET /pets/{id}"}, report.order)
	assert.Contains(t, report.Endpoints, "GET /pets/{id}")
}

func TestGenerateJSONReport(t *testing.T) {
	tests := []struct {
		name        string
		detailed    bool
		wantDetails int
	}{
		{"summary only", false, 0},
		{"detailed", true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReporter(t, []string{"json"}, tt.detailed)
			result := sampleResult()
			files, err := r.GenerateReport(r.Build("Petstore", result))
			require.NoError(t, err)
			require.Len(t, files, 1)
			assert.Equal(t, "report_20240301_093000.json", filepath.Base(files[0]))

			data, err := os.ReadFile(files[0])
			require.NoError(t, err)
			var written Report
			require.NoError(t, json.Unmarshal(data, &written))
			assert.Equal(t, 4, written.TotalTests)
			record := written.Endpoints["GET /pets/{id}"]
			require.NotNil(t, record)
			assert.Len(t, record.FailureDetails, tt.wantDetails)
			assert.Len(t, record.Errors, 2)

			assert.Len(t, result[types.EndpointKey{Path: "/pets/{id}", Method: "get"}].FailureDetails, 2)
		})
	}
}

func TestGenerateHTMLReport(t *testing.T) {
	r := newTestReporter(t, []string{"json", "html"}, false)
	files, err := r.GenerateReport(r.Build("<Petstore>", sampleResult()))
	require.NoError(t, err)
	require.Len(t, files, 2)

	data, err := os.ReadFile(files[1])
	require.NoError(t, err)
	page := string(data)
	assert.Contains(t, page, "&lt;Petstore&gt;")
	assert.Contains(t, page, "GET /pets/{id}")
	assert.Contains(t, page, "33.3%")
	assert.Contains(t, page, "response 500 not defined")
}

func TestGenerateReportUnsupportedFormat(t *testing.T) {
	r := newTestReporter(t, []string{"xml"}, false)
	_, err := r.GenerateReport(r.Build("Petstore", sampleResult()))
	assert.EqualError(t, err, `unsupported report format "xml"`)
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	report := newTestReporter(t, nil, false).Build("Petstore", sampleResult())

	var buf bytes.Buffer
	PrintSummary(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "PASS GET /pets ")
	assert.Contains(t, out, "FAIL GET /pets/{id}")
	assert.Contains(t, out, "1/3 (33.3%)")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("response 500 not defined")))
	assert.Contains(t, out, "\n4 tests, 2 passed, 2 failed\n")
}

func TestEvaluation(t *testing.T) {
	out := Evaluation(sampleResult())
	assert.Len(t, out, 2)
	assert.Equal(t, 3, out["GET /pets/{id}"].Total)
}
