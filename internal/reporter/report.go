package reporter

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"api-contract-fuzzer/internal/evaluator"
	"api-contract-fuzzer/internal/types"

	"github.com/fatih/color"
)

// Report represents one evaluation run as written to disk
type Report struct {
	Timestamp   time.Time                          `json:"timestamp"`
	Spec        string                             `json:"spec"`
	TotalTests  int                                `json:"totalTests"`
	PassedTests int                                `json:"passedTests"`
	FailedTests int                                `json:"failedTests"`
	Endpoints   map[string]*types.EvaluationRecord `json:"endpoints"`
	order       []string
}

// Reporter handles the generation of test reports
type Reporter struct {
	config ReportingConfig
	now    func() time.Time
}

// ReportingConfig holds the configuration for reporting
type ReportingConfig struct {
	Format    []string
	OutputDir string
	Detailed  bool
}

// NewReporter creates a new instance of Reporter
func NewReporter(config ReportingConfig) *Reporter {
	return &Reporter{
		config: config,
		now:    time.Now,
	}
}

// Build turns an evaluation result into a report. Endpoints are keyed as
// "METHOD /path".
func (r *Reporter) Build(specTitle string, result evaluator.Report) Report {
	report := Report{
		Timestamp: r.now(),
		Spec:      specTitle,
		Endpoints: make(map[string]*types.EvaluationRecord, len(result)),
	}
	for _, key := range result.Keys() {
		record := result[key]
		name := key.String()
		report.Endpoints[name] = record
		report.order = append(report.order, name)
		report.TotalTests += record.Total
		report.PassedTests += record.Succeeded
		report.FailedTests += record.Failed
	}
	return report
}

// Evaluation returns the evaluation file content for result
func Evaluation(result evaluator.Report) map[string]*types.EvaluationRecord {
	out := make(map[string]*types.EvaluationRecord, len(result))
	for key, record := range result {
		out[key.String()] = record
	}
	return out
}

// GenerateReport writes the report in every configured format and returns
// the files written
func (r *Reporter) GenerateReport(report Report) ([]string, error) {
	if !r.config.Detailed {
		report = withoutDetails(report)
	}

	var written []string
	for _, format := range r.config.Format {
		var (
			path string
			err  error
		)
		switch format {
		case "json":
			path, err = r.generateJSONReport(report)
		case "html":
			path, err = r.generateHTMLReport(report)
		default:
			return written, fmt.Errorf("unsupported report format %q", format)
		}
		if err != nil {
			return written, fmt.Errorf("failed to generate %s report: %w", format, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// withoutDetails drops the offending results, keeping counters and messages
func withoutDetails(report Report) Report {
	slim := report
	slim.Endpoints = make(map[string]*types.EvaluationRecord, len(report.Endpoints))
	for name, record := range report.Endpoints {
		copied := *record
		copied.FailureDetails = []types.TestResult{}
		slim.Endpoints[name] = &copied
	}
	return slim
}

func (r *Reporter) reportPath(report Report, ext string) (string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(r.config.OutputDir, fmt.Sprintf("report_%s.%s", report.Timestamp.Format("20060102_150405"), ext)), nil
}

// generateJSONReport generates a JSON format report
func (r *Reporter) generateJSONReport(report Report) (string, error) {
	reportPath, err := r.reportPath(report, "json")
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return reportPath, os.WriteFile(reportPath, data, 0644)
}

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"percent": func(rate float64) string { return fmt.Sprintf("%.1f%%", rate*100) },
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Spec}} evaluation</title></head>
<body>
<h1>{{.Spec}}</h1>
<p>{{.Timestamp.Format "2006-01-02 15:04:05"}}: {{.PassedTests}} of {{.TotalTests}} responses conform, {{.FailedTests}} failed</p>
<table border="1">
<tr><th>Endpoint</th><th>Total</th><th>Succeeded</th><th>Failed</th><th>Success rate</th><th>Errors</th></tr>
{{range .Rows}}<tr><td>{{.Name}}</td><td>{{.Record.Total}}</td><td>{{.Record.Succeeded}}</td><td>{{.Record.Failed}}</td><td>{{percent .Record.SuccessRate}}</td><td>{{range .Record.Errors}}{{.}}<br>{{end}}</td></tr>
{{end}}</table>
</body>
</html>
`))

type htmlRow struct {
	Name   string
	Record *types.EvaluationRecord
}

// generateHTMLReport generates an HTML format report
func (r *Reporter) generateHTMLReport(report Report) (string, error) {
	reportPath, err := r.reportPath(report, "html")
	if err != nil {
		return "", err
	}
	rows := make([]htmlRow, 0, len(report.order))
	for _, name := range report.order {
		rows = append(rows, htmlRow{Name: name, Record: report.Endpoints[name]})
	}

	f, err := os.Create(reportPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	err = htmlReport.Execute(f, struct {
		Report
		Rows []htmlRow
	}{report, rows})
	return reportPath, err
}

// PrintSummary writes one line per endpoint, colored by outcome
func PrintSummary(w io.Writer, report Report) {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)

	for _, name := range report.order {
		record := report.Endpoints[name]
		status := pass.Sprint("PASS")
		if !record.Success {
			status = fail.Sprint("FAIL")
		}
		fmt.Fprintf(w, "%s %-40s %d/%d (%.1f%%)\n", status, name, record.Succeeded, record.Total, record.SuccessRate*100)
		for _, msg := range uniqueMessages(record.Errors) {
			fmt.Fprintf(w, "     %s\n", dim.Sprint(msg))
		}
	}
	fmt.Fprintf(w, "\n%d tests, %s, %s\n",
		report.TotalTests,
		pass.Sprintf("%d passed", report.PassedTests),
		fail.Sprintf("%d failed", report.FailedTests))
}

func uniqueMessages(messages []string) []string {
	seen := make(map[string]bool, len(messages))
	var out []string
	for _, m := range messages {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
