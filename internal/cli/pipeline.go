package cli

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"api-contract-fuzzer/internal/config"
	"api-contract-fuzzer/internal/evaluator"
	"api-contract-fuzzer/internal/executor"
	"api-contract-fuzzer/internal/llm"
	"api-contract-fuzzer/internal/parser"
	"api-contract-fuzzer/internal/reporter"
	"api-contract-fuzzer/internal/spec"
	"api-contract-fuzzer/internal/testcase"
	"api-contract-fuzzer/internal/testdata"
	"api-contract-fuzzer/internal/testdata/generator"
	"api-contract-fuzzer/internal/tokens"
	"api-contract-fuzzer/internal/types"
	"api-contract-fuzzer/internal/workspace"

	"go.uber.org/zap"
)

// save loads and normalizes the description at source, then stores it with
// an empty token pool file. It returns the spec name.
func (a *app) save(ctx context.Context, source string) (string, error) {
	p := parser.NewSwaggerParser(
		parser.WithLogger(a.zlog()),
		parser.WithHTTPClient(&http.Client{Timeout: time.Duration(a.cfg.Test.Timeout) * time.Second}),
	)
	doc, err := p.Load(ctx, source)
	if err != nil {
		return "", err
	}
	model, err := spec.Normalize(doc.T, doc.PathOrder)
	if err != nil {
		return "", err
	}

	name := workspace.Name(doc.Title())
	if err := a.ws.WriteRaw(name, workspace.SpecFile, doc.Raw); err != nil {
		return "", err
	}

	methods := tokens.NormalizeMethods(a.cfg.Generation.Methods)
	extracted := tokens.Extract(model, methods)
	if err := testdata.SavePools(a.ws.Path(name, workspace.TokensFile), testdata.NewPools(extracted)); err != nil {
		return "", err
	}
	if err := a.ws.WriteJSON(name, workspace.MethodsFile, methods); err != nil {
		return "", err
	}
	a.zlog().Info("saved spec",
		zap.String("spec", name),
		zap.Int("endpoints", len(model.Endpoints)),
		zap.Int("tokens", len(extracted)),
		zap.Strings("methods", methods))
	return name, nil
}

// loadModel re-parses and normalizes a saved description
func (a *app) loadModel(name string) (*spec.Model, error) {
	raw, err := a.ws.ReadRaw(name, workspace.SpecFile)
	if err != nil {
		return nil, err
	}
	doc, err := parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	return spec.Normalize(doc.T, doc.PathOrder)
}

// fill replaces every pool of the named spec. Tokens whose source fails are
// left empty and reported; the other pools are still saved.
func (a *app) fill(ctx context.Context, name string) error {
	path := a.ws.Path(name, workspace.TokensFile)
	pools, err := testdata.LoadPools(path)
	if err != nil {
		return err
	}

	sources, closeSources, err := a.poolSources(ctx)
	if err != nil {
		return err
	}
	defer closeSources()

	filler := testdata.NewFiller(a.cfg.Pools.Source, sources, a.cfg.Pools.Overrides, a.zlog())
	fillErr := filler.Fill(ctx, pools, a.cfg.Pools.Quantity)
	if err := testdata.SavePools(path, pools); err != nil {
		return err
	}
	if fillErr != nil {
		a.zlog().Warn("some token pools could not be filled", zap.Error(fillErr))
	}
	fmt.Fprintf(a.out, "Filled %d of %d token pools\n", len(pools)-len(pools.Empty()), len(pools))
	return nil
}

// poolSources connects every source the configuration selects
func (a *app) poolSources(ctx context.Context) (map[string]testdata.Source, func(), error) {
	seed := a.seed()
	sources := map[string]testdata.Source{
		testdata.SourceFaker: testdata.NewFakerSource(rand.New(rand.NewSource(seed))),
	}
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if a.cfg.Pools.Uses(config.SourceDatabase) {
		db, err := generator.Open(ctx, a.cfg.Pools.Database)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() { db.Close() })
		sources[testdata.SourceDatabase] = generator.NewDBSource(db, a.cfg.Pools.Database, a.zlog())
	}
	if a.cfg.Pools.Uses(config.SourceLLM) {
		client, err := llm.NewClient(&a.cfg.Pools.LLM.Config, a.log)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		sources[testdata.SourceLLM] = llm.NewSource(client)
	}
	return sources, closeAll, nil
}

// methods returns override when given, else the methods the spec was saved
// with, else the configured ones
func (a *app) methods(name string, override []string) ([]string, error) {
	if len(override) > 0 {
		return tokens.NormalizeMethods(override), nil
	}
	if a.ws.Has(name, workspace.MethodsFile) {
		var saved []string
		if err := a.ws.ReadJSON(name, workspace.MethodsFile, &saved); err != nil {
			return nil, err
		}
		return tokens.NormalizeMethods(saved), nil
	}
	return tokens.NormalizeMethods(a.cfg.Generation.Methods), nil
}

// generate writes the test case file of the named spec
func (a *app) generate(name string, override []string) error {
	model, err := a.loadModel(name)
	if err != nil {
		return err
	}
	pools, err := testdata.LoadPools(a.ws.Path(name, workspace.TokensFile))
	if err != nil {
		return err
	}

	methods, err := a.methods(name, override)
	if err != nil {
		return err
	}
	if missing := testcase.CheckPools(tokens.Required(model, methods), pools); len(missing) > 0 {
		return fmt.Errorf("tokens without sample values: %s; run fill before generating test cases", strings.Join(missing, ", "))
	}

	seed := a.seed()
	gen := testcase.NewSeeded(seed,
		testcase.WithBaseURL(a.cfg.Environment.BaseURL),
		testcase.WithLogger(a.zlog()))
	cases, dropped := gen.Generate(model, pools, methods, a.cfg.Generation.Quantity)
	if len(cases) > 0 && cases[0].BaseURL == "" {
		a.zlog().Warn("spec declares no server URL; set environment.base_url to reach the API")
	}
	if err := a.ws.WriteJSON(name, workspace.TestCasesFile, cases); err != nil {
		return err
	}
	a.zlog().Info("generated test cases",
		zap.String("spec", name),
		zap.Int("cases", len(cases)),
		zap.Int("dropped", len(dropped)),
		zap.Strings("methods", methods),
		zap.Int64("seed", seed))
	fmt.Fprintf(a.out, "Generated %d test cases (%d dropped)\n", len(cases), len(dropped))
	return nil
}

// execute sends the saved test cases and writes the results file
func (a *app) execute(ctx context.Context, name string) error {
	var cases []types.TestCase
	if err := a.ws.ReadJSON(name, workspace.TestCasesFile, &cases); err != nil {
		return err
	}
	exec := executor.NewTestExecutor(executor.TestConfig{
		MaxWorkers: a.cfg.Test.MaxWorkers,
		Timeout:    a.cfg.Test.Timeout,
		AuthHeader: a.cfg.Environment.Auth.Header,
		AuthToken:  a.cfg.Environment.Auth.Value(),
	}, nil, a.zlog())

	results := exec.RunTests(ctx, cases)
	if err := a.ws.WriteJSON(name, workspace.ResultsFile, results); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Executed %d test cases\n", len(results))
	return nil
}

// evaluate checks the results file and writes the evaluation and report
func (a *app) evaluate(name string) error {
	model, err := a.loadModel(name)
	if err != nil {
		return err
	}
	var results []types.TestResult
	if err := a.ws.ReadJSON(name, workspace.ResultsFile, &results); err != nil {
		return err
	}

	result := evaluator.NewEvaluator(model, a.zlog()).Evaluate(results)
	if err := a.ws.WriteJSON(name, workspace.EvaluationFile, reporter.Evaluation(result)); err != nil {
		return err
	}

	rep := reporter.NewReporter(reporter.ReportingConfig{
		Format:    a.cfg.Reporting.Format,
		OutputDir: a.cfg.Reporting.OutputDir,
		Detailed:  a.cfg.Reporting.Detailed,
	})
	report := rep.Build(name, result)
	files, err := rep.GenerateReport(report)
	if err != nil {
		return err
	}
	reporter.PrintSummary(a.out, report)
	for _, f := range files {
		a.zlog().Info("wrote report", zap.String("path", f))
	}
	return nil
}

func (a *app) seed() int64 {
	if a.cfg.Generation.Seed != 0 {
		return a.cfg.Generation.Seed
	}
	return time.Now().UnixNano()
}
