package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"api-contract-fuzzer/internal/config"
	"api-contract-fuzzer/internal/logger"
	"api-contract-fuzzer/internal/workspace"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every command needs once the root command has run
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	log      *logger.Logger
	ws       *workspace.Workspace
	prompter *Prompter
	out      io.Writer
}

// NewRootCommand builds the command tree. Interactive questions are read
// from in; output goes to out.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{
		prompter: NewPrompter(in, out),
		out:      out,
	}

	root := &cobra.Command{
		Use:           "api-contract-fuzzer",
		Short:         "Contract and fuzz testing for OpenAPI described HTTP APIs",
		Long:          "Saves an OpenAPI description, fills sample pools for its path and query parameters, generates and executes randomized requests, and checks every response against the declared response schemas.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Close()
			}
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the config file (default "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")

	root.AddCommand(
		a.saveCommand(),
		a.fillCommand(),
		a.generateCommand(),
		a.executeCommand(),
		a.evaluateCommand(),
		a.runCommand(),
		a.listCommand(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	log, err := logger.New(logger.Options{Level: cfg.Logging.Level, Dir: cfg.Logging.Dir})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	a.ws = workspace.New(cfg.Workspace.Dir)
	return nil
}

// chooseSpec returns the spec named by flag, or asks for one
func (a *app) chooseSpec(flag string) (string, error) {
	if flag != "" {
		if !a.ws.Exists(flag) {
			return "", fmt.Errorf("spec %q is not saved in %s", flag, a.ws.Root())
		}
		return flag, nil
	}
	specs, err := a.ws.List()
	if err != nil {
		return "", err
	}
	if len(specs) == 0 {
		return "", workspace.ErrNoSpecs
	}
	if len(specs) == 1 {
		return specs[0], nil
	}
	return a.prompter.Choose("Choose a spec:", specs)
}

func (a *app) saveCommand() *cobra.Command {
	var methods []string
	cmd := &cobra.Command{
		Use:   "save <url|file>",
		Short: "Load an API description and save it with its token pool file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(methods) > 0 {
				a.cfg.Generation.Methods = methods
			}
			name, err := a.save(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %s to %s\n", name, a.ws.Dir(name))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&methods, "methods", nil, "testable methods whose parameters become tokens")
	return cmd
}

func (a *app) fillCommand() *cobra.Command {
	var (
		specName string
		quantity int
		source   string
	)
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill the sample pool of every token",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.chooseSpec(specName)
			if err != nil {
				return err
			}
			if quantity > 0 {
				a.cfg.Pools.Quantity = quantity
			}
			if source != "" {
				a.cfg.Pools.Source = source
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}
			return a.fill(cmd.Context(), name)
		},
	}
	cmd.Flags().StringVarP(&specName, "spec", "s", "", "saved spec name")
	cmd.Flags().IntVarP(&quantity, "quantity", "n", 0, "values per token")
	cmd.Flags().StringVar(&source, "source", "", "default pool source (faker|database|llm)")
	return cmd
}

func (a *app) generateCommand() *cobra.Command {
	var (
		specName string
		quantity int
		seed     int64
		methods  []string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate test cases from the spec and its token pools",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.chooseSpec(specName)
			if err != nil {
				return err
			}
			if quantity > 0 {
				a.cfg.Generation.Quantity = quantity
			}
			if seed != 0 {
				a.cfg.Generation.Seed = seed
			}
			return a.generate(name, methods)
		},
	}
	cmd.Flags().StringVarP(&specName, "spec", "s", "", "saved spec name")
	cmd.Flags().IntVarP(&quantity, "quantity", "n", 0, "test cases per operation")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for reproducible generation")
	cmd.Flags().StringSliceVar(&methods, "methods", nil, "methods to generate for instead of those the spec was saved with")
	return cmd
}

func (a *app) executeCommand() *cobra.Command {
	var specName string
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Send every generated test case and record the responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.chooseSpec(specName)
			if err != nil {
				return err
			}
			return a.execute(cmd.Context(), name)
		},
	}
	cmd.Flags().StringVarP(&specName, "spec", "s", "", "saved spec name")
	return cmd
}

func (a *app) evaluateCommand() *cobra.Command {
	var specName string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Check recorded responses against the declared response schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.chooseSpec(specName)
			if err != nil {
				return err
			}
			return a.evaluate(name)
		},
	}
	cmd.Flags().StringVarP(&specName, "spec", "s", "", "saved spec name")
	return cmd
}

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <url|file>",
		Short: "Save, fill, generate, execute and evaluate in one go",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name, err := a.save(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.fill(ctx, name); err != nil {
				return err
			}
			if err := a.generate(name, nil); err != nil {
				return err
			}
			if err := a.execute(ctx, name); err != nil {
				return err
			}
			return a.evaluate(name)
		},
	}
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved specs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := a.ws.List()
			if err != nil {
				return err
			}
			if len(specs) == 0 {
				fmt.Fprintln(a.out, "No saved specs")
				return nil
			}
			for i, s := range specs {
				fmt.Fprintf(a.out, "%d. %s\n", i+1, s)
			}
			return nil
		},
	}
}

// Execute runs the command line against the process streams
func Execute() {
	root := NewRootCommand(os.Stdin, os.Stdout)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// zlog returns the structured logger handed to components
func (a *app) zlog() *zap.Logger {
	return a.log.Logger
}
