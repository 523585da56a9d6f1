package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/dishm/internal/config"
	"github.com/roach88/dishm/internal/device"
	"github.com/roach88/dishm/internal/device/modbus"
	"github.com/roach88/dishm/internal/device/sim"
	"github.com/roach88/dishm/internal/harness"
	"github.com/roach88/dishm/internal/operator"
	"github.com/roach88/dishm/internal/store"
	"github.com/roach88/dishm/internal/testcases"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config      string
	Database    string
	AutoConfirm bool

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs harness.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a test case against a device",
		Long: `Run a conformance test case against the configured device.

The configuration file (YAML or CUE) selects the test case, the endpoint,
the PICS, and the device transport. A simulated device can be driven with
an automatic operator; a real device prompts on the terminal whenever a
manual action such as a power cycle is required.

Exit codes:
  0 - The test case passed or was skipped
  1 - The test case failed
  2 - Command error (bad config, unreachable device, transport error)

Examples:
  dishm run --config ./dishm.yaml
  dishm run --config ./dishm.cue --db ./runs.db
  dishm run --config ./sim.yaml --auto-confirm --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTestCase(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to configuration file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config store)")
	cmd.Flags().BoolVar(&opts.AutoConfirm, "auto-confirm", false, "acknowledge operator prompts automatically (sim only)")

	return cmd
}

func runTestCase(opts *RunOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return reportCommandError(formatter, ErrCodeConfig, "failed to load config", err)
	}
	if opts.AutoConfirm {
		cfg.Operator = config.OperatorAuto
	}
	if err := cfg.Validate(); err != nil {
		return reportCommandError(formatter, ErrCodeConfig, "invalid config", err)
	}

	logger, err := newLogger(cfg.LogLevel, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return reportCommandError(formatter, ErrCodeConfig, "invalid config", err)
	}

	set, err := cfg.LoadPICS()
	if err != nil {
		return reportCommandError(formatter, ErrCodeConfig, "failed to load PICS", err)
	}

	tc, ok := testcases.All().Lookup(cfg.TestCase)
	if !ok {
		return reportCommandError(formatter, ErrCodeConfig, "unknown test case",
			fmt.Errorf("%q (see dishm list)", cfg.TestCase))
	}

	dut, op, cleanup, err := openDevice(cfg, formatter, cmd.InOrStdin(), logger)
	if err != nil {
		return reportCommandError(formatter, ErrCodeDevice, "failed to open device", err)
	}
	defer cleanup()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("device ready", "transport", cfg.Device.Transport, "endpoint", cfg.Endpoint, "operator", cfg.Operator)
	res := harness.Execute(ctx, tc, harness.Env{
		Device:   dut,
		PICS:     set,
		Operator: op,
		Logger:   logger,
		Params:   cfg.RunParams(),
		RunIDs:   opts.RunIDs,
	})

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Path(cfg.Store)
	}
	if dbPath != "" {
		if err := persistRun(ctx, dbPath, res); err != nil {
			return reportCommandError(formatter, ErrCodeStore, "failed to store run", err)
		}
		formatter.VerboseLog("Stored run %s in %s", res.RunID, dbPath)
	}

	if opts.Format == "json" {
		if err := outputRunJSON(formatter, res); err != nil {
			return err
		}
	} else {
		outputRunText(formatter, tc, res)
	}

	return runExitError(res)
}

// newLogger builds the stderr handler. --verbose forces debug.
func newLogger(level string, verbose bool, w io.Writer) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// openDevice builds the DUT controller and the operator for cfg. The
// returned cleanup is never nil.
func openDevice(cfg *config.Config, f *OutputFormatter, in io.Reader, logger *slog.Logger) (device.Controller, operator.Confirmer, func(), error) {
	// Prompts must not interleave with a JSON document on stdout.
	promptOut := f.Writer
	if f.Format == "json" {
		promptOut = f.GetErrWriter()
	}

	switch cfg.Device.Transport {
	case config.TransportSim:
		dut, err := sim.New(cfg.Endpoint, cfg.Device.Sim.State,
			sim.WithFaults(cfg.Device.Sim.Faults),
			sim.WithLogger(logger.With("component", "sim")),
		)
		if err != nil {
			return nil, nil, nil, err
		}
		var op operator.Confirmer = operator.NewConsole(in, promptOut)
		if cfg.Operator == config.OperatorAuto {
			op = &operator.Auto{Hook: func(context.Context, string) error {
				dut.PowerCycle()
				return nil
			}}
		}
		return dut, op, func() {}, nil

	case config.TransportModbus:
		ctrl, err := modbus.Dial(cfg.Endpoint, *cfg.Device.Modbus)
		if err != nil {
			return nil, nil, nil, err
		}
		cleanup := func() {
			if err := ctrl.Close(); err != nil {
				logger.Error("error closing modbus connection", "error", err)
			}
		}
		return ctrl, operator.NewConsole(in, promptOut), cleanup, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown transport %q", cfg.Device.Transport)
}

func persistRun(ctx context.Context, path string, res *harness.Result) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.WriteRun(ctx, res)
}

// runExitError maps an outcome to the process exit code.
func runExitError(res *harness.Result) error {
	switch res.Outcome {
	case harness.OutcomeFail:
		return NewExitError(ExitFailure, fmt.Sprintf("%s failed", res.TestCase))
	case harness.OutcomeError:
		return NewExitError(ExitCommandError, fmt.Sprintf("%s did not complete", res.TestCase))
	}
	return nil
}

// reportCommandError prints a command error in JSON mode and returns an
// exit error with ExitCommandError. Text mode leaves printing to main.
func reportCommandError(f *OutputFormatter, code, message string, err error) error {
	if f.Format == "json" {
		if outErr := f.Error(code, fmt.Sprintf("%s: %v", message, err), nil); outErr != nil {
			return outErr
		}
	}
	return WrapExitError(ExitCommandError, message, err)
}

func outputRunJSON(f *OutputFormatter, res *harness.Result) error {
	response := CLIResponse{
		Status:  "ok",
		Data:    res,
		TraceID: res.RunID,
	}
	switch res.Outcome {
	case harness.OutcomeFail:
		response.Status = "error"
		response.Error = &CLIError{Code: ErrCodeTestFailed, Message: fmt.Sprintf("%s failed", res.TestCase), Details: res.Errors}
	case harness.OutcomeError:
		response.Status = "error"
		response.Error = &CLIError{Code: ErrCodeTestError, Message: fmt.Sprintf("%s did not complete", res.TestCase), Details: res.Errors}
	}
	return writeJSON(f.Writer, response)
}

func outputRunText(f *OutputFormatter, tc harness.TestCase, res *harness.Result) {
	w := f.Writer

	fmt.Fprintln(w, headerStyle.Render(tc.Description()))
	fmt.Fprintf(w, "Run: %s (endpoint %d)\n", res.RunID, res.Endpoint)
	fmt.Fprintln(w)
	for _, s := range res.Steps {
		fmt.Fprintf(w, "  Step %d: %s\n", s.Number, s.Description)
	}
	if len(res.Steps) > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%s %s\n", outcomeLabel(res.Outcome), res.TestCase)
	if res.SkipReason != "" {
		fmt.Fprintf(w, "  %s\n", res.SkipReason)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if f.Verbose && res.Digest != "" {
		fmt.Fprintf(w, "Digest: %s\n", res.Digest)
	}
}
