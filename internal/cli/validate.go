package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dishm/internal/config"
	"github.com/roach88/dishm/internal/testcases"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Config string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool            `json:"valid"`
	TestCase  string          `json:"test_case,omitempty"`
	Endpoint  uint16          `json:"endpoint,omitempty"`
	Transport string          `json:"transport,omitempty"`
	Operator  string          `json:"operator,omitempty"`
	PICS      map[string]bool `json:"pics,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration without touching the device",
		Long: `Validate a run configuration and its PICS without contacting the device.

Checks the configuration against its schema, applies defaults, loads the
PICS file and inline PICS, and verifies that the test case is registered.

Examples:
  dishm validate --config ./dishm.yaml
  dishm validate --config ./dishm.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to configuration file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return outputValidateError(formatter, ErrCodeConfig, err.Error())
	}
	formatter.VerboseLog("Loaded %s", opts.Config)

	if err := cfg.Validate(); err != nil {
		return outputValidateError(formatter, ErrCodeConfig, err.Error())
	}

	set, err := cfg.LoadPICS()
	if err != nil {
		return outputValidateError(formatter, ErrCodeConfig, err.Error())
	}
	formatter.VerboseLog("Loaded %d PICS entries", len(set))

	if _, ok := testcases.All().Lookup(cfg.TestCase); !ok {
		return outputValidateError(formatter, ErrCodeConfig, fmt.Sprintf("unknown test case %q", cfg.TestCase))
	}

	result := ValidationResult{
		Valid:     true,
		TestCase:  cfg.TestCase,
		Endpoint:  cfg.Endpoint,
		Transport: cfg.Device.Transport,
		Operator:  cfg.Operator,
		PICS:      set,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%s Configuration valid\n", passMark())
	fmt.Fprintf(formatter.Writer, "  Test Case: %s\n", result.TestCase)
	fmt.Fprintf(formatter.Writer, "  Endpoint:  %d\n", result.Endpoint)
	fmt.Fprintf(formatter.Writer, "  Transport: %s\n", result.Transport)
	fmt.Fprintf(formatter.Writer, "  Operator:  %s\n", result.Operator)
	fmt.Fprintf(formatter.Writer, "  PICS:      %d entries\n", len(set))
	if formatter.Verbose {
		for _, key := range set.Keys() {
			fmt.Fprintf(formatter.Writer, "    %s=%t\n", key, set[key])
		}
	}
	return nil
}

// outputValidateError outputs a validation error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Validation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
