package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/loanflow/loanflow/internal/config"
	"github.com/loanflow/loanflow/internal/telemetry"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the loanctl CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "loanctl",
		Short: "loanctl - loan decision service",
		Long:  "Serve and operate the idempotent loan decision API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewEvaluateCommand(opts))
	cmd.AddCommand(NewScenariosCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code. A
// failing command is reported on stderr in the --format the user chose.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format, _ := cmd.PersistentFlags().GetString("format")
	verbose, _ := cmd.PersistentFlags().GetBool("verbose")
	code := GetExitCode(err)

	f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: verbose}
	message := err.Error()
	var details any
	var exitErr *ExitError
	if format == "json" && errors.As(err, &exitErr) && exitErr.Err != nil {
		message = exitErr.Message
		details = exitErr.Err.Error()
	}
	_ = f.Error(errorCode(code), message, details)
	return code
}

// loadConfig reads the config named by --config plus the environment.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// logger builds the process logger and installs it as the slog default.
func (o *RootOptions) logger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := telemetry.NewLogger(cfg.Log, w)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	slog.SetDefault(logger)
	return logger, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
