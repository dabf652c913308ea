package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loanflow/loanflow/internal/harness"
)

// ScenariosOptions holds flags for the scenarios command.
type ScenariosOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario name filter (glob pattern)
	GoldenDir string // defaults to <scenarios-dir>/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScenariosResult holds the overall run result.
type ScenariosResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenariosOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenarios <scenarios-dir>",
		Short: "Run decision scenarios",
		Long: `Run YAML decision scenarios through the loan workflow in every mode.

Each scenario must produce the same outcome in DRY_RUN, PLAN and EXECUTE
and match its expect block. When a golden file exists for the scenario,
the outcome snapshot must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unparsable scenario, etc.)

Examples:
  loanctl scenarios ./scenarios
  loanctl scenarios ./scenarios --filter "approve_*"
  loanctl scenarios ./scenarios --update
  loanctl scenarios ./scenarios --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name glob")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

func runScenarios(opts *ScenariosOptions, dir string, cmd *cobra.Command) error {
	if _, err := os.Stat(dir); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return WrapExitError(ExitCommandError, "invalid filter pattern", err)
		}
	}
	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(dir, "golden")
	}

	scenarios, err := harness.LoadDir(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	result := ScenariosResult{Scenarios: []ScenarioResult{}}
	f := opts.formatter(cmd)
	for _, sc := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, sc.Name); !ok {
				continue
			}
		}
		sr := runScenario(cmd, sc, goldenDir, opts.Update)
		f.VerboseLog("%s: pass=%t", sc.Name, sr.Pass)
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(result); err != nil {
			return err
		}
	} else {
		writeScenariosText(cmd, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

func runScenario(cmd *cobra.Command, sc *harness.Scenario, goldenDir string, update bool) ScenarioResult {
	res, err := harness.Run(cmd.Context(), sc)
	if err != nil {
		return ScenarioResult{Name: sc.Name, Errors: []string{fmt.Sprintf("execution failed: %v", err)}}
	}
	sr := ScenarioResult{Name: sc.Name, Pass: res.Pass, Errors: res.Errors}
	if !res.Pass {
		return sr
	}

	data, err := harness.MarshalSnapshot(harness.NewSnapshot(res))
	if err != nil {
		return failed(sr, "failed to marshal snapshot: %v", err)
	}
	goldenPath := filepath.Join(goldenDir, sc.Name+".golden")

	if update {
		if err := os.MkdirAll(goldenDir, 0o755); err != nil {
			return failed(sr, "failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
			return failed(sr, "failed to write golden file: %v", err)
		}
		return sr
	}

	want, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return sr
	}
	if err != nil {
		return failed(sr, "failed to read golden file: %v", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), data) {
		return failed(sr, "snapshot does not match golden file (run with --update to regenerate)")
	}
	return sr
}

func failed(sr ScenarioResult, format string, args ...any) ScenarioResult {
	sr.Pass = false
	sr.Errors = append(sr.Errors, fmt.Sprintf(format, args...))
	return sr
}

func writeScenariosText(cmd *cobra.Command, result ScenariosResult) {
	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, sr := range result.Scenarios {
		if sr.Pass {
			fmt.Fprintf(w, "PASS %s\n", sr.Name)
			continue
		}
		fmt.Fprintf(w, "FAIL %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
