package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loanflow/loanflow/internal/evaluator"
	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/validate"
)

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <input.json>",
		Short: "Evaluate a decision input offline",
		Long: `Run the decision evaluator on a JSON input file and print the outcome.

The input has the evaluator shape: application, kyc_result, fraud_result
and credit_score. Use "-" to read from stdin. Nothing is persisted.

Examples:
  loanctl evaluate ./input.json
  cat input.json | loanctl evaluate - --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read input", err)
			}

			v, err := validate.New()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load schemas", err)
			}
			var in model.Inputs
			if err := v.Decode(validate.EvaluatorInput, data, &in); err != nil {
				return WrapExitError(ExitCommandError, "invalid input", err)
			}

			out := evaluator.Evaluate(in)
			f := rootOpts.formatter(cmd)
			if f.Format == "json" {
				return f.Success(out)
			}
			return f.Success(formatOutcome(out))
		},
	}
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func formatOutcome(out model.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Decision: %s", out.Decision)
	if len(out.ReasonCodes) > 0 {
		fmt.Fprintf(&b, "\nReasons:  %s", strings.Join(out.ReasonCodes, ", "))
	}
	if p := out.Pricing; p != nil {
		fmt.Fprintf(&b, "\nRate:     %.2f%% (%d bps)", p.Rate, p.RateBps)
		fmt.Fprintf(&b, "\nTerm:     %d months", p.TermMonths)
		fmt.Fprintf(&b, "\nPayment:  %d.%02d / month", p.MonthlyPayment/100, p.MonthlyPayment%100)
	}
	return b.String()
}
