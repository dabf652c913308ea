package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/loanflow/loanflow/internal/evaluator"
	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/origination"
	"github.com/loanflow/loanflow/internal/workflow"
)

// Modes lists the modes every scenario runs in, in order.
var Modes = []model.Mode{model.ModeDryRun, model.ModePlan, model.ModeExecute}

// Result is the outcome of a scenario run.
type Result struct {
	Name string `json:"name"`

	// Pass is true when every check held.
	Pass bool `json:"pass"`

	// Errors lists failed checks. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Outcomes holds the evaluator outcome per mode.
	Outcomes map[model.Mode]model.Outcome `json:"outcomes"`

	// Steps is the step order of the EXECUTE run.
	Steps []string `json:"steps"`

	// Persisted counts decisions recorded by the EXECUTE run.
	Persisted int `json:"persisted"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	eval   evaluator.Func
	logger *slog.Logger
}

// WithEvaluator replaces evaluator.Evaluate.
func WithEvaluator(eval evaluator.Func) Option {
	return func(c *runConfig) { c.eval = eval }
}

// WithLogger sets the workflow logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes the scenario in every mode. The error is non-nil only when
// the scenario could not be run at all; failed checks are reported on the
// Result.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	wf, err := origination.New(cfg.eval, workflow.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}

	result := &Result{
		Name:     sc.Name,
		Pass:     true,
		Errors:   []string{},
		Outcomes: make(map[model.Mode]model.Outcome, len(Modes)),
	}
	recorder := &origination.Recorder{}
	in := sc.Inputs()

	for _, mode := range Modes {
		payload := origination.Payload{Inputs: in}
		if mode == model.ModeExecute {
			payload.Persister = recorder
		}

		res, err := wf.Run(ctx, runID(sc.Name, mode), mode, payload)
		if err != nil {
			result.addError("%s: %v", mode, err)
			continue
		}
		out, ok := origination.Outcome(res)
		if !ok {
			result.addError("%s: run produced no outcome", mode)
			continue
		}
		result.Outcomes[mode] = out
		if mode == model.ModeExecute {
			result.Steps = res.Order
		}
	}

	decisions := recorder.Decisions()
	result.Persisted = len(decisions)
	if len(decisions) != 1 {
		result.addError("EXECUTE recorded %d decisions, want 1", len(decisions))
	}

	checkOutcomes(result, sc.Expect)
	return result, nil
}

func checkOutcomes(r *Result, want Expect) {
	reference, ok := r.Outcomes[model.ModeExecute]
	if !ok {
		return
	}
	for _, mode := range Modes {
		out, ok := r.Outcomes[mode]
		if ok && !reflect.DeepEqual(out, reference) {
			r.addError("%s outcome %+v differs from EXECUTE outcome %+v", mode, out, reference)
		}
	}

	if reference.Decision != want.Decision {
		r.addError("decision: got %s, want %s", reference.Decision, want.Decision)
	}
	wantCodes := want.ReasonCodes
	if wantCodes == nil {
		wantCodes = []string{}
	}
	if !reflect.DeepEqual(reference.ReasonCodes, wantCodes) {
		r.addError("reason_codes: got %v, want %v", reference.ReasonCodes, wantCodes)
	}
	if want.Rate != nil {
		switch {
		case reference.Pricing == nil:
			r.addError("rate: no pricing, want %.2f", *want.Rate)
		case reference.Pricing.Rate != *want.Rate:
			r.addError("rate: got %.2f, want %.2f", reference.Pricing.Rate, *want.Rate)
		}
	}
}

func runID(name string, mode model.Mode) string {
	return "run_" + name + "_" + strings.ToLower(string(mode))
}
