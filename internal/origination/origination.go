// Package origination defines the loan origination workflow: validate the
// input snapshot, evaluate a decision, and persist it when executing.
package origination

import (
	"context"

	"github.com/loanflow/loanflow/internal/evaluator"
	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/workflow"
)

// WorkflowName is the registered name of the loan workflow.
const WorkflowName = "loan_origination"

// Step names, in execution order.
const (
	StepInitialize    = "initialize"
	StepAgentDecision = "agent_decision"
	StepPersistResult = "persist_result"
)

// Persister commits an executed decision. Implementations write inside the
// caller's transaction.
type Persister interface {
	PersistDecision(ctx context.Context, runID string, in model.Inputs, out model.Outcome) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, runID string, in model.Inputs, out model.Outcome) error

// PersistDecision calls f.
func (f PersisterFunc) PersistDecision(ctx context.Context, runID string, in model.Inputs, out model.Outcome) error {
	return f(ctx, runID, in, out)
}

// Payload is the immutable input of one run. Persister is only consulted
// in EXECUTE mode.
type Payload struct {
	Inputs    model.Inputs
	Persister Persister
}

// State is written by the steps as the run progresses.
type State struct {
	Outcome   *model.Outcome `json:"outcome,omitempty"`
	Persisted bool           `json:"persisted"`
}

// StatusOutput is the output of the bookkeeping steps.
type StatusOutput struct {
	Status   string         `json:"status"`
	Decision model.Decision `json:"decision,omitempty"`
}

// Result is the RunResult type of the loan workflow.
type Result = workflow.RunResult[State]

// Workflow runs loan decisions.
type Workflow struct {
	wf *workflow.Workflow[Payload, State]
}

// New builds the loan workflow around eval. A nil eval uses
// evaluator.Evaluate.
func New(eval evaluator.Func, opts ...workflow.Option) (*Workflow, error) {
	if eval == nil {
		eval = evaluator.Evaluate
	}
	wf, err := workflow.New(WorkflowName, []workflow.Step[Payload, State]{
		{Name: StepInitialize, Run: initialize},
		{Name: StepAgentDecision, Run: agentDecision(eval)},
		{Name: StepPersistResult, Run: persistResult},
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &Workflow{wf: wf}, nil
}

// Run executes one decision run. The returned Result is non-nil whenever
// the mode is valid, including on step failure.
func (w *Workflow) Run(ctx context.Context, runID string, mode model.Mode, p Payload) (*Result, error) {
	return w.wf.Run(ctx, &workflow.Context[Payload, State]{
		RunID:   runID,
		Mode:    mode,
		Payload: p,
	})
}

// Outcome extracts the decision from a completed run.
func Outcome(res *Result) (model.Outcome, bool) {
	if res == nil || res.FinalState.Outcome == nil {
		return model.Outcome{}, false
	}
	return *res.FinalState.Outcome, true
}

func initialize(_ context.Context, wc *workflow.Context[Payload, State]) workflow.Result {
	in := wc.Payload.Inputs
	if in.ApplicationID == "" {
		return workflow.Err(model.Validation("missing input: application_id"))
	}
	if in.Applicant.Amount < 0 {
		return workflow.Err(model.Validation("amount must not be negative"))
	}
	if in.Applicant.Amount > evaluator.MaxAmount {
		return workflow.Err(model.Validation("amount %d exceeds %d", in.Applicant.Amount, int64(evaluator.MaxAmount)))
	}
	return workflow.Ok(StatusOutput{Status: "initialized"})
}

func agentDecision(eval evaluator.Func) workflow.StepFunc[Payload, State] {
	return func(_ context.Context, wc *workflow.Context[Payload, State]) workflow.Result {
		out := eval(wc.Payload.Inputs)
		wc.State.Outcome = &out
		return workflow.Ok(out)
	}
}

func persistResult(ctx context.Context, wc *workflow.Context[Payload, State]) workflow.Result {
	out := wc.State.Outcome
	if out == nil {
		return workflow.Errf("no decision to persist")
	}
	if wc.Previewing() {
		return workflow.Ok(StatusOutput{Status: "skipped (" + string(wc.Mode) + ")", Decision: out.Decision})
	}
	if wc.Payload.Persister == nil {
		return workflow.Errf("no persister configured for %s run", wc.Mode)
	}
	if err := wc.Payload.Persister.PersistDecision(ctx, wc.RunID, wc.Payload.Inputs, *out); err != nil {
		return workflow.Err(err)
	}
	wc.State.Persisted = true
	return workflow.Ok(StatusOutput{Status: "persisted", Decision: out.Decision})
}
