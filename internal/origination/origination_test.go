package origination

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanflow/loanflow/internal/evaluator"
	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/workflow"
)

func approvable() model.Inputs {
	return model.Inputs{
		ApplicationID: "app-1",
		Applicant:     model.Applicant{ApplicantID: "a-1", ApplicantName: "Ada", Amount: 10000},
		KYC:           &model.KYCResult{Status: model.KYCPass},
		Fraud:         &model.FraudResult{RiskScore: 10},
		CreditScore:   720,
	}
}

func newWorkflow(t *testing.T) *Workflow {
	t.Helper()
	w, err := New(nil)
	require.NoError(t, err)
	return w
}

func TestWorkflow_StepOrder(t *testing.T) {
	w := newWorkflow(t)
	assert.Equal(t, []string{StepInitialize, StepAgentDecision, StepPersistResult}, w.wf.StepNames())
}

func TestWorkflow_ExecutePersists(t *testing.T) {
	w := newWorkflow(t)
	rec := &Recorder{}

	res, err := w.Run(context.Background(), "run_1", model.ModeExecute, Payload{Inputs: approvable(), Persister: rec})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, res.Status)
	assert.True(t, res.FinalState.Persisted)
	assert.Equal(t, StatusOutput{Status: "persisted", Decision: model.DecisionApprove}, res.Steps[StepPersistResult])

	decisions := rec.Decisions()
	require.Len(t, decisions, 1)
	assert.Equal(t, "run_1", decisions[0].RunID)
	assert.Equal(t, model.DecisionApprove, decisions[0].Outcome.Decision)
	require.NotNil(t, decisions[0].Outcome.Pricing)
	assert.Equal(t, 4.5, decisions[0].Outcome.Pricing.Rate)
}

func TestWorkflow_PreviewModesSkipPersistence(t *testing.T) {
	w := newWorkflow(t)

	for _, mode := range []model.Mode{model.ModeDryRun, model.ModePlan} {
		t.Run(string(mode), func(t *testing.T) {
			rec := &Recorder{}
			res, err := w.Run(context.Background(), "run_1", mode, Payload{Inputs: approvable(), Persister: rec})
			require.NoError(t, err)
			assert.False(t, res.FinalState.Persisted)
			assert.Empty(t, rec.Decisions())

			out := res.Steps[StepPersistResult].(StatusOutput)
			assert.Equal(t, "skipped ("+string(mode)+")", out.Status)
			assert.Equal(t, model.DecisionApprove, out.Decision)
		})
	}
}

func TestWorkflow_SameOutcomeInEveryMode(t *testing.T) {
	w := newWorkflow(t)
	in := approvable()
	in.CreditScore = 580

	var outcomes []model.Outcome
	for _, mode := range []model.Mode{model.ModeDryRun, model.ModePlan, model.ModeExecute} {
		res, err := w.Run(context.Background(), "run_1", mode, Payload{Inputs: in, Persister: &Recorder{}})
		require.NoError(t, err)
		out, ok := Outcome(res)
		require.True(t, ok)
		outcomes = append(outcomes, out)
	}
	assert.Equal(t, outcomes[0], outcomes[1])
	assert.Equal(t, outcomes[0], outcomes[2])
	assert.Equal(t, []string{model.ReasonCreditScoreLow}, outcomes[0].ReasonCodes)
}

func TestWorkflow_InitializeRejectsMissingApplication(t *testing.T) {
	w := newWorkflow(t)
	in := approvable()
	in.ApplicationID = ""

	res, err := w.Run(context.Background(), "run_1", model.ModeDryRun, Payload{Inputs: in})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Equal(t, StepInitialize, res.FailedStep)
	assert.Empty(t, res.Order)
	_, ok := Outcome(res)
	assert.False(t, ok)
}

func TestWorkflow_InitializeRejectsAmountOutOfRange(t *testing.T) {
	w := newWorkflow(t)

	for _, amount := range []int64{-1, evaluator.MaxAmount + 1, 9_000_000_000_000} {
		in := approvable()
		in.Applicant.Amount = amount
		res, err := w.Run(context.Background(), "run_1", model.ModeDryRun, Payload{Inputs: in})
		require.Error(t, err, "amount %d", amount)
		assert.True(t, model.IsValidation(err))
		assert.Equal(t, StepInitialize, res.FailedStep)
	}

	in := approvable()
	in.Applicant.Amount = evaluator.MaxAmount
	_, err := w.Run(context.Background(), "run_1", model.ModeDryRun, Payload{Inputs: in})
	require.NoError(t, err)
}

func TestWorkflow_PersisterFailureStopsRun(t *testing.T) {
	w := newWorkflow(t)
	boom := errors.New("write failed")
	p := PersisterFunc(func(context.Context, string, model.Inputs, model.Outcome) error { return boom })

	res, err := w.Run(context.Background(), "run_1", model.ModeExecute, Payload{Inputs: approvable(), Persister: p})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, model.KindExecution, model.KindOf(err))
	assert.Equal(t, StepPersistResult, res.FailedStep)
	assert.Equal(t, []string{StepInitialize, StepAgentDecision}, res.Order)
	assert.NotNil(t, res.FinalState.Outcome, "partial state kept for diagnostics")
}

func TestWorkflow_ExecuteWithoutPersister(t *testing.T) {
	w := newWorkflow(t)

	_, err := w.Run(context.Background(), "run_1", model.ModeExecute, Payload{Inputs: approvable()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no persister")
}

func TestWorkflow_CustomEvaluator(t *testing.T) {
	calls := 0
	w, err := New(func(model.Inputs) model.Outcome {
		calls++
		return model.Outcome{Decision: model.DecisionReject, ReasonCodes: []string{"CUSTOM"}}
	})
	require.NoError(t, err)

	res, err := w.Run(context.Background(), "run_1", model.ModeDryRun, Payload{Inputs: approvable()})
	require.NoError(t, err)
	out, _ := Outcome(res)
	assert.Equal(t, []string{"CUSTOM"}, out.ReasonCodes)
	assert.Equal(t, 1, calls)
}
