package planning

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/store"
	"github.com/loanflow/loanflow/internal/testutil"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "plan.db"),
		store.WithClock(testutil.NewDeterministicClock().Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedApplication(t *testing.T, s *store.Store, credit int64) model.Application {
	t.Helper()
	app := model.Application{
		ID:     "app-1",
		Status: model.StatusNew,
		Applicant: model.Applicant{
			ApplicantID:   "a-1",
			ApplicantName: "Ada",
			Amount:        10000,
			Income:        90000,
			Debt:          5000,
		},
		DecisionData: model.DecisionData{
			KYC:         &model.KYCResult{Status: model.KYCPass},
			Fraud:       &model.FraudResult{RiskScore: 10},
			CreditScore: &credit,
		},
	}
	err := s.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.InsertApplication(context.Background(), &app)
	})
	require.NoError(t, err)
	return app
}

func createPlan(t *testing.T, p *Planner, s *store.Store, app model.Application, opts model.PlanOptions) *model.DecisionPlan {
	t.Helper()
	var plan *model.DecisionPlan
	err := s.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		plan, err = p.CreatePlan(context.Background(), tx, CreateRequest{
			PlanID:      "plan-1",
			RunID:       "run_plan",
			Application: app,
			Options:     opts,
		})
		return err
	})
	require.NoError(t, err)
	return plan
}

func executePlan(s *store.Store, p *Planner, runID string) (*ExecuteResult, error) {
	var res *ExecuteResult
	err := s.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		res, err = p.ExecutePlan(context.Background(), tx, ExecuteRequest{PlanID: "plan-1", RunID: runID})
		return err
	})
	return res, err
}

func TestCreatePlan_BaselineAndScenarios(t *testing.T) {
	s := newTestStore(t)
	p, err := New(nil)
	require.NoError(t, err)
	app := seedApplication(t, s, 720)

	plan := createPlan(t, p, s, app, model.PlanOptions{ScenariosCount: 3})

	assert.Equal(t, model.PlanPlanned, plan.Status)
	assert.Equal(t, model.DecisionApprove, plan.RecommendedDecision)
	assert.Equal(t, []string{}, plan.ReasonCodes)
	require.NotNil(t, plan.Pricing)
	assert.Equal(t, int64(450), plan.Pricing.RateBps)
	assert.Equal(t, model.PlanOptions{ScenariosCount: 3, CreditStep: 50, AmountStepPct: 10}, plan.Options)
	assert.Len(t, plan.InputsHash, 64)

	require.Len(t, plan.ScenarioResults, 3)
	s1, s2, s3 := plan.ScenarioResults[0], plan.ScenarioResults[1], plan.ScenarioResults[2]
	assert.Equal(t, "scenario_1", s1.Name)
	assert.Equal(t, int64(670), s1.CreditScore)
	assert.Equal(t, int64(11000), s1.Amount)
	assert.Equal(t, model.DecisionApprove, s1.Decision)
	assert.Equal(t, int64(620), s2.CreditScore)
	assert.Equal(t, int64(12000), s2.Amount)
	assert.Equal(t, int64(600), s2.Pricing.RateBps)
	assert.Equal(t, int64(570), s3.CreditScore)
	assert.Equal(t, model.DecisionReject, s3.Decision)
	assert.Equal(t, []string{model.ReasonCreditScoreLow}, s3.ReasonCodes)
	assert.Nil(t, s3.Pricing)

	err = s.WithTx(context.Background(), func(tx *store.Tx) error {
		stored, found, err := tx.GetPlan(context.Background(), "plan-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, *plan, stored)

		entries, err := tx.ListAudit(context.Background(), app.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.AuditPlanCreated, entries[0].Action)

		current, _, err := tx.GetApplication(context.Background(), app.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusNew, current.Status, "planning never mutates the application")
		return nil
	})
	require.NoError(t, err)
}

func TestCreatePlan_CreditFloor(t *testing.T) {
	s := newTestStore(t)
	p, err := New(nil)
	require.NoError(t, err)
	app := seedApplication(t, s, 350)

	plan := createPlan(t, p, s, app, model.PlanOptions{ScenariosCount: 2, CreditStep: 100})
	assert.Equal(t, int64(300), plan.ScenarioResults[0].CreditScore)
	assert.Equal(t, int64(300), plan.ScenarioResults[1].CreditScore)
}

func TestCreatePlan_RejectsTooManyScenarios(t *testing.T) {
	s := newTestStore(t)
	p, err := New(nil)
	require.NoError(t, err)
	app := seedApplication(t, s, 720)

	err = s.WithTx(context.Background(), func(tx *store.Tx) error {
		_, err := p.CreatePlan(context.Background(), tx, CreateRequest{
			PlanID: "plan-1", RunID: "run_plan", Application: app,
			Options: model.PlanOptions{ScenariosCount: MaxScenarios + 1},
		})
		return err
	})
	assert.True(t, model.IsValidation(err))
}

func TestExecutePlan_CommitsDecision(t *testing.T) {
	s := newTestStore(t)
	p, err := New(nil)
	require.NoError(t, err)
	app := seedApplication(t, s, 720)
	createPlan(t, p, s, app, model.PlanOptions{})

	res, err := executePlan(s, p, "run_exec")
	require.NoError(t, err)
	assert.True(t, res.MatchedPlan)
	assert.Equal(t, model.DecisionApprove, res.Outcome.Decision)
	assert.Equal(t, model.PlanExecuted, res.Plan.Status)
	assert.Equal(t, "run_exec", res.Plan.ExecutedRunID)
	assert.NotEmpty(t, res.Plan.ExecutedAt)

	err = s.WithTx(context.Background(), func(tx *store.Tx) error {
		current, _, err := tx.GetApplication(context.Background(), app.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusApproved, current.Status)

		entries, err := tx.ListAudit(context.Background(), app.ID)
		require.NoError(t, err)
		actions := make([]string, len(entries))
		for i, e := range entries {
			actions[i] = e.Action
		}
		assert.Equal(t, []string{model.AuditPlanCreated, model.AuditDecisionExecuted, model.AuditPlanExecuted}, actions)
		return nil
	})
	require.NoError(t, err)
}

func TestExecutePlan_AtMostOnce(t *testing.T) {
	s := newTestStore(t)
	p, err := New(nil)
	require.NoError(t, err)
	app := seedApplication(t, s, 720)
	createPlan(t, p, s, app, model.PlanOptions{})

	_, err = executePlan(s, p, "run_1")
	require.NoError(t, err)

	_, err = executePlan(s, p, "run_2")
	require.Error(t, err)
	assert.True(t, model.IsConflict(err))
	assert.Contains(t, err.Error(), "already executed")
}

// Scenario C: a plan computed before the credit score changed must not execute.
func TestExecutePlan_StaleInputsConflict(t *testing.T) {
	s := newTestStore(t)
	p, err := New(nil)
	require.NoError(t, err)
	app := seedApplication(t, s, 720)
	createPlan(t, p, s, app, model.PlanOptions{})

	lower := int64(550)
	app.DecisionData.CreditScore = &lower
	err = s.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.UpdateApplication(context.Background(), &app)
	})
	require.NoError(t, err)

	_, err = executePlan(s, p, "run_exec")
	require.Error(t, err)
	assert.True(t, model.IsConflict(err))
	assert.Contains(t, err.Error(), "inputs changed since plan creation")

	err = s.WithTx(context.Background(), func(tx *store.Tx) error {
		plan, _, err := tx.GetPlan(context.Background(), "plan-1")
		require.NoError(t, err)
		assert.Equal(t, model.PlanPlanned, plan.Status)

		current, _, err := tx.GetApplication(context.Background(), app.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusNew, current.Status)
		assert.Nil(t, current.DecisionData.Decision)
		return nil
	})
	require.NoError(t, err)
}

func TestExecutePlan_NotFound(t *testing.T) {
	s := newTestStore(t)
	p, err := New(nil)
	require.NoError(t, err)

	_, err = executePlan(s, p, "run_exec")
	assert.True(t, model.IsNotFound(err))
}

func TestExecutePlan_NondeterministicEvaluatorWarnsOnly(t *testing.T) {
	s := newTestStore(t)
	calls := 0
	flaky := func(model.Inputs) model.Outcome {
		calls++
		if calls%2 == 1 {
			return model.Outcome{Decision: model.DecisionApprove, ReasonCodes: []string{}}
		}
		return model.Outcome{Decision: model.DecisionReject, ReasonCodes: []string{"FLAKY"}}
	}
	p, err := New(flaky)
	require.NoError(t, err)
	app := seedApplication(t, s, 720)

	plan := createPlan(t, p, s, app, model.PlanOptions{})
	assert.Equal(t, model.DecisionApprove, plan.RecommendedDecision)

	res, err := executePlan(s, p, "run_exec")
	require.NoError(t, err)
	assert.False(t, res.MatchedPlan)
	assert.Equal(t, model.DecisionReject, res.Outcome.Decision)
	assert.Equal(t, model.PlanExecuted, res.Plan.Status)
}

func TestInputsHash_IgnoresStatusAndDecision(t *testing.T) {
	credit := int64(720)
	app := model.Application{
		ID:           "app-1",
		Status:       model.StatusNew,
		Applicant:    model.Applicant{ApplicantID: "a-1", Amount: 10000},
		DecisionData: model.DecisionData{CreditScore: &credit},
	}
	opts := model.PlanOptions{CreditStep: 50, AmountStepPct: 10}

	h1, err := InputsHash(app, opts)
	require.NoError(t, err)

	app.Status = model.StatusApproved
	app.DecisionData.Decision = &model.DecisionRecord{RunID: "run_1"}
	app.UpdatedAt = "later"
	h2, err := InputsHash(app, opts)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	opts.ScenariosCount = 1
	h3, err := InputsHash(app, opts)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3, "options are pinned")

	app.DecisionData.KYC = &model.KYCResult{Status: model.KYCFail}
	h4, err := InputsHash(app, opts)
	require.NoError(t, err)
	assert.NotEqual(t, h3, h4)
}

func TestNormalizeOptions(t *testing.T) {
	o, err := NormalizeOptions(model.PlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.PlanOptions{CreditStep: 50, AmountStepPct: 10}, o)

	_, err = NormalizeOptions(model.PlanOptions{ScenariosCount: -1})
	assert.True(t, model.IsValidation(err))
	_, err = NormalizeOptions(model.PlanOptions{CreditStep: -5})
	assert.True(t, model.IsValidation(err))
	_, err = NormalizeOptions(model.PlanOptions{AmountStepPct: -5})
	assert.True(t, model.IsValidation(err))
}

func TestScaleAmount(t *testing.T) {
	assert.Equal(t, int64(11000), scaleAmount(10000, 110))
	assert.Equal(t, int64(9_900_000_000_000), scaleAmount(9_000_000_000_000, 110))
	assert.Equal(t, int64(math.MaxInt64), scaleAmount(math.MaxInt64/2, 300))
}
