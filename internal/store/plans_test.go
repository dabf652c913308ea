package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanflow/loanflow/internal/model"
)

func testPlan(id string) *model.DecisionPlan {
	return &model.DecisionPlan{
		PlanID:              id,
		ApplicationID:       "app-1",
		InputsHash:          "abc123",
		Options:             model.PlanOptions{ScenariosCount: 1, CreditStep: 50, AmountStepPct: 10},
		RecommendedDecision: model.DecisionApprove,
		ReasonCodes:         []string{},
		Pricing:             &model.Pricing{Rate: 4.5, RateBps: 450, TermMonths: 36, MonthlyPayment: 29028},
		ScenarioResults: []model.ScenarioResult{{
			Name:        "scenario_1",
			CreditScore: 670,
			Amount:      11000,
			Outcome:     model.Outcome{Decision: model.DecisionApprove, ReasonCodes: []string{}},
		}},
	}
}

func TestPlans_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	plan := testPlan("plan-1")
	inTx(t, s, func(tx *Tx) error {
		require.NoError(t, tx.InsertApplication(ctx, testApplication("app-1")))
		return tx.InsertPlan(ctx, plan)
	})
	assert.Equal(t, model.PlanPlanned, plan.Status)

	inTx(t, s, func(tx *Tx) error {
		got, found, err := tx.GetPlan(ctx, "plan-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, *plan, got)
		return nil
	})
}

func TestPlans_NoPricing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	plan := testPlan("plan-1")
	plan.RecommendedDecision = model.DecisionReject
	plan.ReasonCodes = []string{model.ReasonKYCFailure}
	plan.Pricing = nil
	plan.ScenarioResults = nil
	inTx(t, s, func(tx *Tx) error {
		require.NoError(t, tx.InsertApplication(ctx, testApplication("app-1")))
		return tx.InsertPlan(ctx, plan)
	})

	inTx(t, s, func(tx *Tx) error {
		got, _, err := tx.GetPlan(ctx, "plan-1")
		require.NoError(t, err)
		assert.Nil(t, got.Pricing)
		assert.Equal(t, []model.ScenarioResult{}, got.ScenarioResults)
		assert.Equal(t, []string{model.ReasonKYCFailure}, got.ReasonCodes)
		return nil
	})
}

func TestPlans_ExecuteAtMostOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) error {
		require.NoError(t, tx.InsertApplication(ctx, testApplication("app-1")))
		require.NoError(t, tx.InsertPlan(ctx, testPlan("plan-1")))

		ok, err := tx.MarkPlanExecuted(ctx, "plan-1", "run_1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.MarkPlanExecuted(ctx, "plan-1", "run_2")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})

	inTx(t, s, func(tx *Tx) error {
		got, _, err := tx.GetPlan(ctx, "plan-1")
		require.NoError(t, err)
		assert.Equal(t, model.PlanExecuted, got.Status)
		assert.Equal(t, "run_1", got.ExecutedRunID)
		assert.NotEmpty(t, got.ExecutedAt)
		return nil
	})
}

func TestPlans_Missing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) error {
		_, found, err := tx.GetPlan(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	})
}
