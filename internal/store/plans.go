package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loanflow/loanflow/internal/model"
)

// InsertPlan stores a new PLANNED plan. CreatedAt is taken from the
// transaction clock and written back into plan.
func (t *Tx) InsertPlan(ctx context.Context, plan *model.DecisionPlan) error {
	options, err := json.Marshal(plan.Options)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	reasons := plan.ReasonCodes
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	scenarios := plan.ScenarioResults
	if scenarios == nil {
		scenarios = []model.ScenarioResult{}
	}
	scenariosJSON, err := json.Marshal(scenarios)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	var pricing sql.NullString
	if plan.Pricing != nil {
		raw, err := json.Marshal(plan.Pricing)
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}
		pricing = sql.NullString{String: string(raw), Valid: true}
	}

	now := t.Now()
	_, err = t.exec(ctx, `
		INSERT INTO decision_plans
		(plan_id, application_id, inputs_hash, options, recommended_decision, reason_codes,
		 pricing, scenario_results, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		plan.PlanID,
		plan.ApplicationID,
		plan.InputsHash,
		string(options),
		string(plan.RecommendedDecision),
		string(reasonsJSON),
		pricing,
		string(scenariosJSON),
		string(model.PlanPlanned),
		now,
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	plan.Status = model.PlanPlanned
	plan.ReasonCodes = reasons
	plan.ScenarioResults = scenarios
	plan.CreatedAt = now
	return nil
}

// GetPlan loads a plan by id. The bool is false when it does not exist.
func (t *Tx) GetPlan(ctx context.Context, planID string) (model.DecisionPlan, bool, error) {
	var (
		plan       model.DecisionPlan
		options    string
		decision   string
		reasons    string
		pricing    sql.NullString
		scenarios  string
		status     string
		executedAt sql.NullString
		runID      sql.NullString
	)
	err := t.queryRow(ctx, `
		SELECT plan_id, application_id, inputs_hash, options, recommended_decision, reason_codes,
		       pricing, scenario_results, status, created_at, executed_at, executed_run_id
		FROM decision_plans
		WHERE plan_id = ?
	`, planID).Scan(
		&plan.PlanID,
		&plan.ApplicationID,
		&plan.InputsHash,
		&options,
		&decision,
		&reasons,
		&pricing,
		&scenarios,
		&status,
		&plan.CreatedAt,
		&executedAt,
		&runID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DecisionPlan{}, false, nil
	}
	if err != nil {
		return model.DecisionPlan{}, false, fmt.Errorf("get plan: %w", err)
	}

	plan.RecommendedDecision = model.Decision(decision)
	plan.Status = model.PlanStatus(status)
	plan.ExecutedAt = executedAt.String
	plan.ExecutedRunID = runID.String
	if err := json.Unmarshal([]byte(options), &plan.Options); err != nil {
		return model.DecisionPlan{}, false, fmt.Errorf("decode plan options: %w", err)
	}
	if err := json.Unmarshal([]byte(reasons), &plan.ReasonCodes); err != nil {
		return model.DecisionPlan{}, false, fmt.Errorf("decode plan reason codes: %w", err)
	}
	if err := json.Unmarshal([]byte(scenarios), &plan.ScenarioResults); err != nil {
		return model.DecisionPlan{}, false, fmt.Errorf("decode plan scenarios: %w", err)
	}
	if pricing.Valid {
		plan.Pricing = &model.Pricing{}
		if err := json.Unmarshal([]byte(pricing.String), plan.Pricing); err != nil {
			return model.DecisionPlan{}, false, fmt.Errorf("decode plan pricing: %w", err)
		}
	}
	return plan, true, nil
}

// MarkPlanExecuted flips a plan PLANNED to EXECUTED. It reports false when
// the plan was not PLANNED, so a plan is executed at most once.
func (t *Tx) MarkPlanExecuted(ctx context.Context, planID, runID string) (bool, error) {
	res, err := t.exec(ctx, `
		UPDATE decision_plans
		SET status = ?, executed_at = ?, executed_run_id = ?
		WHERE plan_id = ? AND status = ?
	`, string(model.PlanExecuted), t.Now(), runID, planID, string(model.PlanPlanned))
	if err != nil {
		return false, fmt.Errorf("mark plan executed: %w", err)
	}
	return affected(res)
}
