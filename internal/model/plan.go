package model

// PlanStatus is the lifecycle state of a decision plan.
type PlanStatus string

const (
	PlanPlanned  PlanStatus = "PLANNED"
	PlanExecuted PlanStatus = "EXECUTED"
)

// PlanOptions controls what-if scenario generation. Options are part of the
// plan's pinned inputs.
type PlanOptions struct {
	ScenariosCount int64 `json:"scenarios_count"`
	CreditStep     int64 `json:"credit_step"`
	AmountStepPct  int64 `json:"amount_step_pct"`
}

// ScenarioResult is one alternate evaluation produced while planning.
type ScenarioResult struct {
	Name        string `json:"name"`
	CreditScore int64  `json:"credit_score"`
	Amount      int64  `json:"amount"`
	Outcome
}

// DecisionPlan is a persisted, hash-pinned preview of a decision.
type DecisionPlan struct {
	PlanID              string           `json:"plan_id"`
	ApplicationID       string           `json:"application_id"`
	InputsHash          string           `json:"inputs_hash"`
	Options             PlanOptions      `json:"options"`
	RecommendedDecision Decision         `json:"recommended_decision"`
	ReasonCodes         []string         `json:"reason_codes"`
	Pricing             *Pricing         `json:"pricing,omitempty"`
	ScenarioResults     []ScenarioResult `json:"scenario_results"`
	Status              PlanStatus       `json:"status"`
	CreatedAt           string           `json:"created_at"`
	ExecutedAt          string           `json:"executed_at,omitempty"`
	ExecutedRunID       string           `json:"executed_run_id,omitempty"`
}
