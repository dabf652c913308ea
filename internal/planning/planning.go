// Package planning creates hash-pinned decision plans and executes them
// only while the inputs they were computed from are unchanged.
package planning

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"

	"github.com/loanflow/loanflow/internal/evaluator"
	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/origination"
	"github.com/loanflow/loanflow/internal/workflow"
)

// Option defaults and bounds.
const (
	DefaultCreditStep    = 50
	DefaultAmountStepPct = 10
	MaxScenarios         = 10
	MinScenarioCredit    = 300
)

// Tx is the transactional storage the planner needs. *store.Tx implements
// it.
type Tx interface {
	origination.DecisionStore
	InsertPlan(ctx context.Context, plan *model.DecisionPlan) error
	GetPlan(ctx context.Context, planID string) (model.DecisionPlan, bool, error)
	MarkPlanExecuted(ctx context.Context, planID, runID string) (bool, error)
}

// CreateRequest asks for a plan over app.
type CreateRequest struct {
	PlanID      string
	RunID       string
	Application model.Application
	Options     model.PlanOptions
}

// ExecuteRequest asks to execute a stored plan.
type ExecuteRequest struct {
	PlanID string
	RunID  string
}

// ExecuteResult is the outcome of executing a plan.
type ExecuteResult struct {
	Plan        model.DecisionPlan `json:"plan"`
	RunID       string             `json:"run_id"`
	Outcome     model.Outcome      `json:"outcome"`
	MatchedPlan bool               `json:"matched_plan"`
}

// Planner runs the loan workflow in PLAN and EXECUTE modes against
// persisted plans.
type Planner struct {
	eval   evaluator.Func
	wf     *origination.Workflow
	logger *slog.Logger
}

// Option configures a Planner.
type Option func(*config)

type config struct {
	logger *slog.Logger
	wfOpts []workflow.Option
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithWorkflowOptions passes options to the underlying loan workflow.
func WithWorkflowOptions(opts ...workflow.Option) Option {
	return func(c *config) { c.wfOpts = append(c.wfOpts, opts...) }
}

// New creates a Planner. A nil eval uses evaluator.Evaluate; the same
// function computes the baseline, the scenarios and the executed decision.
func New(eval evaluator.Func, opts ...Option) (*Planner, error) {
	if eval == nil {
		eval = evaluator.Evaluate
	}
	c := config{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	wf, err := origination.New(eval, c.wfOpts...)
	if err != nil {
		return nil, fmt.Errorf("build planner workflow: %w", err)
	}
	return &Planner{eval: eval, wf: wf, logger: c.logger}, nil
}

// NormalizeOptions fills defaults for zero step values and checks bounds.
func NormalizeOptions(o model.PlanOptions) (model.PlanOptions, error) {
	if o.ScenariosCount < 0 || o.ScenariosCount > MaxScenarios {
		return o, model.Validation("scenarios_count must be between 0 and %d", MaxScenarios)
	}
	if o.CreditStep < 0 {
		return o, model.Validation("credit_step must not be negative")
	}
	if o.AmountStepPct < 0 {
		return o, model.Validation("amount_step_pct must not be negative")
	}
	if o.CreditStep == 0 {
		o.CreditStep = DefaultCreditStep
	}
	if o.AmountStepPct == 0 {
		o.AmountStepPct = DefaultAmountStepPct
	}
	return o, nil
}

// CreatePlan evaluates the baseline decision and the what-if scenarios for
// req.Application, pins them to the inputs hash and stores the plan
// PLANNED with a PLAN_CREATED audit entry.
func (p *Planner) CreatePlan(ctx context.Context, tx Tx, req CreateRequest) (*model.DecisionPlan, error) {
	opts, err := NormalizeOptions(req.Options)
	if err != nil {
		return nil, err
	}
	app := req.Application
	in := app.Snapshot()

	res, err := p.wf.Run(ctx, req.RunID, model.ModePlan, origination.Payload{Inputs: in})
	if err != nil {
		return nil, err
	}
	baseline, ok := origination.Outcome(res)
	if !ok {
		return nil, model.Internal(nil, "plan run %s produced no decision", req.RunID)
	}

	hash, err := InputsHash(app, opts)
	if err != nil {
		return nil, err
	}

	plan := &model.DecisionPlan{
		PlanID:              req.PlanID,
		ApplicationID:       app.ID,
		InputsHash:          hash,
		Options:             opts,
		RecommendedDecision: baseline.Decision,
		ReasonCodes:         baseline.ReasonCodes,
		Pricing:             baseline.Pricing,
		ScenarioResults:     p.scenarios(in, opts),
	}
	if err := tx.InsertPlan(ctx, plan); err != nil {
		return nil, err
	}
	_, err = tx.AppendAudit(ctx, app.ID, model.AuditPlanCreated, map[string]any{
		"plan_id":              plan.PlanID,
		"inputs_hash":          plan.InputsHash,
		"recommended_decision": plan.RecommendedDecision,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("plan created",
		"plan_id", plan.PlanID,
		"application_id", app.ID,
		"decision", plan.RecommendedDecision,
		"scenarios", len(plan.ScenarioResults),
	)
	return plan, nil
}

// scenarios evaluates variant k (1-based) with the credit score lowered by
// k*CreditStep, floored at MinScenarioCredit, and the amount raised by
// k*AmountStepPct percent.
func (p *Planner) scenarios(in model.Inputs, opts model.PlanOptions) []model.ScenarioResult {
	baseAmount := in.Applicant.Amount
	if baseAmount <= 0 {
		baseAmount = evaluator.DefaultAmount
	}

	results := make([]model.ScenarioResult, 0, opts.ScenariosCount)
	for k := int64(1); k <= opts.ScenariosCount; k++ {
		variant := in
		variant.CreditScore = max(in.CreditScore-k*opts.CreditStep, MinScenarioCredit)
		variant.Applicant.Amount = scaleAmount(baseAmount, 100+k*opts.AmountStepPct)

		results = append(results, model.ScenarioResult{
			Name:        fmt.Sprintf("scenario_%d", k),
			CreditScore: variant.CreditScore,
			Amount:      variant.Applicant.Amount,
			Outcome:     p.eval(variant),
		})
	}
	return results
}

// scaleAmount returns amount*pct/100, saturating at math.MaxInt64.
func scaleAmount(amount, pct int64) int64 {
	v := new(big.Int).Mul(big.NewInt(amount), big.NewInt(pct))
	v.Quo(v, big.NewInt(100))
	if !v.IsInt64() {
		return math.MaxInt64
	}
	return v.Int64()
}

// ExecutePlan commits a PLANNED plan's decision if the application still
// hashes to the plan's inputs hash.
//
// Errors:
//   - NotFound: plan or its application is absent
//   - Conflict: plan already executed, or inputs changed since creation
//   - Execution: a workflow step failed
func (p *Planner) ExecutePlan(ctx context.Context, tx Tx, req ExecuteRequest) (*ExecuteResult, error) {
	plan, found, err := tx.GetPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.NotFound("plan %s not found", req.PlanID)
	}
	if plan.Status == model.PlanExecuted {
		return nil, model.Conflict("plan already executed")
	}

	app, found, err := tx.GetApplication(ctx, plan.ApplicationID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.NotFound("application %s not found", plan.ApplicationID)
	}

	hash, err := InputsHash(app, plan.Options)
	if err != nil {
		return nil, err
	}
	if hash != plan.InputsHash {
		p.logger.Warn("plan is stale",
			"plan_id", plan.PlanID,
			"planned_hash", plan.InputsHash,
			"current_hash", hash,
		)
		return nil, model.Conflict("inputs changed since plan creation")
	}

	res, err := p.wf.Run(ctx, req.RunID, model.ModeExecute, origination.Payload{
		Inputs:    app.Snapshot(),
		Persister: origination.StorePersister(tx),
	})
	if err != nil {
		return nil, err
	}
	outcome, _ := origination.Outcome(res)

	ok, err := tx.MarkPlanExecuted(ctx, plan.PlanID, req.RunID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.Conflict("plan already executed")
	}

	matched := outcome.Decision == plan.RecommendedDecision
	if !matched {
		p.logger.Warn("executed decision differs from plan",
			"plan_id", plan.PlanID,
			"planned", plan.RecommendedDecision,
			"executed", outcome.Decision,
		)
	}

	_, err = tx.AppendAudit(ctx, app.ID, model.AuditPlanExecuted, map[string]any{
		"plan_id":  plan.PlanID,
		"run_id":   req.RunID,
		"decision": outcome.Decision,
	})
	if err != nil {
		return nil, err
	}

	executed, _, err := tx.GetPlan(ctx, plan.PlanID)
	if err != nil {
		return nil, err
	}

	p.logger.Info("plan executed",
		"plan_id", plan.PlanID,
		"run_id", req.RunID,
		"decision", outcome.Decision,
	)
	return &ExecuteResult{Plan: executed, RunID: req.RunID, Outcome: outcome, MatchedPlan: matched}, nil
}
