package service

import (
	"context"
	"net/http"

	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/origination"
	"github.com/loanflow/loanflow/internal/planning"
	"github.com/loanflow/loanflow/internal/store"
	"github.com/loanflow/loanflow/internal/validate"
)

// DryRunDecision evaluates the application without persisting anything
// but the ledger record.
func (s *Service) DryRunDecision(ctx context.Context, call Call, id string) (Response, error) {
	return s.decide(ctx, call, id, model.ModeDryRun)
}

// ExecuteDecision evaluates the application and commits the decision.
func (s *Service) ExecuteDecision(ctx context.Context, call Call, id string) (Response, error) {
	return s.decide(ctx, call, id, model.ModeExecute)
}

func (s *Service) decide(ctx context.Context, call Call, id string, mode model.Mode) (Response, error) {
	return s.guarded(ctx, call, mode, struct{}{}, http.StatusOK, func(ctx context.Context, tx *store.Tx) (any, error) {
		app, err := loadApplication(ctx, tx, id)
		if err != nil {
			return nil, err
		}

		runID := model.DeriveRunID(call.Key)
		payload := origination.Payload{Inputs: app.Snapshot()}
		if mode == model.ModeExecute {
			payload.Persister = origination.StorePersister(tx)
		}
		res, err := s.loan.Run(ctx, runID, mode, payload)
		if err != nil {
			return nil, err
		}
		out, _ := origination.Outcome(res)

		return DecisionResponse{
			RunID:       runID,
			Decision:    out.Decision,
			ReasonCodes: out.ReasonCodes,
			Pricing:     out.Pricing,
			Mode:        mode,
		}, nil
	})
}

// CreatePlan stores a hash-pinned decision plan for the application. The
// plan id is derived from the idempotency key.
func (s *Service) CreatePlan(ctx context.Context, call Call, id string, body []byte) (Response, error) {
	var opts model.PlanOptions
	if err := s.validator.Decode(validate.PlanOptions, body, &opts); err != nil {
		return Response{}, err
	}

	return s.guarded(ctx, call, model.ModePlan, opts, http.StatusCreated, func(ctx context.Context, tx *store.Tx) (any, error) {
		app, err := loadApplication(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		return s.planner.CreatePlan(ctx, tx, planning.CreateRequest{
			PlanID:      model.DeriveID(call.Key),
			RunID:       model.DeriveRunID(call.Key),
			Application: app,
			Options:     opts,
		})
	})
}

// GetPlan fetches a plan.
func (s *Service) GetPlan(ctx context.Context, planID string) (model.DecisionPlan, error) {
	var plan model.DecisionPlan
	err := s.read(ctx, func(tx *store.Tx) error {
		var (
			found bool
			err   error
		)
		plan, found, err = tx.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		if !found {
			return model.NotFound("plan %s not found", planID)
		}
		return nil
	})
	return plan, err
}

// ExecutePlan commits a stored plan if its inputs are unchanged.
func (s *Service) ExecutePlan(ctx context.Context, call Call, planID string) (Response, error) {
	return s.guarded(ctx, call, model.ModeExecute, struct{}{}, http.StatusOK, func(ctx context.Context, tx *store.Tx) (any, error) {
		return s.planner.ExecutePlan(ctx, tx, planning.ExecuteRequest{
			PlanID: planID,
			RunID:  model.DeriveRunID(call.Key),
		})
	})
}
