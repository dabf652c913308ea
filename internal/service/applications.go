package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/store"
	"github.com/loanflow/loanflow/internal/validate"
)

// CreateApplication stores a NEW application whose id is derived from the
// idempotency key.
func (s *Service) CreateApplication(ctx context.Context, call Call, body []byte) (Response, error) {
	var applicant model.Applicant
	if err := s.validator.Decode(validate.ApplicationCreate, body, &applicant); err != nil {
		return Response{}, err
	}

	return s.guarded(ctx, call, model.ModeExecute, applicant, http.StatusCreated, func(ctx context.Context, tx *store.Tx) (any, error) {
		app := &model.Application{
			ID:        model.DeriveID(call.Key),
			Status:    model.StatusNew,
			Applicant: applicant,
		}
		if err := tx.InsertApplication(ctx, app); err != nil {
			if errors.Is(err, store.ErrUniqueViolation) {
				return nil, model.Conflict("application %s already exists", app.ID)
			}
			return nil, err
		}
		if _, err := tx.AppendAudit(ctx, app.ID, model.AuditApplicationCreated, map[string]any{"source": "API"}); err != nil {
			return nil, err
		}
		return app, nil
	})
}

// GetApplication fetches an application.
func (s *Service) GetApplication(ctx context.Context, id string) (model.Application, error) {
	var app model.Application
	err := s.read(ctx, func(tx *store.Tx) error {
		var err error
		app, err = loadApplication(ctx, tx, id)
		return err
	})
	return app, err
}

// ListAudit returns an application's audit trail ordered by id.
func (s *Service) ListAudit(ctx context.Context, id string) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := s.read(ctx, func(tx *store.Tx) error {
		if _, err := loadApplication(ctx, tx, id); err != nil {
			return err
		}
		var err error
		entries, err = tx.ListAudit(ctx, id)
		return err
	})
	return entries, err
}

// UpdateKYC records the identity verification result.
func (s *Service) UpdateKYC(ctx context.Context, call Call, id string, body []byte) (Response, error) {
	var kyc model.KYCResult
	if err := s.validator.Decode(validate.KYCResult, body, &kyc); err != nil {
		return Response{}, err
	}
	return s.updateChecks(ctx, call, id, kyc, model.AuditKYCUpdated, kyc, func(d *model.DecisionData) UpdateResponse {
		d.KYC = &kyc
		return UpdateResponse{Status: "Updated", KYC: &kyc}
	})
}

// UpdateFraud records the fraud screening result.
func (s *Service) UpdateFraud(ctx context.Context, call Call, id string, body []byte) (Response, error) {
	var fraud model.FraudResult
	if err := s.validator.Decode(validate.FraudResult, body, &fraud); err != nil {
		return Response{}, err
	}
	return s.updateChecks(ctx, call, id, fraud, model.AuditFraudUpdated, fraud, func(d *model.DecisionData) UpdateResponse {
		d.Fraud = &fraud
		return UpdateResponse{Status: "Updated", Fraud: &fraud}
	})
}

// UpdateCreditScore records the bureau credit score.
func (s *Service) UpdateCreditScore(ctx context.Context, call Call, id string, body []byte) (Response, error) {
	var req CreditScoreRequest
	if err := s.validator.Decode(validate.CreditScore, body, &req); err != nil {
		return Response{}, err
	}
	score := req.Score
	return s.updateChecks(ctx, call, id, req, model.AuditCreditUpdated, map[string]any{"score": score}, func(d *model.DecisionData) UpdateResponse {
		d.CreditScore = &score
		return UpdateResponse{Status: "Updated", CreditScore: &score}
	})
}

func (s *Service) updateChecks(ctx context.Context, call Call, id string, payload any, action string, details any, apply func(*model.DecisionData) UpdateResponse) (Response, error) {
	return s.guarded(ctx, call, model.ModeExecute, payload, http.StatusOK, func(ctx context.Context, tx *store.Tx) (any, error) {
		app, err := loadApplication(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if app.Final() {
			return nil, model.Conflict("application %s is %s; check results can no longer change", id, app.Status)
		}
		resp := apply(&app.DecisionData)
		if err := tx.UpdateApplication(ctx, &app); err != nil {
			return nil, err
		}
		if _, err := tx.AppendAudit(ctx, id, action, details); err != nil {
			return nil, err
		}
		return resp, nil
	})
}
