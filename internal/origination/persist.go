package origination

import (
	"context"

	"github.com/loanflow/loanflow/internal/model"
)

// DecisionStore is the transactional storage a decision is written to.
// *store.Tx implements it.
type DecisionStore interface {
	GetApplication(ctx context.Context, id string) (model.Application, bool, error)
	UpdateApplication(ctx context.Context, app *model.Application) error
	AppendAudit(ctx context.Context, applicationID, action string, details any) (int64, error)
}

// DecisionAudit is the details document of a DECISION_EXECUTED entry.
type DecisionAudit struct {
	RunID       string         `json:"run_id"`
	Decision    model.Decision `json:"decision"`
	ReasonCodes []string       `json:"reason_codes"`
	Pricing     *model.Pricing `json:"pricing,omitempty"`
}

// StorePersister returns a Persister that sets the application status to
// the decision, records it in decision_data and appends a
// DECISION_EXECUTED audit entry, all through tx.
func StorePersister(tx DecisionStore) Persister {
	return PersisterFunc(func(ctx context.Context, runID string, in model.Inputs, out model.Outcome) error {
		app, found, err := tx.GetApplication(ctx, in.ApplicationID)
		if err != nil {
			return err
		}
		if !found {
			return model.NotFound("application %s not found", in.ApplicationID)
		}
		if app.Final() {
			return model.Conflict("application %s is %s; its decision is final", app.ID, app.Status)
		}

		app.Status = model.ApplicationStatus(out.Decision)
		app.DecisionData.Decision = &model.DecisionRecord{RunID: runID, Outcome: out}
		if err := tx.UpdateApplication(ctx, &app); err != nil {
			return err
		}

		_, err = tx.AppendAudit(ctx, app.ID, model.AuditDecisionExecuted, DecisionAudit{
			RunID:       runID,
			Decision:    out.Decision,
			ReasonCodes: out.ReasonCodes,
			Pricing:     out.Pricing,
		})
		return err
	})
}
