package service

import (
	"context"
	"net/http"

	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/store"
	"github.com/loanflow/loanflow/internal/validate"
)

// AcceptOffer moves an approved application to OFFER_ACCEPTED.
func (s *Service) AcceptOffer(ctx context.Context, call Call, id string) (Response, error) {
	return s.guarded(ctx, call, model.ModeExecute, struct{}{}, http.StatusOK, func(ctx context.Context, tx *store.Tx) (any, error) {
		app, err := loadApplication(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if app.Status != model.StatusApproved {
			return nil, model.Conflict("offer cannot be accepted: application %s is %s", id, app.Status)
		}

		app.Status = model.StatusOfferAccepted
		if err := tx.UpdateApplication(ctx, &app); err != nil {
			return nil, err
		}
		if _, err := tx.AppendAudit(ctx, id, model.AuditOfferAccepted, map[string]any{"accepted_at": app.UpdatedAt}); err != nil {
			return nil, err
		}
		return OfferResponse{Status: app.Status, ApplicationID: id}, nil
	})
}

// CreateBooking books an application whose offer was accepted. The
// booking id is derived from the idempotency key.
func (s *Service) CreateBooking(ctx context.Context, call Call, body []byte) (Response, error) {
	var req BookingRequest
	if err := s.validator.Decode(validate.BookingCreate, body, &req); err != nil {
		return Response{}, err
	}

	return s.guarded(ctx, call, model.ModeExecute, req, http.StatusCreated, func(ctx context.Context, tx *store.Tx) (any, error) {
		app, err := loadApplication(ctx, tx, req.ApplicationID)
		if err != nil {
			return nil, err
		}
		if app.Status != model.StatusOfferAccepted {
			return nil, model.Conflict("booking requires an accepted offer: application %s is %s", app.ID, app.Status)
		}

		app.Status = model.StatusBooked
		if err := tx.UpdateApplication(ctx, &app); err != nil {
			return nil, err
		}
		bookingID := model.DeriveID(call.Key)
		details := map[string]any{"booking_id": bookingID}
		if req.ActivationDate != "" {
			details["activation_date"] = req.ActivationDate
		}
		if _, err := tx.AppendAudit(ctx, app.ID, model.AuditBookingCreated, details); err != nil {
			return nil, err
		}
		return BookingResponse{BookingID: bookingID, Status: app.Status, ApplicationID: app.ID}, nil
	})
}
