package service

import "github.com/loanflow/loanflow/internal/model"

// Call identifies one mutating request to the ledger.
type Call struct {
	Key    string
	Route  string
	Method string
}

// Response is a ready-to-send result. Body is the exact JSON stored in the
// ledger, so a replay is byte-identical to the first response.
type Response struct {
	Code     int
	Body     []byte
	Replayed bool
}

// UpdateResponse answers a check-result update.
type UpdateResponse struct {
	Status      string             `json:"status"`
	KYC         *model.KYCResult   `json:"kyc_result,omitempty"`
	Fraud       *model.FraudResult `json:"fraud_result,omitempty"`
	CreditScore *int64             `json:"credit_score,omitempty"`
}

// CreditScoreRequest is the credit score update body.
type CreditScoreRequest struct {
	Score int64 `json:"score"`
}

// DecisionResponse answers a dry-run or executed decision.
type DecisionResponse struct {
	RunID       string         `json:"run_id"`
	Decision    model.Decision `json:"decision"`
	ReasonCodes []string       `json:"reason_codes"`
	Pricing     *model.Pricing `json:"pricing"`
	Mode        model.Mode     `json:"mode"`
}

// OfferResponse answers an offer acceptance.
type OfferResponse struct {
	Status        model.ApplicationStatus `json:"status"`
	ApplicationID string                  `json:"application_id"`
}

// BookingRequest is the booking body.
type BookingRequest struct {
	ApplicationID  string `json:"application_id"`
	ActivationDate string `json:"activation_date,omitempty"`
}

// BookingResponse answers a booking.
type BookingResponse struct {
	BookingID     string                  `json:"booking_id"`
	Status        model.ApplicationStatus `json:"status"`
	ApplicationID string                  `json:"application_id"`
}
