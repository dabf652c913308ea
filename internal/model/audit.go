package model

import "encoding/json"

// Audit actions, one per committed state change.
const (
	AuditApplicationCreated = "APPLICATION_CREATED"
	AuditKYCUpdated         = "KYC_UPDATED"
	AuditFraudUpdated       = "FRAUD_CHECK_UPDATED"
	AuditCreditUpdated      = "CREDIT_SCORE_UPDATED"
	AuditDecisionExecuted   = "DECISION_EXECUTED"
	AuditPlanCreated        = "PLAN_CREATED"
	AuditPlanExecuted       = "PLAN_EXECUTED"
	AuditOfferAccepted      = "OFFER_ACCEPTED"
	AuditBookingCreated     = "BOOKING_CREATED"
)

// AuditEntry is one row of an application's audit trail.
type AuditEntry struct {
	ID            int64           `json:"id"`
	ApplicationID string          `json:"application_id"`
	Action        string          `json:"action"`
	Details       json.RawMessage `json:"details"`
	CreatedAt     string          `json:"timestamp"`
}
