package model

// Decision is the aggregate evaluator verdict.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Reason codes, appended in check order.
const (
	ReasonKYCFailure     = "KYC_FAILURE"
	ReasonFraudRiskHigh  = "FRAUD_RISK_HIGH"
	ReasonCreditScoreLow = "CREDIT_SCORE_LOW"
)

// Inputs is the immutable snapshot a decision is computed from.
type Inputs struct {
	ApplicationID string       `json:"application_id"`
	Applicant     Applicant    `json:"application"`
	KYC           *KYCResult   `json:"kyc_result,omitempty"`
	Fraud         *FraudResult `json:"fraud_result,omitempty"`
	CreditScore   int64        `json:"credit_score"`
}

// Pricing is the offer attached to an approval.
// Rate is a percentage for display; RateBps is the authoritative value.
type Pricing struct {
	Rate           float64 `json:"rate"`
	RateBps        int64   `json:"rate_bps"`
	TermMonths     int64   `json:"term"`
	MonthlyPayment int64   `json:"monthly_payment_cents"`
}

// Outcome is what the evaluator returns.
type Outcome struct {
	Decision    Decision `json:"decision"`
	ReasonCodes []string `json:"reason_codes"`
	Pricing     *Pricing `json:"pricing,omitempty"`
}
