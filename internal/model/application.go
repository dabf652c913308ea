package model

// ApplicationStatus is the lifecycle state of a loan application.
type ApplicationStatus string

const (
	StatusNew           ApplicationStatus = "NEW"
	StatusApproved      ApplicationStatus = "APPROVE"
	StatusRejected      ApplicationStatus = "REJECT"
	StatusOfferAccepted ApplicationStatus = "OFFER_ACCEPTED"
	StatusBooked        ApplicationStatus = "BOOKED"
)

// KYC result statuses.
const (
	KYCPass = "PASS"
	KYCFail = "FAIL"
)

// Applicant holds the fields submitted when an application is created.
// Amount, Income and Debt are whole currency units.
type Applicant struct {
	ApplicantID   string `json:"applicant_id"`
	ApplicantName string `json:"applicant_name"`
	Amount        int64  `json:"amount"`
	Income        int64  `json:"income"`
	Debt          int64  `json:"debt"`
	Email         string `json:"email,omitempty"`
}

// KYCResult is the identity verification outcome.
type KYCResult struct {
	Status string `json:"status"`
}

// FraudResult is the fraud screening outcome. RiskScore is 0-100, high is bad.
type FraudResult struct {
	RiskScore int64 `json:"risk_score"`
}

// DecisionRecord is the last outcome committed by an EXECUTE run.
type DecisionRecord struct {
	RunID string `json:"run_id"`
	Outcome
}

// DecisionData accumulates check results as they arrive.
type DecisionData struct {
	KYC         *KYCResult      `json:"kyc_result,omitempty"`
	Fraud       *FraudResult    `json:"fraud_result,omitempty"`
	CreditScore *int64          `json:"credit_score,omitempty"`
	Decision    *DecisionRecord `json:"decision,omitempty"`
}

// Application is the persisted loan application document.
type Application struct {
	ID           string            `json:"id"`
	Status       ApplicationStatus `json:"status"`
	Applicant    Applicant         `json:"applicant_data"`
	DecisionData DecisionData      `json:"decision_data"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

// Snapshot returns the evaluator input view of the application.
// Absent check results stay nil; the evaluator defaults them.
func (a Application) Snapshot() Inputs {
	in := Inputs{
		ApplicationID: a.ID,
		Applicant:     a.Applicant,
		KYC:           a.DecisionData.KYC,
		Fraud:         a.DecisionData.Fraud,
	}
	if a.DecisionData.CreditScore != nil {
		in.CreditScore = *a.DecisionData.CreditScore
	}
	return in
}

// Final reports whether the application is past the decision stage. Final
// applications accept no new check results or decisions.
func (a Application) Final() bool {
	return a.Status == StatusOfferAccepted || a.Status == StatusBooked
}
