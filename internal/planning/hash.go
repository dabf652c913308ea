package planning

import (
	"github.com/loanflow/loanflow/internal/canonical"
	"github.com/loanflow/loanflow/internal/model"
)

// pinnedInputs is everything a plan's decision depends on. Absent check
// results marshal as null and are dropped by canonicalization, so absent
// and null hash the same.
type pinnedInputs struct {
	Application pinnedApplication  `json:"application"`
	KYC         *model.KYCResult   `json:"kyc_result"`
	Fraud       *model.FraudResult `json:"fraud_result"`
	CreditScore *int64             `json:"credit_score"`
	Options     model.PlanOptions  `json:"options"`
}

type pinnedApplication struct {
	ID string `json:"id"`
	model.Applicant
}

// InputsHash computes the plan inputs hash of app under opts.
// Status and the last decision are not inputs, so executing a plan does not
// change its own hash.
func InputsHash(app model.Application, opts model.PlanOptions) (string, error) {
	v, err := canonical.FromStruct(pinnedInputs{
		Application: pinnedApplication{ID: app.ID, Applicant: app.Applicant},
		KYC:         app.DecisionData.KYC,
		Fraud:       app.DecisionData.Fraud,
		CreditScore: app.DecisionData.CreditScore,
		Options:     opts,
	})
	if err != nil {
		return "", model.Internal(err, "canonicalize plan inputs")
	}
	hash, err := canonical.InputsHash(v)
	if err != nil {
		return "", model.Internal(err, "hash plan inputs")
	}
	return hash, nil
}
