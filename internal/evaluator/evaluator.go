// Package evaluator computes loan decisions.
//
// Evaluate is pure and total: it never fails on well-typed input, absent
// sub-documents default safely, and identical inputs always yield identical
// output regardless of call count or workflow mode.
package evaluator

import "github.com/loanflow/loanflow/internal/model"

// Thresholds applied by Evaluate, in check order.
const (
	FraudRejectScore   = 80
	MinimumCreditScore = 600

	// DefaultAmount is used for pricing when the application carries no
	// amount. A zero amount counts as absent.
	DefaultAmount = 10000
)

// Func is the evaluator signature consumed by workflows.
type Func func(model.Inputs) model.Outcome

// Evaluate runs the identity, fraud and credit checks in that order.
//
// Every failing check appends its reason code even when an earlier check
// already rejected, so ReasonCodes lists all failures in check order.
// Pricing is attached only when no check failed.
func Evaluate(in model.Inputs) model.Outcome {
	out := model.Outcome{
		Decision:    model.DecisionApprove,
		ReasonCodes: []string{},
	}

	if in.KYC == nil || in.KYC.Status != model.KYCPass {
		out.Decision = model.DecisionReject
		out.ReasonCodes = append(out.ReasonCodes, model.ReasonKYCFailure)
	}

	var risk int64
	if in.Fraud != nil {
		risk = in.Fraud.RiskScore
	}
	if risk >= FraudRejectScore {
		out.Decision = model.DecisionReject
		out.ReasonCodes = append(out.ReasonCodes, model.ReasonFraudRiskHigh)
	}

	if in.CreditScore < MinimumCreditScore {
		out.Decision = model.DecisionReject
		out.ReasonCodes = append(out.ReasonCodes, model.ReasonCreditScoreLow)
	}

	if out.Decision == model.DecisionApprove {
		amount := in.Applicant.Amount
		if amount == 0 {
			amount = DefaultAmount
		}
		p := Price(in.CreditScore, amount)
		out.Pricing = &p
	}

	return out
}
