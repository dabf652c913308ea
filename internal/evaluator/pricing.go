package evaluator

import (
	"math"
	"math/big"

	"github.com/loanflow/loanflow/internal/model"
)

// Rate table in basis points.
const (
	PrimeRateBps    = 400 // credit score above PrimeCreditScore
	StandardRateBps = 450
	SubprimeRateBps = 600 // credit score below SubprimeCreditScore

	PrimeCreditScore    = 750
	SubprimeCreditScore = 650

	TermMonths = 36

	// MaxAmount bounds amount, income and debt at the API boundary.
	MaxAmount = 1_000_000_000
)

// Price computes the offer for an approved application.
// amount is in whole currency units; the monthly payment is in cents,
// rounded half up: amount*100*(1+rate)/term. The product is computed in
// arbitrary precision and the result saturates at math.MaxInt64.
func Price(creditScore, amount int64) model.Pricing {
	bps := int64(StandardRateBps)
	switch {
	case creditScore > PrimeCreditScore:
		bps = PrimeRateBps
	case creditScore < SubprimeCreditScore:
		bps = SubprimeRateBps
	}

	return model.Pricing{
		Rate:           float64(bps) / 100,
		RateBps:        bps,
		TermMonths:     TermMonths,
		MonthlyPayment: monthlyPayment(amount, bps),
	}
}

// monthlyPayment returns round_half_up(amount*100*(10000+bps)/(10000*term)).
// Results beyond int64 saturate at math.MaxInt64; that takes an amount
// above 3e18, far past MaxAmount.
func monthlyPayment(amount, bps int64) int64 {
	den := big.NewInt(10000 * TermMonths)
	num := new(big.Int).Mul(big.NewInt(amount), big.NewInt(100*(10000+bps)))
	num.Add(num, new(big.Int).Rsh(den, 1))
	// Div is Euclidean; with a positive divisor that is floor division.
	q := num.Div(num, den)
	if !q.IsInt64() {
		return math.MaxInt64
	}
	return q.Int64()
}
