package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/loanflow/loanflow/internal/canonical"
	"github.com/loanflow/loanflow/internal/model"
)

// Snapshot is the golden view of a scenario run. Pricing carries only the
// integer fields; the display rate is asserted through Expect.
type Snapshot struct {
	ScenarioName string          `json:"scenario_name"`
	Decision     model.Decision  `json:"decision"`
	ReasonCodes  []string        `json:"reason_codes"`
	Pricing      *PricingSummary `json:"pricing,omitempty"`
	Steps        []string        `json:"steps"`
	Persisted    int             `json:"persisted"`
}

// PricingSummary is the integer part of model.Pricing.
type PricingSummary struct {
	RateBps        int64 `json:"rate_bps"`
	TermMonths     int64 `json:"term"`
	MonthlyPayment int64 `json:"monthly_payment_cents"`
}

// NewSnapshot builds the snapshot of a result from its EXECUTE outcome.
func NewSnapshot(r *Result) Snapshot {
	out := r.Outcomes[model.ModeExecute]
	snap := Snapshot{
		ScenarioName: r.Name,
		Decision:     out.Decision,
		ReasonCodes:  out.ReasonCodes,
		Steps:        r.Steps,
		Persisted:    r.Persisted,
	}
	if snap.ReasonCodes == nil {
		snap.ReasonCodes = []string{}
	}
	if snap.Steps == nil {
		snap.Steps = []string{}
	}
	if out.Pricing != nil {
		snap.Pricing = &PricingSummary{
			RateBps:        out.Pricing.RateBps,
			TermMonths:     out.Pricing.TermMonths,
			MonthlyPayment: out.Pricing.MonthlyPayment,
		}
	}
	return snap
}

// MarshalSnapshot renders the snapshot as canonical JSON.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	v, err := canonical.FromStruct(s)
	if err != nil {
		return nil, err
	}
	return canonical.Marshal(v)
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), sc, opts...)
	if err != nil {
		return nil, err
	}
	data, err := MarshalSnapshot(NewSnapshot(result))
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, data)
	return result, nil
}
