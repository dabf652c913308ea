// Package harness runs decision scenarios through the loan workflow.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: approve_standard
//	description: "Clean applicant in the standard pricing band"
//	input:
//	  application:
//	    applicant_id: a-1
//	    applicant_name: Ada
//	    amount: 10000
//	    income: 90000
//	    debt: 5000
//	  kyc_result: { status: PASS }
//	  fraud_result: { risk_score: 10 }
//	  credit_score: 720
//	expect:
//	  decision: APPROVE
//	  reason_codes: []
//	  rate: 4.5
//
// # Execution
//
// Run evaluates each scenario three times: DRY_RUN, PLAN and EXECUTE. The
// EXECUTE run persists into an in-memory origination.Recorder, so the full
// step sequence runs without a database. A scenario passes when all three
// modes agree, exactly one decision was recorded, and the outcome matches
// the expect block.
//
// Run IDs are derived from the scenario name, so repeated runs are
// byte-identical and suitable for golden comparison:
//
//	scenarios, err := harness.LoadDir("testdata/scenarios")
//	for _, sc := range scenarios {
//	    res, err := harness.Run(ctx, sc)
//	    ...
//	}
package harness
