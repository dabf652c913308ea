package service

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/planning"
	"github.com/loanflow/loanflow/internal/store"
	"github.com/loanflow/loanflow/internal/testutil"
)

const applicantBody = `{"applicant_id":"a-1","applicant_name":"Ada","amount":10000,"income":90000,"debt":5000}`

type fixture struct {
	t    *testing.T
	svc  *Service
	st   *store.Store
	keys *testutil.KeyGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "svc.db"),
		store.WithClock(testutil.NewDeterministicClock().Now))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc, err := New(st)
	require.NoError(t, err)
	return &fixture{t: t, svc: svc, st: st, keys: testutil.NewKeyGenerator("svc")}
}

func (f *fixture) call(route string) Call {
	return Call{Key: f.keys.Next(), Route: route, Method: http.MethodPost}
}

func (f *fixture) createApplication() model.Application {
	f.t.Helper()
	resp, err := f.svc.CreateApplication(context.Background(), f.call("/applications"), []byte(applicantBody))
	require.NoError(f.t, err)
	require.Equal(f.t, http.StatusCreated, resp.Code)
	var app model.Application
	require.NoError(f.t, json.Unmarshal(resp.Body, &app))
	return app
}

func (f *fixture) prepare(id string, kyc string, risk, score int) {
	f.t.Helper()
	ctx := context.Background()
	base := "/applications/" + id
	_, err := f.svc.UpdateKYC(ctx, f.call(base+"/kyc"), id, []byte(`{"status":"`+kyc+`"}`))
	require.NoError(f.t, err)
	_, err = f.svc.UpdateFraud(ctx, f.call(base+"/fraud"), id, fmtJSON(f.t, map[string]int{"risk_score": risk}))
	require.NoError(f.t, err)
	_, err = f.svc.UpdateCreditScore(ctx, f.call(base+"/credit-score"), id, fmtJSON(f.t, map[string]int{"score": score}))
	require.NoError(f.t, err)
}

func fmtJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func decode[T any](t *testing.T, resp Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body, &v))
	return v
}

func actions(t *testing.T, svc *Service, id string) []string {
	t.Helper()
	entries, err := svc.ListAudit(context.Background(), id)
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func TestCreateApplication_DerivesIDAndAudits(t *testing.T) {
	f := newFixture(t)
	call := Call{Key: "create-1", Route: "/applications", Method: http.MethodPost}

	resp, err := f.svc.CreateApplication(context.Background(), call, []byte(applicantBody))
	require.NoError(t, err)
	app := decode[model.Application](t, resp)

	assert.Equal(t, model.DeriveID("create-1"), app.ID)
	assert.Equal(t, model.StatusNew, app.Status)
	assert.Equal(t, []string{model.AuditApplicationCreated}, actions(t, f.svc, app.ID))

	got, err := f.svc.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.Applicant, got.Applicant)
}

func TestCreateApplication_ReplayIsByteIdentical(t *testing.T) {
	f := newFixture(t)
	call := Call{Key: "create-1", Route: "/applications", Method: http.MethodPost}

	first, err := f.svc.CreateApplication(context.Background(), call, []byte(applicantBody))
	require.NoError(t, err)
	reordered := `{"debt":5000,"amount":10000,"income":90000,"applicant_name":"Ada","applicant_id":"a-1"}`
	second, err := f.svc.CreateApplication(context.Background(), call, []byte(reordered))
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, string(first.Body), string(second.Body))

	app := decode[model.Application](t, first)
	assert.Len(t, actions(t, f.svc, app.ID), 1)
}

func TestCreateApplication_ChangedPayloadConflicts(t *testing.T) {
	f := newFixture(t)
	call := Call{Key: "create-1", Route: "/applications", Method: http.MethodPost}

	_, err := f.svc.CreateApplication(context.Background(), call, []byte(applicantBody))
	require.NoError(t, err)
	_, err = f.svc.CreateApplication(context.Background(), call,
		[]byte(`{"applicant_id":"a-1","applicant_name":"Ada","amount":20000,"income":90000,"debt":5000}`))
	assert.True(t, model.IsConflict(err))
}

func TestCreateApplication_InvalidBodyTakesNoLock(t *testing.T) {
	f := newFixture(t)
	call := Call{Key: "create-1", Route: "/applications", Method: http.MethodPost}

	_, err := f.svc.CreateApplication(context.Background(), call, []byte(`{"applicant_id":"a-1"}`))
	assert.True(t, model.IsValidation(err))

	resp, err := f.svc.CreateApplication(context.Background(), call, []byte(applicantBody))
	require.NoError(t, err)
	assert.False(t, resp.Replayed)
}

func TestCreateApplication_AmountBounds(t *testing.T) {
	f := newFixture(t)

	for _, amount := range []string{"0", "1000000001", "9000000000000"} {
		body := `{"applicant_id":"a-1","applicant_name":"Ada","amount":` + amount + `,"income":90000,"debt":5000}`
		_, err := f.svc.CreateApplication(context.Background(), f.call("/applications"), []byte(body))
		assert.True(t, model.IsValidation(err), "amount %s", amount)
	}
}

func TestKeyReusedOnAnotherRouteConflicts(t *testing.T) {
	f := newFixture(t)
	app := f.createApplication()

	call := Call{Key: "shared", Route: "/applications/" + app.ID + "/kyc", Method: http.MethodPost}
	_, err := f.svc.UpdateKYC(context.Background(), call, app.ID, []byte(`{"status":"PASS"}`))
	require.NoError(t, err)

	call.Route = "/applications/" + app.ID + "/fraud"
	_, err = f.svc.UpdateFraud(context.Background(), call, app.ID, []byte(`{"risk_score":10}`))
	assert.True(t, model.IsConflict(err))
}

func TestHandlerFailureReleasesKey(t *testing.T) {
	f := newFixture(t)
	call := Call{Key: "kyc-1", Route: "/applications/missing/kyc", Method: http.MethodPost}

	_, err := f.svc.UpdateKYC(context.Background(), call, "missing", []byte(`{"status":"PASS"}`))
	assert.True(t, model.IsNotFound(err))

	_, err = f.svc.UpdateKYC(context.Background(), call, "missing", []byte(`{"status":"PASS"}`))
	assert.True(t, model.IsNotFound(err), "FAILED record is retried, not replayed")
}

func TestCompletionFailureLeavesKeyInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	call := Call{Key: "stuck-1", Route: "/stuck", Method: http.MethodPost}
	var handlerCalls int
	handler := func(ctx context.Context, tx *store.Tx) (any, error) {
		handlerCalls++
		// Moving the record out of IN_PROGRESS makes Complete find nothing to finish.
		ok, err := tx.TransitionIdempotency(ctx, call.Key, call.Route, model.IdemInProgress, model.IdemCompleted)
		require.NoError(t, err)
		require.True(t, ok)
		return map[string]string{"status": "ok"}, nil
	}

	_, err := f.svc.guarded(ctx, call, model.ModeExecute, map[string]string{"a": "b"}, http.StatusOK, handler)
	require.Error(t, err)
	assert.Equal(t, model.KindInternal, model.KindOf(err))

	_, err = f.svc.guarded(ctx, call, model.ModeExecute, map[string]string{"a": "b"}, http.StatusOK, handler)
	assert.True(t, model.IsConflict(err), "record stays IN_PROGRESS, not FAILED")
	assert.Equal(t, 1, handlerCalls)
}

func TestDecision_DryRunThenExecuteMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication()
	f.prepare(app.ID, model.KYCPass, 10, 720)
	before := actions(t, f.svc, app.ID)

	route := "/applications/" + app.ID + "/decision"
	dry, err := f.svc.DryRunDecision(ctx, f.call(route+"/dry-run"), app.ID)
	require.NoError(t, err)
	preview := decode[DecisionResponse](t, dry)
	assert.Equal(t, model.DecisionApprove, preview.Decision)
	assert.Equal(t, model.ModeDryRun, preview.Mode)
	require.NotNil(t, preview.Pricing)
	assert.Equal(t, int64(450), preview.Pricing.RateBps)

	got, err := f.svc.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, got.Status)
	assert.Equal(t, before, actions(t, f.svc, app.ID))

	execCall := f.call(route)
	exec, err := f.svc.ExecuteDecision(ctx, execCall, app.ID)
	require.NoError(t, err)
	committed := decode[DecisionResponse](t, exec)
	assert.Equal(t, preview.Decision, committed.Decision)
	assert.Equal(t, preview.Pricing, committed.Pricing)
	assert.Equal(t, model.DeriveRunID(execCall.Key), committed.RunID)

	got, err = f.svc.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	require.NotNil(t, got.DecisionData.Decision)
	assert.Equal(t, committed.RunID, got.DecisionData.Decision.RunID)

	trail := actions(t, f.svc, app.ID)
	assert.Equal(t, model.AuditDecisionExecuted, trail[len(trail)-1])
}

func TestDecision_AllChecksRejectAccumulates(t *testing.T) {
	f := newFixture(t)
	app := f.createApplication()
	f.prepare(app.ID, model.KYCFail, 90, 550)

	resp, err := f.svc.ExecuteDecision(context.Background(), f.call("/applications/"+app.ID+"/decision"), app.ID)
	require.NoError(t, err)
	out := decode[DecisionResponse](t, resp)

	assert.Equal(t, model.DecisionReject, out.Decision)
	assert.Equal(t, []string{model.ReasonKYCFailure, model.ReasonFraudRiskHigh, model.ReasonCreditScoreLow}, out.ReasonCodes)
	assert.Nil(t, out.Pricing)
	assert.Contains(t, string(resp.Body), `"pricing":null`)
}

func TestPlanLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication()
	f.prepare(app.ID, model.KYCPass, 10, 720)

	planCall := f.call("/applications/" + app.ID + "/decision/plan")
	resp, err := f.svc.CreatePlan(ctx, planCall, app.ID, []byte(`{"scenarios_count":2}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	plan := decode[model.DecisionPlan](t, resp)
	assert.Equal(t, model.DeriveID(planCall.Key), plan.PlanID)
	assert.Len(t, plan.ScenarioResults, 2)

	stored, err := f.svc.GetPlan(ctx, plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPlanned, stored.Status)

	execResp, err := f.svc.ExecutePlan(ctx, f.call("/decision/plans/"+plan.PlanID+"/execute"), plan.PlanID)
	require.NoError(t, err)
	result := decode[planning.ExecuteResult](t, execResp)
	assert.True(t, result.MatchedPlan)
	assert.Equal(t, model.PlanExecuted, result.Plan.Status)

	_, err = f.svc.ExecutePlan(ctx, f.call("/decision/plans/"+plan.PlanID+"/execute"), plan.PlanID)
	assert.True(t, model.IsConflict(err))
}

func TestPlanGoesStaleWhenInputsChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication()
	f.prepare(app.ID, model.KYCPass, 10, 720)

	resp, err := f.svc.CreatePlan(ctx, f.call("/applications/"+app.ID+"/decision/plan"), app.ID, nil)
	require.NoError(t, err)
	plan := decode[model.DecisionPlan](t, resp)

	_, err = f.svc.UpdateCreditScore(ctx, f.call("/applications/"+app.ID+"/credit-score"), app.ID, []byte(`{"score":580}`))
	require.NoError(t, err)

	_, err = f.svc.ExecutePlan(ctx, f.call("/decision/plans/"+plan.PlanID+"/execute"), plan.PlanID)
	require.Error(t, err)
	assert.True(t, model.IsConflict(err))

	got, err := f.svc.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, got.Status)
}

func TestGetPlan_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetPlan(context.Background(), "nope")
	assert.True(t, model.IsNotFound(err))
}

func TestOfferAndBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication()
	f.prepare(app.ID, model.KYCPass, 10, 720)

	bookingBody := fmtJSON(t, map[string]string{"application_id": app.ID, "activation_date": "2025-02-01"})
	_, err := f.svc.CreateBooking(ctx, f.call("/bookings"), bookingBody)
	assert.True(t, model.IsConflict(err), "booking before acceptance")

	_, err = f.svc.AcceptOffer(ctx, f.call("/applications/"+app.ID+"/offer/accept"), app.ID)
	assert.True(t, model.IsConflict(err), "offer before approval")

	_, err = f.svc.ExecuteDecision(ctx, f.call("/applications/"+app.ID+"/decision"), app.ID)
	require.NoError(t, err)

	resp, err := f.svc.AcceptOffer(ctx, f.call("/applications/"+app.ID+"/offer/accept"), app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOfferAccepted, decode[OfferResponse](t, resp).Status)

	_, err = f.svc.UpdateCreditScore(ctx, f.call("/applications/"+app.ID+"/credit-score"), app.ID, []byte(`{"score":800}`))
	assert.True(t, model.IsConflict(err), "final application rejects updates")

	bookingCall := f.call("/bookings")
	resp, err = f.svc.CreateBooking(ctx, bookingCall, bookingBody)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	booking := decode[BookingResponse](t, resp)
	assert.Equal(t, model.DeriveID(bookingCall.Key), booking.BookingID)
	assert.Equal(t, model.StatusBooked, booking.Status)

	trail := actions(t, f.svc, app.ID)
	assert.Equal(t, []string{model.AuditOfferAccepted, model.AuditBookingCreated}, trail[len(trail)-2:])
}

func TestListAudit_UnknownApplication(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListAudit(context.Background(), "missing")
	assert.True(t, model.IsNotFound(err))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.Health(context.Background()))
}
