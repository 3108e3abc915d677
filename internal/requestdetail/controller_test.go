package requestdetail_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/da-luiz/Clear-Chain/internal/apiclient"
	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/requestdetail"
	"github.com/da-luiz/Clear-Chain/internal/users"
	"github.com/da-luiz/Clear-Chain/internal/vendorrequests"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// fakeAPI applies transitions with the state machine, standing in for the
// server.
type fakeAPI struct {
	mu      sync.Mutex
	req     vendorrequests.VendorRequest
	user    users.Profile
	calls   []string
	fail    error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeAPI) record(name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	fail := f.fail
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return fail
}

func (f *fakeAPI) apply(name string, action workflow.Action, reason string) (vendorrequests.VendorRequest, error) {
	if err := f.record(name); err != nil {
		return vendorrequests.VendorRequest{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := workflow.Next(f.req.Subject(), action, f.user.Role, workflow.Input{Reason: reason})
	if err != nil {
		return vendorrequests.VendorRequest{}, &apiclient.RemoteError{StatusCode: 409, Code: vendorrequests.CodeInvalidTransition, Message: err.Error()}
	}
	f.req.Status = next
	if action.IsRejection() {
		f.req.RejectionReason = reason
	}
	if action == workflow.ActionRequestInfo {
		f.req.AdditionalInfoRequired = reason
	}
	return f.req, nil
}

func (f *fakeAPI) GetRequest(context.Context, int64) (vendorrequests.VendorRequest, error) {
	if err := f.record("get"); err != nil {
		return vendorrequests.VendorRequest{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.req, nil
}

func (f *fakeAPI) Me(context.Context) (users.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, nil
}

func (f *fakeAPI) UpdateDraft(_ context.Context, _ int64, in vendorrequests.DraftInput) (vendorrequests.VendorRequest, error) {
	out, err := f.apply("update", workflow.ActionEditDraft, "")
	if err == nil {
		f.mu.Lock()
		f.req.CompanyName = in.CompanyName
		out = f.req
		f.mu.Unlock()
	}
	return out, err
}

func (f *fakeAPI) Submit(context.Context, int64) (vendorrequests.VendorRequest, error) {
	return f.apply("submit", workflow.ActionSubmit, "")
}

func (f *fakeAPI) Cancel(context.Context, int64) (vendorrequests.VendorRequest, error) {
	return f.apply("cancel", workflow.ActionCancel, "")
}

func (f *fakeAPI) AddBanking(_ context.Context, _ int64, in vendorrequests.BankingInput) (vendorrequests.VendorRequest, error) {
	if err := f.record("banking"); err != nil {
		return vendorrequests.VendorRequest{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	details := in.Details()
	switch {
	case details.Currency == "":
		details.Currency = f.req.Currency
	case f.req.Currency != "" && details.Currency != f.req.Currency:
		return vendorrequests.VendorRequest{}, &apiclient.RemoteError{StatusCode: 400, Code: httpx.CodeValidation, Message: vendorrequests.ErrCurrencyLocked.Error()}
	}
	f.req.BankingDetails = details
	return f.req, nil
}

func (f *fakeAPI) Review(_ context.Context, _ int64, stage workflow.Stage, approve bool, in vendorrequests.ActionInput) (vendorrequests.VendorRequest, error) {
	action := stage.RejectAction()
	if approve {
		action = stage.ApproveAction()
	}
	return f.apply("review:"+string(action), action, in.Comment)
}

func (f *fakeAPI) RequestInfo(_ context.Context, _ int64, in vendorrequests.ActionInput) (vendorrequests.VendorRequest, error) {
	return f.apply("request_info", workflow.ActionRequestInfo, in.Comment)
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func completeBanking() workflow.BankingDetails {
	return workflow.BankingDetails{BankName: "First Bank", AccountHolderName: "Acme Ltd", AccountNumber: "0123456789"}
}

func loaded(t *testing.T, status workflow.Status, role workflow.Role, banking workflow.BankingDetails) (*requestdetail.Controller, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{
		req:  vendorrequests.VendorRequest{ID: 11, RequestNumber: "VCR-1A2B3C4D", Status: status, BankingDetails: banking},
		user: users.Profile{UserID: 5, Role: role},
	}
	c := requestdetail.New(api)
	require.NoError(t, c.Load(context.Background(), 11))
	return c, api
}

var actionCapability = map[workflow.Action]workflow.Capability{
	workflow.ActionEditDraft:         workflow.CapRequestsEditDraft,
	workflow.ActionSubmit:            workflow.CapRequestsSubmit,
	workflow.ActionCancel:            workflow.CapRequestsCancel,
	workflow.ActionAddBanking:        workflow.CapBankingDetails,
	workflow.ActionApproveCompliance: workflow.CapReviewCompliance,
	workflow.ActionRejectCompliance:  workflow.CapReviewCompliance,
	workflow.ActionApproveFinance:    workflow.CapReviewFinance,
	workflow.ActionRejectFinance:     workflow.CapReviewFinance,
	workflow.ActionApproveAdmin:      workflow.CapReviewAdmin,
	workflow.ActionRejectAdmin:       workflow.CapReviewAdmin,
}

// machineActions lists, per status, what the transition table offers anyone.
var machineActions = map[workflow.Status][]workflow.Action{
	workflow.StatusDraft:                   {workflow.ActionEditDraft, workflow.ActionSubmit, workflow.ActionCancel},
	workflow.StatusPendingComplianceReview: {workflow.ActionApproveCompliance, workflow.ActionRejectCompliance, workflow.ActionRequestInfo},
	workflow.StatusPendingFinanceReview:    {workflow.ActionAddBanking, workflow.ActionApproveFinance, workflow.ActionRejectFinance, workflow.ActionRequestInfo},
	workflow.StatusPendingAdminReview:      {workflow.ActionApproveAdmin, workflow.ActionRejectAdmin, workflow.ActionRequestInfo},
}

func expectedActions(status workflow.Status, role workflow.Role, banking workflow.BankingDetails) []workflow.Action {
	var out []workflow.Action
	for _, action := range machineActions[status] {
		capability, ok := actionCapability[action]
		if action == workflow.ActionRequestInfo {
			st, _ := workflow.StageOf(status)
			capability, ok = st.Capability(), true
		}
		if !ok || !workflow.Allows(role, capability) {
			continue
		}
		if action == workflow.ActionApproveFinance && !banking.Complete() {
			continue
		}
		out = append(out, action)
	}
	return out
}

func TestActionsMatchEvaluatorAndMachine(t *testing.T) {
	for _, status := range workflow.Statuses() {
		for _, role := range workflow.Roles() {
			for _, banking := range []workflow.BankingDetails{{}, completeBanking()} {
				c, _ := loaded(t, status, role, banking)
				require.ElementsMatch(t, expectedActions(status, role, banking), c.Actions(),
					"status=%s role=%s banking=%v", status, role, banking.Complete())
				if status.IsTerminal() {
					require.Empty(t, c.Actions(), "terminal %s", status)
				}
			}
		}
	}
}

func TestBlankReasonRejectedLocally(t *testing.T) {
	cases := []struct {
		status workflow.Status
		action workflow.Action
	}{
		{workflow.StatusPendingComplianceReview, workflow.ActionRejectCompliance},
		{workflow.StatusPendingFinanceReview, workflow.ActionRejectFinance},
		{workflow.StatusPendingAdminReview, workflow.ActionRejectAdmin},
		{workflow.StatusPendingComplianceReview, workflow.ActionRequestInfo},
		{workflow.StatusPendingFinanceReview, workflow.ActionRequestInfo},
		{workflow.StatusPendingAdminReview, workflow.ActionRequestInfo},
	}
	for _, tc := range cases {
		for _, reason := range []string{"", "   ", "\t\n"} {
			c, api := loaded(t, tc.status, workflow.RoleAdmin, completeBanking())
			before := api.callCount()
			_, err := c.Invoke(context.Background(), tc.action, requestdetail.Input{Reason: reason})
			require.ErrorIs(t, err, workflow.ErrMissingReason, "%s %s", tc.status, tc.action)
			require.Equal(t, before, api.callCount(), "no network call")
			req, _ := c.Request()
			require.Equal(t, tc.status, req.Status)
		}
	}
}

func TestFinanceApprovalNeedsBanking(t *testing.T) {
	c, api := loaded(t, workflow.StatusPendingFinanceReview, workflow.RoleFinanceApprover, workflow.BankingDetails{BankName: "First Bank", AccountHolderName: "Acme Ltd"})
	require.False(t, c.Can(workflow.ActionApproveFinance))

	before := api.callCount()
	_, err := c.Invoke(context.Background(), workflow.ActionApproveFinance, requestdetail.Input{})
	require.ErrorIs(t, err, workflow.ErrPreconditionFailed)
	require.Equal(t, before, api.callCount())

	_, err = c.Invoke(context.Background(), workflow.ActionAddBanking, requestdetail.Input{Banking: vendorrequests.BankingInput{BankName: "First Bank"}})
	require.ErrorIs(t, err, workflow.ErrPreconditionFailed)
	require.Equal(t, before, api.callCount())

	req, err := c.Invoke(context.Background(), workflow.ActionAddBanking, requestdetail.Input{Banking: vendorrequests.BankingInput{
		BankName: "First Bank", AccountHolderName: "Acme Ltd", AccountNumber: "0123456789", Currency: "ngn",
	}})
	require.NoError(t, err)
	require.Equal(t, "0123456789", req.AccountNumber)
	require.True(t, c.Can(workflow.ActionApproveFinance))

	req, err = c.Invoke(context.Background(), workflow.ActionApproveFinance, requestdetail.Input{})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPendingAdminReview, req.Status)
	require.Empty(t, c.Actions(), "finance approver has nothing to do at admin review")
}

func TestBankingRoundTrip(t *testing.T) {
	c, _ := loaded(t, workflow.StatusPendingFinanceReview, workflow.RoleFinanceApprover, workflow.BankingDetails{})
	in := vendorrequests.BankingInput{
		BankName: "First Bank", AccountHolderName: "Acme Ltd", AccountNumber: "0123456789",
		SwiftBicCode: "FIRSNGLA", Currency: "EUR", PaymentTerms: "NET30", PreferredPaymentMethod: "WIRE",
	}
	_, err := c.Invoke(context.Background(), workflow.ActionAddBanking, requestdetail.Input{Banking: in})
	require.NoError(t, err)

	require.NoError(t, c.Load(context.Background(), 11))
	req, ok := c.Request()
	require.True(t, ok)
	require.Equal(t, in.Details(), req.BankingDetails)
}

func TestBankingCurrencyConflictKeepsState(t *testing.T) {
	c, _ := loaded(t, workflow.StatusPendingFinanceReview, workflow.RoleFinanceApprover, workflow.BankingDetails{Currency: "USD"})
	in := vendorrequests.BankingInput{BankName: "First Bank", AccountHolderName: "Acme Ltd", AccountNumber: "0123456789", Currency: "EUR"}

	_, err := c.Invoke(context.Background(), workflow.ActionAddBanking, requestdetail.Input{Banking: in})
	require.ErrorIs(t, err, requestdetail.ErrRemoteFailure)
	require.True(t, apiclient.IsCode(err, httpx.CodeValidation))
	req, _ := c.Request()
	require.Empty(t, req.BankName)
	require.Equal(t, "USD", req.Currency)

	in.Currency = ""
	req, err = c.Invoke(context.Background(), workflow.ActionAddBanking, requestdetail.Input{Banking: in})
	require.NoError(t, err)
	require.Equal(t, "USD", req.Currency)
	require.Equal(t, "First Bank", req.BankName)
}

func TestComplianceApproveWithEmptyComment(t *testing.T) {
	c, _ := loaded(t, workflow.StatusPendingComplianceReview, workflow.RoleComplianceApprover, workflow.BankingDetails{})
	req, err := c.Invoke(context.Background(), workflow.ActionApproveCompliance, requestdetail.Input{})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPendingFinanceReview, req.Status)
}

func TestRequesterCannotApproveAsAdmin(t *testing.T) {
	c, api := loaded(t, workflow.StatusPendingAdminReview, workflow.RoleDepartmentRequester, completeBanking())
	require.NotContains(t, c.Actions(), workflow.ActionApproveAdmin)

	before := api.callCount()
	_, err := c.Invoke(context.Background(), workflow.ActionApproveAdmin, requestdetail.Input{})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	require.Equal(t, before, api.callCount())
}

func TestRemoteFailureKeepsState(t *testing.T) {
	c, api := loaded(t, workflow.StatusDraft, workflow.RoleDepartmentRequester, workflow.BankingDetails{})
	api.fail = &apiclient.RemoteError{StatusCode: 500, Message: "boom"}

	_, err := c.Invoke(context.Background(), workflow.ActionSubmit, requestdetail.Input{})
	require.ErrorIs(t, err, requestdetail.ErrRemoteFailure)
	req, _ := c.Request()
	require.Equal(t, workflow.StatusDraft, req.Status)
	require.ElementsMatch(t, []workflow.Action{workflow.ActionEditDraft, workflow.ActionSubmit, workflow.ActionCancel}, c.Actions())

	api.fail = errors.New("connection reset")
	_, err = c.Invoke(context.Background(), workflow.ActionCancel, requestdetail.Input{})
	require.ErrorIs(t, err, requestdetail.ErrRemoteFailure)
	require.False(t, c.Loading())
}

func TestStaleStateConflictFromServer(t *testing.T) {
	c, api := loaded(t, workflow.StatusPendingComplianceReview, workflow.RoleComplianceApprover, workflow.BankingDetails{})
	api.mu.Lock()
	api.req.Status = workflow.StatusPendingFinanceReview
	api.mu.Unlock()

	_, err := c.Invoke(context.Background(), workflow.ActionApproveCompliance, requestdetail.Input{})
	require.ErrorIs(t, err, requestdetail.ErrRemoteFailure)
	require.True(t, apiclient.IsCode(err, vendorrequests.CodeInvalidTransition))
	req, _ := c.Request()
	require.Equal(t, workflow.StatusPendingComplianceReview, req.Status)
}

func TestConcurrentInvokeBlocked(t *testing.T) {
	c, api := loaded(t, workflow.StatusDraft, workflow.RoleDepartmentRequester, workflow.BankingDetails{})
	api.block = make(chan struct{})
	api.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := c.Invoke(context.Background(), workflow.ActionSubmit, requestdetail.Input{})
		done <- err
	}()
	<-api.entered
	require.True(t, c.Loading())

	_, err := c.Invoke(context.Background(), workflow.ActionCancel, requestdetail.Input{})
	require.ErrorIs(t, err, requestdetail.ErrActionInProgress)
	require.ErrorIs(t, c.Load(context.Background(), 11), requestdetail.ErrActionInProgress)

	close(api.block)
	require.NoError(t, <-done)
	req, _ := c.Request()
	require.Equal(t, workflow.StatusPendingComplianceReview, req.Status)
}

func TestEditDraftNeedsFields(t *testing.T) {
	c, api := loaded(t, workflow.StatusDraft, workflow.RoleDepartmentRequester, workflow.BankingDetails{})
	_, err := c.Invoke(context.Background(), workflow.ActionEditDraft, requestdetail.Input{})
	require.ErrorIs(t, err, workflow.ErrPreconditionFailed)
	require.Equal(t, 1, api.callCount())

	req, err := c.Invoke(context.Background(), workflow.ActionEditDraft, requestdetail.Input{Draft: &vendorrequests.DraftInput{CompanyName: "Acme Supplies"}})
	require.NoError(t, err)
	require.Equal(t, "Acme Supplies", req.CompanyName)
}

func TestInvokeBeforeLoad(t *testing.T) {
	c := requestdetail.New(&fakeAPI{})
	_, err := c.Invoke(context.Background(), workflow.ActionSubmit, requestdetail.Input{})
	require.ErrorIs(t, err, requestdetail.ErrNotLoaded)
}
