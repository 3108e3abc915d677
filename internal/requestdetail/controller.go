// Package requestdetail drives a single vendor request on behalf of the
// acting user: it decides which actions are legal, checks them locally and
// sends them to the API.
package requestdetail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/da-luiz/Clear-Chain/internal/apiclient"
	"github.com/da-luiz/Clear-Chain/internal/users"
	"github.com/da-luiz/Clear-Chain/internal/vendorrequests"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

var (
	// ErrActionInProgress is returned while another call on the same
	// controller has not finished.
	ErrActionInProgress = errors.New("requestdetail: action in progress")
	// ErrNotLoaded is returned by Invoke before a successful Load.
	ErrNotLoaded = errors.New("requestdetail: request not loaded")
	// ErrRemoteFailure aliases the client's failure marker.
	ErrRemoteFailure = apiclient.ErrRemoteFailure
)

// Collaborator is the API surface the controller needs. *apiclient.Client
// satisfies it; the client carries the explicit acting Session.
type Collaborator interface {
	GetRequest(ctx context.Context, id int64) (vendorrequests.VendorRequest, error)
	Me(ctx context.Context) (users.Profile, error)
	UpdateDraft(ctx context.Context, id int64, in vendorrequests.DraftInput) (vendorrequests.VendorRequest, error)
	Submit(ctx context.Context, id int64) (vendorrequests.VendorRequest, error)
	Cancel(ctx context.Context, id int64) (vendorrequests.VendorRequest, error)
	AddBanking(ctx context.Context, id int64, in vendorrequests.BankingInput) (vendorrequests.VendorRequest, error)
	Review(ctx context.Context, id int64, stage workflow.Stage, approve bool, in vendorrequests.ActionInput) (vendorrequests.VendorRequest, error)
	RequestInfo(ctx context.Context, id int64, in vendorrequests.ActionInput) (vendorrequests.VendorRequest, error)
}

// Input is the user supplied part of an action. Reason is the reject reason,
// approval comment or information request note.
type Input struct {
	Reason  string
	Banking vendorrequests.BankingInput
	Draft   *vendorrequests.DraftInput
}

// Controller holds the loaded request, the acting user and the actions that
// user may take. State only changes from collaborator responses.
type Controller struct {
	api Collaborator

	mu      sync.Mutex
	loading bool
	request *vendorrequests.VendorRequest
	user    users.Profile
	actions []workflow.Action
}

// New constructs a Controller.
func New(api Collaborator) *Controller {
	return &Controller{api: api}
}

// Load fetches the request and the acting user's profile concurrently and
// recomputes the legal actions. On failure the previous state is kept.
func (c *Controller) Load(ctx context.Context, id int64) error {
	if !c.begin() {
		return ErrActionInProgress
	}
	defer c.end()

	var (
		req  vendorrequests.VendorRequest
		user users.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		req, err = c.api.GetRequest(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = c.api.Me(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return remote(err)
	}

	c.mu.Lock()
	c.user = user
	c.replace(req)
	c.mu.Unlock()
	return nil
}

// Request returns the loaded request.
func (c *Controller) Request() (vendorrequests.VendorRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.request == nil {
		return vendorrequests.VendorRequest{}, false
	}
	return *c.request, true
}

// User returns the acting user's profile as of the last Load.
func (c *Controller) User() users.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Actions returns exactly the actions the acting user may take now.
func (c *Controller) Actions() []workflow.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]workflow.Action(nil), c.actions...)
}

// Can reports whether action is currently offered.
func (c *Controller) Can(action workflow.Action) bool {
	for _, a := range c.Actions() {
		if a == action {
			return true
		}
	}
	return false
}

// Loading reports whether a Load or Invoke is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Invoke validates action against the local state and sends it. Invalid
// transitions, missing reasons and failed preconditions are reported without
// a network call. Remote failures leave the state untouched.
func (c *Controller) Invoke(ctx context.Context, action workflow.Action, in Input) (vendorrequests.VendorRequest, error) {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return vendorrequests.VendorRequest{}, ErrActionInProgress
	}
	if c.request == nil {
		c.mu.Unlock()
		return vendorrequests.VendorRequest{}, ErrNotLoaded
	}
	current := *c.request
	user := c.user
	c.loading = true
	c.mu.Unlock()
	defer c.end()

	if err := validate(current, user.Role, action, in); err != nil {
		return current, err
	}

	updated, err := c.dispatch(ctx, current.ID, user.UserID, action, in)
	if err != nil {
		return current, remote(err)
	}

	c.mu.Lock()
	c.replace(updated)
	c.mu.Unlock()
	return updated, nil
}

func validate(req vendorrequests.VendorRequest, role workflow.Role, action workflow.Action, in Input) error {
	if err := workflow.Check(req.Subject(), action, role, workflow.Input{Reason: in.Reason}); err != nil {
		return err
	}
	switch action {
	case workflow.ActionAddBanking:
		if missing := in.Banking.Details().Missing(); len(missing) > 0 {
			return fmt.Errorf("%w: banking details incomplete, missing %s", workflow.ErrPreconditionFailed, strings.Join(missing, ", "))
		}
	case workflow.ActionEditDraft:
		if in.Draft == nil {
			return fmt.Errorf("%w: draft fields are required", workflow.ErrPreconditionFailed)
		}
	}
	return nil
}

func (c *Controller) dispatch(ctx context.Context, id, reviewerID int64, action workflow.Action, in Input) (vendorrequests.VendorRequest, error) {
	note := vendorrequests.ActionInput{ReviewerID: &reviewerID, Comment: strings.TrimSpace(in.Reason)}
	switch action {
	case workflow.ActionEditDraft:
		return c.api.UpdateDraft(ctx, id, *in.Draft)
	case workflow.ActionSubmit:
		return c.api.Submit(ctx, id)
	case workflow.ActionCancel:
		return c.api.Cancel(ctx, id)
	case workflow.ActionAddBanking:
		return c.api.AddBanking(ctx, id, in.Banking)
	case workflow.ActionRequestInfo:
		return c.api.RequestInfo(ctx, id, note)
	case workflow.ActionApproveCompliance, workflow.ActionApproveFinance, workflow.ActionApproveAdmin:
		return c.api.Review(ctx, id, stageOf(action), true, note)
	case workflow.ActionRejectCompliance, workflow.ActionRejectFinance, workflow.ActionRejectAdmin:
		return c.api.Review(ctx, id, stageOf(action), false, note)
	}
	return vendorrequests.VendorRequest{}, fmt.Errorf("%w: unknown action %s", workflow.ErrInvalidTransition, action)
}

func stageOf(action workflow.Action) workflow.Stage {
	switch action {
	case workflow.ActionApproveCompliance, workflow.ActionRejectCompliance:
		return workflow.StageCompliance
	case workflow.ActionApproveFinance, workflow.ActionRejectFinance:
		return workflow.StageFinance
	}
	return workflow.StageAdmin
}

// replace installs req as the authoritative state. Callers hold mu.
func (c *Controller) replace(req vendorrequests.VendorRequest) {
	c.request = &req
	c.actions = workflow.LegalActions(c.user.Role, req.Subject())
}

func (c *Controller) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return false
	}
	c.loading = true
	return true
}

func (c *Controller) end() {
	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
}

func remote(err error) error {
	if errors.Is(err, ErrRemoteFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRemoteFailure, err)
}
