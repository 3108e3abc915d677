package vendorrequests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/da-luiz/Clear-Chain/internal/masterdata"
	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/vendors"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (VendorRequest, error)
	List(ctx context.Context, filter ListFilter) ([]VendorRequest, int, error)
	Approvals(ctx context.Context, id int64) ([]shared.ApprovalLog, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Create(ctx context.Context, req VendorRequest) (VendorRequest, error)
	GetForUpdate(ctx context.Context, id int64) (VendorRequest, error)
	UpdateDraft(ctx context.Context, id int64, in DraftInput) error
	UpdateBanking(ctx context.Context, id int64, details workflow.BankingDetails) error
	ApplyTransition(ctx context.Context, id int64, t Transition) error
	CreateVendor(ctx context.Context, v vendors.Vendor) (vendors.Vendor, error)
	LinkVendor(ctx context.Context, id, vendorID int64) error
	InsertApproval(ctx context.Context, log shared.ApprovalLog) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort deduplicates retried commands.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// ReferencePort resolves the department and category a draft points at.
// *masterdata.Service satisfies it.
type ReferencePort interface {
	Department(ctx context.Context, id int64) (masterdata.Department, error)
	Category(ctx context.Context, id int64) (masterdata.Category, error)
}

// TransitionObserver counts committed workflow actions.
type TransitionObserver interface {
	ObserveTransition(action, from, to string)
}

// ErrDuplicateNumber is returned by repositories when a request number collides.
var ErrDuplicateNumber = fmt.Errorf("%w: request number already exists", httpx.ErrDuplicate)

const (
	numberAttempts     = 3
	vendorCodeAttempts = 3
)

// Service orchestrates the vendor request workflow.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	events      EventPublisher
	metrics     TransitionObserver
	references  ReferencePort
	logger      *slog.Logger
	validate    *validator.Validate
	now         func() time.Time
}

// NewService constructs the vendor request service. Every collaborator
// except repo may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, events EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		events:      events,
		logger:      logger,
		validate:    newValidator(),
		now:         time.Now,
	}
}

// WithMetrics attaches a transition observer.
func (s *Service) WithMetrics(m TransitionObserver) *Service {
	s.metrics = m
	return s
}

// WithReferences makes Create and UpdateDraft reject unknown departments and
// categories.
func (s *Service) WithReferences(r ReferencePort) *Service {
	s.references = r
	return s
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id int64) (VendorRequest, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of requests.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.Page[VendorRequest], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[VendorRequest]{}, err
	}
	if items == nil {
		items = []VendorRequest{}
	}
	return shared.Page[VendorRequest]{Items: items, Pagination: shared.NewPagination(filter.Offset/filter.Limit+1, filter.Limit, total)}, nil
}

// Pending returns every request awaiting a review stage, oldest first.
func (s *Service) Pending(ctx context.Context) ([]VendorRequest, error) {
	items, _, err := s.repo.List(ctx, ListFilter{
		Statuses: []workflow.Status{workflow.StatusPendingComplianceReview, workflow.StatusPendingFinanceReview, workflow.StatusPendingAdminReview},
		Limit:    500,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []VendorRequest{}
	}
	return items, nil
}

// Approvals returns the approval history of a request.
func (s *Service) Approvals(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	logs, err := s.repo.Approvals(ctx, id)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	return logs, nil
}

// Create stores a new DRAFT request. Only admins may file on behalf of
// another user.
func (s *Service) Create(ctx context.Context, actor *shared.Principal, in DraftInput, key string) (VendorRequest, error) {
	if actor == nil {
		return VendorRequest{}, httpx.ErrUnauthorized
	}
	if !workflow.Allows(actor.Role, workflow.CapRequestsCreate) {
		return VendorRequest{}, fmt.Errorf("%w: role %s cannot create vendor requests", httpx.ErrForbidden, actor.Role)
	}
	in = normaliseDraft(in)
	if err := s.checkDraft(ctx, in); err != nil {
		return VendorRequest{}, err
	}
	if in.RequestedByUserID == 0 {
		in.RequestedByUserID = actor.UserID
	}
	if in.RequestedByUserID != actor.UserID && actor.Role != workflow.RoleAdmin {
		return VendorRequest{}, fmt.Errorf("%w: cannot file a request for another user", httpx.ErrForbidden)
	}

	const scope = "vendor_requests:create"
	inserted, err := s.claim(ctx, key, scope)
	if err != nil {
		return VendorRequest{}, err
	}
	draft := fromDraft(in)
	draft.Status = workflow.StatusDraft
	var created VendorRequest
	for attempt := 0; attempt < numberAttempts; attempt++ {
		draft.RequestNumber = NewRequestNumber()
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			created, err = tx.Create(ctx, draft)
			return err
		})
		if !errors.Is(err, ErrDuplicateNumber) {
			break
		}
	}
	if err != nil {
		s.release(ctx, inserted, key, scope)
		return VendorRequest{}, err
	}
	s.recordAudit(ctx, actor.UserID, "VENDOR_REQUEST_CREATE", created.ID, map[string]any{"number": created.RequestNumber})
	return created, nil
}

// UpdateDraft rewrites the descriptive fields of a DRAFT request.
func (s *Service) UpdateDraft(ctx context.Context, actor *shared.Principal, id int64, in DraftInput) (VendorRequest, error) {
	if actor == nil {
		return VendorRequest{}, httpx.ErrUnauthorized
	}
	in = normaliseDraft(in)
	if err := s.checkDraft(ctx, in); err != nil {
		return VendorRequest{}, err
	}
	return s.run(ctx, actor, id, step{
		action: fixed(workflow.ActionEditDraft),
		apply: func(ctx context.Context, tx TxRepository, req VendorRequest, _ workflow.Action, _ workflow.Status) error {
			return tx.UpdateDraft(ctx, req.ID, in)
		},
	})
}

// Submit sends a DRAFT into compliance review.
func (s *Service) Submit(ctx context.Context, actor *shared.Principal, id int64, key string) (VendorRequest, error) {
	return s.run(ctx, actor, id, step{
		action: fixed(workflow.ActionSubmit),
		key:    key,
		apply:  s.moveTo(actor, shared.ApprovalSubmit, ""),
	})
}

// Cancel withdraws a DRAFT.
func (s *Service) Cancel(ctx context.Context, actor *shared.Principal, id int64, key string) (VendorRequest, error) {
	return s.run(ctx, actor, id, step{
		action: fixed(workflow.ActionCancel),
		key:    key,
		apply:  s.moveTo(actor, shared.ApprovalCancel, ""),
	})
}

// AddBankingDetails stores banking details while the request is in finance
// review. Finance may only fill the currency in when the requester left it
// blank; naming a different one fails with ErrCurrencyLocked.
func (s *Service) AddBankingDetails(ctx context.Context, actor *shared.Principal, id int64, in BankingInput, key string) (VendorRequest, error) {
	if err := s.validate.Struct(in); err != nil {
		return VendorRequest{}, validationError(err)
	}
	details := in.Details()
	if !details.Complete() {
		return VendorRequest{}, fmt.Errorf("%w: banking details incomplete, missing %s", workflow.ErrPreconditionFailed, strings.Join(details.Missing(), ", "))
	}
	return s.run(ctx, actor, id, step{
		action: fixed(workflow.ActionAddBanking),
		key:    key,
		apply: func(ctx context.Context, tx TxRepository, req VendorRequest, _ workflow.Action, _ workflow.Status) error {
			switch {
			case details.Currency == "":
				details.Currency = req.Currency
			case req.Currency != "" && details.Currency != req.Currency:
				return fmt.Errorf("%w (%s)", ErrCurrencyLocked, req.Currency)
			}
			return tx.UpdateBanking(ctx, req.ID, details)
		},
	})
}

// Review applies the approve or reject decision of stage.
func (s *Service) Review(ctx context.Context, actor *shared.Principal, id int64, stage workflow.Stage, approve bool, in ActionInput, key string) (VendorRequest, error) {
	action := stage.RejectAction()
	if approve {
		action = stage.ApproveAction()
	}
	return s.review(ctx, actor, id, fixed(action), in, key)
}

// Approve approves at whichever stage currently reviews the request.
func (s *Service) Approve(ctx context.Context, actor *shared.Principal, id int64, in ActionInput, key string) (VendorRequest, error) {
	return s.review(ctx, actor, id, func(req VendorRequest) (workflow.Action, error) {
		return workflow.ApproveActionFor(req.Status)
	}, in, key)
}

// Reject rejects at whichever stage currently reviews the request.
func (s *Service) Reject(ctx context.Context, actor *shared.Principal, id int64, in ActionInput, key string) (VendorRequest, error) {
	return s.review(ctx, actor, id, func(req VendorRequest) (workflow.Action, error) {
		return workflow.RejectActionFor(req.Status)
	}, in, key)
}

// RequestInfo records a reviewer's request for more information. The status
// does not change.
func (s *Service) RequestInfo(ctx context.Context, actor *shared.Principal, id int64, in ActionInput, key string) (VendorRequest, error) {
	if err := s.checkAction(actor, in); err != nil {
		return VendorRequest{}, err
	}
	note := strings.TrimSpace(in.Comment)
	return s.run(ctx, actor, id, step{
		action: fixed(workflow.ActionRequestInfo),
		input:  workflow.Input{Reason: note},
		key:    key,
		note:   note,
		apply: func(ctx context.Context, tx TxRepository, req VendorRequest, _ workflow.Action, next workflow.Status) error {
			stage, _ := workflow.StageOf(req.Status)
			if err := tx.ApplyTransition(ctx, req.ID, Transition{From: req.Status, To: next, AdditionalInfoRequired: &note}); err != nil {
				return err
			}
			return tx.InsertApproval(ctx, s.approvalLog(req, actor, shared.ApprovalRequestInfo, string(stage), note))
		},
	})
}

func (s *Service) review(ctx context.Context, actor *shared.Principal, id int64, resolve func(VendorRequest) (workflow.Action, error), in ActionInput, key string) (VendorRequest, error) {
	if err := s.checkAction(actor, in); err != nil {
		return VendorRequest{}, err
	}
	comment := strings.TrimSpace(in.Comment)
	return s.run(ctx, actor, id, step{
		action: resolve,
		input:  workflow.Input{Reason: comment},
		key:    key,
		note:   comment,
		apply: func(ctx context.Context, tx TxRepository, req VendorRequest, action workflow.Action, next workflow.Status) error {
			stage, _ := workflow.StageOf(req.Status)
			now := s.now().UTC()
			t := Transition{From: req.Status, To: next, ReviewedBy: &actor.UserID, ReviewedAt: &now}
			decision := shared.ApprovalApprove
			if action.IsRejection() {
				decision = shared.ApprovalReject
				t.RejectionReason = &comment
			}
			if err := tx.ApplyTransition(ctx, req.ID, t); err != nil {
				return err
			}
			if action == workflow.ActionApproveAdmin {
				v, err := createVendor(ctx, tx, vendorFromRequest(req, now))
				if err != nil {
					return fmt.Errorf("create vendor: %w", err)
				}
				if err := tx.LinkVendor(ctx, req.ID, v.ID); err != nil {
					return err
				}
			}
			return tx.InsertApproval(ctx, s.approvalLog(req, actor, decision, string(stage), comment))
		},
	})
}

// createVendor retries a colliding vendor code with a random suffix.
func createVendor(ctx context.Context, tx TxRepository, v vendors.Vendor) (vendors.Vendor, error) {
	base := v.VendorCode
	var err error
	for attempt := 0; attempt < vendorCodeAttempts; attempt++ {
		if attempt > 0 {
			v.VendorCode = vendors.WithSuffix(base)
		}
		var created vendors.Vendor
		created, err = tx.CreateVendor(ctx, v)
		if !errors.Is(err, vendors.ErrDuplicateCode) {
			return created, err
		}
	}
	return vendors.Vendor{}, err
}

type step struct {
	action func(VendorRequest) (workflow.Action, error)
	input  workflow.Input
	key    string
	note   string
	apply  func(ctx context.Context, tx TxRepository, req VendorRequest, action workflow.Action, next workflow.Status) error
}

func fixed(a workflow.Action) func(VendorRequest) (workflow.Action, error) {
	return func(VendorRequest) (workflow.Action, error) { return a, nil }
}

// run locks the request, validates the action against the state machine,
// applies it and returns the committed request.
func (s *Service) run(ctx context.Context, actor *shared.Principal, id int64, st step) (VendorRequest, error) {
	if actor == nil {
		return VendorRequest{}, httpx.ErrUnauthorized
	}
	scope := "vendor_requests:" + strconv.FormatInt(id, 10)
	inserted, err := s.claim(ctx, st.key, scope)
	if err != nil {
		return VendorRequest{}, err
	}
	var (
		updated VendorRequest
		from    workflow.Status
		action  workflow.Action
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		action, err = st.action(req)
		if err != nil {
			return err
		}
		next, err := workflow.Next(req.Subject(), action, actor.Role, st.input)
		if err != nil {
			return err
		}
		from = req.Status
		if err := st.apply(ctx, tx, req, action, next); err != nil {
			return err
		}
		updated, err = tx.GetForUpdate(ctx, id)
		return err
	})
	if err != nil {
		s.release(ctx, inserted, st.key, scope)
		return VendorRequest{}, err
	}
	s.committed(ctx, actor, updated, action, from, st.note)
	return updated, nil
}

func (s *Service) moveTo(actor *shared.Principal, decision shared.ApprovalAction, note string) func(context.Context, TxRepository, VendorRequest, workflow.Action, workflow.Status) error {
	return func(ctx context.Context, tx TxRepository, req VendorRequest, _ workflow.Action, next workflow.Status) error {
		if err := tx.ApplyTransition(ctx, req.ID, Transition{From: req.Status, To: next}); err != nil {
			return err
		}
		return tx.InsertApproval(ctx, s.approvalLog(req, actor, decision, "", note))
	}
}

func (s *Service) committed(ctx context.Context, actor *shared.Principal, req VendorRequest, action workflow.Action, from workflow.Status, note string) {
	s.logger.Info("vendor request action", slog.Int64("id", req.ID), slog.String("action", string(action)),
		slog.String("from", string(from)), slog.String("to", string(req.Status)), slog.Int64("actor_id", actor.UserID))
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(action), string(from), string(req.Status))
	}
	s.recordAudit(ctx, actor.UserID, "VENDOR_REQUEST_"+strings.ToUpper(string(action)), req.ID, map[string]any{
		"number": req.RequestNumber,
		"from":   string(from),
		"to":     string(req.Status),
	})
	if s.events == nil {
		return
	}
	evt := StatusChanged{
		RequestID:     req.ID,
		RequestNumber: req.RequestNumber,
		CompanyName:   req.CompanyName,
		Action:        action,
		From:          from,
		To:            req.Status,
		ActorID:       actor.UserID,
		RequestedBy:   req.RequestedByUserID,
		Note:          note,
		At:            s.now().UTC(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish vendor request event", slog.Any("error", err), slog.Int64("id", req.ID))
	}
}

func (s *Service) approvalLog(req VendorRequest, actor *shared.Principal, action shared.ApprovalAction, stage, note string) shared.ApprovalLog {
	return shared.ApprovalLog{
		Module:  ApprovalModule,
		RefID:   req.ApprovalRef(),
		Stage:   stage,
		ActorID: actor.UserID,
		Action:  action,
		Note:    note,
		At:      s.now().UTC(),
	}
}

func (s *Service) checkAction(actor *shared.Principal, in ActionInput) error {
	if actor == nil {
		return httpx.ErrUnauthorized
	}
	if err := s.validate.Struct(in); err != nil {
		return validationError(err)
	}
	if in.ReviewerID != nil && *in.ReviewerID != actor.UserID {
		return ErrReviewerMismatch
	}
	return nil
}

func (s *Service) checkDraft(ctx context.Context, in DraftInput) error {
	if err := s.validate.Struct(in); err != nil {
		return validationError(err)
	}
	if err := validateContractValue(in.ExpectedContractValue); err != nil {
		return err
	}
	if s.references == nil {
		return nil
	}
	if _, err := s.references.Department(ctx, in.RequestingDepartmentID); err != nil {
		return err
	}
	if in.CategoryID != nil {
		if _, err := s.references.Category(ctx, *in.CategoryID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) claim(ctx context.Context, key, scope string) (bool, error) {
	if key == "" || s.idempotency == nil {
		return false, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, scope); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) release(ctx context.Context, inserted bool, key, scope string) {
	if !inserted {
		return
	}
	if err := s.idempotency.Delete(ctx, key, scope); err != nil {
		s.logger.Warn("release idempotency key", slog.Any("error", err), slog.String("scope", scope))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "vendor_request", EntityID: strconv.FormatInt(entityID, 10), Meta: meta}); err != nil {
		s.logger.Warn("record audit", slog.Any("error", err), slog.String("action", action))
	}
}

func normaliseDraft(in DraftInput) DraftInput {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.LegalName = strings.TrimSpace(in.LegalName)
	in.PrimaryContactEmail = strings.TrimSpace(in.PrimaryContactEmail)
	in.Currency = normaliseCurrency(in.Currency)
	if in.SupportingDocuments == nil {
		in.SupportingDocuments = []SupportingDocument{}
	}
	return in
}

func fromDraft(in DraftInput) VendorRequest {
	return VendorRequest{
		RequestingDepartmentID:     in.RequestingDepartmentID,
		RequestedByUserID:          in.RequestedByUserID,
		CompanyName:                in.CompanyName,
		LegalName:                  in.LegalName,
		BusinessJustification:      in.BusinessJustification,
		ExpectedContractValue:      in.ExpectedContractValue,
		PrimaryContactName:         in.PrimaryContactName,
		PrimaryContactTitle:        in.PrimaryContactTitle,
		PrimaryContactEmail:        in.PrimaryContactEmail,
		PrimaryContactPhone:        in.PrimaryContactPhone,
		BusinessRegistrationNumber: in.BusinessRegistrationNumber,
		TaxIdentificationNumber:    in.TaxIdentificationNumber,
		BusinessType:               in.BusinessType,
		Website:                    in.Website,
		AddressStreet:              in.AddressStreet,
		AddressCity:                in.AddressCity,
		AddressState:               in.AddressState,
		AddressPostalCode:          in.AddressPostalCode,
		AddressCountry:             in.AddressCountry,
		CategoryID:                 in.CategoryID,
		BankingDetails:             workflow.BankingDetails{Currency: in.Currency},
		SupportingDocuments:        in.SupportingDocuments,
	}
}

func vendorFromRequest(req VendorRequest, now time.Time) vendors.Vendor {
	source := req.ID
	return vendors.Vendor{
		VendorCode:      vendors.GenerateCode(req.CompanyName, now),
		CompanyName:     req.CompanyName,
		LegalName:       req.LegalName,
		Email:           req.PrimaryContactEmail,
		Phone:           req.PrimaryContactPhone,
		TaxID:           req.TaxIdentificationNumber,
		Website:         req.Website,
		Description:     req.BusinessJustification,
		CategoryID:      req.CategoryID,
		Address:         vendors.NewAddress(req.AddressStreet, req.AddressCity, req.AddressState, req.AddressPostalCode, req.AddressCountry),
		Status:          vendors.StatusActive,
		SourceRequestID: &source,
	}
}
