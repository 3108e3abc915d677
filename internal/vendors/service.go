package vendors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
)

// ApprovalModule tags vendor lifecycle entries in the approval history.
const ApprovalModule = "VENDOR"

// Store is the persistence used by Service.
type Store interface {
	Get(ctx context.Context, id int64) (Vendor, error)
	List(ctx context.Context, filter ListFilter) ([]Vendor, int, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Vendor, error)
	SetStatus(ctx context.Context, id int64, status Status) (Vendor, error)
}

// ApprovalPort records lifecycle decisions.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Service implements vendor directory operations.
type Service struct {
	store     Store
	approvals ApprovalPort
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewService constructs a Service. approvals may be nil.
func NewService(store Store, approvals ApprovalPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, approvals: approvals, logger: logger, validate: validator.New()}
}

// Get returns a vendor.
func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	return s.store.Get(ctx, id)
}

// List returns a page of vendors.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.Page[Vendor], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return shared.Page[Vendor]{}, err
	}
	if items == nil {
		items = []Vendor{}
	}
	return shared.Page[Vendor]{Items: items, Pagination: shared.NewPagination(filter.Offset/filter.Limit+1, filter.Limit, total)}, nil
}

// Update validates and writes editable attributes. Terminated vendors are read-only.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Vendor, error) {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	if err := s.validate.Struct(in); err != nil {
		return Vendor{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if in.Address != nil {
		in.Address = NewAddress(in.Address.Street, in.Address.City, in.Address.State, in.Address.PostalCode, in.Address.Country)
	}
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Vendor{}, err
	}
	if current.Status == StatusTerminated {
		return Vendor{}, fmt.Errorf("%w: vendor %s is terminated", ErrInvalidStatus, current.VendorCode)
	}
	return s.store.Update(ctx, id, in)
}

// ChangeStatus applies a lifecycle action and records it.
func (s *Service) ChangeStatus(ctx context.Context, actorID, id int64, action StatusAction, note string) (Vendor, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Vendor{}, err
	}
	next, err := NextStatus(current.Status, action)
	if err != nil {
		return Vendor{}, err
	}
	updated, err := s.store.SetStatus(ctx, id, next)
	if err != nil {
		return Vendor{}, err
	}
	if s.approvals != nil {
		err := s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  ApprovalModule,
			RefID:   shared.ApprovalRefID(ApprovalModule, id),
			ActorID: actorID,
			Action:  shared.ApprovalAction(strings.ToUpper(string(action))),
			Note:    note,
			At:      time.Now().UTC(),
		})
		if err != nil {
			s.logger.Warn("record vendor status change", slog.Any("error", err), slog.Int64("vendor_id", id))
		}
	}
	return updated, nil
}
