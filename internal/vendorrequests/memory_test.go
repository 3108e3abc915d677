package vendorrequests

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/da-luiz/Clear-Chain/internal/masterdata"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/vendors"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// memoryRepo is a RepositoryPort whose transactions roll back on error.
type memoryRepo struct {
	mu        sync.Mutex
	nextID    int64
	requests  map[int64]VendorRequest
	vendors   map[int64]vendors.Vendor
	approvals []shared.ApprovalLog
	numbers   []string // forced request numbers consumed by Create
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{requests: map[int64]VendorRequest{}, vendors: map[int64]vendors.Vendor{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	requests := maps.Clone(m.requests)
	vends := maps.Clone(m.vendors)
	approvals := append([]shared.ApprovalLog(nil), m.approvals...)
	nextID := m.nextID
	if err := fn(ctx, memoryTx{m}); err != nil {
		m.requests, m.vendors, m.approvals, m.nextID = requests, vends, approvals, nextID
		return err
	}
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (VendorRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return VendorRequest{}, ErrNotFound
	}
	return req, nil
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter) ([]VendorRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []VendorRequest
	for _, req := range m.requests {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, req.Status) {
			continue
		}
		if filter.RequestedBy > 0 && req.RequestedByUserID != filter.RequestedBy {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(req.CompanyName), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *memoryRepo) Approvals(_ context.Context, id int64) ([]shared.ApprovalLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := shared.ApprovalRefID(ApprovalModule, id)
	var out []shared.ApprovalLog
	for _, log := range m.approvals {
		if log.RefID == ref {
			out = append(out, log)
		}
	}
	return out, nil
}

func containsStatus(list []workflow.Status, s workflow.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// memoryTx runs with memoryRepo.mu held.
type memoryTx struct{ m *memoryRepo }

func (t memoryTx) Create(_ context.Context, req VendorRequest) (VendorRequest, error) {
	if len(t.m.numbers) > 0 {
		req.RequestNumber, t.m.numbers = t.m.numbers[0], t.m.numbers[1:]
	}
	for _, existing := range t.m.requests {
		if existing.RequestNumber == req.RequestNumber {
			return VendorRequest{}, ErrDuplicateNumber
		}
	}
	t.m.nextID++
	req.ID = t.m.nextID
	t.m.requests[req.ID] = req
	return req, nil
}

func (t memoryTx) GetForUpdate(_ context.Context, id int64) (VendorRequest, error) {
	req, ok := t.m.requests[id]
	if !ok {
		return VendorRequest{}, ErrNotFound
	}
	return req, nil
}

func (t memoryTx) UpdateDraft(_ context.Context, id int64, in DraftInput) error {
	req, ok := t.m.requests[id]
	if !ok {
		return ErrNotFound
	}
	updated := fromDraft(in)
	updated.ID, updated.RequestNumber, updated.Status = req.ID, req.RequestNumber, req.Status
	updated.RequestedByUserID = req.RequestedByUserID
	updated.BankingDetails = req.BankingDetails
	updated.Currency = in.Currency
	t.m.requests[id] = updated
	return nil
}

func (t memoryTx) UpdateBanking(_ context.Context, id int64, d workflow.BankingDetails) error {
	req, ok := t.m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.BankingDetails = d
	t.m.requests[id] = req
	return nil
}

func (t memoryTx) ApplyTransition(_ context.Context, id int64, tr Transition) error {
	req, ok := t.m.requests[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != tr.From {
		return workflow.ErrInvalidTransition
	}
	req.Status = tr.To
	if tr.ReviewedBy != nil {
		req.ReviewedBy = tr.ReviewedBy
	}
	if tr.ReviewedAt != nil {
		req.ReviewedAt = tr.ReviewedAt
	}
	if tr.RejectionReason != nil {
		req.RejectionReason = *tr.RejectionReason
	}
	if tr.AdditionalInfoRequired != nil {
		req.AdditionalInfoRequired = *tr.AdditionalInfoRequired
	}
	t.m.requests[id] = req
	return nil
}

func (t memoryTx) CreateVendor(_ context.Context, v vendors.Vendor) (vendors.Vendor, error) {
	for _, existing := range t.m.vendors {
		if existing.VendorCode == v.VendorCode {
			return vendors.Vendor{}, vendors.ErrDuplicateCode
		}
	}
	v.ID = int64(len(t.m.vendors) + 100)
	t.m.vendors[v.ID] = v
	return v, nil
}

func (t memoryTx) LinkVendor(_ context.Context, id, vendorID int64) error {
	req, ok := t.m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.VendorID = &vendorID
	t.m.requests[id] = req
	return nil
}

func (t memoryTx) InsertApproval(_ context.Context, log shared.ApprovalLog) error {
	t.m.approvals = append(t.m.approvals, log)
	return nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[module+"|"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+"|"+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+"|"+key)
	return nil
}

type auditSpy struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type eventSpy struct {
	mu     sync.Mutex
	events []StatusChanged
}

func (e *eventSpy) Publish(_ context.Context, evt StatusChanged) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
	return nil
}

type observerSpy struct {
	transitions []string
}

func (o *observerSpy) ObserveTransition(action, from, to string) {
	o.transitions = append(o.transitions, action+":"+from+"->"+to)
}

// memoryReferences knows department 7 and category 3.
type memoryReferences struct {
	departments map[int64]masterdata.Department
	categories  map[int64]masterdata.Category
}

func newMemoryReferences() *memoryReferences {
	return &memoryReferences{
		departments: map[int64]masterdata.Department{7: {ID: 7, Code: "OPS", Name: "Operations", IsActive: true}},
		categories:  map[int64]masterdata.Category{3: {ID: 3, Code: "FURN", Name: "Furniture", IsActive: true}},
	}
}

func (m *memoryReferences) Department(_ context.Context, id int64) (masterdata.Department, error) {
	d, ok := m.departments[id]
	if !ok {
		return masterdata.Department{}, masterdata.ErrDepartmentNotFound
	}
	return d, nil
}

func (m *memoryReferences) Category(_ context.Context, id int64) (masterdata.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return masterdata.Category{}, masterdata.ErrCategoryNotFound
	}
	return c, nil
}
