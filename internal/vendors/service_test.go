package vendors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
)

type memoryStore struct {
	vendors map[int64]Vendor
}

func (m *memoryStore) Get(_ context.Context, id int64) (Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return Vendor{}, ErrNotFound
	}
	return v, nil
}

func (m *memoryStore) List(_ context.Context, filter ListFilter) ([]Vendor, int, error) {
	var out []Vendor
	for _, v := range m.vendors {
		if filter.Status == "" || v.Status == filter.Status {
			out = append(out, v)
		}
	}
	return out, len(out), nil
}

func (m *memoryStore) Update(_ context.Context, id int64, in UpdateInput) (Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return Vendor{}, ErrNotFound
	}
	v.CompanyName = in.CompanyName
	v.Email = in.Email
	v.Address = in.Address
	m.vendors[id] = v
	return v, nil
}

func (m *memoryStore) SetStatus(_ context.Context, id int64, status Status) (Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return Vendor{}, ErrNotFound
	}
	v.Status = status
	m.vendors[id] = v
	return v, nil
}

type approvalSpy struct {
	logs []shared.ApprovalLog
}

func (a *approvalSpy) Record(_ context.Context, log shared.ApprovalLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService() (*Service, *memoryStore, *approvalSpy) {
	store := &memoryStore{vendors: map[int64]Vendor{
		1: {ID: 1, VendorCode: "ACMESU-260101000000", CompanyName: "Acme", Status: StatusActive},
		2: {ID: 2, VendorCode: "GONEVV-260101000000", CompanyName: "Gone", Status: StatusTerminated},
	}}
	spy := &approvalSpy{}
	return NewService(store, spy, nil), store, spy
}

func TestUpdateValidatesAndNormalisesAddress(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Update(context.Background(), 1, UpdateInput{CompanyName: "  "})
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = svc.Update(context.Background(), 1, UpdateInput{CompanyName: "Acme", Email: "nope"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	v, err := svc.Update(context.Background(), 1, UpdateInput{CompanyName: "Acme Corp", Address: &Address{Street: "Main 1", City: "Oslo"}})
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", v.CompanyName)
	require.Nil(t, v.Address)
}

func TestUpdateTerminatedVendorRejected(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Update(context.Background(), 2, UpdateInput{CompanyName: "Back"})
	require.ErrorIs(t, err, ErrInvalidStatus)
	_, err = svc.Update(context.Background(), 99, UpdateInput{CompanyName: "Missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChangeStatusRecordsHistory(t *testing.T) {
	svc, store, spy := newTestService()

	v, err := svc.ChangeStatus(context.Background(), 5, 1, ActionSuspend, "late deliveries")
	require.NoError(t, err)
	require.Equal(t, StatusSuspended, v.Status)
	require.Equal(t, StatusSuspended, store.vendors[1].Status)
	require.Len(t, spy.logs, 1)
	require.Equal(t, shared.ApprovalAction("SUSPEND"), spy.logs[0].Action)
	require.Equal(t, shared.ApprovalRefID(ApprovalModule, 1), spy.logs[0].RefID)

	_, err = svc.ChangeStatus(context.Background(), 5, 2, ActionActivate, "")
	require.ErrorIs(t, err, ErrInvalidStatus)
	require.Len(t, spy.logs, 1)
}
