package masterdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
)

type memoryStore struct {
	departments []Department
	categories  []Category
}

func (m *memoryStore) ListDepartments(_ context.Context, activeOnly bool) ([]Department, error) {
	var out []Department
	for _, d := range m.departments {
		if !activeOnly || d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryStore) GetDepartment(_ context.Context, id int64) (Department, error) {
	for _, d := range m.departments {
		if d.ID == id {
			return d, nil
		}
	}
	return Department{}, ErrDepartmentNotFound
}

func (m *memoryStore) ListCategories(_ context.Context, activeOnly bool) ([]Category, error) {
	var out []Category
	for _, c := range m.categories {
		if !activeOnly || c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryStore) GetCategory(_ context.Context, id int64) (Category, error) {
	for _, c := range m.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return Category{}, ErrCategoryNotFound
}

func newStore() *memoryStore {
	return &memoryStore{
		departments: []Department{
			{ID: 1, Code: "OPS", Name: "Operations", IsActive: true},
			{ID: 2, Code: "LEG", Name: "Legacy Programs", IsActive: false},
		},
		categories: []Category{
			{ID: 7, Code: "IT", Name: "IT Services", IsActive: true},
		},
	}
}

func TestServiceResolvesReferences(t *testing.T) {
	svc := NewService(newStore())
	ctx := context.Background()

	d, err := svc.Department(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "OPS", d.Code)

	_, err = svc.Department(ctx, 424242)
	require.ErrorIs(t, err, ErrDepartmentNotFound)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.Department(ctx, 0)
	require.ErrorIs(t, err, ErrDepartmentNotFound)

	c, err := svc.Category(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "IT Services", c.Name)

	_, err = svc.Category(ctx, 8)
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestServiceListsActiveOnly(t *testing.T) {
	svc := NewService(newStore())

	all, err := svc.Departments(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	active, err := svc.Departments(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, int64(1), active[0].ID)

	empty, err := NewService(&memoryStore{}).Categories(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, empty)
}

func TestHandlerRoutes(t *testing.T) {
	h := NewHandler(nil, NewService(newStore()))
	r := chi.NewRouter()
	r.Route("/departments", h.MountDepartments)
	r.Route("/vendor-categories", h.MountCategories)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/departments?active=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var depts []Department
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &depts))
	require.Len(t, depts, 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vendor-categories/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/departments/99", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}
