package masterdata

import "context"

// Store is the persistence used by Service.
type Store interface {
	ListDepartments(ctx context.Context, activeOnly bool) ([]Department, error)
	GetDepartment(ctx context.Context, id int64) (Department, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
}

// Service exposes departments and vendor categories. It also resolves the
// references carried by vendor requests.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Departments lists departments, optionally only the active ones.
func (s *Service) Departments(ctx context.Context, activeOnly bool) ([]Department, error) {
	items, err := s.store.ListDepartments(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Department{}
	}
	return items, nil
}

// Department returns a department or ErrDepartmentNotFound.
func (s *Service) Department(ctx context.Context, id int64) (Department, error) {
	if id <= 0 {
		return Department{}, ErrDepartmentNotFound
	}
	return s.store.GetDepartment(ctx, id)
}

// Categories lists vendor categories, optionally only the active ones.
func (s *Service) Categories(ctx context.Context, activeOnly bool) ([]Category, error) {
	items, err := s.store.ListCategories(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Category{}
	}
	return items, nil
}

// Category returns a vendor category or ErrCategoryNotFound.
func (s *Service) Category(ctx context.Context, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, ErrCategoryNotFound
	}
	return s.store.GetCategory(ctx, id)
}
