package users_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/da-luiz/Clear-Chain/internal/users"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]users.User
}

func newMemoryRepo(seed ...users.User) *memoryRepo {
	repo := &memoryRepo{users: map[int64]users.User{}}
	for _, u := range seed {
		repo.nextID++
		if u.ID == 0 {
			u.ID = repo.nextID
		}
		repo.users[u.ID] = u
	}
	return repo
}

func (m *memoryRepo) FindByUsername(_ context.Context, username string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			cp := u
			return &cp, nil
		}
	}
	return nil, users.ErrNotFound
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &u, nil
}

func (m *memoryRepo) List(_ context.Context, filter users.ListFilter) ([]users.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []users.User
	for _, u := range m.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	total := len(all)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return all[filter.Offset:end], total, nil
}

func (m *memoryRepo) Create(_ context.Context, u users.User) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return nil, users.ErrDuplicateUsername
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return &u, nil
}

func (m *memoryRepo) UpdateRole(_ context.Context, id int64, role workflow.Role) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	u.Role = role
	m.users[id] = u
	return &u, nil
}

func (m *memoryRepo) SetActive(_ context.Context, id int64, active bool) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return &u, nil
}

func (m *memoryRepo) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

type revokerSpy struct {
	revoked []int64
}

func (r *revokerSpy) DeleteUser(_ context.Context, userID int64) error {
	r.revoked = append(r.revoked, userID)
	return nil
}
