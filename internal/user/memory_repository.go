package user

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.Mutex
	users map[int64]User
}

// NewMemoryRepository builds an in-memory user store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[int64]User)}
}

func (r *memoryRepository) Upsert(_ context.Context, profile Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if u, ok := r.users[profile.ID]; ok {
		u.Username = profile.Username
		u.FirstName = profile.FirstName
		u.LastName = profile.LastName
		u.UpdatedAt = now
		r.users[profile.ID] = u
		return nil
	}
	r.users[profile.ID] = User{
		ID:        profile.ID,
		Username:  profile.Username,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id int64) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryRepository) SetStatus(_ context.Context, id int64, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func (r *memoryRepository) SetGrant(_ context.Context, id int64, deviceLimit int, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = StatusApproved
	u.DeviceLimit = deviceLimit
	u.ExpiresAt = expiresAt
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func (r *memoryRepository) SetDeviceLimit(_ context.Context, id int64, deviceLimit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.DeviceLimit = deviceLimit
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func (r *memoryRepository) MarkActivated(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false, ErrNotFound
	}
	if u.DevicesUsed != 0 {
		return false, nil
	}
	u.DevicesUsed = 1
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return true, nil
}

func (r *memoryRepository) MenuMessage(_ context.Context, id int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, nil
	}
	return u.MenuMessageID, nil
}

func (r *memoryRepository) SetMenuMessage(_ context.Context, id, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.MenuMessageID = messageID
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func (r *memoryRepository) ClearMenuMessage(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.MenuMessageID = 0
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func (r *memoryRepository) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *memoryRepository) CountByStatus(_ context.Context, status Status) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.users {
		if u.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) CountExpiringWithin(_ context.Context, now time.Time, window time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	limit := now.Add(window)
	for _, u := range r.users {
		if u.Status == StatusApproved && u.ExpiresAt != nil && u.ExpiresAt.After(now) && u.ExpiresAt.Before(limit) {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) ListApproved(_ context.Context, limit, offset int) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []User
	for _, u := range r.users {
		if u.Status == StatusApproved {
			users = append(users, u)
		}
	}
	sortByUpdated(users)
	return pageOf(users, limit, offset), nil
}

func (r *memoryRepository) ListRecent(_ context.Context, limit int) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sortByUpdated(users)
	return pageOf(users, limit, 0), nil
}

func sortByUpdated(users []User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].UpdatedAt.Equal(users[j].UpdatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].UpdatedAt.After(users[j].UpdatedAt)
	})
}

func pageOf(users []User, limit, offset int) []User {
	if offset >= len(users) {
		return nil
	}
	users = users[offset:]
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users
}
