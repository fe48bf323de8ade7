package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-store/pkg/simplestore"
)

// Repository implements simplestore.UserRepository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	nextID  int64
	users   map[int64]*simplestore.User
	byEmail map[string]int64 // email -> user id
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		users:   make(map[int64]*simplestore.User),
		byEmail: make(map[string]int64),
	}
}

func (r *Repository) CreateUser(ctx context.Context, email, name string) (*simplestore.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return nil, duplicateEmail()
	}

	r.nextID++
	now := time.Now().UTC()
	user := &simplestore.User{
		ID:        r.nextID,
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.users[user.ID] = user
	r.byEmail[email] = user.ID

	// Return a copy to prevent external modifications
	userCopy := *user
	return &userCopy, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*simplestore.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, simplestore.ErrUserNotFound
	}

	userCopy := *user
	return &userCopy, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]*simplestore.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*simplestore.User, 0, len(r.users))
	for _, user := range r.users {
		userCopy := *user
		users = append(users, &userCopy)
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID > users[j].ID
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})

	return users, nil
}

func (r *Repository) UpdateUser(ctx context.Context, id int64, patch simplestore.UserPatch) (*simplestore.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return nil, simplestore.ErrUserNotFound
	}

	if email, ok := patch[simplestore.UserFieldEmail]; ok && email != user.Email {
		if _, taken := r.byEmail[email]; taken {
			return nil, duplicateEmail()
		}
		delete(r.byEmail, user.Email)
		r.byEmail[email] = id
		user.Email = email
	}
	if name, ok := patch[simplestore.UserFieldName]; ok {
		user.Name = name
	}

	// updated_at must move forward even when the clock has not
	now := time.Now().UTC()
	if !now.After(user.UpdatedAt) {
		now = user.UpdatedAt.Add(time.Microsecond)
	}
	user.UpdatedAt = now

	userCopy := *user
	return &userCopy, nil
}

func (r *Repository) UserExists(ctx context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.users[id]
	return exists, nil
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return simplestore.ErrUserNotFound
	}

	delete(r.byEmail, user.Email)
	delete(r.users, id)
	return nil
}

func duplicateEmail() error {
	return &simplestore.UniqueViolationError{
		Constraint: "users_email_key",
		Field:      string(simplestore.UserFieldEmail),
	}
}
