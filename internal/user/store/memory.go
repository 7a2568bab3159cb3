package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"rescue/internal/user/models"
	"rescue/pkg/domain"
	"rescue/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	users   map[domain.UserID]*models.User
	byEmail map[string]domain.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:   make(map[domain.UserID]*models.User),
		byEmail: make(map[string]domain.UserID),
	}
}

func emailKey(s string) string {
	return strings.ToLower(s)
}

func (s *InMemory) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.byEmail[emailKey(u.Email)]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.users[u.ID] = u.Clone()
	s.byEmail[emailKey(u.Email)] = u.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.users[id].Clone(), nil
}

// List orders by last name, then first name.
func (s *InMemory) List(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (s *InMemory) Execute(_ context.Context, id domain.UserID, mutate func(*models.User) error) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	oldKey, newKey := emailKey(current.Email), emailKey(next.Email)
	if oldKey != newKey {
		if _, taken := s.byEmail[newKey]; taken {
			return nil, sentinel.ErrAlreadyUsed
		}
		delete(s.byEmail, oldKey)
		s.byEmail[newKey] = id
	}
	s.users[id] = next
	return next.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, id domain.UserID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.users, id)
	delete(s.byEmail, emailKey(u.Email))
	return u, nil
}
