package store

import (
	"context"
	"sync"

	"rescue/internal/intervention/models"
	"rescue/pkg/domain"
	"rescue/pkg/platform/sentinel"
)

// InMemory keeps interventions in insertion order.
type InMemory struct {
	mu    sync.RWMutex
	order []domain.InterventionID
	byID  map[domain.InterventionID]*models.Intervention
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[domain.InterventionID]*models.Intervention)}
}

func (s *InMemory) Create(_ context.Context, i *models.Intervention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[i.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.byID[i.ID] = i.Clone()
	s.order = append(s.order, i.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.InterventionID) (*models.Intervention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return i.Clone(), nil
}

// Scan works on a snapshot so fn may call back into the store.
func (s *InMemory) Scan(ctx context.Context, f models.Filter, fn func(*models.Intervention) bool) error {
	s.mu.RLock()
	matched := make([]*models.Intervention, 0, len(s.order))
	for _, id := range s.order {
		if i := s.byID[id]; f.Match(i) {
			matched = append(matched, i.Clone())
		}
	}
	s.mu.RUnlock()

	for _, i := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(i) {
			return nil
		}
	}
	return nil
}

func (s *InMemory) Delete(_ context.Context, id domain.InterventionID) (*models.Intervention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.byID, id)
	for n, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:n], s.order[n+1:]...)
			break
		}
	}
	return i, nil
}

func (s *InMemory) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.order)
	s.order = nil
	s.byID = make(map[domain.InterventionID]*models.Intervention)
	return n, nil
}
