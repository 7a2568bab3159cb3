package store

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/vptree"

	"rescue/internal/respondant/models"
	"rescue/pkg/domain"
	"rescue/pkg/geo"
	"rescue/pkg/platform/sentinel"
)

// site adapts a respondant location to the vptree metric space.
type site struct {
	point geo.Point
	id    domain.RespondantID
	seq   uint64
}

func (s site) Distance(c vptree.Comparable) float64 {
	return geo.Distance(s.point, c.(site).point)
}

type entry struct {
	respondant *models.Respondant
	seq        uint64
}

// InMemory keeps respondants in a map and answers nearest queries from a
// vantage-point tree rebuilt lazily after writes.
type InMemory struct {
	mu      sync.RWMutex
	records map[domain.RespondantID]entry
	nextSeq uint64

	treeMu sync.Mutex
	tree   *vptree.Tree
	dirty  bool
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[domain.RespondantID]entry)}
}

func (s *InMemory) Create(_ context.Context, r *models.Respondant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.nextSeq++
	s.records[r.ID] = entry{respondant: r.Clone(), seq: s.nextSeq}
	s.markDirty()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.RespondantID) (*models.Respondant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e.respondant.Clone(), nil
}

// FindMany returns the respondants that exist among ids, in the order given.
// Unknown ids are skipped.
func (s *InMemory) FindMany(_ context.Context, ids []domain.RespondantID) ([]*models.Respondant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Respondant, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.records[id]; ok {
			out = append(out, e.respondant.Clone())
		}
	}
	return out, nil
}

// List returns every respondant in registration order.
func (s *InMemory) List(_ context.Context) ([]*models.Respondant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ordered(), nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Execute applies mutate to a copy of the record under the write lock and
// stores the result only when mutate succeeds.
func (s *InMemory) Execute(_ context.Context, id domain.RespondantID, mutate func(*models.Respondant) error) (*models.Respondant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	updated := e.respondant.Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}
	e.respondant = updated
	s.records[id] = e
	s.markDirty()
	return updated.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, id domain.RespondantID) (*models.Respondant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.records, id)
	s.markDirty()
	return e.respondant, nil
}

// NearestCandidates returns respondants within maxDistance meters of p,
// closest first. It returns sentinel.ErrNotFound when the store is empty.
func (s *InMemory) NearestCandidates(_ context.Context, p geo.Point, maxDistance float64) ([]models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, sentinel.ErrNotFound
	}

	tree, err := s.currentTree()
	if err != nil {
		return nil, err
	}

	keeper := vptree.NewDistKeeper(maxDistance)
	tree.NearestSet(keeper, site{point: p})

	hits := make([]site, 0, keeper.Len())
	for _, cd := range keeper.Heap {
		st, ok := cd.Comparable.(site)
		if !ok {
			// The keeper is seeded with a nil sentinel at maxDistance.
			continue
		}
		hits = append(hits, st)
	}
	// Directory order first so that the stable distance sort keeps it for ties.
	sortSites(hits)

	out := make([]models.Candidate, 0, len(hits))
	for _, h := range hits {
		e, ok := s.records[h.id]
		if !ok {
			continue
		}
		out = append(out, models.Candidate{
			Respondant: e.respondant.Clone(),
			Distance:   geo.Distance(e.respondant.Location, p),
		})
	}
	sortCandidates(out)
	return out, nil
}

// Reset drops every record. Used by tests and the admin CLI.
func (s *InMemory) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[domain.RespondantID]entry)
	s.markDirty()
}

// ordered returns clones sorted by registration sequence. Callers hold mu.
func (s *InMemory) ordered() []*models.Respondant {
	entries := make([]entry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, e)
	}
	sortEntries(entries)
	out := make([]*models.Respondant, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.respondant.Clone())
	}
	return out
}

// markDirty invalidates the tree. Callers hold mu for writing.
func (s *InMemory) markDirty() {
	s.treeMu.Lock()
	s.dirty = true
	s.treeMu.Unlock()
}

// currentTree rebuilds the tree if a write happened since the last build.
// Callers hold mu for reading, so records cannot change underneath.
func (s *InMemory) currentTree() (*vptree.Tree, error) {
	s.treeMu.Lock()
	defer s.treeMu.Unlock()
	if s.tree != nil && !s.dirty {
		return s.tree, nil
	}
	points := make([]vptree.Comparable, 0, len(s.records))
	for id, e := range s.records {
		points = append(points, site{point: e.respondant.Location, id: id, seq: e.seq})
	}
	tree, err := vptree.New(points, searchEffort, nil)
	if err != nil {
		return nil, fmt.Errorf("build respondant index: %w", err)
	}
	s.tree = tree
	s.dirty = false
	return tree, nil
}
