package loan

import (
	"context"
	"sync"
)

// InMemory implements Store with in-process concurrency safety. Used in dev
// mode and tests; production runs on the Postgres store.
type InMemory struct {
	mu      sync.RWMutex
	apps    map[string]*Application
	history map[string][]HistoryRecord
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		apps:    make(map[string]*Application),
		history: make(map[string][]HistoryRecord),
	}
}

func (s *InMemory) CreateApplication(ctx context.Context, app *Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[app.ID]; exists {
		return ErrConflict
	}
	cp := *app
	s.apps[app.ID] = &cp
	return nil
}

func (s *InMemory) GetApplication(ctx context.Context, id string) (Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	return *app, nil
}

func (s *InMemory) ListByStatus(ctx context.Context, statuses ...Status) ([]Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Application
	for _, app := range s.apps {
		for _, st := range statuses {
			if app.Status == st {
				out = append(out, *app)
				break
			}
		}
	}
	return out, nil
}

// ApplyTransition performs the compare-and-set under the store lock: two
// concurrent attempts from the same source state see exactly one success,
// the loser gets ErrIllegalState and no history is appended for it.
func (s *InMemory) ApplyTransition(ctx context.Context, loanID string, from, to Status, rec HistoryRecord) (Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[loanID]
	if !ok {
		return Application{}, ErrNotFound
	}
	if app.Status != from {
		return Application{}, ErrIllegalState
	}
	app.Status = to
	app.UpdatedAt = rec.CreatedAt
	s.history[loanID] = append(s.history[loanID], rec)
	return *app, nil
}

func (s *InMemory) History(ctx context.Context, loanID string) ([]HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.history[loanID]
	out := make([]HistoryRecord, len(recs))
	copy(out, recs)
	return out, nil
}
