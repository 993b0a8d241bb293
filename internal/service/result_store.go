package service

import (
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
)

type storedResult struct {
	result   models.TimetableResult
	storedAt time.Time
}

// resultStore is the in-process home of run results. Entries expire after ttl
// and are dropped lazily on read or by Sweep.
type resultStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]storedResult
	now   func() time.Time
}

func newResultStore(ttl time.Duration) *resultStore {
	return &resultStore{
		ttl:   ttl,
		items: make(map[string]storedResult),
		now:   time.Now,
	}
}

func (s *resultStore) Save(result models.TimetableResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[result.Run.ID] = storedResult{result: result, storedAt: s.now()}
}

func (s *resultStore) Get(id string) (models.TimetableResult, bool) {
	s.mu.RLock()
	entry, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return models.TimetableResult{}, false
	}
	if s.now().Sub(entry.storedAt) > s.ttl {
		s.Delete(id)
		return models.TimetableResult{}, false
	}
	return entry.result, true
}

func (s *resultStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// Sweep removes expired entries and returns how many were dropped.
func (s *resultStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.items {
		if s.now().Sub(entry.storedAt) > s.ttl {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// List returns live run headers, newest first.
func (s *resultStore) List() []models.TimetableRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]models.TimetableRun, 0, len(s.items))
	for _, entry := range s.items {
		if s.now().Sub(entry.storedAt) > s.ttl {
			continue
		}
		runs = append(runs, entry.result.Run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs
}
