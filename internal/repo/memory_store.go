package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Autopost/internal/domain"
)

// MemoryStore — WorkflowStore в памяти процесса.
//
// Записи живут до рестарта. Записи не изменяются на месте:
// Update подменяет указатель на новую копию под write-lock.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[uuid.UUID]*record
	seq       uint64
}

type record struct {
	wf  *domain.Workflow
	seq uint64
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[uuid.UUID]*record),
	}
}

var _ WorkflowStore = (*MemoryStore)(nil)

// Create сохраняет новый workflow.
func (s *MemoryStore) Create(_ context.Context, w *domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[w.ID]; exists {
		return fmt.Errorf("%w: workflow %s", ErrAlreadyExists, w.ID)
	}

	s.seq++
	s.workflows[w.ID] = &record{wf: w.Clone(), seq: s.seq}
	return nil
}

// Get возвращает копию workflow.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.wf.Clone(), nil
}

// List возвращает workflows, отсортированные по CreatedAt (новые первыми).
// При равном CreatedAt раньше идёт созданный позже.
// Limit <= 0 — без ограничения.
func (s *MemoryStore) List(_ context.Context, filter WorkflowFilter) ([]domain.Workflow, error) {
	matched := s.snapshot(filter)

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.wf.CreatedAt.Equal(b.wf.CreatedAt) {
			return a.wf.CreatedAt.After(b.wf.CreatedAt)
		}
		return a.seq > b.seq
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []domain.Workflow{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	result := make([]domain.Workflow, 0, len(matched))
	for _, rec := range matched {
		result = append(result, *rec.wf)
	}
	return result, nil
}

// Count возвращает количество записей под фильтром без учёта Limit и Offset.
func (s *MemoryStore) Count(_ context.Context, filter WorkflowFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.workflows {
		if filter.matches(rec.wf) {
			n++
		}
	}
	return n, nil
}

// snapshot копирует подходящие записи под read-lock.
// Update подменяет rec.wf, поэтому после RUnlock читать rec нельзя.
func (s *MemoryStore) snapshot(filter WorkflowFilter) []record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]record, 0, len(s.workflows))
	for _, rec := range s.workflows {
		if !filter.matches(rec.wf) {
			continue
		}
		matched = append(matched, record{wf: rec.wf.Clone(), seq: rec.seq})
	}
	return matched
}

// Update применяет mutate атомарно.
func (s *MemoryStore) Update(_ context.Context, id uuid.UUID, mutate func(w *domain.Workflow) error) (*domain.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}

	next := rec.wf.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	rec.wf = next
	return next.Clone(), nil
}

// Cancel переводит workflow в CANCELLED, если это допустимо.
func (s *MemoryStore) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Workflow, bool, error) {
	cancelled := false
	w, err := s.Update(ctx, id, func(w *domain.Workflow) error {
		if !w.Status.IsCancellable() {
			return ErrInvalidState
		}
		w.MarkCancelled(at)
		cancelled = true
		return nil
	})
	if errors.Is(err, ErrInvalidState) {
		current, getErr := s.Get(ctx, id)
		return current, false, getErr
	}
	if err != nil {
		return nil, false, err
	}
	return w, cancelled, nil
}

// CountByStatus возвращает количество workflows по статусам.
func (s *MemoryStore) CountByStatus(_ context.Context) (map[domain.WorkflowStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.WorkflowStatus]int, len(domain.AllStatuses()))
	for _, st := range domain.AllStatuses() {
		counts[st] = 0
	}
	for _, rec := range s.workflows {
		counts[rec.wf.Status]++
	}
	return counts, nil
}

// Len возвращает количество записей.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workflows)
}
