package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Autopost/internal/domain"
)

// WorkflowStore — хранилище workflow.
//
// Реализация должна быть потокобезопасной. Update применяет мутацию
// атомарно: читатель видит запись либо до, либо после изменения целиком.
// Все методы возвращают копии, которые вызывающий может свободно изменять.
type WorkflowStore interface {
	// Create сохраняет новый workflow.
	Create(ctx context.Context, w *domain.Workflow) error

	// Get возвращает workflow по ID или ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)

	// List возвращает workflows по фильтру, новые первыми.
	// Limit <= 0 — без ограничения.
	List(ctx context.Context, filter WorkflowFilter) ([]domain.Workflow, error)

	// Count возвращает количество workflows под фильтром, Limit и Offset не учитываются.
	Count(ctx context.Context, filter WorkflowFilter) (int, error)

	// Update применяет mutate к копии записи и сохраняет её, если mutate не вернул ошибку.
	Update(ctx context.Context, id uuid.UUID, mutate func(w *domain.Workflow) error) (*domain.Workflow, error)

	// Cancel атомарно переводит workflow в CANCELLED, если он в PENDING или PROCESSING.
	// Возвращает false без изменений, если статус финальный.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Workflow, bool, error)

	// CountByStatus возвращает количество workflows по статусам.
	CountByStatus(ctx context.Context) (map[domain.WorkflowStatus]int, error)
}

// WorkflowFilter — параметры фильтрации workflows.
type WorkflowFilter struct {
	// UserID — пустая строка означает всех пользователей.
	UserID string

	// Status — пустой статус означает без фильтра.
	Status domain.WorkflowStatus

	Limit  int
	Offset int
}

func (f WorkflowFilter) matches(w *domain.Workflow) bool {
	if f.UserID != "" && w.UserID != f.UserID {
		return false
	}
	if f.Status != "" && w.Status != f.Status {
		return false
	}
	return true
}
