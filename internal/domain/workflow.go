package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries — лимит автоматических retry, если не задан при создании.
const DefaultMaxRetries = 3

// Workflow — одна попытка публикации контента и её жизненный цикл.
//
// Workflow создаётся в статусе PENDING и изменяется только процессором
// (orchestrator) и операцией отмены. Записи не удаляются: финальные
// состояния остаются доступными для запросов до рестарта процесса.
type Workflow struct {
	// ID — уникальный идентификатор workflow.
	ID uuid.UUID `json:"id"`

	// UserID — владелец workflow.
	UserID string `json:"user_id"`

	// ConnectionID — подключение к CMS (только ключ для поиска credentials).
	ConnectionID string `json:"connection_id"`

	// --- Контент ---

	Title       string      `json:"title"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"content_type"`

	// Tags и Categories — упорядоченные, могут быть пустыми.
	Tags       []string `json:"tags"`
	Categories []string `json:"categories"`

	// --- Публикация ---

	// PublishImmediately — публиковать сразу (status=publish) или сохранить как draft.
	PublishImmediately bool `json:"publish_immediately"`

	// ScheduledPublishTime — если в будущем, запуск откладывается до этого времени.
	ScheduledPublishTime *time.Time `json:"scheduled_publish_time,omitempty"`

	SEOTitle         string `json:"seo_title,omitempty"`
	SEODescription   string `json:"seo_description,omitempty"`
	FeaturedImageURL string `json:"featured_image_url,omitempty"`

	// --- Жизненный цикл ---

	Status WorkflowStatus `json:"status"`

	// ExternalID — ID поста в CMS. Устанавливается один раз, при переходе в COMPLETED.
	ExternalID *string `json:"external_id,omitempty"`

	// Link — постоянная ссылка на опубликованный пост.
	Link string `json:"link,omitempty"`

	// ErrorMessage — текст последней ошибки.
	// Не nil только в FAILED и в окне автоматического retry.
	ErrorMessage *string `json:"error_message,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// ManualRetries — количество принятых ручных retry.
	ManualRetries int `json:"manual_retries"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsFinished возвращает true, если workflow в финальном статусе.
func (w *Workflow) IsFinished() bool {
	return w.Status.IsTerminal()
}

// IsScheduledAfter возвращает true, если публикация запланирована позже now.
func (w *Workflow) IsScheduledAfter(now time.Time) bool {
	return w.ScheduledPublishTime != nil && w.ScheduledPublishTime.After(now)
}

// CanRetry проверяет, разрешён ли ещё один автоматический retry.
func (w *Workflow) CanRetry() bool {
	return w.RetryCount < w.MaxRetries
}

// touch продвигает UpdatedAt, не позволяя ему уйти назад.
func (w *Workflow) touch(now time.Time) {
	if now.After(w.UpdatedAt) {
		w.UpdatedAt = now
	}
}

// MarkProcessing переводит workflow в PROCESSING.
func (w *Workflow) MarkProcessing(now time.Time) {
	w.Status = StatusProcessing
	w.touch(now)
}

// MarkCompleted переводит workflow в COMPLETED с ID поста во внешней системе.
func (w *Workflow) MarkCompleted(externalID, link string, now time.Time) {
	w.Status = StatusCompleted
	w.ExternalID = &externalID
	w.Link = link
	w.ErrorMessage = nil
	w.CompletedAt = &now
	w.touch(now)
}

// MarkFailed переводит workflow в FAILED и увеличивает счётчик retry.
func (w *Workflow) MarkFailed(errMsg string, now time.Time) {
	w.Status = StatusFailed
	w.ErrorMessage = &errMsg
	w.RetryCount++
	w.touch(now)
}

// ResetForRetry возвращает упавший workflow в PENDING для автоматического retry.
// ErrorMessage сохраняется до следующей попытки.
func (w *Workflow) ResetForRetry(now time.Time) {
	w.Status = StatusPending
	w.touch(now)
}

// ResetForManualRetry подготавливает FAILED workflow к ручному перезапуску.
func (w *Workflow) ResetForManualRetry(now time.Time) {
	w.Status = StatusPending
	w.RetryCount = 0
	w.ErrorMessage = nil
	w.ManualRetries++
	w.touch(now)
}

// MarkCancelled переводит workflow в CANCELLED.
func (w *Workflow) MarkCancelled(now time.Time) {
	w.Status = StatusCancelled
	w.ErrorMessage = nil
	w.touch(now)
}

// Clone возвращает глубокую копию workflow.
// Хранилище отдаёт наружу только копии, чтобы читатели не видели частичных изменений.
func (w *Workflow) Clone() *Workflow {
	c := *w
	c.Tags = slices.Clone(w.Tags)
	c.Categories = slices.Clone(w.Categories)
	c.ScheduledPublishTime = clonePtr(w.ScheduledPublishTime)
	c.ExternalID = clonePtr(w.ExternalID)
	c.ErrorMessage = clonePtr(w.ErrorMessage)
	c.CompletedAt = clonePtr(w.CompletedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
