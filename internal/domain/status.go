package domain

// WorkflowStatus — статус workflow публикации.
//
// Жизненный цикл:
//
//	PENDING → PROCESSING → COMPLETED
//	                     ↘ FAILED → PENDING (автоматический retry, пока retry_count < max_retries)
//	(PENDING | PROCESSING) → CANCELLED
type WorkflowStatus string

const (
	// StatusPending — workflow создан или ожидает (запуска, расписания, retry).
	StatusPending WorkflowStatus = "pending"

	// StatusProcessing — workflow выполняется.
	StatusProcessing WorkflowStatus = "processing"

	// StatusCompleted — контент опубликован в CMS.
	StatusCompleted WorkflowStatus = "completed"

	// StatusFailed — публикация не удалась, автоматические retry исчерпаны.
	StatusFailed WorkflowStatus = "failed"

	// StatusCancelled — workflow отменён пользователем.
	StatusCancelled WorkflowStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный.
// FAILED финальный только до ручного retry.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsCancellable возвращает true, если из статуса можно перейти в CANCELLED.
func (s WorkflowStatus) IsCancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

// IsValid проверяет, что статус входит в перечисление.
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление WorkflowStatus.
func (s WorkflowStatus) String() string {
	return string(s)
}

// AllStatuses возвращает все статусы в порядке жизненного цикла.
func AllStatuses() []WorkflowStatus {
	return []WorkflowStatus{
		StatusPending,
		StatusProcessing,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
	}
}

// ContentType — тип контента, определяет шаблон препроцессинга.
type ContentType string

const (
	ContentTypeBlogPost      ContentType = "blog_post"
	ContentTypeArticle       ContentType = "article"
	ContentTypeTutorial      ContentType = "tutorial"
	ContentTypeFAQ           ContentType = "faq"
	ContentTypeDocumentation ContentType = "documentation"
)

// IsValid проверяет, что тип контента известен.
func (t ContentType) IsValid() bool {
	switch t {
	case ContentTypeBlogPost, ContentTypeArticle, ContentTypeTutorial, ContentTypeFAQ, ContentTypeDocumentation:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление ContentType.
func (t ContentType) String() string {
	return string(t)
}
