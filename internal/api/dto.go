package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Autopost/internal/domain"
	"github.com/shaiso/Autopost/internal/scheduler"
)

// Workflow DTOs

// CreateWorkflowRequest — запрос на создание workflow.
type CreateWorkflowRequest = domain.WorkflowSpec

// WorkflowResponse — ответ с workflow.
type WorkflowResponse struct {
	ID                   uuid.UUID             `json:"id"`
	UserID               string                `json:"user_id"`
	ConnectionID         string                `json:"connection_id"`
	Title                string                `json:"title"`
	ContentType          domain.ContentType    `json:"content_type"`
	Tags                 []string              `json:"tags"`
	Categories           []string              `json:"categories"`
	PublishImmediately   bool                  `json:"publish_immediately"`
	ScheduledPublishTime *time.Time            `json:"scheduled_publish_time,omitempty"`
	Status               domain.WorkflowStatus `json:"status"`
	ExternalID           *string               `json:"external_id,omitempty"`
	Link                 string                `json:"link,omitempty"`
	ErrorMessage         *string               `json:"error_message,omitempty"`
	RetryCount           int                   `json:"retry_count"`
	MaxRetries           int                   `json:"max_retries"`
	ManualRetries        int                   `json:"manual_retries"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	CompletedAt          *time.Time            `json:"completed_at,omitempty"`
}

// CreatedWorkflowResponse — ответ на создание workflow.
// StartError заполнен, если workflow создан, но запустить его не удалось.
type CreatedWorkflowResponse struct {
	WorkflowResponse
	StartError *ErrorDetail `json:"start_error,omitempty"`
}

// WorkflowFromDomain конвертирует domain.Workflow в WorkflowResponse.
// Тело контента в ответ не попадает: его видно через /preview.
func WorkflowFromDomain(w domain.Workflow) WorkflowResponse {
	tags := w.Tags
	if tags == nil {
		tags = []string{}
	}
	categories := w.Categories
	if categories == nil {
		categories = []string{}
	}
	return WorkflowResponse{
		ID:                   w.ID,
		UserID:               w.UserID,
		ConnectionID:         w.ConnectionID,
		Title:                w.Title,
		ContentType:          w.ContentType,
		Tags:                 tags,
		Categories:           categories,
		PublishImmediately:   w.PublishImmediately,
		ScheduledPublishTime: w.ScheduledPublishTime,
		Status:               w.Status,
		ExternalID:           w.ExternalID,
		Link:                 w.Link,
		ErrorMessage:         w.ErrorMessage,
		RetryCount:           w.RetryCount,
		MaxRetries:           w.MaxRetries,
		ManualRetries:        w.ManualRetries,
		CreatedAt:            w.CreatedAt,
		UpdatedAt:            w.UpdatedAt,
		CompletedAt:          w.CompletedAt,
	}
}

// CancelResponse — результат отмены.
// Cancelled=false означает, что workflow уже был в финальном статусе.
type CancelResponse struct {
	Cancelled bool             `json:"cancelled"`
	Workflow  WorkflowResponse `json:"workflow"`
}

// Scheduler DTOs

// TaskResponse — взведённая единица исполнения.
type TaskResponse = scheduler.Info
