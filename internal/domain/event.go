package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события жизненного цикла workflow.
type EventType string

const (
	EventCompleted      EventType = "workflow.completed"
	EventFailed         EventType = "workflow.failed"
	EventRetryScheduled EventType = "workflow.retry_scheduled"
	EventCancelled      EventType = "workflow.cancelled"
)

// WorkflowEvent — событие для post-processing (уведомления, аналитика и т.д.).
type WorkflowEvent struct {
	Type       EventType      `json:"type"`
	WorkflowID uuid.UUID      `json:"workflow_id"`
	UserID     string         `json:"user_id"`
	Status     WorkflowStatus `json:"status"`
	ExternalID string         `json:"external_id,omitempty"`
	Link       string         `json:"link,omitempty"`
	Error      string         `json:"error,omitempty"`
	RetryCount int            `json:"retry_count"`
	RetryInSec int            `json:"retry_in_sec,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewWorkflowEvent строит событие из текущего состояния workflow.
func NewWorkflowEvent(t EventType, w *Workflow, now time.Time) WorkflowEvent {
	ev := WorkflowEvent{
		Type:       t,
		WorkflowID: w.ID,
		UserID:     w.UserID,
		Status:     w.Status,
		Link:       w.Link,
		RetryCount: w.RetryCount,
		Timestamp:  now,
	}
	if w.ExternalID != nil {
		ev.ExternalID = *w.ExternalID
	}
	if w.ErrorMessage != nil {
		ev.Error = *w.ErrorMessage
	}
	return ev
}
