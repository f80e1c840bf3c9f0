package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowSpec — входные данные для создания workflow.
//
// Теги validate проверяются go-playground/validator в orchestrator.Create.
type WorkflowSpec struct {
	UserID       string `json:"user_id" validate:"required"`
	ConnectionID string `json:"connection_id" validate:"required"`

	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`

	// ContentType — пустое значение означает blog_post.
	ContentType ContentType `json:"content_type,omitempty" validate:"omitempty,oneof=blog_post article tutorial faq documentation"`

	Tags       []string `json:"tags,omitempty" validate:"dive,required"`
	Categories []string `json:"categories,omitempty" validate:"dive,required"`

	FeaturedImageURL string `json:"featured_image_url,omitempty" validate:"omitempty,url"`

	PublishImmediately   bool       `json:"publish_immediately"`
	ScheduledPublishTime *time.Time `json:"scheduled_publish_time,omitempty"`

	SEOTitle       string `json:"seo_title,omitempty"`
	SEODescription string `json:"seo_description,omitempty"`

	// MaxRetries — 0 означает значение по умолчанию движка.
	MaxRetries int `json:"max_retries,omitempty" validate:"gte=0"`
}

// NewWorkflow создаёт workflow в статусе PENDING из спецификации.
func NewWorkflow(spec WorkflowSpec, maxRetries int, now time.Time) *Workflow {
	contentType := spec.ContentType
	if contentType == "" {
		contentType = ContentTypeBlogPost
	}

	if spec.MaxRetries > 0 {
		maxRetries = spec.MaxRetries
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	tags := spec.Tags
	if tags == nil {
		tags = []string{}
	}
	categories := spec.Categories
	if categories == nil {
		categories = []string{}
	}

	w := &Workflow{
		ID:                 uuid.New(),
		UserID:             spec.UserID,
		ConnectionID:       spec.ConnectionID,
		Title:              spec.Title,
		Content:            spec.Content,
		ContentType:        contentType,
		Tags:               tags,
		Categories:         categories,
		PublishImmediately: spec.PublishImmediately,
		SEOTitle:           spec.SEOTitle,
		SEODescription:     spec.SEODescription,
		FeaturedImageURL:   spec.FeaturedImageURL,
		Status:             StatusPending,
		MaxRetries:         maxRetries,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if spec.ScheduledPublishTime != nil {
		t := *spec.ScheduledPublishTime
		w.ScheduledPublishTime = &t
	}
	return w
}
