package content

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shaiso/Autopost/internal/domain"
)

// ErrUnknownContentType — для типа контента нет шаблона.
var ErrUnknownContentType = errors.New("unknown content type")

// Preprocessor превращает Workflow в ProcessedContent по шаблону типа контента.
type Preprocessor struct {
	excerptLength int
	maxTags       int
}

// Config — настройки Preprocessor.
type Config struct {
	ExcerptLength int // default: 160
	MaxTags       int // default: 8
}

// NewPreprocessor создаёт Preprocessor.
func NewPreprocessor(cfg Config) *Preprocessor {
	excerptLength := cfg.ExcerptLength
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}

	maxTags := cfg.MaxTags
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}

	return &Preprocessor{
		excerptLength: excerptLength,
		maxTags:       maxTags,
	}
}

// Process строит ProcessedContent для workflow.
func (p *Preprocessor) Process(w *domain.Workflow) (*domain.ProcessedContent, error) {
	tpl, ok := TemplateFor(w.ContentType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContentType, w.ContentType)
	}

	status := domain.PostStatusDraft
	if w.PublishImmediately {
		status = domain.PostStatusPublish
	}

	out := &domain.ProcessedContent{
		Title:          w.Title,
		Content:        w.Content,
		Status:         status,
		SEOTitle:       w.SEOTitle,
		SEODescription: w.SEODescription,
		FeaturedMedia:  w.FeaturedImageURL,
	}

	if tpl.AutoExcerpt {
		out.Excerpt = GenerateExcerpt(w.Content, p.excerptLength)
	}

	if tpl.AutoTags && len(w.Tags) == 0 {
		out.Tags = GenerateTags(w.Content, p.maxTags)
	} else {
		out.Tags = slices.Clone(w.Tags)
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}

	if len(w.Categories) > 0 {
		out.Categories = slices.Clone(w.Categories)
	} else {
		out.Categories = tpl.DefaultCategories
	}

	if tpl.TableOfContents {
		out.Content = AddTableOfContents(w.Content)
	}

	return out, nil
}
