package content

import (
	"slices"

	"github.com/shaiso/Autopost/internal/domain"
)

// Template — правила обработки для типа контента.
type Template struct {
	// Format — формат поста в CMS.
	Format string

	// DefaultCategories — категории, если пользователь не указал свои.
	DefaultCategories []string

	// AutoExcerpt — генерировать excerpt.
	AutoExcerpt bool

	// AutoTags — генерировать теги, если пользователь не указал свои.
	AutoTags bool

	// TableOfContents — добавлять оглавление.
	TableOfContents bool
}

var templates = map[domain.ContentType]Template{
	domain.ContentTypeBlogPost: {
		Format:            "standard",
		DefaultCategories: []string{"Blog"},
		AutoExcerpt:       true,
		AutoTags:          true,
	},
	domain.ContentTypeArticle: {
		Format:            "standard",
		DefaultCategories: []string{"Articles"},
		AutoExcerpt:       true,
		AutoTags:          true,
	},
	domain.ContentTypeTutorial: {
		Format:            "standard",
		DefaultCategories: []string{"Tutorials", "How-to"},
		AutoExcerpt:       true,
		AutoTags:          true,
		TableOfContents:   true,
	},
	domain.ContentTypeFAQ: {
		Format:            "standard",
		DefaultCategories: []string{"FAQ"},
		AutoExcerpt:       false,
		AutoTags:          true,
	},
	domain.ContentTypeDocumentation: {
		Format:            "standard",
		DefaultCategories: []string{"Documentation"},
		AutoExcerpt:       true,
		AutoTags:          true,
		TableOfContents:   true,
	},
}

// TemplateFor возвращает шаблон для типа контента.
func TemplateFor(t domain.ContentType) (Template, bool) {
	tpl, ok := templates[t]
	if !ok {
		return Template{}, false
	}
	tpl.DefaultCategories = slices.Clone(tpl.DefaultCategories)
	return tpl, true
}
