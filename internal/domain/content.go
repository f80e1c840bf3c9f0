package domain

// Статусы поста в CMS.
const (
	PostStatusPublish = "publish"
	PostStatusDraft   = "draft"
)

// ProcessedContent — результат препроцессинга, передаётся в Publisher.
type ProcessedContent struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Status         string   `json:"status"` // publish или draft
	Excerpt        string   `json:"excerpt,omitempty"`
	Tags           []string `json:"tags"`
	Categories     []string `json:"categories"`
	SEOTitle       string   `json:"seo_title,omitempty"`
	SEODescription string   `json:"seo_description,omitempty"`
	FeaturedMedia  string   `json:"featured_media_url,omitempty"`
}

// PublishResult — ответ внешнего Publisher.
//
// Success=false и ошибка из Publish обрабатываются движком одинаково:
// оба приводят к переходу в FAILED с Message.
type PublishResult struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"external_id,omitempty"`
	Link       string `json:"link,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Credentials — данные подключения к WordPress для пары (user, connection).
type Credentials struct {
	ConnectionID        string `json:"connection_id"`
	SiteURL             string `json:"site_url"`
	Username            string `json:"username"`
	ApplicationPassword string `json:"-"`
}
