package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Autopost/internal/domain"
	"github.com/shaiso/Autopost/internal/repo"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Autopost-WordPress-Connector/1.0"
	defaultUsername  = "admin"

	// maxErrorBody — сколько байт тела ответа читать при ошибке.
	maxErrorBody = 64 << 10
)

// CredentialsSource — источник данных подключения.
type CredentialsSource interface {
	GetCredentials(ctx context.Context, userID, connectionID string) (*domain.Credentials, error)
}

// Client — клиент WordPress REST API.
type Client struct {
	creds           CredentialsSource
	http            *http.Client
	userAgent       string
	defaultUsername string
	logger          *slog.Logger
}

// Config — конфигурация Client.
type Config struct {
	Credentials CredentialsSource
	HTTPClient  *http.Client  // default: &http.Client{Timeout: Timeout}
	Timeout     time.Duration // default: 30s
	UserAgent   string

	// DefaultUsername — используется, если в подключении нет username.
	DefaultUsername string

	Logger *slog.Logger
}

// New создаёт новый Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	username := cfg.DefaultUsername
	if username == "" {
		username = defaultUsername
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		creds:           cfg.Credentials,
		http:            httpClient,
		userAgent:       userAgent,
		defaultUsername: username,
		logger:          logger.With("component", "wordpress"),
	}
}

// postRequest — тело POST /wp-json/wp/v2/posts. Пустые поля не отправляются.
type postRequest struct {
	Title      string   `json:"title,omitempty"`
	Content    string   `json:"content,omitempty"`
	Excerpt    string   `json:"excerpt,omitempty"`
	Status     string   `json:"status,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// postResponse — интересующие поля ответа WordPress.
type postResponse struct {
	ID   json.Number `json:"id"`
	Link string      `json:"link"`
}

// errorResponse — тело ошибки WordPress REST API.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Publish создаёт пост. Ответ WordPress с ошибкой возвращается как
// PublishResult{Success: false}, сбой транспорта — как error.
func (c *Client) Publish(ctx context.Context, userID, connectionID string, bundle *domain.ProcessedContent) (*domain.PublishResult, error) {
	creds, err := c.creds.GetCredentials(ctx, userID, connectionID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}

	body := postRequest{
		Title:      bundle.Title,
		Content:    bundle.Content,
		Excerpt:    bundle.Excerpt,
		Status:     bundle.Status,
		Categories: bundle.Categories,
		Tags:       bundle.Tags,
	}
	if body.Status == "" {
		body.Status = domain.PostStatusDraft
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "posts", creds, body)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK && status != http.StatusCreated {
		msg := errorMessage(status, respBody)
		c.logger.Warn("wordpress rejected post",
			"connection_id", connectionID,
			"status_code", status,
			"message", msg,
		)
		return &domain.PublishResult{Success: false, Message: msg}, nil
	}

	var post postResponse
	if err := json.Unmarshal(respBody, &post); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRequest, err)
	}

	c.logger.Info("post created",
		"connection_id", connectionID,
		"post_id", post.ID.String(),
		"link", post.Link,
	)

	return &domain.PublishResult{
		Success:    true,
		ExternalID: post.ID.String(),
		Link:       post.Link,
	}, nil
}

// do выполняет аутентифицированный запрос к /wp-json/wp/v2/{endpoint}.
func (c *Client) do(ctx context.Context, method, endpoint string, creds *domain.Credentials, payload any) (int, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: marshal body: %v", ErrRequest, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL(creds.SiteURL, endpoint), bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: create request: %v", ErrRequest, err)
	}

	username := creds.Username
	if username == "" {
		username = c.defaultUsername
	}
	req.SetBasicAuth(username, creds.ApplicationPassword)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	// Успешный ответ содержит весь пост, его читаем целиком.
	var src io.Reader = resp.Body
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		src = io.LimitReader(resp.Body, maxErrorBody)
	}
	respBody, err := io.ReadAll(src)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %v", ErrRequest, err)
	}
	return resp.StatusCode, respBody, nil
}

// apiURL строит адрес REST API для сайта.
func apiURL(siteURL, endpoint string) string {
	return strings.TrimRight(siteURL, "/") + "/wp-json/wp/v2/" + strings.TrimLeft(endpoint, "/")
}

// errorMessage достаёт message из JSON-ошибки WordPress или возвращает "HTTP <code>".
func errorMessage(status int, body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return "HTTP " + strconv.Itoa(status)
}
