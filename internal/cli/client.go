package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// WorkflowResponse — workflow из API.
type WorkflowResponse struct {
	ID                   string   `json:"id"`
	UserID               string   `json:"user_id"`
	ConnectionID         string   `json:"connection_id"`
	Title                string   `json:"title"`
	ContentType          string   `json:"content_type"`
	Tags                 []string `json:"tags"`
	Categories           []string `json:"categories"`
	PublishImmediately   bool     `json:"publish_immediately"`
	ScheduledPublishTime string   `json:"scheduled_publish_time,omitempty"`
	Status               string   `json:"status"`
	ExternalID           string   `json:"external_id,omitempty"`
	Link                 string   `json:"link,omitempty"`
	ErrorMessage         string   `json:"error_message,omitempty"`
	RetryCount           int      `json:"retry_count"`
	MaxRetries           int      `json:"max_retries"`
	ManualRetries        int      `json:"manual_retries"`
	CreatedAt            string   `json:"created_at"`
	UpdatedAt            string   `json:"updated_at"`
	CompletedAt          string   `json:"completed_at,omitempty"`

	// StartError — причина, по которой созданный workflow не запустился.
	StartError *ErrorDetail `json:"start_error,omitempty"`
}

// ErrorDetail — ошибка API.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CancelResponse — результат отмены.
type CancelResponse struct {
	Cancelled bool             `json:"cancelled"`
	Workflow  WorkflowResponse `json:"workflow"`
}

// PreviewResponse — подготовленный к публикации контент.
type PreviewResponse struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Status         string   `json:"status"`
	Excerpt        string   `json:"excerpt,omitempty"`
	Tags           []string `json:"tags"`
	Categories     []string `json:"categories"`
	SEOTitle       string   `json:"seo_title,omitempty"`
	SEODescription string   `json:"seo_description,omitempty"`
	FeaturedMedia  string   `json:"featured_media_url,omitempty"`
}

// TaskResponse — взведённая единица планировщика.
type TaskResponse struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	State   string `json:"state"`
	DueAt   string `json:"due_at"`
	Attempt int    `json:"attempt"`
}

// --- Request types ---

// CreateWorkflowRequest — создание workflow.
type CreateWorkflowRequest struct {
	UserID               string   `json:"user_id"`
	ConnectionID         string   `json:"connection_id"`
	Title                string   `json:"title"`
	Content              string   `json:"content"`
	ContentType          string   `json:"content_type,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	Categories           []string `json:"categories,omitempty"`
	PublishImmediately   bool     `json:"publish_immediately"`
	ScheduledPublishTime string   `json:"scheduled_publish_time,omitempty"`
	SEOTitle             string   `json:"seo_title,omitempty"`
	SEODescription       string   `json:"seo_description,omitempty"`
	FeaturedImageURL     string   `json:"featured_image_url,omitempty"`
	MaxRetries           int      `json:"max_retries,omitempty"`
}

// ListWorkflowsOpts — параметры фильтрации workflows.
type ListWorkflowsOpts struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error ErrorDetail `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Autopost API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Workflows ---

// ListWorkflows возвращает workflows с фильтрацией.
func (c *Client) ListWorkflows(opts ListWorkflowsOpts) ([]WorkflowResponse, error) {
	params := url.Values{}
	if opts.UserID != "" {
		params.Set("user_id", opts.UserID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var workflows []WorkflowResponse
	err := c.list("/api/v1/workflows", params, &workflows)
	return workflows, err
}

// CreateWorkflow создаёт workflow; start=true сразу запускает его.
func (c *Client) CreateWorkflow(req CreateWorkflowRequest, start bool) (*WorkflowResponse, error) {
	path := "/api/v1/workflows"
	if start {
		path += "?start=true"
	}
	var wf WorkflowResponse
	err := c.post(path, req, &wf)
	return &wf, err
}

// GetWorkflow возвращает workflow по ID.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get("/api/v1/workflows/"+id, &wf)
	return &wf, err
}

// StartWorkflow запускает PENDING workflow.
func (c *Client) StartWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.post("/api/v1/workflows/"+id+"/start", nil, &wf)
	return &wf, err
}

// CancelWorkflow отменяет workflow.
func (c *Client) CancelWorkflow(id string) (*CancelResponse, error) {
	var res CancelResponse
	err := c.post("/api/v1/workflows/"+id+"/cancel", nil, &res)
	return &res, err
}

// RetryWorkflow вручную перезапускает FAILED workflow.
func (c *Client) RetryWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.post("/api/v1/workflows/"+id+"/retry", nil, &wf)
	return &wf, err
}

// PreviewWorkflow возвращает результат препроцессинга.
func (c *Client) PreviewWorkflow(id string) (*PreviewResponse, error) {
	var p PreviewResponse
	err := c.get("/api/v1/workflows/"+id+"/preview", &p)
	return &p, err
}

// --- Scheduler ---

// ListTasks возвращает взведённые единицы исполнения.
func (c *Client) ListTasks() ([]TaskResponse, error) {
	var tasks []TaskResponse
	err := c.list("/api/v1/scheduler/tasks", nil, &tasks)
	return tasks, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
