package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Autopost/internal/domain"
	"github.com/shaiso/Autopost/internal/repo"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Health — liveness probe.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok %s", time.Since(h.startTime).Round(time.Second))
}

// ListWorkflows возвращает список workflows с фильтрацией.
// GET /api/v1/workflows?user_id=...&status=...&limit=...&offset=...
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.WorkflowFilter{
		UserID: q.Get("user_id"),
		Status: domain.WorkflowStatus(q.Get("status")),
	}

	limit, err := intParam(q.Get("limit"), defaultListLimit)
	if err != nil || limit <= 0 || limit > maxListLimit {
		BadRequest(w, "invalid limit")
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		BadRequest(w, "invalid offset")
		return
	}
	filter.Limit, filter.Offset = limit, offset

	workflows, err := h.orch.List(r.Context(), filter)
	if HandleError(w, h.logger, err) {
		return
	}
	total, err := h.orch.Count(r.Context(), filter)
	if HandleError(w, h.logger, err) {
		return
	}

	result := make([]WorkflowResponse, len(workflows))
	for i, wf := range workflows {
		result[i] = WorkflowFromDomain(wf)
	}

	List(w, result, total)
}

// CreateWorkflow создаёт workflow; с ?start=true сразу запускает его.
// Если запуск не удался, ответ всё равно 201, причина — в start_error.
// POST /api/v1/workflows
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	start, err := boolParam(r.URL.Query().Get("start"))
	if err != nil {
		BadRequest(w, "invalid start flag")
		return
	}

	var wf *domain.Workflow
	if start {
		wf, err = h.orch.Submit(r.Context(), req)
	} else {
		wf, err = h.orch.Create(r.Context(), req)
	}
	if wf == nil {
		HandleError(w, h.logger, err)
		return
	}

	resp := CreatedWorkflowResponse{WorkflowResponse: WorkflowFromDomain(*wf)}
	if err != nil {
		// Создан, но не запущен: запись существует, отвечаем 201.
		h.logger.Warn("workflow created but not started", "workflow_id", wf.ID, "error", err)
		_, detail := classifyError(err)
		resp.StartError = &detail
	}
	Created(w, resp)
}

// GetWorkflow возвращает workflow по ID.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	wf, err := h.orch.Get(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, WorkflowFromDomain(*wf))
}

// StartWorkflow запускает PENDING workflow.
// POST /api/v1/workflows/{id}/start
func (h *Handler) StartWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if HandleError(w, h.logger, h.orch.StartWorkflow(r.Context(), id)) {
		return
	}

	wf, err := h.orch.Get(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Accepted(w, WorkflowFromDomain(*wf))
}

// CancelWorkflow отменяет workflow.
// POST /api/v1/workflows/{id}/cancel
func (h *Handler) CancelWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	cancelled, err := h.orch.Cancel(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}

	wf, err := h.orch.Get(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, CancelResponse{Cancelled: cancelled, Workflow: WorkflowFromDomain(*wf)})
}

// RetryWorkflow вручную перезапускает FAILED workflow.
// POST /api/v1/workflows/{id}/retry
func (h *Handler) RetryWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	wf, err := h.orch.Retry(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Accepted(w, WorkflowFromDomain(*wf))
}

// PreviewWorkflow возвращает подготовленный к публикации контент.
// GET /api/v1/workflows/{id}/preview
func (h *Handler) PreviewWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	bundle, err := h.orch.Preview(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, bundle)
}

// ListTasks возвращает взведённые единицы исполнения.
// GET /api/v1/scheduler/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := h.orch.Outstanding()
	List(w, tasks, len(tasks))
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func boolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
