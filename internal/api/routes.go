package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Metrics(h.metrics),
	)

	mux.HandleFunc("GET /healthz", h.Health)

	// Workflows
	mux.Handle("GET /api/v1/workflows", chain(http.HandlerFunc(h.ListWorkflows)))
	mux.Handle("POST /api/v1/workflows", chain(http.HandlerFunc(h.CreateWorkflow)))
	mux.Handle("GET /api/v1/workflows/{id}", chain(http.HandlerFunc(h.GetWorkflow)))
	mux.Handle("POST /api/v1/workflows/{id}/start", chain(http.HandlerFunc(h.StartWorkflow)))
	mux.Handle("POST /api/v1/workflows/{id}/cancel", chain(http.HandlerFunc(h.CancelWorkflow)))
	mux.Handle("POST /api/v1/workflows/{id}/retry", chain(http.HandlerFunc(h.RetryWorkflow)))
	mux.Handle("GET /api/v1/workflows/{id}/preview", chain(http.HandlerFunc(h.PreviewWorkflow)))

	// Scheduler
	mux.Handle("GET /api/v1/scheduler/tasks", chain(http.HandlerFunc(h.ListTasks)))
}
