package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vilaca/branchsmith/internal/api"
	"github.com/vilaca/branchsmith/internal/branch"
	"github.com/vilaca/branchsmith/internal/domain"
	"github.com/vilaca/branchsmith/internal/service"
	"github.com/vilaca/branchsmith/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// PullRequestService interface for pull request operations (Dependency Inversion Principle).
type PullRequestService interface {
	CreateForBranch(ctx context.Context, req service.CreatePRRequest) (*domain.PullRequest, error)
	MergeToTest(ctx context.Context, task domain.Task, record *domain.ServiceBranch) (*domain.PullRequest, error)
	MergeToMaster(ctx context.Context, task domain.Task, record *domain.ServiceBranch) (*domain.PullRequest, error)
	Status(ctx context.Context, req service.StatusRequest) (*domain.PullRequestStatus, error)
	Merge(ctx context.Context, req service.MergeRequest) (*domain.MergeResult, error)
	CreateForTaskServices(ctx context.Context, task domain.Task, services []string, base string) ([]service.ServicePullRequest, error)
}

// Handler handles HTTP requests for the branchsmith API.
type Handler struct {
	renderer  Renderer
	logger    Logger
	generator *branch.Generator
	prService PullRequestService
	records   store.Store
}

// HandlerConfig holds configuration for creating a new Handler.
// PRService is nil when no GitHub credentials are configured and Records
// is nil when no store is open; their routes then fail.
type HandlerConfig struct {
	Renderer  Renderer
	Logger    Logger
	Generator *branch.Generator
	PRService PullRequestService
	Records   store.Store
}

// NewHandler creates a new Handler with injected dependencies.
func NewHandler(cfg HandlerConfig) *Handler {
	generator := cfg.Generator
	if generator == nil {
		generator = branch.NewGenerator()
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = NewJSONRenderer()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NewStdLogger()
	}
	return &Handler{
		renderer:  renderer,
		logger:    logger,
		generator: generator,
		prService: cfg.PRService,
		records:   cfg.Records,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleHealth)

	mux.HandleFunc("GET /api/branches/templates", h.handleTemplates)
	mux.HandleFunc("POST /api/branches/generate", h.handleGenerate)
	mux.HandleFunc("POST /api/branches/generate-multi", h.handleGenerateMulti)
	mux.HandleFunc("POST /api/branches/validate", h.handleValidate)
	mux.HandleFunc("POST /api/branches/classify", h.handleClassify)
	mux.HandleFunc("POST /api/branches/checkout-command", h.handleCheckoutCommand)

	mux.HandleFunc("POST /api/github/pull-request", h.handleCreatePullRequest)
	mux.HandleFunc("POST /api/github/pr-status", h.handlePullRequestStatus)
	mux.HandleFunc("POST /api/github/merge", h.handleMerge)
	mux.HandleFunc("POST /api/github/task-pull-requests", h.handleTaskPullRequests)

	mux.HandleFunc("GET /api/records", h.handleListRecords)
	mux.HandleFunc("POST /api/records", h.handleSaveRecord)
	mux.HandleFunc("GET /api/records/{id}", h.handleGetRecord)
	mux.HandleFunc("DELETE /api/records/{id}", h.handleDeleteRecord)
	mux.HandleFunc("POST /api/records/{id}/pull-request", h.handleRecordPullRequest)
}

// handleHealth serves the health check endpoint.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.renderer.RenderHealth(w); err != nil {
		h.logger.Printf("failed to render health: %v", err)
	}
}

// templateView is a template plus its display pattern.
type templateView struct {
	branch.Template
	Pattern string `json:"pattern"`
}

func (h *Handler) handleTemplates(w http.ResponseWriter, r *http.Request) {
	templates := branch.Templates()
	views := make([]templateView, len(templates))
	for i, t := range templates {
		views[i] = templateView{Template: t, Pattern: t.Pattern()}
	}
	h.respond(w, http.StatusOK, views)
}

// generateRequest is the wire form of a generation request. Enum fields
// arrive as strings and are validated before use.
type generateRequest struct {
	TaskTitle   string   `json:"taskTitle"`
	ServiceName string   `json:"serviceName"`
	Services    []string `json:"services"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	TaskType    string   `json:"taskType"`
	TaskID      string   `json:"taskId"`
	Assignee    string   `json:"assignee"`
}

func (g generateRequest) toRequest() (branch.Request, error) {
	if strings.TrimSpace(g.TaskTitle) == "" {
		return branch.Request{}, fmt.Errorf("%w: taskTitle is required", domain.ErrInvalidInput)
	}
	priority, err := domain.ParsePriority(g.Priority)
	if err != nil {
		return branch.Request{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	req := branch.Request{
		TaskTitle:   g.TaskTitle,
		ServiceName: g.ServiceName,
		Description: g.Description,
		Priority:    priority,
		TaskID:      g.TaskID,
		Assignee:    g.Assignee,
	}
	if g.TaskType != "" {
		t, err := domain.ParseTaskType(g.TaskType)
		if err != nil {
			return branch.Request{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		req.TaskType = &t
	}
	return req, nil
}

type generateResponse struct {
	BranchName string            `json:"branchName"`
	TaskType   domain.TaskType   `json:"taskType"`
	Validation branch.Validation `json:"validation"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := body.toRequest()
	if err != nil {
		h.fail(w, err)
		return
	}
	if strings.TrimSpace(req.ServiceName) == "" {
		h.fail(w, fmt.Errorf("%w: serviceName is required", domain.ErrInvalidInput))
		return
	}

	result := h.generator.Generate(req)
	h.respond(w, http.StatusOK, generateResponse{
		BranchName: result.BranchName,
		TaskType:   result.TaskType,
		Validation: branch.Validate(result.BranchName),
	})
}

func (h *Handler) handleGenerateMulti(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := body.toRequest()
	if err != nil {
		h.fail(w, err)
		return
	}
	if len(body.Services) == 0 {
		h.fail(w, fmt.Errorf("%w: services is required", domain.ErrInvalidInput))
		return
	}

	h.respond(w, http.StatusOK, h.generator.GenerateMulti(req.TaskTitle, body.Services, req))
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BranchName string `json:"branchName"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	h.respond(w, http.StatusOK, branch.Validate(body.BranchName))
}

func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	priority, err := domain.ParsePriority(body.Priority)
	if err != nil {
		h.fail(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	h.respond(w, http.StatusOK, map[string]domain.TaskType{
		"taskType": branch.Classify(body.Title, body.Description, priority),
	})
}

func (h *Handler) handleCheckoutCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BranchName string `json:"branchName"`
		BaseBranch string `json:"baseBranch"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if err := branch.Validate(body.BranchName).Err(); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]string{
		"command": branch.CheckoutCommand(body.BranchName, body.BaseBranch),
	})
}

func (h *Handler) handleCreatePullRequest(w http.ResponseWriter, r *http.Request) {
	if !h.requirePRService(w) {
		return
	}
	var body service.CreatePRRequest
	if !h.decode(w, r, &body) {
		return
	}
	pr, err := h.prService.CreateForBranch(r.Context(), body)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusCreated, pr)
}

func (h *Handler) handlePullRequestStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requirePRService(w) {
		return
	}
	var body service.StatusRequest
	if !h.decode(w, r, &body) {
		return
	}
	status, err := h.prService.Status(r.Context(), body)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, status)
}

func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	if !h.requirePRService(w) {
		return
	}
	var body service.MergeRequest
	if !h.decode(w, r, &body) {
		return
	}
	result, err := h.prService.Merge(r.Context(), body)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, result)
}

func (h *Handler) handleTaskPullRequests(w http.ResponseWriter, r *http.Request) {
	if !h.requirePRService(w) {
		return
	}
	var body struct {
		Task     domain.Task `json:"task"`
		Services []string    `json:"services"`
		Base     string      `json:"base"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if len(body.Services) == 0 {
		h.fail(w, fmt.Errorf("%w: services is required", domain.ErrInvalidInput))
		return
	}
	results, err := h.prService.CreateForTaskServices(r.Context(), body.Task, body.Services, body.Base)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, results)
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if !h.requireRecords(w) {
		return
	}
	var (
		records []domain.ServiceBranch
		err     error
	)
	switch {
	case r.URL.Query().Get("taskId") != "":
		records, err = h.records.ListByTask(r.Context(), r.URL.Query().Get("taskId"))
	case r.URL.Query().Get("open") == "true":
		records, err = h.records.ListOpen(r.Context())
	default:
		records, err = h.records.List(r.Context())
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, records)
}

func (h *Handler) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	if !h.requireRecords(w) {
		return
	}
	var record domain.ServiceBranch
	if !h.decode(w, r, &record) {
		return
	}
	if strings.TrimSpace(record.ServiceName) == "" {
		h.fail(w, fmt.Errorf("%w: serviceName is required", domain.ErrInvalidInput))
		return
	}
	if err := branch.Validate(record.BranchName).Err(); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.records.Save(r.Context(), &record); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusCreated, record)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	if !h.requireRecords(w) {
		return
	}
	record, err := h.records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, record)
}

func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if !h.requireRecords(w) {
		return
	}
	if err := h.records.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRecordPullRequest opens the test or master pull request for a
// stored service branch.
func (h *Handler) handleRecordPullRequest(w http.ResponseWriter, r *http.Request) {
	if !h.requireRecords(w) || !h.requirePRService(w) {
		return
	}
	var body struct {
		Target string      `json:"target"`
		Task   domain.Task `json:"task"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	record, err := h.records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	var pr *domain.PullRequest
	switch body.Target {
	case "test", "":
		pr, err = h.prService.MergeToTest(r.Context(), body.Task, record)
	case "master":
		pr, err = h.prService.MergeToMaster(r.Context(), body.Task, record)
	default:
		err = fmt.Errorf("%w: target must be test or master", domain.ErrInvalidInput)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusCreated, pr)
}

// decode reads a JSON body, answering 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.fail(w, fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidInput, err))
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, status int, v interface{}) {
	if err := h.renderer.RenderJSON(w, status, v); err != nil {
		h.logger.Printf("failed to write response: %v", err)
	}
}

// fail maps an error to a status code and writes it as {"error": ...}.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.failStatus(w, statusFor(err), err.Error())
}

func (h *Handler) failStatus(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Printf("request failed: %s", message)
	}
	if err := h.renderer.RenderError(w, status, message); err != nil {
		h.logger.Printf("failed to write error response: %v", err)
	}
}

func statusFor(err error) int {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.StatusCode
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidBranchName),
		errors.Is(err, domain.ErrInvalidPullRequestURL):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotMergeable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) requirePRService(w http.ResponseWriter) bool {
	if h.prService == nil {
		h.fail(w, fmt.Errorf("%w", domain.ErrNoGitHubConfig))
		return false
	}
	return true
}

func (h *Handler) requireRecords(w http.ResponseWriter) bool {
	if h.records == nil {
		h.failStatus(w, http.StatusServiceUnavailable, "record store not configured")
		return false
	}
	return true
}
