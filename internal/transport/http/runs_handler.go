package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "bankcap/internal/errors"
	"bankcap/internal/etl"
	"bankcap/internal/pipeline"
	"bankcap/internal/services"
)

// RunService is the part of services.RunService the handler needs
type RunService interface {
	Trigger(ctx context.Context, trigger pipeline.Trigger) (string, error)
	List() []*services.RunRecord
	Get(id string) (*services.RunRecord, error)
	Results(id string) ([]etl.QueryResult, error)
}

// RunsHandler handles run-related HTTP requests
type RunsHandler struct {
	service  RunService
	errors   *apierrors.ErrorHandler
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(service RunService, errHandler *apierrors.ErrorHandler, logger *slog.Logger) *RunsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errHandler == nil {
		errHandler = apierrors.NewErrorHandler(logger, false)
	}

	return &RunsHandler{
		service:  service,
		errors:   errHandler,
		validate: validator.New(),
		logger:   logger.With(slog.String("handler", "runs")),
	}
}

// Routes returns the run routes
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.TriggerRun)
	r.Get("/", h.ListRuns)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetRun)
		r.Get("/results", h.GetResults)
	})
	return r
}

// TriggerRequest is the optional body of POST /api/runs
type TriggerRequest struct {
	Trigger string `json:"trigger" validate:"omitempty,oneof=api manual"`
}

// Bind implements render.Binder
func (req *TriggerRequest) Bind(r *http.Request) error {
	if req.Trigger == "" {
		req.Trigger = string(pipeline.TriggerAPI)
	}
	return nil
}

// TriggerResponse acknowledges an accepted run
type TriggerResponse struct {
	RunID   string    `json:"run_id"`
	Status  string    `json:"status"`
	Trigger string    `json:"trigger"`
	Href    string    `json:"href"`
	Time    time.Time `json:"accepted_at"`
}

// RunListResponse lists remembered runs
type RunListResponse struct {
	Runs  []*services.RunRecord `json:"runs"`
	Count int                   `json:"count"`
}

// ResultsResponse carries the query results of one run
type ResultsResponse struct {
	RunID   string            `json:"run_id"`
	Results []etl.QueryResult `json:"results"`
}

// TriggerRun handles POST /api/runs
func (h *RunsHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	req := &TriggerRequest{Trigger: string(pipeline.TriggerAPI)}
	if r.ContentLength != 0 {
		if err := render.Bind(r, req); err != nil && !errors.Is(err, io.EOF) {
			h.errors.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		h.errors.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	id, err := h.service.Trigger(r.Context(), pipeline.Trigger(req.Trigger))
	if err != nil {
		if errors.Is(err, services.ErrAtCapacity) {
			w.Header().Set("Retry-After", "60")
		}
		h.errors.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, TriggerResponse{
		RunID:   id,
		Status:  string(pipeline.RunStatusPending),
		Trigger: req.Trigger,
		Href:    "/api/runs/" + id,
		Time:    time.Now().UTC(),
	})
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.service.List()
	render.JSON(w, r, RunListResponse{Runs: runs, Count: len(runs)})
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, record)
}

// GetResults handles GET /api/runs/{id}/results
func (h *RunsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := h.service.Results(id)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if results == nil {
		results = []etl.QueryResult{}
	}
	render.JSON(w, r, ResultsResponse{RunID: id, Results: results})
}
