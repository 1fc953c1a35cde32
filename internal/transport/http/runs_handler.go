package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "pricepipe/internal/errors"
	"pricepipe/internal/services"
	"pricepipe/internal/tracking"
)

// RunService is the slice of services.RunService the handler depends on.
type RunService interface {
	GetRun(ctx context.Context, id string) (*tracking.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*tracking.Run, error)
	ListModels(ctx context.Context, runID string) ([]*tracking.Model, error)
	GetModel(ctx context.Context, id int64) (*tracking.Model, error)
	ProductionModel(ctx context.Context) (*tracking.Model, error)
}

// RunsHandler serves tracked runs and registered models.
type RunsHandler struct {
	service RunService
	logger  *slog.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(service RunService, logger *slog.Logger) *RunsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RunsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "runs")),
	}
}

// Routes returns a chi router for run endpoints
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListRuns)
	r.Get("/{id}", h.GetRun)

	return r
}

// ModelRoutes returns a chi router for model endpoints
func (h *RunsHandler) ModelRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListModels)
	r.Get("/production", h.GetProductionModel)
	r.Get("/{id}", h.GetModel)

	return r
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			render.Render(w, r, apierrors.ErrValidation("limit", "must be a positive integer"))
			return
		}
		limit = parsed
	}

	runs, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"runs":  runViews(runs),
		"count": len(runs),
	})
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	render.JSON(w, r, runView(run))
}

// ListModels handles GET /api/models
func (h *RunsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.ListModels(r.Context(), r.URL.Query().Get("run_id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"models": modelViews(models),
		"count":  len(models),
	})
}

// GetModel handles GET /api/models/{id}
func (h *RunsHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		render.Render(w, r, apierrors.ErrValidation("id", "must be an integer"))
		return
	}

	model, err := h.service.GetModel(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	render.JSON(w, r, modelView(model))
}

// GetProductionModel handles GET /api/models/production
func (h *RunsHandler) GetProductionModel(w http.ResponseWriter, r *http.Request) {
	model, err := h.service.ProductionModel(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	render.JSON(w, r, modelView(model))
}

func (h *RunsHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrRunNotFound):
		render.Render(w, r, apierrors.ErrRunNotFound)
	case errors.Is(err, services.ErrModelNotFound):
		render.Render(w, r, apierrors.ErrModelNotFound)
	case errors.Is(err, services.ErrInvalidInput):
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
	default:
		h.logger.ErrorContext(r.Context(), "run request failed",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
	}
}

// RunView is the JSON shape for a tracked run.
type RunView struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	Error      string             `json:"error,omitempty"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at,omitempty"`
	Params     map[string]string  `json:"params,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// ModelView is the JSON shape for a registered model.
type ModelView struct {
	ID        int64  `json:"id"`
	RunID     string `json:"run_id"`
	Path      string `json:"path"`
	Stage     string `json:"stage"`
	CreatedAt string `json:"created_at"`
}

func runView(run *tracking.Run) RunView {
	view := RunView{
		ID:        run.ID,
		Name:      run.Name,
		Status:    run.Status,
		Error:     run.Error,
		StartedAt: run.StartedAt.Format(timeFormat),
		Params:    run.Params,
		Metrics:   run.Metrics,
	}
	if run.FinishedAt != nil {
		view.FinishedAt = run.FinishedAt.Format(timeFormat)
	}
	return view
}

func runViews(runs []*tracking.Run) []RunView {
	out := make([]RunView, 0, len(runs))
	for _, run := range runs {
		out = append(out, runView(run))
	}
	return out
}

func modelView(m *tracking.Model) ModelView {
	return ModelView{
		ID:        m.ID,
		RunID:     m.RunID,
		Path:      m.Path,
		Stage:     m.Stage,
		CreatedAt: m.CreatedAt.Format(timeFormat),
	}
}

func modelViews(models []*tracking.Model) []ModelView {
	out := make([]ModelView, 0, len(models))
	for _, m := range models {
		out = append(out, modelView(m))
	}
	return out
}
