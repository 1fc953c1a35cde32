package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "pricepipe/internal/errors"
	"pricepipe/internal/services"
)

// OperationService is the slice of services.OperationService the
// handler depends on.
type OperationService interface {
	StartOperation(ctx context.Context, kind services.OperationKind, params map[string]interface{}) (*services.OperationStatus, error)
	GetOperation(ctx context.Context, id string) (*services.OperationStatus, error)
	ListOperations(ctx context.Context) []*services.OperationStatus
	CancelOperation(ctx context.Context, id string) error
	Kinds() []services.OperationKind
}

// OperationsHandler handles operation-related HTTP requests
type OperationsHandler struct {
	service  OperationService
	logger   *slog.Logger
	validate *validator.Validate
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(service OperationService, logger *slog.Logger) *OperationsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OperationsHandler{
		service:  service,
		logger:   logger.With(slog.String("handler", "operations")),
		validate: validator.New(),
	}
}

// StartOperationRequest is the body of POST /api/operations.
type StartOperationRequest struct {
	Kind       string                 `json:"kind" validate:"required,oneof=training eda deploy"`
	Step       string                 `json:"step,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Bind implements the render.Binder interface for request validation
func (req *StartOperationRequest) Bind(r *http.Request) error {
	return nil
}

// Routes returns a chi router for operations endpoints
func (h *OperationsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.StartOperation)
	r.Get("/", h.ListOperations)
	r.Get("/types", h.GetOperationTypes)
	r.Get("/{id}", h.GetOperation)
	r.Delete("/{id}", h.CancelOperation)

	return r
}

// StartOperation handles POST /api/operations
func (h *OperationsHandler) StartOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := &StartOperationRequest{}
	if err := render.Bind(r, data); err != nil {
		h.logger.WarnContext(ctx, "malformed operation request",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.Struct(data); err != nil {
		h.logger.WarnContext(ctx, "invalid operation request",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	kind, err := services.ParseOperationKind(data.Kind)
	if err != nil {
		render.Render(w, r, apierrors.ErrValidation("kind", err.Error()))
		return
	}

	params := data.Parameters
	if params == nil {
		params = make(map[string]interface{})
	}
	if data.Step != "" {
		params["step"] = data.Step
	}

	status, err := h.service.StartOperation(ctx, kind, params)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "operation accepted",
		slog.String("operation_id", status.ID),
		slog.String("kind", string(status.Kind)))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, status)
}

// GetOperation handles GET /api/operations/{id}
func (h *OperationsHandler) GetOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := h.service.GetOperation(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	render.JSON(w, r, status)
}

// ListOperations handles GET /api/operations
func (h *OperationsHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"operations": h.service.ListOperations(r.Context()),
	})
}

// CancelOperation handles DELETE /api/operations/{id}
func (h *OperationsHandler) CancelOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.service.CancelOperation(ctx, id); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "operation cancelled", slog.String("operation_id", id))
	render.Status(r, http.StatusNoContent)
	render.NoContent(w, r)
}

// GetOperationTypes handles GET /api/operations/types
func (h *OperationsHandler) GetOperationTypes(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"types": h.service.Kinds(),
	})
}

func (h *OperationsHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrOperationNotFound):
		render.Render(w, r, apierrors.ErrOperationNotFound)
	case errors.Is(err, services.ErrOperationFinished):
		render.Render(w, r, apierrors.New(http.StatusConflict, "OPERATION_FINISHED", err.Error()))
	case errors.Is(err, services.ErrUnknownOperation):
		render.Render(w, r, apierrors.ErrValidation("kind", err.Error()))
	case errors.Is(err, services.ErrInvalidInput):
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
	default:
		h.logger.ErrorContext(r.Context(), "operation request failed",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
	}
}
