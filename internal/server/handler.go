// internal/server/handler.go
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"loan-portal/internal/common/auth"
	apperrors "loan-portal/internal/common/errors"
	"loan-portal/internal/common/logger"
	"loan-portal/internal/common/metrics"
	"loan-portal/internal/common/observability"
	"loan-portal/internal/common/validation"
	"loan-portal/internal/loan/eligibility"
	"loan-portal/internal/loan/repository"
	"loan-portal/internal/models"
)

// IdentityResolver turns a bearer token into a caller identity.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*auth.Identity, error)
}

// Processor is the submission pipeline surface the handler dispatches to.
type Processor interface {
	Evaluate(app *models.LoanApplication) models.ValidationResult
	Submit(ctx context.Context, userID string, app *models.LoanApplication) (*models.LoanApplication, error)
}

// StatusHandler applies admin status transitions.
type StatusHandler interface {
	Transition(ctx context.Context, id string, to models.Status, note string) (*models.LoanApplication, error)
}

// Reader is the read-only repository surface for admin lookups.
type Reader interface {
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.LoanApplication, error)
}

// Handler serves the loan application API.
type Handler struct {
	processor Processor
	status    StatusHandler
	reader    Reader
	resolver  IdentityResolver
	logger    logger.Logger
	obs       *observability.Observability
}

// SetObservability attaches the otel meter; requests are recorded when set.
func (h *Handler) SetObservability(obs *observability.Observability) {
	h.obs = obs
}

func NewHandler(processor Processor, status StatusHandler, reader Reader, resolver IdentityResolver, log logger.Logger) *Handler {
	return &Handler{
		processor: processor,
		status:    status,
		reader:    reader,
		resolver:  resolver,
		logger:    log.WithFields(map[string]interface{}{"component": "http-handler"}),
	}
}

// actionRequest is the JSON action envelope accepted by the API.
type actionRequest struct {
	Action          string                  `json:"action"`
	ApplicationData *models.LoanApplication `json:"applicationData,omitempty"`
	ApplicationID   string                  `json:"applicationId,omitempty"`
	Status          string                  `json:"status,omitempty"`
	Notes           string                  `json:"notes,omitempty"`
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HandleAction dispatches the POST /api/loan-applications action envelope.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, apperrors.NewInvalidEnvelopeError("failed to read request body"))
		return
	}

	if ok, details := validation.ValidateEnvelope(body); !ok {
		h.writeError(w, apperrors.NewInvalidEnvelopeError(details))
		return
	}

	var req actionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, apperrors.NewInvalidEnvelopeError(err.Error()))
		return
	}

	rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(req.Action).Observe(time.Since(start).Seconds())
		if h.obs != nil {
			outcome := "success"
			if rec.code >= http.StatusBadRequest {
				outcome = "failure"
			}
			h.obs.RecordRequest(r.Context(), req.Action, outcome)
			h.obs.RecordRequestDuration(r.Context(), req.Action, time.Since(start))
		}
	}()

	switch req.Action {
	case "validate":
		h.handleValidate(rec, &req)
	case "calculate-eligibility":
		h.handleEligibility(rec, &req)
	case "process":
		h.handleProcess(rec, r, &req)
	case "updateStatus":
		h.handleUpdateStatus(rec, r, &req)
	default:
		// The schema enum already rejects unknown actions; this is a guard
		// against schema drift.
		h.writeError(rec, apperrors.NewInvalidEnvelopeError("unsupported action: "+req.Action))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *Handler) handleValidate(w http.ResponseWriter, req *actionRequest) {
	if req.ApplicationData == nil {
		h.writeError(w, apperrors.NewInvalidEnvelopeError("applicationData is required for action validate"))
		return
	}
	result := h.processor.Evaluate(req.ApplicationData)
	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: result})
}

func (h *Handler) handleEligibility(w http.ResponseWriter, req *actionRequest) {
	if req.ApplicationData == nil {
		h.writeError(w, apperrors.NewInvalidEnvelopeError("applicationData is required for action calculate-eligibility"))
		return
	}
	app := req.ApplicationData
	result := eligibility.Calculate(app.YearsInBusiness, app.LoanType, app.AmountRequested)
	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: result})
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request, req *actionRequest) {
	identity, err := h.authenticate(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if req.ApplicationData == nil {
		h.writeError(w, apperrors.NewInvalidEnvelopeError("applicationData is required for action process"))
		return
	}

	app, err := h.processor.Submit(r.Context(), identity.UserID, req.ApplicationData)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: app})
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request, req *actionRequest) {
	if _, err := h.authenticate(r); err != nil {
		h.writeError(w, err)
		return
	}
	if req.ApplicationID == "" || req.Status == "" {
		h.writeError(w, apperrors.NewInvalidEnvelopeError("applicationId and status are required for action updateStatus"))
		return
	}

	app, err := h.status.Transition(r.Context(), req.ApplicationID, models.Status(req.Status), req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: app})
}

// HandleGet serves GET /api/loan-applications/{id} for admins.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticate(r); err != nil {
		h.writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	app, err := h.reader.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, repository.AsStandardError(err, id))
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: app})
}

// HandleList serves GET /api/loan-applications?status=...&limit=... for admins.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticate(r); err != nil {
		h.writeError(w, err)
		return
	}

	status := models.Status(r.URL.Query().Get("status"))
	if !models.KnownStatus(status) {
		h.writeError(w, apperrors.NewUnknownStatusError(string(status)))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			h.writeError(w, apperrors.NewInvalidEnvelopeError("limit must be an integer between 1 and 500"))
			return
		}
		limit = parsed
	}

	apps, err := h.reader.ListByStatus(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, repository.AsStandardError(err, ""))
		return
	}
	if apps == nil {
		apps = []*models.LoanApplication{}
	}
	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: apps})
}

func (h *Handler) authenticate(r *http.Request) (*auth.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, apperrors.NewAuthenticationRequiredError("missing Authorization header")
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return nil, apperrors.NewAuthenticationRequiredError("Authorization header must carry a bearer token")
	}
	return h.resolver.ResolveIdentity(r.Context(), token)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	resp := apiResponse{
		Success: false,
		Message: apperrors.PublicMessage(err),
		Errors:  apperrors.ValidationErrors(err),
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed", nil)
	} else {
		h.logger.WithError(err).Debug("request rejected", nil)
	}

	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Warn("failed to encode response", nil)
	}
}
