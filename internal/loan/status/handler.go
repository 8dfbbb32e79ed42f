// internal/loan/status/handler.go
package status

import (
	"context"
	"time"

	"loan-portal/internal/common/crm"
	apperrors "loan-portal/internal/common/errors"
	"loan-portal/internal/common/logger"
	"loan-portal/internal/common/metrics"
	"loan-portal/internal/loan/repository"
	"loan-portal/internal/models"
)

// Repository is the persistence surface the transition handler needs.
type Repository interface {
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, details map[string]interface{}, updatedAt string) (*models.LoanApplication, error)
	SetCRMLeadID(ctx context.Context, id, leadID string) error
	InsertAuditEvent(ctx context.Context, eventType, resourceID string, details map[string]interface{}, createdAt string)
}

// Indexer keeps the admin search in sync with status changes.
type Indexer interface {
	IndexApplication(ctx context.Context, app *models.LoanApplication) error
}

// CRMSyncer upserts the sales-CRM lead for an application and returns the
// lead's record id.
type CRMSyncer interface {
	SyncApplication(ctx context.Context, app *models.LoanApplication) (string, error)
}

// Handler applies admin status transitions, enforcing the workflow edge set.
type Handler struct {
	repo    Repository
	indexer Indexer
	crm     CRMSyncer
	logger  logger.Logger
	now     func() time.Time
}

func NewHandler(repo Repository, indexer Indexer, crmSyncer CRMSyncer, log logger.Logger) *Handler {
	return &Handler{
		repo:    repo,
		indexer: indexer,
		crm:     crmSyncer,
		logger:  log.WithFields(map[string]interface{}{"component": "status-transition-handler"}),
		now:     time.Now,
	}
}

// Transition moves the application to the requested status. An unknown target
// status or an edge outside the workflow is rejected before any write. An
// optional note is stored under loan details; notes are last-write-wins.
func (h *Handler) Transition(ctx context.Context, id string, to models.Status, note string) (*models.LoanApplication, error) {
	if !models.KnownStatus(to) {
		return nil, apperrors.NewUnknownStatusError(string(to))
	}

	app, err := h.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.AsStandardError(err, id)
	}

	if !CanTransition(app.Status, to) {
		return nil, apperrors.NewIllegalStatusTransitionError(string(app.Status), string(to))
	}

	details := app.LoanDetails
	if details == nil {
		details = make(map[string]interface{})
	}
	if note != "" {
		details["status_notes"] = note
	}

	timestamp := h.now().UTC().Format(time.RFC3339)
	from := app.Status

	updated, err := h.repo.UpdateStatus(ctx, id, to, details, timestamp)
	if err != nil {
		return nil, repository.AsStandardError(err, id)
	}

	metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()

	h.repo.InsertAuditEvent(ctx, "status_changed", id, map[string]interface{}{
		"from": string(from),
		"to":   string(to),
		"note": note,
	}, timestamp)

	h.logger.Info("status transition applied", map[string]interface{}{
		"applicationId": id,
		"from":          string(from),
		"to":            string(to),
	})

	if h.indexer != nil {
		if err := h.indexer.IndexApplication(ctx, updated); err != nil {
			metrics.DownstreamSyncFailures.WithLabelValues("search").Inc()
			h.logger.WithError(err).Warn("search reindex after transition failed", map[string]interface{}{
				"applicationId": id,
			})
		}
	}

	if h.crm != nil {
		leadID, err := h.crm.SyncApplication(ctx, updated)
		switch {
		case err != nil:
			metrics.DownstreamSyncFailures.WithLabelValues("crm").Inc()
			h.logger.WithError(err).Warn("crm sync after transition failed", map[string]interface{}{
				"applicationId": id,
			})
		case leadID != "" && leadID != crm.LeadID(updated):
			// The lead was created on this sync; record its id so the next
			// one updates instead of duplicating.
			if err := h.repo.SetCRMLeadID(ctx, id, leadID); err != nil {
				h.logger.WithError(err).Warn("crm lead id not recorded", map[string]interface{}{
					"applicationId": id,
					"leadId":        leadID,
				})
			}
		}
	}

	return updated, nil
}
