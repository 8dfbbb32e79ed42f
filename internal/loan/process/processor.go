// internal/loan/process/processor.go
package process

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "loan-portal/internal/common/errors"
	"loan-portal/internal/common/logger"
	"loan-portal/internal/common/metrics"
	"loan-portal/internal/loan/repository"
	"loan-portal/internal/loan/score"
	"loan-portal/internal/loan/validate"
	"loan-portal/internal/models"
)

// ReviewThreshold routes high-risk submissions into manual review.
const ReviewThreshold = 70

// maxNumberRetries bounds application-number regeneration after a unique
// constraint collision.
const maxNumberRetries = 3

// Repository is the persistence surface the processor needs.
type Repository interface {
	Insert(ctx context.Context, app *models.LoanApplication) error
	SetCRMLeadID(ctx context.Context, id, leadID string) error
	InsertAuditEvent(ctx context.Context, eventType, resourceID string, details map[string]interface{}, createdAt string)
}

// CRMSyncer upserts the sales-CRM lead for an application and returns the
// lead's record id.
type CRMSyncer interface {
	SyncApplication(ctx context.Context, app *models.LoanApplication) (string, error)
}

// Notifier informs the applicant and the ops team about a submission.
type Notifier interface {
	ApplicationSubmitted(ctx context.Context, app *models.LoanApplication) error
}

// Indexer makes the application findable in the admin search.
type Indexer interface {
	IndexApplication(ctx context.Context, app *models.LoanApplication) error
}

// Processor owns the submission pipeline: validation, risk assessment, status
// selection, record creation, and best-effort downstream propagation. CRM,
// notification, and search failures are logged and never block submission.
type Processor struct {
	repo     Repository
	crm      CRMSyncer
	notifier Notifier
	indexer  Indexer
	logger   logger.Logger

	now      func() time.Time
	rnd      *rand.Rand
	rndMu    sync.Mutex
	dispatch func(fn func())
}

func New(repo Repository, crm CRMSyncer, notifier Notifier, indexer Indexer, log logger.Logger) *Processor {
	return &Processor{
		repo:     repo,
		crm:      crm,
		notifier: notifier,
		indexer:  indexer,
		logger:   log.WithFields(map[string]interface{}{"component": "application-processor"}),
		now:      time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		dispatch: func(fn func()) { go fn() },
	}
}

// Evaluate runs validation and risk assessment without persisting anything.
// Backs the "validate" action.
func (p *Processor) Evaluate(app *models.LoanApplication) models.ValidationResult {
	valid, errs := validate.Check(app)
	assessment := score.Assess(app.YearsInBusiness, app.AmountRequested, app.LoanType, valid)

	return models.ValidationResult{
		IsValid:              valid,
		Errors:               errs,
		RiskScore:            assessment.Score,
		AutoApprovalEligible: assessment.AutoApprovalEligible,
	}
}

// Submit validates, assigns identity and application number, selects the
// initial workflow status, and persists the record. On success the downstream
// sync (CRM, notifications, search index) runs asynchronously.
func (p *Processor) Submit(ctx context.Context, userID string, app *models.LoanApplication) (*models.LoanApplication, error) {
	result := p.Evaluate(app)
	if !result.IsValid {
		metrics.ApplicationsValidationFailed.Inc()
		return nil, apperrors.NewValidationFailedError(result.Errors)
	}

	now := p.now().UTC()
	timestamp := now.Format(time.RFC3339)

	app.ID = uuid.New().String()
	app.UserID = userID
	app.Status = initialStatus(result)
	app.SubmittedAt = timestamp
	app.UpdatedAt = timestamp
	if app.StartedAt == "" {
		app.StartedAt = timestamp
	}

	if app.LoanDetails == nil {
		app.LoanDetails = make(map[string]interface{})
	}
	app.LoanDetails["risk_score"] = result.RiskScore
	app.LoanDetails["auto_approval_eligible"] = result.AutoApprovalEligible

	number := ApplicationNumber(now)
	for attempt := 0; ; attempt++ {
		app.ApplicationNumber = number
		err := p.repo.Insert(ctx, app)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateApplicationNumber) || attempt >= maxNumberRetries {
			return nil, repository.AsStandardError(err, app.ApplicationNumber)
		}
		p.logger.Warn("application number collision, retrying with suffix", map[string]interface{}{
			"applicationNumber": number,
			"attempt":           attempt + 1,
		})
		p.rndMu.Lock()
		number = WithCollisionSuffix(ApplicationNumber(now), p.rnd)
		p.rndMu.Unlock()
	}

	metrics.ApplicationsSubmitted.WithLabelValues(string(app.Status)).Inc()

	p.repo.InsertAuditEvent(ctx, "application_submitted", app.ID, map[string]interface{}{
		"applicationNumber":    app.ApplicationNumber,
		"userId":               app.UserID,
		"status":               string(app.Status),
		"riskScore":            result.RiskScore,
		"autoApprovalEligible": result.AutoApprovalEligible,
	}, timestamp)

	p.logger.Info("application submitted", map[string]interface{}{
		"applicationId":     app.ID,
		"applicationNumber": app.ApplicationNumber,
		"status":            string(app.Status),
		"riskScore":         result.RiskScore,
	})

	submitted := *app
	p.dispatch(func() {
		p.afterSubmit(&submitted)
	})

	return app, nil
}

// initialStatus picks the first workflow state from the assessment:
// auto-approval candidates skip straight to review, high-risk submissions are
// flagged for manual triage, everything else lands in the plain queue.
func initialStatus(result models.ValidationResult) models.Status {
	if result.AutoApprovalEligible {
		return models.StatusUnderReview
	}
	if result.RiskScore > ReviewThreshold {
		return models.StatusRequiresReview
	}
	return models.StatusSubmitted
}

// afterSubmit propagates the new application to CRM, notifications, and the
// search index. Each target is independent; a failure is counted and logged
// but never surfaced to the applicant.
func (p *Processor) afterSubmit(app *models.LoanApplication) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if p.crm != nil {
		leadID, err := p.crm.SyncApplication(ctx, app)
		if err != nil {
			metrics.DownstreamSyncFailures.WithLabelValues("crm").Inc()
			p.logger.WithError(err).Warn("crm sync failed", map[string]interface{}{
				"applicationId": app.ID,
			})
		} else if leadID != "" {
			// Recording the lead id makes the next sync an update instead of
			// a duplicate lead.
			if err := p.repo.SetCRMLeadID(ctx, app.ID, leadID); err != nil {
				p.logger.WithError(err).Warn("crm lead id not recorded", map[string]interface{}{
					"applicationId": app.ID,
					"leadId":        leadID,
				})
			}
		}
	}

	if p.notifier != nil {
		if err := p.notifier.ApplicationSubmitted(ctx, app); err != nil {
			metrics.DownstreamSyncFailures.WithLabelValues("notification").Inc()
			p.logger.WithError(err).Warn("submission notification failed", map[string]interface{}{
				"applicationId": app.ID,
			})
		}
	}

	if p.indexer != nil {
		if err := p.indexer.IndexApplication(ctx, app); err != nil {
			metrics.DownstreamSyncFailures.WithLabelValues("search").Inc()
			p.logger.WithError(err).Warn("search indexing failed", map[string]interface{}{
				"applicationId": app.ID,
			})
		}
	}
}
