// internal/loan/repository/repository.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	apperrors "loan-portal/internal/common/errors"
	"loan-portal/internal/common/logger"
	"loan-portal/internal/models"
)

var (
	ErrNotFound                   = errors.New("APPLICATION_NOT_FOUND")
	ErrDuplicateApplicationNumber = errors.New("DUPLICATE_APPLICATION_NUMBER")
)

// uniqueViolation is the postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// ApplicationRepository provides persistence for loan applications. Writes
// are single statements; there is no optimistic-concurrency check on the
// status-update path (last write wins, acceptable for the human-paced admin
// workflow).
type ApplicationRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "application-repository"}),
	}
}

const applicationColumns = `id, application_number, user_id, first_name, last_name, phone,
		business_name, business_street, business_city, business_state, business_zip,
		years_in_business, loan_type, amount_requested, loan_details, status,
		started_at, submitted_at, updated_at`

// Insert persists a submitted application as a single atomic insert.
func (r *ApplicationRepository) Insert(ctx context.Context, app *models.LoanApplication) error {
	detailsJSON, err := json.Marshal(app.LoanDetails)
	if err != nil {
		return fmt.Errorf("marshal loan details: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO loan_applications (
			id, application_number, user_id, first_name, last_name, phone,
			business_name, business_street, business_city, business_state, business_zip,
			years_in_business, loan_type, amount_requested, loan_details, status,
			started_at, submitted_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		app.ID,
		app.ApplicationNumber,
		app.UserID,
		app.FirstName,
		app.LastName,
		app.Phone,
		app.BusinessName,
		app.BusinessStreet,
		app.BusinessCity,
		app.BusinessState,
		app.BusinessZip,
		app.YearsInBusiness,
		string(app.LoanType),
		app.AmountRequested,
		detailsJSON,
		string(app.Status),
		app.StartedAt,
		app.SubmittedAt,
		app.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateApplicationNumber, app.ApplicationNumber)
		}
		return fmt.Errorf("insert application: %w", err)
	}

	return nil
}

// Get fetches a single application by id.
func (r *ApplicationRepository) Get(ctx context.Context, id string) (*models.LoanApplication, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM loan_applications
		WHERE id = $1`, id)

	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

// UpdateStatus overwrites status, loan_details, and updated_at in a single
// statement and returns the updated record.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status models.Status, details map[string]interface{}, updatedAt string) (*models.LoanApplication, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal loan details: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE loan_applications
		SET status = $2, loan_details = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+applicationColumns,
		id, string(status), detailsJSON, updatedAt)

	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	return app, nil
}

// SetCRMLeadID records the CRM record id under loan_details so a later sync
// updates the existing lead instead of creating a duplicate.
func (r *ApplicationRepository) SetCRMLeadID(ctx context.Context, id, leadID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE loan_applications
		SET loan_details = jsonb_set(loan_details, '{crm_lead_id}', to_jsonb($2::text))
		WHERE id = $1`, id, leadID)
	if err != nil {
		return fmt.Errorf("set crm lead id: %w", err)
	}
	return nil
}

// ListByStatus returns applications in a given workflow state, newest first.
// Backs the admin review feed.
func (r *ApplicationRepository) ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.LoanApplication, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM loan_applications
		WHERE status = $1
		ORDER BY submitted_at DESC
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.LoanApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// InsertAuditEvent records an audit log row. Non-critical: failures are
// logged and never propagated.
func (r *ApplicationRepository) InsertAuditEvent(ctx context.Context, eventType, resourceID string, details map[string]interface{}, createdAt string) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		r.logger.Warn("failed to marshal audit log details", map[string]interface{}{
			"error": err,
		})
		detailsJSON = []byte("{}")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		eventType,
		"loan_application",
		resourceID,
		detailsJSON,
		createdAt,
	)
	if err != nil {
		r.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":         err,
			"applicationId": resourceID,
		})
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.LoanApplication, error) {
	var app models.LoanApplication
	var appNumber sql.NullString
	var detailsJSON []byte
	var loanType, status string

	err := row.Scan(
		&app.ID,
		&appNumber,
		&app.UserID,
		&app.FirstName,
		&app.LastName,
		&app.Phone,
		&app.BusinessName,
		&app.BusinessStreet,
		&app.BusinessCity,
		&app.BusinessState,
		&app.BusinessZip,
		&app.YearsInBusiness,
		&loanType,
		&app.AmountRequested,
		&detailsJSON,
		&status,
		&app.StartedAt,
		&app.SubmittedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.ApplicationNumber = appNumber.String
	app.LoanType = models.LoanType(loanType)
	app.Status = models.Status(status)

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &app.LoanDetails); err != nil {
			return nil, fmt.Errorf("unmarshal loan details: %w", err)
		}
	}

	return &app, nil
}

// AsStandardError translates repository sentinels into the shared error
// taxonomy for transports.
func AsStandardError(err error, id string) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperrors.NewApplicationNotFoundError(id)
	case errors.Is(err, ErrDuplicateApplicationNumber):
		return apperrors.NewDuplicateApplicationNumberError(id)
	default:
		return apperrors.NewPersistenceFailedError(err)
	}
}
