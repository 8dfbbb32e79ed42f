// internal/loan/repository/repository_test.go
package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-portal/internal/common/logger"
	"loan-portal/internal/models"
)

var scanColumns = []string{
	"id", "application_number", "user_id", "first_name", "last_name", "phone",
	"business_name", "business_street", "business_city", "business_state", "business_zip",
	"years_in_business", "loan_type", "amount_requested", "loan_details", "status",
	"started_at", "submitted_at", "updated_at",
}

func testApplication() *models.LoanApplication {
	return &models.LoanApplication{
		ID:                "app-1",
		ApplicationNumber: "HBF-2026-074-52245",
		UserID:            "user-1",
		FirstName:         "Maria",
		LastName:          "Santos",
		Phone:             "4155550123",
		BusinessName:      "Santos Bakery LLC",
		BusinessStreet:    "1 Market St",
		BusinessCity:      "San Francisco",
		BusinessState:     "CA",
		BusinessZip:       "94105",
		YearsInBusiness:   6,
		LoanType:          models.LoanTypeRefinance,
		AmountRequested:   50_000,
		LoanDetails:       map[string]interface{}{"risk_score": 20},
		Status:            models.StatusUnderReview,
		StartedAt:         "2026-03-15T14:00:00Z",
		SubmittedAt:       "2026-03-15T14:30:45Z",
		UpdatedAt:         "2026-03-15T14:31:02Z",
	}
}

func applicationRow(app *models.LoanApplication) *sqlmock.Rows {
	return sqlmock.NewRows(scanColumns).AddRow(
		app.ID, app.ApplicationNumber, app.UserID, app.FirstName, app.LastName, app.Phone,
		app.BusinessName, app.BusinessStreet, app.BusinessCity, app.BusinessState, app.BusinessZip,
		app.YearsInBusiness, string(app.LoanType), app.AmountRequested,
		[]byte(`{"risk_score":20}`), string(app.Status),
		app.StartedAt, app.SubmittedAt, app.UpdatedAt,
	)
}

func newTestRepo(t *testing.T) (*ApplicationRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, logger.NewTestLogger(t)), mock
}

func TestInsert_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	app := testApplication()

	// UpdatedAt differs from SubmittedAt above, pinning that each timestamp
	// is bound to its own column.
	mock.ExpectExec("INSERT INTO loan_applications").
		WithArgs(
			app.ID, app.ApplicationNumber, app.UserID, app.FirstName, app.LastName, app.Phone,
			app.BusinessName, app.BusinessStreet, app.BusinessCity, app.BusinessState, app.BusinessZip,
			app.YearsInBusiness, string(app.LoanType), app.AmountRequested,
			[]byte(`{"risk_score":20}`), string(app.Status),
			app.StartedAt, app.SubmittedAt, app.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), app)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DuplicateApplicationNumber(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO loan_applications").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Insert(context.Background(), testApplication())

	assert.ErrorIs(t, err, ErrDuplicateApplicationNumber)
}

func TestInsert_GenericFailure(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO loan_applications").
		WillReturnError(errors.New("connection refused"))

	err := repo.Insert(context.Background(), testApplication())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateApplicationNumber)
}

func TestGet_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	app := testApplication()

	mock.ExpectQuery("SELECT (.+) FROM loan_applications").
		WithArgs("app-1").
		WillReturnRows(applicationRow(app))

	got, err := repo.Get(context.Background(), "app-1")

	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)
	assert.Equal(t, app.ApplicationNumber, got.ApplicationNumber)
	assert.Equal(t, models.StatusUnderReview, got.Status)
	assert.Equal(t, models.LoanTypeRefinance, got.LoanType)
	assert.Equal(t, float64(20), got.LoanDetails["risk_score"])
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM loan_applications").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(scanColumns))

	_, err := repo.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	app := testApplication()
	app.Status = models.StatusApproved

	mock.ExpectQuery("UPDATE loan_applications").
		WithArgs("app-1", "approved", []byte(`{"risk_score":20}`), "2026-03-16T09:00:00Z").
		WillReturnRows(applicationRow(app))

	got, err := repo.UpdateStatus(context.Background(), "app-1", models.StatusApproved,
		map[string]interface{}{"risk_score": 20}, "2026-03-16T09:00:00Z")

	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("UPDATE loan_applications").
		WillReturnRows(sqlmock.NewRows(scanColumns))

	_, err := repo.UpdateStatus(context.Background(), "missing", models.StatusApproved, nil, "2026-03-16T09:00:00Z")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByStatus(t *testing.T) {
	repo, mock := newTestRepo(t)
	app := testApplication()

	mock.ExpectQuery("SELECT (.+) FROM loan_applications").
		WithArgs("under_review", 50).
		WillReturnRows(applicationRow(app))

	apps, err := repo.ListByStatus(context.Background(), models.StatusUnderReview, 50)

	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "app-1", apps[0].ID)
}

func TestSetCRMLeadID(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("UPDATE loan_applications").
		WithArgs("app-1", "lead-42").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetCRMLeadID(context.Background(), "app-1", "lead-42")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCRMLeadID_Failure(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("UPDATE loan_applications").
		WillReturnError(errors.New("connection refused"))

	err := repo.SetCRMLeadID(context.Background(), "app-1", "lead-42")

	assert.Error(t, err)
}

func TestInsertAuditEvent_FailureIsSwallowed(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnError(errors.New("audit table missing"))

	// Must not panic or surface the error.
	repo.InsertAuditEvent(context.Background(), "status_changed", "app-1",
		map[string]interface{}{"from": "under_review", "to": "approved"}, "2026-03-16T09:00:00Z")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAsStandardError(t *testing.T) {
	assert.Equal(t, "APPLICATION_NOT_FOUND",
		string(AsStandardError(ErrNotFound, "app-1").Code))
	assert.Equal(t, "DUPLICATE_APPLICATION_NUMBER",
		string(AsStandardError(ErrDuplicateApplicationNumber, "HBF-2026-074-52245").Code))
	assert.Equal(t, "PERSISTENCE_FAILED",
		string(AsStandardError(errors.New("boom"), "").Code))
}
