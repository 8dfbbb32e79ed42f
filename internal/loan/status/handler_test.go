// internal/loan/status/handler_test.go
package status

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "loan-portal/internal/common/errors"
	"loan-portal/internal/common/logger"
	"loan-portal/internal/loan/repository"
	"loan-portal/internal/models"
)

type fakeRepo struct {
	apps        map[string]*models.LoanApplication
	updateErr   error
	auditEvents []map[string]interface{}
	leadIDs     map[string]string
}

func newFakeRepo(apps ...*models.LoanApplication) *fakeRepo {
	repo := &fakeRepo{apps: make(map[string]*models.LoanApplication)}
	for _, app := range apps {
		repo.apps[app.ID] = app
	}
	return repo
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*models.LoanApplication, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	clone := *app
	return &clone, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id string, status models.Status, details map[string]interface{}, updatedAt string) (*models.LoanApplication, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	app, ok := f.apps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	app.Status = status
	app.LoanDetails = details
	app.UpdatedAt = updatedAt
	clone := *app
	return &clone, nil
}

func (f *fakeRepo) SetCRMLeadID(ctx context.Context, id, leadID string) error {
	if f.leadIDs == nil {
		f.leadIDs = make(map[string]string)
	}
	f.leadIDs[id] = leadID
	return nil
}

func (f *fakeRepo) InsertAuditEvent(ctx context.Context, eventType, resourceID string, details map[string]interface{}, createdAt string) {
	f.auditEvents = append(f.auditEvents, details)
}

type recordingSyncer struct {
	synced []*models.LoanApplication
	leadID string
	err    error
}

func (r *recordingSyncer) SyncApplication(ctx context.Context, app *models.LoanApplication) (string, error) {
	r.synced = append(r.synced, app)
	if r.err != nil {
		return "", r.err
	}
	return r.leadID, nil
}

type recordingIndexer struct {
	indexed []*models.LoanApplication
	err     error
}

func (r *recordingIndexer) IndexApplication(ctx context.Context, app *models.LoanApplication) error {
	r.indexed = append(r.indexed, app)
	return r.err
}

func storedApplication(status models.Status) *models.LoanApplication {
	return &models.LoanApplication{
		ID:                "app-1",
		ApplicationNumber: "HBF-2026-074-52245",
		UserID:            "user-1",
		Status:            status,
		LoanDetails:       map[string]interface{}{"risk_score": 20},
	}
}

func newTestHandler(t *testing.T, repo Repository, indexer Indexer) *Handler {
	return newTestHandlerWithCRM(t, repo, indexer, nil)
}

func newTestHandlerWithCRM(t *testing.T, repo Repository, indexer Indexer, syncer CRMSyncer) *Handler {
	h := NewHandler(repo, indexer, syncer, logger.NewTestLogger(t))
	h.now = func() time.Time {
		return time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)
	}
	return h
}

func TestTransition_LegalEdge(t *testing.T) {
	repo := newFakeRepo(storedApplication(models.StatusUnderReview))
	indexer := &recordingIndexer{}
	h := newTestHandler(t, repo, indexer)

	updated, err := h.Transition(context.Background(), "app-1", models.StatusApproved, "looks solid")

	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)
	assert.Equal(t, "2026-03-16T09:00:00Z", updated.UpdatedAt)
	assert.Equal(t, "looks solid", updated.LoanDetails["status_notes"])
	assert.Equal(t, 20, updated.LoanDetails["risk_score"])

	require.Len(t, repo.auditEvents, 1)
	assert.Equal(t, "under_review", repo.auditEvents[0]["from"])
	assert.Equal(t, "approved", repo.auditEvents[0]["to"])

	assert.Len(t, indexer.indexed, 1)
}

func TestTransition_NotesAreLastWriteWins(t *testing.T) {
	repo := newFakeRepo(storedApplication(models.StatusUnderReview))
	h := newTestHandler(t, repo, nil)

	_, err := h.Transition(context.Background(), "app-1", models.StatusApproved, "first note")
	require.NoError(t, err)

	updated, err := h.Transition(context.Background(), "app-1", models.StatusFunded, "second note")
	require.NoError(t, err)

	assert.Equal(t, "second note", updated.LoanDetails["status_notes"])
}

func TestTransition_EmptyNotePreservesExisting(t *testing.T) {
	app := storedApplication(models.StatusUnderReview)
	app.LoanDetails["status_notes"] = "prior note"
	repo := newFakeRepo(app)
	h := newTestHandler(t, repo, nil)

	updated, err := h.Transition(context.Background(), "app-1", models.StatusApproved, "")

	require.NoError(t, err)
	assert.Equal(t, "prior note", updated.LoanDetails["status_notes"])
}

func TestTransition_IllegalEdgeRejected(t *testing.T) {
	repo := newFakeRepo(storedApplication(models.StatusDraft))
	h := newTestHandler(t, repo, nil)

	_, err := h.Transition(context.Background(), "app-1", models.StatusFunded, "")

	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeIllegalStatusTransition, stdErr.Code)
	assert.Equal(t, models.StatusDraft, repo.apps["app-1"].Status)
	assert.Empty(t, repo.auditEvents)
}

func TestTransition_TerminalStatesAcceptNothing(t *testing.T) {
	for _, terminal := range []models.Status{models.StatusFunded, models.StatusRejected} {
		repo := newFakeRepo(storedApplication(terminal))
		h := newTestHandler(t, repo, nil)

		_, err := h.Transition(context.Background(), "app-1", models.StatusUnderReview, "")

		require.Error(t, err, "transition out of %s should fail", terminal)
		stdErr, ok := err.(*apperrors.StandardError)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeIllegalStatusTransition, stdErr.Code)
	}
}

func TestTransition_UnknownStatusRejectedBeforeLookup(t *testing.T) {
	repo := newFakeRepo()
	h := newTestHandler(t, repo, nil)

	_, err := h.Transition(context.Background(), "app-1", models.Status("archived"), "")

	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUnknownStatus, stdErr.Code)
}

func TestTransition_MissingApplication(t *testing.T) {
	repo := newFakeRepo()
	h := newTestHandler(t, repo, nil)

	_, err := h.Transition(context.Background(), "missing", models.StatusUnderReview, "")

	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeApplicationNotFound, stdErr.Code)
}

func TestTransition_UpdatesCRMLead(t *testing.T) {
	app := storedApplication(models.StatusUnderReview)
	app.LoanDetails["crm_lead_id"] = "lead-42"
	repo := newFakeRepo(app)
	syncer := &recordingSyncer{leadID: "lead-42"}
	h := newTestHandlerWithCRM(t, repo, nil, syncer)

	_, err := h.Transition(context.Background(), "app-1", models.StatusApproved, "")

	require.NoError(t, err)
	require.Len(t, syncer.synced, 1)
	assert.Equal(t, models.StatusApproved, syncer.synced[0].Status)
	// The lead id was already known, so nothing is re-recorded.
	assert.Empty(t, repo.leadIDs)
}

func TestTransition_RecordsLeadIDWhenFirstSyncHappensHere(t *testing.T) {
	repo := newFakeRepo(storedApplication(models.StatusUnderReview))
	syncer := &recordingSyncer{leadID: "lead-42"}
	h := newTestHandlerWithCRM(t, repo, nil, syncer)

	_, err := h.Transition(context.Background(), "app-1", models.StatusApproved, "")

	require.NoError(t, err)
	assert.Equal(t, "lead-42", repo.leadIDs["app-1"])
}

func TestTransition_CRMFailureDoesNotFailTransition(t *testing.T) {
	repo := newFakeRepo(storedApplication(models.StatusUnderReview))
	syncer := &recordingSyncer{err: fmt.Errorf("crm down")}
	h := newTestHandlerWithCRM(t, repo, nil, syncer)

	updated, err := h.Transition(context.Background(), "app-1", models.StatusApproved, "")

	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)
	assert.Empty(t, repo.leadIDs)
}

func TestTransition_IndexFailureDoesNotFailTransition(t *testing.T) {
	repo := newFakeRepo(storedApplication(models.StatusUnderReview))
	indexer := &recordingIndexer{err: fmt.Errorf("es down")}
	h := newTestHandler(t, repo, indexer)

	updated, err := h.Transition(context.Background(), "app-1", models.StatusApproved, "")

	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)
}
