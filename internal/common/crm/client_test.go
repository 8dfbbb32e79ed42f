// internal/common/crm/client_test.go
package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-portal/internal/models"
)

type leadRequest struct {
	method  string
	path    string
	payload map[string]interface{}
}

func leadServer(t *testing.T, status int, body string, capture *leadRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Zoho-oauthtoken test-oauth", r.Header.Get("Authorization"))
		if capture != nil {
			capture.method = r.Method
			capture.path = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&capture.payload))
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func capturedLead(t *testing.T, captured *leadRequest) map[string]interface{} {
	t.Helper()
	data, ok := captured.payload["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 1)
	return data[0].(map[string]interface{})
}

func TestCreateLead_Success(t *testing.T) {
	var captured leadRequest
	srv := leadServer(t, http.StatusCreated,
		`{"data":[{"code":"SUCCESS","details":{"id":"lead-42"},"message":"record added","status":"success"}]}`,
		&captured)

	client := NewClient("test-oauth", "Loan Portal")
	client.SetBaseURL(srv.URL)

	id, err := client.CreateLead(context.Background(), &Lead{
		FirstName: "Maria",
		LastName:  "Santos",
		Company:   "Santos Bakery LLC",
	})

	require.NoError(t, err)
	assert.Equal(t, "lead-42", id)

	lead := capturedLead(t, &captured)
	assert.Equal(t, "Maria", lead["First_Name"])
	assert.Equal(t, "Loan Portal", lead["Lead_Source"])
}

func TestCreateLead_APIError(t *testing.T) {
	srv := leadServer(t, http.StatusBadRequest, `{"data":[]}`, nil)
	client := NewClient("test-oauth", "Loan Portal")
	client.SetBaseURL(srv.URL)

	_, err := client.CreateLead(context.Background(), &Lead{FirstName: "Maria"})

	assert.Error(t, err)
}

func TestCreateLead_RecordRejected(t *testing.T) {
	srv := leadServer(t, http.StatusOK,
		`{"data":[{"code":"MANDATORY_NOT_FOUND","message":"Company required","status":"error"}]}`, nil)
	client := NewClient("test-oauth", "Loan Portal")
	client.SetBaseURL(srv.URL)

	_, err := client.CreateLead(context.Background(), &Lead{FirstName: "Maria"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Company required")
}

func TestUpdateLead_Success(t *testing.T) {
	var captured leadRequest
	srv := leadServer(t, http.StatusOK,
		`{"data":[{"code":"SUCCESS","details":{"id":"lead-42"},"status":"success"}]}`, &captured)
	client := NewClient("test-oauth", "Loan Portal")
	client.SetBaseURL(srv.URL)

	err := client.UpdateLead(context.Background(), "lead-42", &Lead{
		FirstName:   "Maria",
		Description: "status under_review",
	})

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, captured.method)
	assert.Equal(t, "/Leads/lead-42", captured.path)

	lead := capturedLead(t, &captured)
	assert.Equal(t, "status under_review", lead["Description"])
}

func TestUpdateLead_APIError(t *testing.T) {
	srv := leadServer(t, http.StatusForbidden, `{"code":"INVALID_TOKEN"}`, nil)
	client := NewClient("test-oauth", "Loan Portal")
	client.SetBaseURL(srv.URL)

	err := client.UpdateLead(context.Background(), "lead-42", &Lead{FirstName: "Maria"})

	assert.Error(t, err)
}

func TestSyncer_CreatesLeadForNewApplication(t *testing.T) {
	var captured leadRequest
	srv := leadServer(t, http.StatusCreated,
		`{"data":[{"details":{"id":"lead-42"},"status":"success"}]}`, &captured)
	client := NewClient("test-oauth", "Loan Portal")
	client.SetBaseURL(srv.URL)
	syncer := NewSyncer(client)

	id, err := syncer.SyncApplication(context.Background(), &models.LoanApplication{
		ID:                "app-1",
		ApplicationNumber: "HBF-2026-074-52245",
		FirstName:         "Maria",
		LastName:          "Santos",
		Phone:             "4155550123",
		BusinessName:      "Santos Bakery LLC",
		LoanType:          models.LoanTypeRefinance,
		AmountRequested:   50_000,
	})

	require.NoError(t, err)
	assert.Equal(t, "lead-42", id)
	assert.Equal(t, http.MethodPost, captured.method)

	lead := capturedLead(t, &captured)
	assert.Equal(t, "Santos Bakery LLC", lead["Company"])
	assert.Equal(t, 50_000.0, lead["Loan_Amount"])
	assert.Contains(t, lead["Description"], "HBF-2026-074-52245")
}

func TestSyncer_UpdatesLeadWhenIDIsKnown(t *testing.T) {
	var captured leadRequest
	srv := leadServer(t, http.StatusOK,
		`{"data":[{"details":{"id":"lead-42"},"status":"success"}]}`, &captured)
	client := NewClient("test-oauth", "Loan Portal")
	client.SetBaseURL(srv.URL)
	syncer := NewSyncer(client)

	id, err := syncer.SyncApplication(context.Background(), &models.LoanApplication{
		ID:                "app-1",
		ApplicationNumber: "HBF-2026-074-52245",
		FirstName:         "Maria",
		LastName:          "Santos",
		BusinessName:      "Santos Bakery LLC",
		LoanType:          models.LoanTypeRefinance,
		Status:            models.StatusApproved,
		LoanDetails:       map[string]interface{}{LeadIDDetailKey: "lead-42"},
	})

	require.NoError(t, err)
	assert.Equal(t, "lead-42", id)
	assert.Equal(t, http.MethodPut, captured.method)
	assert.Equal(t, "/Leads/lead-42", captured.path)

	lead := capturedLead(t, &captured)
	assert.Contains(t, lead["Description"], "status approved")
}

func TestLeadID(t *testing.T) {
	assert.Empty(t, LeadID(&models.LoanApplication{}))
	assert.Empty(t, LeadID(&models.LoanApplication{
		LoanDetails: map[string]interface{}{LeadIDDetailKey: 42},
	}))
	assert.Equal(t, "lead-42", LeadID(&models.LoanApplication{
		LoanDetails: map[string]interface{}{LeadIDDetailKey: "lead-42"},
	}))
}
