// internal/common/crm/syncer.go
package crm

import (
	"context"
	"fmt"

	"loan-portal/internal/models"
)

// LeadIDDetailKey is where the CRM record id lives in loan_details. Its
// presence turns a sync into an update of the existing lead.
const LeadIDDetailKey = "crm_lead_id"

// LeadAPI is the slice of the CRM client the syncer needs.
type LeadAPI interface {
	CreateLead(ctx context.Context, lead *Lead) (string, error)
	UpdateLead(ctx context.Context, leadID string, lead *Lead) error
}

// Syncer maps loan applications onto CRM leads.
type Syncer struct {
	api LeadAPI
}

func NewSyncer(api LeadAPI) *Syncer {
	return &Syncer{api: api}
}

// SyncApplication upserts the CRM lead for an application and returns the
// lead's record id. An application that already carries a lead id gets its
// lead updated in place; anything else creates one. The caller is expected to
// persist the returned id so the next sync takes the update path.
func (s *Syncer) SyncApplication(ctx context.Context, app *models.LoanApplication) (string, error) {
	lead := &Lead{
		FirstName:   app.FirstName,
		LastName:    app.LastName,
		Phone:       app.Phone,
		Company:     app.BusinessName,
		LoanAmount:  app.AmountRequested,
		Description: fmt.Sprintf("Loan application %s (%s)", app.ApplicationNumber, string(app.LoanType)),
	}

	if id := LeadID(app); id != "" {
		lead.Description = fmt.Sprintf("Loan application %s (%s), status %s",
			app.ApplicationNumber, string(app.LoanType), string(app.Status))
		if err := s.api.UpdateLead(ctx, id, lead); err != nil {
			return "", fmt.Errorf("update lead %s for application %s: %w", id, app.ID, err)
		}
		return id, nil
	}

	id, err := s.api.CreateLead(ctx, lead)
	if err != nil {
		return "", fmt.Errorf("create lead for application %s: %w", app.ID, err)
	}
	return id, nil
}

// LeadID extracts the stored CRM record id, empty when the application has
// never synced.
func LeadID(app *models.LoanApplication) string {
	if app.LoanDetails == nil {
		return ""
	}
	id, _ := app.LoanDetails[LeadIDDetailKey].(string)
	return id
}
