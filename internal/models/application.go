// internal/models/application.go
package models

// LoanType enumerates the supported loan products.
type LoanType string

const (
	LoanTypeRefinance      LoanType = "refinance"
	LoanTypeBridgeLoan     LoanType = "bridge_loan"
	LoanTypeWorkingCapital LoanType = "working_capital"
	LoanTypeOther          LoanType = "other"
)

// Status enumerates the application workflow states.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusSubmitted      Status = "submitted"
	StatusRequiresReview Status = "requires_review"
	StatusUnderReview    Status = "under_review"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusFunded         Status = "funded"
)

// KnownStatus reports whether s is one of the workflow states.
func KnownStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusRequiresReview, StatusUnderReview,
		StatusApproved, StatusRejected, StatusFunded:
		return true
	}
	return false
}

// LoanApplication is the persisted application entity. ApplicationNumber is
// empty for drafts and assigned exactly once at first successful submission.
type LoanApplication struct {
	ID                string                 `json:"id"`
	ApplicationNumber string                 `json:"applicationNumber,omitempty"`
	UserID            string                 `json:"userId"`
	FirstName         string                 `json:"firstName"`
	LastName          string                 `json:"lastName"`
	Phone             string                 `json:"phone"`
	BusinessName      string                 `json:"businessName"`
	BusinessStreet    string                 `json:"businessStreet,omitempty"`
	BusinessCity      string                 `json:"businessCity,omitempty"`
	BusinessState     string                 `json:"businessState,omitempty"`
	BusinessZip       string                 `json:"businessZip,omitempty"`
	YearsInBusiness   float64                `json:"yearsInBusiness"`
	LoanType          LoanType               `json:"loanType"`
	AmountRequested   float64                `json:"amountRequested"`
	LoanDetails       map[string]interface{} `json:"loanDetails,omitempty"`
	Status            Status                 `json:"status"`
	StartedAt         string                 `json:"startedAt,omitempty"`   // ISO 8601
	SubmittedAt       string                 `json:"submittedAt,omitempty"` // ISO 8601
	UpdatedAt         string                 `json:"updatedAt,omitempty"`   // ISO 8601
}

// ValidationResult is the combined output of the validator and risk scorer.
// Never persisted on its own; the risk score is folded into LoanDetails on
// successful submission.
type ValidationResult struct {
	IsValid              bool     `json:"isValid"`
	Errors               []string `json:"errors"`
	RiskScore            int      `json:"riskScore"`
	AutoApprovalEligible bool     `json:"autoApprovalEligible"`
}

// RateRange is an advisory interest rate band in percent.
type RateRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// EligibilityResult is the advisory output of the eligibility calculator.
type EligibilityResult struct {
	Eligible          bool      `json:"eligible"`
	MaxLoanAmount     float64   `json:"maxLoanAmount"`
	InterestRateRange RateRange `json:"interestRateRange"`
	TermOptions       []string  `json:"termOptions"`
	Requirements      []string  `json:"requirements"`
	Reasons           []string  `json:"reasons"`
}
