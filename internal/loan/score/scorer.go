// Package score computes the heuristic risk score for a loan application.
// Pure, no I/O; safe for concurrent use.
package score

import "loan-portal/internal/models"

const (
	baseScore             = 50
	AutoApprovalThreshold = 30
)

// Result holds the computed risk score and auto-approval eligibility flag.
type Result struct {
	Score                int  `json:"riskScore"`
	AutoApprovalEligible bool `json:"autoApprovalEligible"`
}

// Assess computes the risk score as order-independent additive adjustments to
// a base of 50, clamped to [0,100]. Lower means lower risk. Auto-approval
// requires the score below 30 and a structurally valid application.
func Assess(yearsInBusiness, amountRequested float64, loanType models.LoanType, structurallyValid bool) Result {
	s := baseScore

	switch {
	case yearsInBusiness >= 5:
		s -= 15
	case yearsInBusiness >= 2:
		s -= 8
	case yearsInBusiness < 1:
		s += 20
	}

	// Amount bands are independent of each other and of the age adjustment.
	if amountRequested > 5_000_000 {
		s += 15
	}
	if amountRequested < 100_000 {
		s -= 5
	}

	switch loanType {
	case models.LoanTypeRefinance:
		s -= 10
	case models.LoanTypeBridgeLoan:
		s += 10
	case models.LoanTypeWorkingCapital:
		s += 5
	}

	s = clamp(s, 0, 100)

	return Result{
		Score:                s,
		AutoApprovalEligible: s < AutoApprovalThreshold && structurallyValid,
	}
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
