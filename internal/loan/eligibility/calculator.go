// Package eligibility computes the advisory maximum financeable amount, rate
// band, and term options for a prospective loan. Pure, no I/O; results are
// never persisted.
package eligibility

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"loan-portal/internal/models"
)

const (
	baseMaxAmount = 1_000_000
	amountCap     = 50_000_000
)

const ReqMinimumBusinessAge = "Minimum 1 year in business preferred"

// Standard document checklist, appended on every branch.
var standardRequirements = []string{
	"Business license",
	"2 years of financial statements",
	"Business and personal tax returns",
	"6 months of bank statements",
	"Business plan or project description",
}

var amountPrinter = message.NewPrinter(language.AmericanEnglish)

// Calculate derives the eligibility verdict from business age, loan type, and
// requested amount. The only source of ineligibility is a requested amount
// above the computed maximum.
func Calculate(yearsInBusiness float64, loanType models.LoanType, amountRequested float64) models.EligibilityResult {
	maxAmount := float64(baseMaxAmount)
	requirements := []string{}
	reasons := []string{}

	switch {
	case yearsInBusiness >= 5:
		maxAmount *= 5
	case yearsInBusiness >= 2:
		maxAmount *= 2
	case yearsInBusiness < 1:
		maxAmount *= 0.5
		requirements = append(requirements, ReqMinimumBusinessAge)
	}

	var rateRange models.RateRange
	var termOptions []string

	switch loanType {
	case models.LoanTypeRefinance:
		maxAmount *= 1.2
		rateRange = models.RateRange{Min: 3.5, Max: 6.5}
		termOptions = []string{"5 years", "10 years", "15 years", "20 years", "25 years"}
	case models.LoanTypeBridgeLoan:
		maxAmount *= 0.8
		rateRange = models.RateRange{Min: 6.0, Max: 12.0}
		termOptions = []string{"6 months", "12 months", "18 months", "24 months"}
	case models.LoanTypeWorkingCapital:
		maxAmount *= 0.6
		rateRange = models.RateRange{Min: 4.0, Max: 8.0}
		termOptions = []string{"1 year", "2 years", "3 years", "5 years"}
	default:
		rateRange = models.RateRange{Min: 4.0, Max: 10.0}
		termOptions = []string{"2 years", "5 years", "10 years"}
	}

	maxAmount = math.Min(maxAmount, amountCap)

	eligible := true
	if amountRequested > maxAmount {
		eligible = false
		reasons = append(reasons, amountPrinter.Sprintf(
			"Requested amount exceeds the maximum eligible amount of $%d", int64(maxAmount)))
	}

	requirements = append(requirements, standardRequirements...)

	return models.EligibilityResult{
		Eligible:          eligible,
		MaxLoanAmount:     maxAmount,
		InterestRateRange: rateRange,
		TermOptions:       termOptions,
		Requirements:      requirements,
		Reasons:           reasons,
	}
}
