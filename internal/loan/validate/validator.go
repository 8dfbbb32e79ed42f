// Package validate holds the structural and business validity rules applied
// to a candidate loan application before submission. Pure, no I/O.
package validate

import (
	"regexp"

	"loan-portal/internal/models"
)

const (
	MinLoanAmount = 1_000
	MaxLoanAmount = 50_000_000
)

// Rule failure messages, surfaced verbatim in the UI error list.
const (
	MsgFirstNameTooShort    = "First name must be at least 2 characters"
	MsgLastNameTooShort     = "Last name must be at least 2 characters"
	MsgBusinessNameTooShort = "Business name must be at least 2 characters"
	MsgAmountBelowMinimum   = "Loan amount must be at least $1,000"
	MsgAmountAboveMaximum   = "Loan amount cannot exceed $50,000,000"
	MsgInvalidPhone         = "Invalid phone number format"
)

var (
	nonDigits = regexp.MustCompile(`\D`)
	// Loose sanity check after stripping: a non-zero leading digit followed by
	// up to 15 more digits. Not full E.164 validation.
	phonePattern = regexp.MustCompile(`^[1-9][0-9]{0,15}$`)
)

// Check evaluates every rule independently and accumulates failures; rules
// are never short-circuited. The returned error list is ordered by rule.
func Check(app *models.LoanApplication) (bool, []string) {
	var errs []string

	if len(app.FirstName) < 2 {
		errs = append(errs, MsgFirstNameTooShort)
	}
	if len(app.LastName) < 2 {
		errs = append(errs, MsgLastNameTooShort)
	}
	if len(app.BusinessName) < 2 {
		errs = append(errs, MsgBusinessNameTooShort)
	}
	if app.AmountRequested < MinLoanAmount {
		errs = append(errs, MsgAmountBelowMinimum)
	}
	if app.AmountRequested > MaxLoanAmount {
		errs = append(errs, MsgAmountAboveMaximum)
	}
	if !validPhone(app.Phone) {
		errs = append(errs, MsgInvalidPhone)
	}

	return len(errs) == 0, errs
}

func validPhone(raw string) bool {
	digits := nonDigits.ReplaceAllString(raw, "")
	return phonePattern.MatchString(digits)
}
