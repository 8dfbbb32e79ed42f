// internal/loan/status/transitions.go
package status

import "loan-portal/internal/models"

// legalTransitions is the workflow edge set. Absent keys (funded, rejected)
// are terminal.
var legalTransitions = map[models.Status][]models.Status{
	models.StatusDraft:          {models.StatusSubmitted},
	models.StatusSubmitted:      {models.StatusUnderReview},
	models.StatusRequiresReview: {models.StatusUnderReview},
	models.StatusUnderReview:    {models.StatusApproved, models.StatusRejected},
	models.StatusApproved:       {models.StatusFunded},
}

// CanTransition reports whether the edge from -> to is part of the workflow.
func CanTransition(from, to models.Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transitions leave the given state.
func Terminal(s models.Status) bool {
	return len(legalTransitions[s]) == 0
}
