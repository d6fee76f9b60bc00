// Package dayend holds the day-end reconciliation rules shared by the API and the
// dashboard: the review lifecycle, list filter parameters, local filtering and aggregates.
package dayend

import (
	"errors"
	"fmt"

	"busops/internal/models"
)

var ErrTransitionNotAllowed = errors.New("status transition not allowed")

// PermittedTransitions lists the statuses a record in the given status may move to.
// Only pending records can be reviewed; approved and rejected are terminal.
func PermittedTransitions(status string) []string {
	if status == models.DayEndPending {
		return []string{models.DayEndApproved, models.DayEndRejected}
	}
	return nil
}

func CanTransition(from, to string) bool {
	for _, s := range PermittedTransitions(from) {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no review action is available anymore.
func IsTerminal(status string) bool {
	return status == models.DayEndApproved || status == models.DayEndRejected
}

func IsValidStatus(status string) bool {
	switch status {
	case models.DayEndPending, models.DayEndApproved, models.DayEndRejected:
		return true
	}
	return false
}

// CheckTransition returns ErrTransitionNotAllowed wrapped with both statuses.
func CheckTransition(from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	return nil
}
