package dashboard

import (
	"context"
	"errors"
	"sync"

	"busops/internal/dayend"
	"busops/internal/models"
)

// ErrInFlight rejects a second transition for a record whose first is still running.
var ErrInFlight = errors.New("a status change for this report is already in progress")

const transitionFallback = "Failed to update report status"

// StatusController mediates the review of a day-end report: confirmation, the remote
// update and the resulting notification.
type StatusController struct {
	client  *Client
	confirm Confirmer
	notify  Notifier

	mu       sync.Mutex
	inFlight map[uint]struct{}
}

func NewStatusController(client *Client, confirm Confirmer, notify Notifier) *StatusController {
	if notify == nil {
		notify = discardNotifier{}
	}
	return &StatusController{
		client:   client,
		confirm:  confirm,
		notify:   notify,
		inFlight: make(map[uint]struct{}),
	}
}

// Actions lists the review actions to offer for rec.
func (sc *StatusController) Actions(rec models.DayEnd) []string {
	return dayend.PermittedTransitions(rec.Status)
}

// Busy reports whether a transition for id is in flight, so the UI can disable its buttons.
func (sc *StatusController) Busy(id uint) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, ok := sc.inFlight[id]
	return ok
}

// RequestTransition moves rec to target after confirmation. rec is replaced with the
// server's copy on success and left untouched on any failure. A declined confirmation
// does nothing and returns nil.
func (sc *StatusController) RequestTransition(ctx context.Context, rec *models.DayEnd, target string) error {
	if err := dayend.CheckTransition(rec.Status, target); err != nil {
		return err
	}
	if !sc.acquire(rec.ID) {
		return ErrInFlight
	}
	defer sc.release(rec.ID)

	if sc.confirm != nil && !sc.confirm.Confirm(ctx, confirmPrompt(target)) {
		return nil
	}

	updated, err := sc.client.UpdateDayEndStatus(ctx, rec.ID, target)
	if err != nil {
		sc.notify.Notify(LevelError, UserMessage(err, transitionFallback))
		return err
	}
	if updated.ID == 0 {
		// no record in the response, patch the local copy
		updated = *rec
		updated.Status = target
	}
	*rec = updated

	if target == models.DayEndApproved {
		sc.notify.Notify(LevelSuccess, "Report approved successfully")
	} else {
		sc.notify.Notify(LevelWarning, "Report rejected")
	}
	return nil
}

func (sc *StatusController) acquire(id uint) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if _, ok := sc.inFlight[id]; ok {
		return false
	}
	sc.inFlight[id] = struct{}{}
	return true
}

func (sc *StatusController) release(id uint) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.inFlight, id)
}

func confirmPrompt(target string) string {
	if target == models.DayEndApproved {
		return "Approve this day-end report?"
	}
	return "Reject this day-end report?"
}
