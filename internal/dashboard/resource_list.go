package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"busops/internal/models"
)

// ErrNotConfirmed is returned when the user dismissed a delete confirmation.
var ErrNotConfirmed = errors.New("action not confirmed")

const dependencyHint = "It is still used by other records. Remove or reassign those first, or deactivate it instead."

// ResourceList is the list half of the CRUD screens (buses, stops, sections, expense
// types, users). The local list only changes after the server confirmed a change.
type ResourceList[T any] struct {
	client  *Client
	path    string
	idOf    func(T) uint
	label   string
	confirm Confirmer
	notify  Notifier
	seq     Sequence

	mu    sync.Mutex
	items []T
	state ListState
	err   error
}

// NewResourceList manages the collection at path (e.g. "/buses"); idOf extracts the id
// and label names the resource in prompts.
func NewResourceList[T any](client *Client, path, label string, idOf func(T) uint, confirm Confirmer, notify Notifier) *ResourceList[T] {
	if notify == nil {
		notify = discardNotifier{}
	}
	return &ResourceList[T]{client: client, path: path, label: label, idOf: idOf, confirm: confirm, notify: notify}
}

// Load fetches the collection ({"data": [...]}). Superseded responses return ErrStale.
func (l *ResourceList[T]) Load(ctx context.Context, query url.Values) error {
	gen := l.seq.Next()
	l.mu.Lock()
	l.state = StateLoading
	l.mu.Unlock()

	var resp struct {
		Data []T `json:"data"`
	}
	err := l.client.Get(ctx, l.path, query, &resp)

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.seq.IsLatest(gen) {
		return ErrStale
	}
	if err != nil {
		l.state, l.err = StateFailed, err
		l.notify.Notify(LevelError, UserMessage(err, "Failed to load "+l.label+"s"))
		return err
	}
	l.items = resp.Data
	l.state, l.err = StateReady, nil
	return nil
}

// Delete removes id after confirmation. On failure the item stays listed and the likely
// cause is surfaced; nothing is retried.
func (l *ResourceList[T]) Delete(ctx context.Context, id uint) error {
	if l.confirm != nil && !l.confirm.Confirm(ctx, fmt.Sprintf("Delete this %s? This cannot be undone.", l.label)) {
		return ErrNotConfirmed
	}
	if err := l.client.Delete(ctx, l.itemPath(id, "")); err != nil {
		msg := UserMessage(err, "Failed to delete "+l.label)
		if errors.Is(err, ErrConflict) {
			msg += " " + dependencyHint
		}
		l.notify.Notify(LevelError, msg)
		return err
	}

	l.mu.Lock()
	for i, it := range l.items {
		if l.idOf(it) == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	l.notify.Notify(LevelSuccess, l.label+" deleted")
	return nil
}

// Toggle is a single-field status change: the PATCH sub-path, its body and how to apply
// the change to the local copy.
type Toggle[T any] struct {
	Action string
	Body   interface{}
	Apply  func(*T)
}

// ActiveToggle is PATCH /:id/active {"isActive": active}.
func ActiveToggle[T any](active bool, set func(*T, bool)) Toggle[T] {
	return Toggle[T]{
		Action: "active",
		Body:   map[string]bool{"isActive": active},
		Apply:  func(t *T) { set(t, active) },
	}
}

// BusStatusToggle is PATCH /buses/:id/status {"status": status}.
func BusStatusToggle(status string) Toggle[models.Bus] {
	return Toggle[models.Bus]{
		Action: "status",
		Body:   map[string]string{"status": status},
		Apply:  func(b *models.Bus) { b.Status = status },
	}
}

// Toggle sends the patch and updates the listed item only once the server accepted it.
func (l *ResourceList[T]) Toggle(ctx context.Context, id uint, t Toggle[T]) error {
	if err := l.client.Patch(ctx, l.itemPath(id, t.Action), t.Body, nil); err != nil {
		l.notify.Notify(LevelError, UserMessage(err, "Failed to update "+l.label))
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.idOf(l.items[i]) == id {
			t.Apply(&l.items[i])
			break
		}
	}
	return nil
}

// Items returns a copy of the listed items.
func (l *ResourceList[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

func (l *ResourceList[T]) Find(id uint) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, it := range l.items {
		if l.idOf(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (l *ResourceList[T]) State() ListState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *ResourceList[T]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *ResourceList[T]) itemPath(id uint, action string) string {
	p := fmt.Sprintf("%s/%d", l.path, id)
	if action != "" {
		p += "/" + action
	}
	return p
}
