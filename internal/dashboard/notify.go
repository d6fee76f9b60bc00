package dashboard

import "context"

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Confirmer asks the user to confirm a destructive or irreversible action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Notifier shows a toast or banner.
type Notifier interface {
	Notify(level Level, message string)
}

type NotifyFunc func(level Level, message string)

func (f NotifyFunc) Notify(level Level, message string) { f(level, message) }

type discardNotifier struct{}

func (discardNotifier) Notify(Level, string) {}
