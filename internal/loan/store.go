package loan

import "context"

// Store describes persistence operations required by the workflow service.
// ApplyTransition must be atomic: the status change and the history append
// either both happen or neither does, and the status update must be
// conditional on the application still being in from.
type Store interface {
	CreateApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, id string) (Application, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]Application, error)
	ApplyTransition(ctx context.Context, loanID string, from, to Status, rec HistoryRecord) (Application, error)
	History(ctx context.Context, loanID string) ([]HistoryRecord, error)
}
