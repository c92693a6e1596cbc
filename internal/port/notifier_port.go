package port

import "context"

// Notifier delivers a plain-text notification to a user through the
// chat messaging collaborator. Used by the auto-pay run for shortfall
// alerts and due-date reminders.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, message string) error
}
