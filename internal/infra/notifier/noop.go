package notifier

import "context"

// NoOpNotifier is a no-operation implementation of the Notifier interface.
// It is used when alerting is disabled to avoid nil checks in the code.
// This follows the Null Object pattern.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier instance.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Notify does nothing and returns nil immediately.
func (n *NoOpNotifier) Notify(ctx context.Context, message string) error {
	// No-op: intentionally does nothing
	return nil
}
