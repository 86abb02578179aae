package inventory

import "context"

// IntegrationHandler receives ledger events after movements commit.
// Used to invalidate report caches without coupling this package to them.
type IntegrationHandler interface {
	HandleMovementsPosted(ctx context.Context, movements []Movement) error
}

// IntegrationFunc adapts a function to IntegrationHandler.
type IntegrationFunc func(ctx context.Context, movements []Movement) error

// HandleMovementsPosted implements IntegrationHandler.
func (f IntegrationFunc) HandleMovementsPosted(ctx context.Context, movements []Movement) error {
	return f(ctx, movements)
}
