package ports

import "context"

// Syncer persists the full keyword list to the remote configuration and then
// triggers a redeploy so the change takes effect.
type Syncer interface {
	// Persist writes keywords and triggers the redeploy, in that order.
	// Failures are returned as *domain.SyncError tagged with the failing step.
	// Re-sending the same list is safe.
	Persist(ctx context.Context, keywords []string) error
}
