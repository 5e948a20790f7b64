package repositories

import "context"

// SnapshotTriggerRepository is the idempotency ledger for plan-completion
// snapshots. Claim must be checked and set in the same transaction as the
// snapshot insert so two racing completions cannot both pass.
type SnapshotTriggerRepository interface {
	// Claim records that a snapshot for the plan is being created.
	// Returns false if the plan was already claimed.
	Claim(ctx context.Context, planID string) (bool, error)
}
