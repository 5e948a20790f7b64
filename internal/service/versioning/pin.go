package versioning

import (
	"context"
	"fmt"
	"log/slog"

	"sitesmith/internal/domain"
	"sitesmith/internal/domain/repositories"
)

// PinManager enforces the per-parent pin cap and toggles pinned state.
// Both operations immediately re-run retention for the affected parent:
// pinning a released record brings it back into the working set, unpinning
// an old record lets the next partition release it.
type PinManager struct {
	policy   Policy
	tx       repositories.TransactionManager
	retainer *Retainer
	logger   *slog.Logger
}

// NewPinManager creates a pin manager for the given policy.
func NewPinManager(policy Policy, tx repositories.TransactionManager, retainer *Retainer, logger *slog.Logger) *PinManager {
	return &PinManager{policy: policy, tx: tx, retainer: retainer, logger: logger}
}

// Pin marks a version exempt from age-based release. The count check and the
// flag write run in one serializable transaction: two racing pins for the
// same parent cannot both pass a count of limit-1.
func (m *PinManager) Pin(ctx context.Context, store repositories.VersionStore, id string, clearPayload bool) error {
	err := m.tx.ExecSerializableTx(ctx, func(txCtx context.Context) error {
		entry, err := store.GetEntry(txCtx, id)
		if err != nil {
			return err
		}

		if !entry.Pinned {
			pinned, err := store.ListPinned(txCtx, entry.ParentID)
			if err != nil {
				return err
			}
			if len(pinned) >= m.policy.PinLimit {
				return &domain.PinLimitError{
					Limit:         m.policy.PinLimit,
					CurrentPinned: pinned,
				}
			}
			if err := store.SetPinned(txCtx, id, true); err != nil {
				return err
			}
		}

		return m.retainer.Apply(txCtx, store, entry.ParentID, clearPayload)
	})
	if err != nil {
		return err
	}

	m.logger.Info("version pinned", "id", id)
	return nil
}

// Unpin clears the pinned flag. Always succeeds for an existing record;
// whether the record is then released is the retention policy's call on the
// immediate re-run, never this method's.
func (m *PinManager) Unpin(ctx context.Context, store repositories.VersionStore, id string, clearPayload bool) error {
	err := m.tx.ExecSerializableTx(ctx, func(txCtx context.Context) error {
		entry, err := store.GetEntry(txCtx, id)
		if err != nil {
			return err
		}

		if entry.Pinned {
			if err := store.SetPinned(txCtx, id, false); err != nil {
				return err
			}
		}

		return m.retainer.Apply(txCtx, store, entry.ParentID, clearPayload)
	})
	if err != nil {
		return fmt.Errorf("unpin version %s: %w", id, err)
	}

	m.logger.Info("version unpinned", "id", id)
	return nil
}
