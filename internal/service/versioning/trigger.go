package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sitesmith/internal/domain"
	"sitesmith/internal/domain/models"
	"sitesmith/internal/domain/repositories"
	versioningSvc "sitesmith/internal/domain/services/versioning"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// errPlanAlreadyHandled aborts the trigger transaction when another
// completion signal got the claim first. Never surfaced to callers.
var errPlanAlreadyHandled = errors.New("plan already handled")

// autoSnapshotTrigger implements the PlanListener interface. The claim on
// the plan id and the snapshot creation share one transaction, so two racing
// completion signals cannot both create a snapshot: the loser's claim
// conflicts and its whole unit of work rolls back.
type autoSnapshotTrigger struct {
	triggers  repositories.SnapshotTriggerRepository
	snapshots versioningSvc.SnapshotService
	tx        repositories.TransactionManager
	logger    *slog.Logger
}

// NewAutoSnapshotTrigger creates a plan-completion listener
func NewAutoSnapshotTrigger(
	triggers repositories.SnapshotTriggerRepository,
	snapshots versioningSvc.SnapshotService,
	tx repositories.TransactionManager,
	logger *slog.Logger,
) versioningSvc.PlanListener {
	return &autoSnapshotTrigger{
		triggers:  triggers,
		snapshots: snapshots,
		tx:        tx,
		logger:    logger,
	}
}

// PlanCompleted takes an auto snapshot iff every page task in the plan
// succeeded, at most once per plan id.
func (t *autoSnapshotTrigger) PlanCompleted(ctx context.Context, result *models.PlanResult) (*models.ProjectSnapshot, error) {
	if err := t.validateResult(result); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if !result.AllSucceeded() {
		t.logger.Info("plan completed with failures, skipping snapshot",
			"plan_id", result.PlanID,
			"session_id", result.SessionID,
			"tasks", len(result.Tasks),
		)
		return nil, nil
	}

	var snap *models.ProjectSnapshot
	err := t.tx.ExecTx(ctx, func(txCtx context.Context) error {
		claimed, err := t.triggers.Claim(txCtx, result.PlanID)
		if err != nil {
			return err
		}
		if !claimed {
			return errPlanAlreadyHandled
		}

		snap, err = t.snapshots.CreateSnapshot(txCtx, &versioningSvc.CreateSnapshotRequest{
			SessionID: result.SessionID,
			Source:    string(models.SourceAuto),
		})
		return err
	})
	if errors.Is(err, errPlanAlreadyHandled) {
		t.logger.Debug("duplicate plan completion ignored", "plan_id", result.PlanID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t.logger.Info("auto snapshot taken for plan",
		"plan_id", result.PlanID,
		"snapshot_id", snap.ID,
		"snapshot_number", snap.SnapshotNumber,
	)

	return snap, nil
}

// validateResult validates a plan completion signal
func (t *autoSnapshotTrigger) validateResult(result *models.PlanResult) error {
	return validation.ValidateStruct(result,
		validation.Field(&result.PlanID, validation.Required),
		validation.Field(&result.SessionID, validation.Required),
	)
}
