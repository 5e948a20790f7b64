package versioning

import (
	"context"

	"sitesmith/internal/domain/models"
)

// PlanListener consumes plan-completion signals and decides whether to take
// an automatic snapshot.
type PlanListener interface {
	// PlanCompleted takes an auto snapshot iff every page task succeeded.
	// At most one snapshot is created per plan id, however many times the
	// signal is delivered. Returns nil without error when the plan was
	// skipped (failures present, or already handled).
	PlanCompleted(ctx context.Context, result *models.PlanResult) (*models.ProjectSnapshot, error)
}
