package versioning

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"sitesmith/internal/domain/models"
	"sitesmith/internal/domain/repositories"
)

// Sequence lineage names, shared with the counter table.
const (
	lineageSnapshot    = "snapshot"
	lineageDocHistory  = "doc_history"
	lineagePageVersion = "page_version"
)

// Policy is the uniform retention rule shared by all three lineages:
// the AutoKeep most recent auto versions stay available, pinned versions
// stay available, and manual/rollback versions stay available regardless of
// age: they are deliberate user checkpoints and must not silently
// disappear. Everything else is released.
type Policy struct {
	AutoKeep int
	PinLimit int
}

// DefaultPolicy returns the product defaults: five automatic versions in the
// working set, at most two pins per parent.
func DefaultPolicy() Policy {
	return Policy{AutoKeep: 5, PinLimit: 2}
}

// Plan is the partition of a parent's versions into retained and released.
type Plan struct {
	Retain  []repositories.VersionEntry
	Release []repositories.VersionEntry
}

// Partition computes the retained/released split for a parent's full version
// list. Pure: it never looks at current released flags, so running it twice
// over the same entries yields the same plan.
func (p Policy) Partition(entries []repositories.VersionEntry) Plan {
	sorted := make([]repositories.VersionEntry, len(entries))
	copy(sorted, entries)

	// Newest first; sequence breaks created_at ties.
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].Sequence > sorted[j].Sequence
	})

	var plan Plan
	autoSeen := 0
	for _, e := range sorted {
		keep := false
		switch e.Source {
		case models.SourceManual, models.SourceRollback:
			keep = true
		case models.SourceAuto:
			// The AutoKeep most recent autos count pinned or not.
			if autoSeen < p.AutoKeep {
				keep = true
			}
			autoSeen++
		}
		if e.Pinned {
			keep = true
		}

		if keep {
			plan.Retain = append(plan.Retain, e)
		} else {
			plan.Release = append(plan.Release, e)
		}
	}

	return plan
}

// Retainer applies the retention policy to one parent's version list,
// writing only the transitions. Invoked after every version creation and
// after every pin/unpin; re-running it with no new versions is a no-op.
type Retainer struct {
	policy Policy
	logger *slog.Logger
}

// NewRetainer creates a retention applier for the given policy.
func NewRetainer(policy Policy, logger *slog.Logger) *Retainer {
	return &Retainer{policy: policy, logger: logger}
}

// Apply re-partitions the parent's versions and flips released flags to
// match. clearPayload is the lineage's release-content policy: true for
// snapshots and page versions, false for doc history.
//
// Runs in the caller's transaction; a failed write aborts the whole
// operation that triggered the re-evaluation.
func (r *Retainer) Apply(ctx context.Context, store repositories.VersionStore, parentID string, clearPayload bool) error {
	entries, err := store.ListEntries(ctx, parentID)
	if err != nil {
		return fmt.Errorf("retention: %w", err)
	}

	plan := r.policy.Partition(entries)

	for _, e := range plan.Release {
		if e.Released {
			continue
		}
		if err := store.MarkReleased(ctx, e.ID, clearPayload); err != nil {
			return fmt.Errorf("retention release: %w", err)
		}
		r.logger.Info("version released",
			"id", e.ID,
			"parent_id", parentID,
			"sequence", e.Sequence,
			"source", e.Source,
			"payload_cleared", clearPayload,
		)
	}

	// A pinned record that was released earlier re-enters the working set.
	for _, e := range plan.Retain {
		if !e.Released {
			continue
		}
		if err := store.MarkRetained(ctx, e.ID); err != nil {
			return fmt.Errorf("retention retain: %w", err)
		}
		r.logger.Info("version re-retained",
			"id", e.ID,
			"parent_id", parentID,
			"sequence", e.Sequence,
		)
	}

	return nil
}
