package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sitesmith/internal/domain"
	"sitesmith/internal/domain/models"
	"sitesmith/internal/domain/repositories"
	versioningSvc "sitesmith/internal/domain/services/versioning"

	"github.com/google/uuid"
)

// rollbackPhase names the stage a rollback failed in, for logs and wrapped
// errors. Transitions are validating → materializing → committing.
type rollbackPhase string

const (
	phaseValidating    rollbackPhase = "validating"
	phaseMaterializing rollbackPhase = "materializing"
	phaseCommitting    rollbackPhase = "committing"
)

// rollbackService implements the RollbackService interface. A rollback
// replays a past snapshot forward: it materializes net-new doc-history,
// page-version and snapshot records from the target's frozen payload and
// repoints every current pointer, all inside one serializable transaction.
// Old ids and sequence numbers are never reused.
type rollbackService struct {
	snaps    repositories.SnapshotRepository
	history  repositories.DocHistoryRepository
	versions repositories.PageVersionRepository
	docs     repositories.ProductDocRepository
	pages    repositories.PageRepository
	seq      repositories.SequenceAllocator
	tx       repositories.TransactionManager
	retainer *Retainer
	logger   *slog.Logger
}

// NewRollbackService creates a new rollback orchestrator
func NewRollbackService(
	snaps repositories.SnapshotRepository,
	history repositories.DocHistoryRepository,
	versions repositories.PageVersionRepository,
	docs repositories.ProductDocRepository,
	pages repositories.PageRepository,
	seq repositories.SequenceAllocator,
	tx repositories.TransactionManager,
	retainer *Retainer,
	logger *slog.Logger,
) versioningSvc.RollbackService {
	return &rollbackService{
		snaps:    snaps,
		history:  history,
		versions: versions,
		docs:     docs,
		pages:    pages,
		seq:      seq,
		tx:       tx,
		retainer: retainer,
		logger:   logger,
	}
}

// Rollback restores the session to the state captured by the snapshot.
func (s *rollbackService) Rollback(ctx context.Context, sessionID, snapshotID string) (*versioningSvc.RollbackResult, error) {
	phase := phaseValidating
	var result *versioningSvc.RollbackResult

	err := s.tx.ExecSerializableTx(ctx, func(txCtx context.Context) error {
		target, err := s.validate(txCtx, sessionID, snapshotID)
		if err != nil {
			return err
		}

		phase = phaseMaterializing
		hist, newSnap, restoredPages, err := s.materialize(txCtx, sessionID, target)
		if err != nil {
			return err
		}

		phase = phaseCommitting
		if err := s.commit(txCtx, sessionID, target, hist, restoredPages); err != nil {
			return err
		}

		pageIDs := make([]string, 0, len(restoredPages))
		for _, p := range restoredPages {
			pageIDs = append(pageIDs, p.ID)
		}
		result = &versioningSvc.RollbackResult{
			NewSnapshot:   newSnap,
			RestoredPages: pageIDs,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rollback %s: %w", phase, err)
	}

	s.logger.Info("rollback completed",
		"session_id", sessionID,
		"target_snapshot", snapshotID,
		"new_snapshot", result.NewSnapshot.ID,
		"restored_pages", len(result.RestoredPages),
	)

	return result, nil
}

// validate loads the target and rejects unknown or released snapshots.
// A released snapshot's payload is cleared; there is nothing to restore.
func (s *rollbackService) validate(ctx context.Context, sessionID, snapshotID string) (*models.ProjectSnapshot, error) {
	target, err := s.snaps.GetByID(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if target.SessionID != sessionID {
		return nil, fmt.Errorf("snapshot %s: %w", snapshotID, domain.ErrNotFound)
	}
	if target.Released {
		return nil, &domain.UnavailableError{
			Message: fmt.Sprintf("snapshot %d has been released and its content cleared", target.SnapshotNumber),
		}
	}
	return target, nil
}

// materialize creates the new records: one doc-history version, one page
// version per captured page, and the rollback snapshot itself.
func (s *rollbackService) materialize(ctx context.Context, sessionID string, target *models.ProjectSnapshot) (*models.ProductDocHistory, *models.ProjectSnapshot, []*models.Page, error) {
	now := time.Now().UTC()

	doc, err := s.docs.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}

	histNumber, err := s.seq.Next(ctx, lineageDocHistory, doc.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	histSpec, err := deepCopySpec(target.DocSpec)
	if err != nil {
		return nil, nil, nil, err
	}
	summary := fmt.Sprintf("restored from snapshot %d", target.SnapshotNumber)
	hist := &models.ProductDocHistory{
		ID:            uuid.NewString(),
		DocID:         doc.ID,
		VersionNumber: histNumber,
		Source:        models.SourceRollback,
		ChangeSummary: &summary,
		Content:       target.DocContent,
		Spec:          histSpec,
		CreatedAt:     now,
	}
	if err := s.history.Create(ctx, hist); err != nil {
		return nil, nil, nil, err
	}

	// One rollback page version per captured page. Pages deleted since the
	// snapshot was taken come back under their original ids.
	restored := make([]*models.Page, 0, len(target.Pages))
	for _, capture := range target.Pages {
		page, err := s.pages.GetByID(ctx, capture.PageID)
		if err != nil {
			if !isNotFound(err) {
				return nil, nil, nil, err
			}
			page = &models.Page{
				ID:        capture.PageID,
				SessionID: sessionID,
				CreatedAt: now,
			}
		}

		number, err := s.seq.Next(ctx, lineagePageVersion, capture.PageID)
		if err != nil {
			return nil, nil, nil, err
		}
		ver := &models.PageVersion{
			ID:            uuid.NewString(),
			PageID:        capture.PageID,
			VersionNumber: number,
			Source:        models.SourceRollback,
			HTML:          capture.HTML,
			CreatedAt:     now,
		}
		if err := s.versions.Create(ctx, ver); err != nil {
			return nil, nil, nil, err
		}

		page.Title = capture.Title
		page.HTML = capture.HTML
		page.CurrentVersionID = &ver.ID
		page.UpdatedAt = now
		restored = append(restored, page)
	}

	snapNumber, err := s.seq.Next(ctx, lineageSnapshot, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	snapSpec, err := deepCopySpec(target.DocSpec)
	if err != nil {
		return nil, nil, nil, err
	}
	newSnap := &models.ProjectSnapshot{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		SnapshotNumber: snapNumber,
		Source:         models.SourceRollback,
		DocContent:     target.DocContent,
		DocSpec:        snapSpec,
		Pages:          clonePages(target.Pages),
		CreatedAt:      now,
	}
	if err := s.snaps.Create(ctx, newSnap); err != nil {
		return nil, nil, nil, err
	}

	return hist, newSnap, restored, nil
}

// commit repoints the current pointers and re-runs retention for every
// affected parent. Still inside the rollback transaction: no reader sees a
// partially rolled-back session.
func (s *rollbackService) commit(ctx context.Context, sessionID string, target *models.ProjectSnapshot, hist *models.ProductDocHistory, restored []*models.Page) error {
	now := time.Now().UTC()

	doc, err := s.docs.GetByID(ctx, hist.DocID)
	if err != nil {
		return err
	}
	docSpec, err := deepCopySpec(target.DocSpec)
	if err != nil {
		return err
	}
	doc.Content = target.DocContent
	doc.Spec = docSpec
	doc.CurrentHistoryID = &hist.ID
	doc.UpdatedAt = now
	if err := s.docs.Update(ctx, doc); err != nil {
		return err
	}

	for _, page := range restored {
		if err := s.pages.Upsert(ctx, page); err != nil {
			return err
		}
	}

	if err := s.retainer.Apply(ctx, s.snaps, sessionID, true); err != nil {
		return err
	}
	if err := s.retainer.Apply(ctx, s.history, hist.DocID, false); err != nil {
		return err
	}
	for _, page := range restored {
		if err := s.retainer.Apply(ctx, s.versions, page.ID, true); err != nil {
			return err
		}
	}

	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
