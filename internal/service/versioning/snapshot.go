package versioning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sitesmith/internal/config"
	"sitesmith/internal/domain"
	"sitesmith/internal/domain/models"
	"sitesmith/internal/domain/repositories"
	versioningSvc "sitesmith/internal/domain/services/versioning"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// snapshotService implements the SnapshotService interface
type snapshotService struct {
	snaps    repositories.SnapshotRepository
	docs     repositories.ProductDocRepository
	pages    repositories.PageRepository
	seq      repositories.SequenceAllocator
	tx       repositories.TransactionManager
	retainer *Retainer
	pins     *PinManager
	logger   *slog.Logger
}

// NewSnapshotService creates a new project snapshot service
func NewSnapshotService(
	snaps repositories.SnapshotRepository,
	docs repositories.ProductDocRepository,
	pages repositories.PageRepository,
	seq repositories.SequenceAllocator,
	tx repositories.TransactionManager,
	retainer *Retainer,
	pins *PinManager,
	logger *slog.Logger,
) versioningSvc.SnapshotService {
	return &snapshotService{
		snaps:    snaps,
		docs:     docs,
		pages:    pages,
		seq:      seq,
		tx:       tx,
		retainer: retainer,
		pins:     pins,
		logger:   logger,
	}
}

// CreateSnapshot deep-copies the session's product doc and every page into a
// new snapshot record, then re-applies retention. Everything runs in one
// transaction: a failure anywhere leaves no record and no retention change.
func (s *snapshotService) CreateSnapshot(ctx context.Context, req *versioningSvc.CreateSnapshotRequest) (*models.ProjectSnapshot, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	source, err := models.ParseSource(req.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	// Labels are a manual-snapshot affordance; system snapshots are
	// identified by number alone.
	label := req.Label
	if source != models.SourceManual {
		label = nil
	}

	var snap *models.ProjectSnapshot
	err = s.tx.ExecTx(ctx, func(txCtx context.Context) error {
		doc, err := s.docs.GetBySession(txCtx, req.SessionID)
		if err != nil {
			return err
		}
		pages, err := s.pages.ListBySession(txCtx, req.SessionID)
		if err != nil {
			return err
		}

		number, err := s.seq.Next(txCtx, lineageSnapshot, req.SessionID)
		if err != nil {
			return err
		}

		spec, err := deepCopySpec(doc.Spec)
		if err != nil {
			return err
		}

		snap = &models.ProjectSnapshot{
			ID:             uuid.NewString(),
			SessionID:      req.SessionID,
			SnapshotNumber: number,
			Source:         source,
			Label:          label,
			DocContent:     doc.Content,
			DocSpec:        spec,
			Pages:          capturePages(pages),
			CreatedAt:      time.Now().UTC(),
		}

		if err := s.snaps.Create(txCtx, snap); err != nil {
			return err
		}

		return s.retainer.Apply(txCtx, s.snaps, req.SessionID, true)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("snapshot created",
		"id", snap.ID,
		"session_id", snap.SessionID,
		"snapshot_number", snap.SnapshotNumber,
		"source", snap.Source,
		"page_count", len(snap.Pages),
	)

	return snap, nil
}

// GetSnapshot returns a snapshot with its frozen content
func (s *snapshotService) GetSnapshot(ctx context.Context, sessionID, snapshotID string) (*models.ProjectSnapshot, error) {
	snap, err := s.snaps.GetByID(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if snap.SessionID != sessionID {
		return nil, fmt.Errorf("snapshot %s: %w", snapshotID, domain.ErrNotFound)
	}
	return snap, nil
}

// ListSnapshots returns the session's snapshots, newest first
func (s *snapshotService) ListSnapshots(ctx context.Context, sessionID string, includeReleased bool) ([]models.ProjectSnapshot, error) {
	return s.snaps.ListBySession(ctx, sessionID, includeReleased)
}

// PinSnapshot marks a snapshot exempt from age-based release
func (s *snapshotService) PinSnapshot(ctx context.Context, sessionID, snapshotID string) (*models.ProjectSnapshot, error) {
	if _, err := s.GetSnapshot(ctx, sessionID, snapshotID); err != nil {
		return nil, err
	}
	if err := s.pins.Pin(ctx, s.snaps, snapshotID, true); err != nil {
		return nil, err
	}
	return s.snaps.GetByID(ctx, snapshotID)
}

// UnpinSnapshot clears the pinned flag and re-applies retention
func (s *snapshotService) UnpinSnapshot(ctx context.Context, sessionID, snapshotID string) (*models.ProjectSnapshot, error) {
	if _, err := s.GetSnapshot(ctx, sessionID, snapshotID); err != nil {
		return nil, err
	}
	if err := s.pins.Unpin(ctx, s.snaps, snapshotID, true); err != nil {
		return nil, err
	}
	return s.snaps.GetByID(ctx, snapshotID)
}

// validateCreateRequest validates a snapshot creation request
func (s *snapshotService) validateCreateRequest(req *versioningSvc.CreateSnapshotRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.SessionID, validation.Required),
		validation.Field(&req.Label, validation.Length(0, config.MaxLabelLength)),
	)
}

// capturePages freezes the live pages into by-value captures.
func capturePages(pages []models.Page) []models.PageCapture {
	captures := make([]models.PageCapture, 0, len(pages))
	for _, p := range pages {
		captures = append(captures, models.PageCapture{
			PageID: p.ID,
			Title:  p.Title,
			HTML:   p.HTML,
		})
	}
	return captures
}

// deepCopySpec clones a structured doc spec so the stored version never
// aliases the live document's nested maps.
func deepCopySpec(spec map[string]any) (map[string]any, error) {
	if len(spec) == 0 {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("copy doc spec: %w", err)
	}
	out := make(map[string]any, len(spec))
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("copy doc spec: %w", err)
	}
	return out, nil
}

// clonePages copies snapshot page captures into a fresh slice.
func clonePages(captures []models.PageCapture) []models.PageCapture {
	out := make([]models.PageCapture, len(captures))
	copy(out, captures)
	return out
}
