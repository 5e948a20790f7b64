package versioning

import (
	"context"
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

// docHistoryService implements the DocHistoryService interface
type docHistoryService struct {
	history  repositories.DocHistoryRepository
	docs     repositories.ProductDocRepository
	seq      repositories.SequenceAllocator
	tx       repositories.TransactionManager
	retainer *Retainer
	pins     *PinManager
	logger   *slog.Logger
}

// NewDocHistoryService creates a new product-doc history service
func NewDocHistoryService(
	history repositories.DocHistoryRepository,
	docs repositories.ProductDocRepository,
	seq repositories.SequenceAllocator,
	tx repositories.TransactionManager,
	retainer *Retainer,
	pins *PinManager,
	logger *slog.Logger,
) versioningSvc.DocHistoryService {
	return &docHistoryService{
		history:  history,
		docs:     docs,
		seq:      seq,
		tx:       tx,
		retainer: retainer,
		pins:     pins,
		logger:   logger,
	}
}

// UpdateDoc applies new content to the live doc, records a history version
// for it and repoints the doc's current pointer, all in one transaction.
func (s *docHistoryService) UpdateDoc(ctx context.Context, docID string, req *versioningSvc.UpdateDocRequest) (*models.ProductDocHistory, error) {
	if err := s.validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	source, err := models.ParseSource(req.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var hist *models.ProductDocHistory
	err = s.tx.ExecTx(ctx, func(txCtx context.Context) error {
		doc, err := s.docs.GetByID(txCtx, docID)
		if err != nil {
			return err
		}

		number, err := s.seq.Next(txCtx, lineageDocHistory, docID)
		if err != nil {
			return err
		}

		spec, err := deepCopySpec(req.Spec)
		if err != nil {
			return err
		}

		hist = &models.ProductDocHistory{
			ID:            uuid.NewString(),
			DocID:         docID,
			VersionNumber: number,
			Source:        source,
			ChangeSummary: req.ChangeSummary,
			Content:       req.Content,
			Spec:          spec,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.history.Create(txCtx, hist); err != nil {
			return err
		}

		doc.Content = req.Content
		docSpec, err := deepCopySpec(req.Spec)
		if err != nil {
			return err
		}
		doc.Spec = docSpec
		doc.CurrentHistoryID = &hist.ID
		doc.UpdatedAt = time.Now().UTC()
		if err := s.docs.Update(txCtx, doc); err != nil {
			return err
		}

		// Doc history keeps released payloads diffable: never clear.
		return s.retainer.Apply(txCtx, s.history, docID, false)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("doc history recorded",
		"id", hist.ID,
		"doc_id", docID,
		"version_number", hist.VersionNumber,
		"source", hist.Source,
	)

	return hist, nil
}

// GetVersion returns one history version with full content
func (s *docHistoryService) GetVersion(ctx context.Context, docID, versionID string) (*models.ProductDocHistory, error) {
	hist, err := s.history.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if hist.DocID != docID {
		return nil, fmt.Errorf("doc history %s: %w", versionID, domain.ErrNotFound)
	}
	return hist, nil
}

// ListHistory returns the doc's versions, newest first
func (s *docHistoryService) ListHistory(ctx context.Context, docID string, includeReleased bool) ([]models.ProductDocHistory, error) {
	return s.history.ListByDoc(ctx, docID, includeReleased)
}

// PinVersion marks a history version exempt from age-based release
func (s *docHistoryService) PinVersion(ctx context.Context, docID, versionID string) (*models.ProductDocHistory, error) {
	if _, err := s.GetVersion(ctx, docID, versionID); err != nil {
		return nil, err
	}
	if err := s.pins.Pin(ctx, s.history, versionID, false); err != nil {
		return nil, err
	}
	return s.history.GetByID(ctx, versionID)
}

// UnpinVersion clears the pinned flag and re-applies retention
func (s *docHistoryService) UnpinVersion(ctx context.Context, docID, versionID string) (*models.ProductDocHistory, error) {
	if _, err := s.GetVersion(ctx, docID, versionID); err != nil {
		return nil, err
	}
	if err := s.pins.Unpin(ctx, s.history, versionID, false); err != nil {
		return nil, err
	}
	return s.history.GetByID(ctx, versionID)
}

// validateUpdateRequest validates a doc mutation request
func (s *docHistoryService) validateUpdateRequest(req *versioningSvc.UpdateDocRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Content, validation.Required),
		validation.Field(&req.ChangeSummary, validation.Length(0, config.MaxChangeSummaryLength)),
	)
}
