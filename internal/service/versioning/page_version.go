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

// pageVersionService implements the PageVersionService interface
type pageVersionService struct {
	versions repositories.PageVersionRepository
	pages    repositories.PageRepository
	seq      repositories.SequenceAllocator
	tx       repositories.TransactionManager
	retainer *Retainer
	pins     *PinManager
	logger   *slog.Logger
}

// NewPageVersionService creates a new page version service
func NewPageVersionService(
	versions repositories.PageVersionRepository,
	pages repositories.PageRepository,
	seq repositories.SequenceAllocator,
	tx repositories.TransactionManager,
	retainer *Retainer,
	pins *PinManager,
	logger *slog.Logger,
) versioningSvc.PageVersionService {
	return &pageVersionService{
		versions: versions,
		pages:    pages,
		seq:      seq,
		tx:       tx,
		retainer: retainer,
		pins:     pins,
		logger:   logger,
	}
}

// UpdatePage applies new html to the live page, records a version for it and
// repoints the page's current pointer, all in one transaction.
func (s *pageVersionService) UpdatePage(ctx context.Context, pageID string, req *versioningSvc.UpdatePageRequest) (*models.PageVersion, error) {
	if err := s.validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	source, err := models.ParseSource(req.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var ver *models.PageVersion
	err = s.tx.ExecTx(ctx, func(txCtx context.Context) error {
		page, err := s.pages.GetByID(txCtx, pageID)
		if err != nil {
			return err
		}

		number, err := s.seq.Next(txCtx, lineagePageVersion, pageID)
		if err != nil {
			return err
		}

		ver = &models.PageVersion{
			ID:            uuid.NewString(),
			PageID:        pageID,
			VersionNumber: number,
			Source:        source,
			HTML:          req.HTML,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.versions.Create(txCtx, ver); err != nil {
			return err
		}

		page.HTML = req.HTML
		if req.Title != "" {
			page.Title = req.Title
		}
		page.CurrentVersionID = &ver.ID
		page.UpdatedAt = time.Now().UTC()
		if err := s.pages.Upsert(txCtx, page); err != nil {
			return err
		}

		return s.retainer.Apply(txCtx, s.versions, pageID, true)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("page version recorded",
		"id", ver.ID,
		"page_id", pageID,
		"version_number", ver.VersionNumber,
		"source", ver.Source,
	)

	return ver, nil
}

// GetVersion returns one page version with its html
func (s *pageVersionService) GetVersion(ctx context.Context, pageID, versionID string) (*models.PageVersion, error) {
	ver, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if ver.PageID != pageID {
		return nil, fmt.Errorf("page version %s: %w", versionID, domain.ErrNotFound)
	}
	return ver, nil
}

// ListVersions returns the page's versions, newest first
func (s *pageVersionService) ListVersions(ctx context.Context, pageID string, includeReleased bool) ([]models.PageVersion, error) {
	return s.versions.ListByPage(ctx, pageID, includeReleased)
}

// PinVersion marks a page version exempt from age-based release
func (s *pageVersionService) PinVersion(ctx context.Context, pageID, versionID string) (*models.PageVersion, error) {
	if _, err := s.GetVersion(ctx, pageID, versionID); err != nil {
		return nil, err
	}
	if err := s.pins.Pin(ctx, s.versions, versionID, true); err != nil {
		return nil, err
	}
	return s.versions.GetByID(ctx, versionID)
}

// UnpinVersion clears the pinned flag and re-applies retention
func (s *pageVersionService) UnpinVersion(ctx context.Context, pageID, versionID string) (*models.PageVersion, error) {
	if _, err := s.GetVersion(ctx, pageID, versionID); err != nil {
		return nil, err
	}
	if err := s.pins.Unpin(ctx, s.versions, versionID, true); err != nil {
		return nil, err
	}
	return s.versions.GetByID(ctx, versionID)
}

// validateUpdateRequest validates a page mutation request
func (s *pageVersionService) validateUpdateRequest(req *versioningSvc.UpdatePageRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.HTML, validation.Required),
		validation.Field(&req.Title, validation.Length(0, config.MaxPageTitleLength)),
	)
}
