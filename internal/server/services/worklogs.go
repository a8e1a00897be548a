package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/worklog/internal/blobstore"
	"github.com/dmitrijs2005/worklog/internal/common"
	"github.com/dmitrijs2005/worklog/internal/dbx"
	"github.com/dmitrijs2005/worklog/internal/logging"
	"github.com/dmitrijs2005/worklog/internal/server/models"
	"github.com/dmitrijs2005/worklog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/worklog/internal/server/repositories/worklogs"
)

const maxTitleLength = 255

// RecentWorklogsLimit caps the dashboard's recent-worklogs view.
const RecentWorklogsLimit = 5

// WorklogService orchestrates the worklog+attachment lifecycle. Each
// operation runs the metadata mutations of one call inside a single
// transaction; blob I/O is delegated to the attachment manager and happens
// outside that transaction.
type WorklogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	attachments *AttachmentManager
	blobStore   blobstore.BlobStore
	logger      logging.Logger
}

// NewWorklogService constructs a WorklogService.
func NewWorklogService(db *sql.DB, m repomanager.RepositoryManager, am *AttachmentManager, bs blobstore.BlobStore, logger logging.Logger) *WorklogService {
	return &WorklogService{
		db:          db,
		repomanager: m,
		attachments: am,
		blobStore:   bs,
		logger:      logger,
	}
}

// DownloadResolution tells the transport layer where to stream an
// attachment from and what filename to suggest to the client.
type DownloadResolution struct {
	// Location is an absolute filesystem path or a presigned URL,
	// depending on the blob backend.
	Location string
	// SuggestedFilename is the attachment's original (display) name.
	SuggestedFilename string
}

func validateFields(ownerID, title, content string, logDateZero bool) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner id is required", common.ErrValidation)
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", common.ErrValidation)
	}
	if len(title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", common.ErrValidation, maxTitleLength)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", common.ErrValidation)
	}
	if logDateZero {
		return fmt.Errorf("%w: log date is required", common.ErrValidation)
	}
	return nil
}

// Create inserts a worklog row and attaches the given files, all metadata
// in one transaction. If any step fails, no metadata is committed;
// already-written blobs are not rolled back (documented gap).
func (s *WorklogService) Create(ctx context.Context, ownerID string, fields models.CreateWorklogFields, newFiles []models.UploadedFile) (*models.Worklog, error) {
	if err := validateFields(ownerID, fields.Title, fields.Content, fields.LogDate.IsZero()); err != nil {
		return nil, err
	}

	var created *models.Worklog
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		worklog, err := s.repomanager.Worklogs(tx).Create(ctx, ownerID, fields)
		if err != nil {
			return err
		}

		worklog.Attachments = []models.Attachment{}
		if len(newFiles) > 0 {
			attached, err := s.attachments.Attach(ctx, tx, worklog.ID, newFiles)
			if err != nil {
				return err
			}
			worklog.Attachments = attached
		}

		created = worklog
		return nil
	})
	if err != nil {
		if isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create worklog: %w", err)
	}

	return created, nil
}

// Update rewrites the worklog's fields, removes the requested attachments,
// and attaches new files, in that order, inside one transaction. Removal
// before addition keeps a remove+add request for the same logical slot from
// colliding.
func (s *WorklogService) Update(ctx context.Context, id int64, ownerID string, fields models.UpdateWorklogFields, newFiles []models.UploadedFile, removeFileIDs []int64) (*models.Worklog, error) {
	if err := validateFields(ownerID, fields.Title, fields.Content, fields.LogDate.IsZero()); err != nil {
		return nil, err
	}
	if _, err := s.repomanager.Worklogs(s.db).GetForOwner(ctx, id, ownerID); err != nil {
		return nil, err
	}

	var updated *models.Worklog
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		worklog, err := s.repomanager.Worklogs(tx).Update(ctx, id, fields)
		if err != nil {
			return err
		}

		if len(removeFileIDs) > 0 {
			if err := s.attachments.Remove(ctx, tx, id, removeFileIDs); err != nil {
				return err
			}
		}
		if len(newFiles) > 0 {
			if _, err := s.attachments.Attach(ctx, tx, id, newFiles); err != nil {
				return err
			}
		}

		remaining, err := s.repomanager.Attachments(tx).ListByWorklog(ctx, id)
		if err != nil {
			return err
		}
		worklog.Attachments = remaining

		updated = worklog
		return nil
	})
	if err != nil {
		if isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update worklog: %w", err)
	}

	return updated, nil
}

// Delete cascades over the worklog's attachments (blob first, then row,
// best-effort forward-only on the blob side) and removes the worklog row,
// with all row deletions in one transaction. Physical blob deletion always
// happens in application code, regardless of any database-level cascade.
func (s *WorklogService) Delete(ctx context.Context, id int64, ownerID string) error {
	if _, err := s.repomanager.Worklogs(s.db).GetForOwner(ctx, id, ownerID); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.attachments.RemoveAllForWorklog(ctx, tx, id); err != nil {
			return err
		}
		return s.repomanager.Worklogs(tx).Delete(ctx, id)
	})
	if err != nil {
		if isSentinel(err) {
			return err
		}
		return fmt.Errorf("delete worklog: %w", err)
	}
	return nil
}

// Get returns one of the owner's worklogs with attachments loaded.
func (s *WorklogService) Get(ctx context.Context, id int64, ownerID string) (*models.Worklog, error) {
	worklog, err := s.repomanager.Worklogs(s.db).GetForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	attached, err := s.repomanager.Attachments(s.db).ListByWorklog(ctx, id)
	if err != nil {
		return nil, err
	}
	worklog.Attachments = attached
	return worklog, nil
}

// List returns one page of the owner's worklogs, each with attachments
// loaded. Read paths bypass the lifecycle transaction entirely.
func (s *WorklogService) List(ctx context.Context, ownerID string, f worklogs.Filters, page int) (*worklogs.Page, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", common.ErrValidation)
	}

	result, err := s.repomanager.Worklogs(s.db).ListForOwner(ctx, ownerID, f, page)
	if err != nil {
		return nil, err
	}

	attachmentRepo := s.repomanager.Attachments(s.db)
	for _, item := range result.Items {
		attached, err := attachmentRepo.ListByWorklog(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		item.Attachments = attached
	}

	return result, nil
}

// Recent returns the owner's newest worklogs for the dashboard, capped at
// RecentWorklogsLimit, each with attachments loaded.
func (s *WorklogService) Recent(ctx context.Context, ownerID string) ([]*models.Worklog, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", common.ErrValidation)
	}

	items, err := s.repomanager.Worklogs(s.db).RecentForOwner(ctx, ownerID, RecentWorklogsLimit)
	if err != nil {
		return nil, err
	}

	attachmentRepo := s.repomanager.Attachments(s.db)
	for _, item := range items {
		attached, err := attachmentRepo.ListByWorklog(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		item.Attachments = attached
	}

	return items, nil
}

// ResolveDownload maps an attachment id to a streamable location. The
// lookup is owner-scoped; an attachment whose blob has gone missing is
// reported as not found even though its metadata row exists.
func (s *WorklogService) ResolveDownload(ctx context.Context, attachmentID int64, ownerID string) (*DownloadResolution, error) {
	attachment, err := s.repomanager.Attachments(s.db).GetForOwner(ctx, attachmentID, ownerID)
	if err != nil {
		return nil, err
	}

	exists, err := s.blobStore.Exists(ctx, attachment.StoragePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		s.logger.Warn(ctx, "attachment row without blob",
			"attachment_id", attachment.ID, "storage_path", attachment.StoragePath)
		return nil, fmt.Errorf("%w: attachment content missing", common.ErrNotFound)
	}

	location, err := s.blobStore.ResolveForStreaming(ctx, attachment.StoragePath)
	if err != nil {
		return nil, err
	}

	return &DownloadResolution{
		Location:          location,
		SuggestedFilename: attachment.OriginalName,
	}, nil
}

// isSentinel keeps already-classified errors from picking up another
// layer of wrapping on the way out.
func isSentinel(err error) bool {
	for _, sentinel := range []error{common.ErrNotFound, common.ErrValidation, common.ErrForbidden, common.ErrStorageIO} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
