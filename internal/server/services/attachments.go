// Package services contains server-side business logic: the attachment
// manager and the worklog lifecycle orchestrator.
package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/worklog/internal/blobstore"
	"github.com/dmitrijs2005/worklog/internal/common"
	"github.com/dmitrijs2005/worklog/internal/dbx"
	"github.com/dmitrijs2005/worklog/internal/logging"
	"github.com/dmitrijs2005/worklog/internal/server/models"
	"github.com/dmitrijs2005/worklog/internal/server/repositories/repomanager"
)

const (
	// MaxFilesPerRequest caps how many files one attach call accepts.
	MaxFilesPerRequest = 10
	// MaxFileSizeBytes caps a single uploaded file at 10 MB.
	MaxFileSizeBytes = 10 << 20
)

// allowedExtensions is the upload allow-list. The boundary validates this
// too; the manager re-checks defensively.
var allowedExtensions = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "txt": {},
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
	"zip": {}, "rar": {},
	"xlsx": {}, "xls": {}, "pptx": {}, "ppt": {}, "csv": {},
}

// AttachmentManager converts uploaded-file descriptors into stored blobs
// plus metadata rows, and removes both with a defined failure policy.
//
// Blob writes and deletes happen outside the caller's database transaction;
// metadata mutations go through the passed-in DBTX so they commit or roll
// back with the rest of the lifecycle operation.
type AttachmentManager struct {
	repomanager repomanager.RepositoryManager
	blobStore   blobstore.BlobStore
	logger      logging.Logger
}

// NewAttachmentManager constructs an AttachmentManager.
func NewAttachmentManager(m repomanager.RepositoryManager, bs blobstore.BlobStore, logger logging.Logger) *AttachmentManager {
	return &AttachmentManager{repomanager: m, blobStore: bs, logger: logger}
}

// ExtensionAllowed reports whether a filename's extension is on the upload
// allow-list.
func ExtensionAllowed(filename string) bool {
	_, ok := allowedExtensions[normalizedExt(filename)]
	return ok
}

func normalizedExt(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// validateFiles re-applies the boundary's upload policy.
func validateFiles(files []models.UploadedFile) error {
	if len(files) > MaxFilesPerRequest {
		return fmt.Errorf("%w: at most %d files per request", common.ErrValidation, MaxFilesPerRequest)
	}
	for _, f := range files {
		if f.SizeBytes < 0 {
			return fmt.Errorf("%w: negative file size for %q", common.ErrValidation, f.OriginalName)
		}
		if f.SizeBytes > MaxFileSizeBytes {
			return fmt.Errorf("%w: file %q exceeds %d bytes", common.ErrValidation, f.OriginalName, MaxFileSizeBytes)
		}
		if !ExtensionAllowed(f.OriginalName) {
			return fmt.Errorf("%w: file type of %q is not allowed", common.ErrValidation, f.OriginalName)
		}
		if f.Content == nil {
			return fmt.Errorf("%w: file %q has no content", common.ErrValidation, f.OriginalName)
		}
	}
	return nil
}

// Attach stores each uploaded file and creates its metadata row, in input
// order. A blob-store failure aborts immediately: the metadata inserted so
// far rolls back with the caller's transaction, while blobs already written
// stay behind as unreferenced files (accepted gap, swept offline).
func (m *AttachmentManager) Attach(ctx context.Context, tx dbx.DBTX, worklogID int64, files []models.UploadedFile) ([]models.Attachment, error) {
	if len(files) == 0 {
		return []models.Attachment{}, nil
	}
	if err := validateFiles(files); err != nil {
		return nil, err
	}

	repo := m.repomanager.Attachments(tx)

	result := make([]models.Attachment, 0, len(files))
	for _, f := range files {
		stored, err := m.blobStore.Store(ctx, f.Content, normalizedExt(f.OriginalName))
		if err != nil {
			return nil, fmt.Errorf("store attachment %q: %w", f.OriginalName, err)
		}

		attachment := &models.Attachment{
			WorklogID:    worklogID,
			StoredName:   stored.StoredName,
			OriginalName: f.OriginalName,
			StoragePath:  stored.StoragePath,
			SizeBytes:    f.SizeBytes,
			MimeType:     f.MimeType,
		}
		if err := repo.Create(ctx, attachment); err != nil {
			return nil, err
		}
		result = append(result, *attachment)
	}

	return result, nil
}

// Remove deletes the blobs and metadata rows of the given attachment ids.
// Ids that belong to a different worklog are silently ignored. Per item the
// blob goes first, so a crash leaves at worst an orphaned metadata row
// rather than an unreferenced blob behind a live row.
func (m *AttachmentManager) Remove(ctx context.Context, tx dbx.DBTX, worklogID int64, attachmentIDs []int64) error {
	if len(attachmentIDs) == 0 {
		return nil
	}

	repo := m.repomanager.Attachments(tx)
	rows, err := repo.ListByIDsForWorklog(ctx, worklogID, attachmentIDs)
	if err != nil {
		return err
	}
	return m.removeRows(ctx, tx, rows)
}

// RemoveAllForWorklog cascades over every attachment of one worklog, with
// the same per-item ordering as Remove.
func (m *AttachmentManager) RemoveAllForWorklog(ctx context.Context, tx dbx.DBTX, worklogID int64) error {
	repo := m.repomanager.Attachments(tx)
	rows, err := repo.ListByWorklog(ctx, worklogID)
	if err != nil {
		return err
	}
	return m.removeRows(ctx, tx, rows)
}

func (m *AttachmentManager) removeRows(ctx context.Context, tx dbx.DBTX, rows []models.Attachment) error {
	repo := m.repomanager.Attachments(tx)
	for i := range rows {
		row := &rows[i]

		// Blob deletion is best-effort: a failure leaves an orphaned blob,
		// which never blocks the metadata transaction.
		deleted, err := m.blobStore.Delete(ctx, row.StoragePath)
		if err != nil {
			m.logger.Warn(ctx, "blob delete failed, leaving orphaned blob",
				"attachment_id", row.ID, "storage_path", row.StoragePath, "error", err.Error())
		} else if !deleted {
			m.logger.Debug(ctx, "blob already absent", "storage_path", row.StoragePath)
		}

		if err := repo.Delete(ctx, row.ID); err != nil {
			return err
		}
	}
	return nil
}
