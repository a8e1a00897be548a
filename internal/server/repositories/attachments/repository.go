package attachments

import (
	"context"

	"github.com/dmitrijs2005/worklog/internal/server/models"
)

// Repository is the attachment metadata persistence surface. Blob bytes are
// never touched here; only rows.
type Repository interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	GetByID(ctx context.Context, id int64) (*models.Attachment, error)
	// GetForOwner resolves an attachment together with its parent worklog's
	// ownership: rows whose worklog belongs to a different owner come back
	// as not found.
	GetForOwner(ctx context.Context, id int64, ownerID string) (*models.Attachment, error)
	ListByWorklog(ctx context.Context, worklogID int64) ([]models.Attachment, error)
	// ListByIDsForWorklog returns only the rows whose id is in ids AND whose
	// worklog_id matches. Ids belonging to other worklogs are silently
	// absent from the result.
	ListByIDsForWorklog(ctx context.Context, worklogID int64, ids []int64) ([]models.Attachment, error)
	Delete(ctx context.Context, id int64) error
}
