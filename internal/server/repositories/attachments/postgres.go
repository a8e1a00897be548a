// Package attachments provides the PostgreSQL-backed repository for
// attachment metadata rows.
package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/worklog/internal/common"
	"github.com/dmitrijs2005/worklog/internal/dbx"
	"github.com/dmitrijs2005/worklog/internal/server/models"
)

const attachmentColumns = "id, filename, original_name, file_path, file_size, mime_type, worklog_id, created_at, updated_at"

// PostgresRepository implements attachment metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts one attachment row and fills in the database-assigned
// identity and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	query := `
		INSERT INTO attachments (filename, original_name, file_path, file_size, mime_type, worklog_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		attachment.StoredName, attachment.OriginalName, attachment.StoragePath,
		attachment.SizeBytes, attachment.MimeType, attachment.WorklogID,
	).Scan(&attachment.ID, &attachment.CreatedAt, &attachment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

// GetByID returns one attachment row.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Attachment, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+attachmentColumns+" FROM attachments WHERE id = $1", id)
	return scanAttachmentWithNotFound(row)
}

// GetForOwner returns one attachment row whose parent worklog belongs to
// ownerID. Foreign-owned attachments are indistinguishable from missing ones.
func (r *PostgresRepository) GetForOwner(ctx context.Context, id int64, ownerID string) (*models.Attachment, error) {
	query := `
		SELECT a.id, a.filename, a.original_name, a.file_path, a.file_size, a.mime_type, a.worklog_id, a.created_at, a.updated_at
		FROM attachments a
		JOIN worklogs w ON w.id = a.worklog_id
		WHERE a.id = $1 AND w.user_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, id, ownerID)
	return scanAttachmentWithNotFound(row)
}

// ListByWorklog lists the worklog's attachments in insertion order.
func (r *PostgresRepository) ListByWorklog(ctx context.Context, worklogID int64) ([]models.Attachment, error) {
	query := "SELECT " + attachmentColumns + " FROM attachments WHERE worklog_id = $1 ORDER BY id ASC"
	rows, err := r.db.QueryContext(ctx, query, worklogID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()
	return collectAttachments(rows)
}

// ListByIDsForWorklog narrows ids to rows actually owned by worklogID.
func (r *PostgresRepository) ListByIDsForWorklog(ctx context.Context, worklogID int64, ids []int64) ([]models.Attachment, error) {
	if len(ids) == 0 {
		return []models.Attachment{}, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, worklogID)
	for _, id := range ids {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := "SELECT " + attachmentColumns + " FROM attachments WHERE worklog_id = $1 AND id IN (" +
		strings.Join(placeholders, ", ") + ") ORDER BY id ASC"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attachments by ids: %w", err)
	}
	defer rows.Close()
	return collectAttachments(rows)
}

// Delete removes one attachment row. Deleting an already-deleted row is
// a no-op, which keeps removal idempotent at the caller.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM attachments WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttachment(row rowScanner) (*models.Attachment, error) {
	var item models.Attachment
	if err := row.Scan(
		&item.ID, &item.StoredName, &item.OriginalName, &item.StoragePath,
		&item.SizeBytes, &item.MimeType, &item.WorklogID,
		&item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}

func scanAttachmentWithNotFound(row rowScanner) (*models.Attachment, error) {
	item, err := scanAttachment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("select attachment: %w", err)
	}
	return item, nil
}

func collectAttachments(rows *sql.Rows) ([]models.Attachment, error) {
	result := []models.Attachment{}
	for rows.Next() {
		item, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

var _ Repository = (*PostgresRepository)(nil)
