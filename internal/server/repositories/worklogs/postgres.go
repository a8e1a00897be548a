// Package worklogs provides the PostgreSQL-backed repository for worklog
// rows, including the ownership-scoped listing queries.
package worklogs

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

const worklogColumns = "id, title, content, log_date, user_id, created_at, updated_at"

// PostgresRepository implements worklog storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// buildListFilter renders the WHERE clause for an owner-scoped listing.
// The owner predicate always comes first; every other filter is additive.
func buildListFilter(ownerID string, f Filters) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{ownerID}

	if f.FromDate != nil {
		args = append(args, f.FromDate.Format(models.DateOnly))
		clauses = append(clauses, fmt.Sprintf("log_date >= $%d", len(args)))
	}
	if f.ToDate != nil {
		args = append(args, f.ToDate.Format(models.DateOnly))
		clauses = append(clauses, fmt.Sprintf("log_date <= $%d", len(args)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(content) LIKE $%d)", n, n))
	}

	return strings.Join(clauses, " AND "), args
}

// ListForOwner returns one page of the owner's worklogs, newest log date
// first with created_at as the deterministic tie-break.
func (r *PostgresRepository) ListForOwner(ctx context.Context, ownerID string, f Filters, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	where, args := buildListFilter(ownerID, f)

	var total int
	countQuery := "SELECT COUNT(*) FROM worklogs WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count worklogs: %w", err)
	}

	query := "SELECT " + worklogColumns + " FROM worklogs WHERE " + where +
		" ORDER BY log_date DESC, created_at DESC" +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, PageSize, (page-1)*PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list worklogs: %w", err)
	}
	defer rows.Close()

	items := []*models.Worklog{}
	for rows.Next() {
		item, err := scanWorklog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := (total + PageSize - 1) / PageSize
	return &Page{
		Items:      items,
		TotalCount: total,
		Number:     page,
		Size:       PageSize,
		TotalPages: totalPages,
	}, nil
}

// RecentForOwner returns the owner's newest worklogs, at most limit rows,
// with the same ordering as ListForOwner. It backs the dashboard view.
func (r *PostgresRepository) RecentForOwner(ctx context.Context, ownerID string, limit int) ([]*models.Worklog, error) {
	query := "SELECT " + worklogColumns + " FROM worklogs WHERE user_id = $1" +
		" ORDER BY log_date DESC, created_at DESC LIMIT $2"

	rows, err := r.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent worklogs: %w", err)
	}
	defer rows.Close()

	items := []*models.Worklog{}
	for rows.Next() {
		item, err := scanWorklog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// GetByID returns one worklog row without attachments.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Worklog, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+worklogColumns+" FROM worklogs WHERE id = $1", id)
	return scanWorklogWithNotFound(row)
}

// GetForOwner returns one worklog row scoped to its owner. A worklog that
// exists under a different owner is reported as not found.
func (r *PostgresRepository) GetForOwner(ctx context.Context, id int64, ownerID string) (*models.Worklog, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+worklogColumns+" FROM worklogs WHERE id = $1 AND user_id = $2", id, ownerID)
	return scanWorklogWithNotFound(row)
}

// Create inserts a worklog row for ownerID and returns it with the
// database-assigned identity and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, ownerID string, fields models.CreateWorklogFields) (*models.Worklog, error) {
	query := `
		INSERT INTO worklogs (title, content, log_date, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + worklogColumns
	row := r.db.QueryRowContext(ctx, query,
		fields.Title, fields.Content, fields.LogDate.Format(models.DateOnly), ownerID)

	worklog, err := scanWorklog(row)
	if err != nil {
		return nil, fmt.Errorf("insert worklog: %w", err)
	}
	return worklog, nil
}

// Update rewrites the mutable fields of one worklog row. The owner is never
// touched.
func (r *PostgresRepository) Update(ctx context.Context, id int64, fields models.UpdateWorklogFields) (*models.Worklog, error) {
	query := `
		UPDATE worklogs
		SET title = $1, content = $2, log_date = $3, updated_at = now()
		WHERE id = $4
		RETURNING ` + worklogColumns
	row := r.db.QueryRowContext(ctx, query,
		fields.Title, fields.Content, fields.LogDate.Format(models.DateOnly), id)

	return scanWorklogWithNotFound(row)
}

// Delete removes one worklog row. Attachment rows and blobs are the
// lifecycle orchestrator's responsibility, not this layer's.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM worklogs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete worklog: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorklog(row rowScanner) (*models.Worklog, error) {
	var item models.Worklog
	if err := row.Scan(
		&item.ID, &item.Title, &item.Content, &item.LogDate,
		&item.OwnerID, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}

func scanWorklogWithNotFound(row rowScanner) (*models.Worklog, error) {
	item, err := scanWorklog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("select worklog: %w", err)
	}
	return item, nil
}

var _ Repository = (*PostgresRepository)(nil)
