package worklogs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/worklog/internal/server/models"
)

// PageSize is the fixed number of worklogs per listing page.
const PageSize = 10

// Filters narrows a listing. Zero-valued members are skipped.
type Filters struct {
	// FromDate includes worklogs with log_date >= FromDate (inclusive).
	FromDate *time.Time
	// ToDate includes worklogs with log_date <= ToDate (inclusive).
	ToDate *time.Time
	// Search matches a case-insensitive substring in title or content.
	// Blank (after trimming) means no search filter.
	Search string
}

// Page is one slice of an owner's worklogs plus the metadata needed to
// render prev/next links.
type Page struct {
	Items      []*models.Worklog
	TotalCount int
	Number     int
	Size       int
	TotalPages int
}

// HasPrev reports whether a previous page exists.
func (p *Page) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a next page exists.
func (p *Page) HasNext() bool { return p.Number < p.TotalPages }

// Repository is the worklog row persistence surface. Implementations do
// pure record mutation: no file I/O and no transaction management; callers
// pass the transactional handle via the repomanager.
type Repository interface {
	ListForOwner(ctx context.Context, ownerID string, f Filters, page int) (*Page, error)
	RecentForOwner(ctx context.Context, ownerID string, limit int) ([]*models.Worklog, error)
	GetByID(ctx context.Context, id int64) (*models.Worklog, error)
	GetForOwner(ctx context.Context, id int64, ownerID string) (*models.Worklog, error)
	Create(ctx context.Context, ownerID string, fields models.CreateWorklogFields) (*models.Worklog, error)
	Update(ctx context.Context, id int64, fields models.UpdateWorklogFields) (*models.Worklog, error)
	Delete(ctx context.Context, id int64) error
}
