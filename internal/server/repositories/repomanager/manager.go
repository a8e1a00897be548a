// Package repomanager vends repository implementations bound to an explicit
// database handle, so services can run several repositories inside one
// transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/worklog/internal/dbx"
	"github.com/dmitrijs2005/worklog/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/worklog/internal/server/repositories/worklogs"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Worklogs(db dbx.DBTX) worklogs.Repository
	Attachments(db dbx.DBTX) attachments.Repository
}
