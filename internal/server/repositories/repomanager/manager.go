package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/evaluations"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/reference"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Evaluations(db dbx.DBTX) evaluations.Repository
	Reference(db dbx.DBTX) reference.Repository
}
