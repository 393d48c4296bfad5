package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/access"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/books"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/chargeitems"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/drawings"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/events"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/notes"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/records"
)

// RepositoryManager vends repositories bound to a handle, so the same code
// runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Devices(db dbx.DBTX) devices.Repository
	Books(db dbx.DBTX) books.Repository
	Access(db dbx.DBTX) access.Repository
	Records(db dbx.DBTX) records.Repository
	Events(db dbx.DBTX) events.Repository
	Notes(db dbx.DBTX) notes.Repository
	Drawings(db dbx.DBTX) drawings.Repository
	ChargeItems(db dbx.DBTX) chargeitems.Repository
}
