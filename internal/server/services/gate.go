package services

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/auth"
	"github.com/dmitrijs2005/booksync/internal/server/config"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/repomanager"
)

// Gate authenticates devices and checks the ownership chain of books and
// records. Entity services call it before touching storage and never check
// ownership themselves.
type Gate struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	secretKey   []byte
}

// NewGate constructs a Gate using repositories and server config.
func NewGate(db dbx.DBTX, m repomanager.RepositoryManager, cfg *config.Config) *Gate {
	return &Gate{db: db, repomanager: m, secretKey: []byte(cfg.SecretKey)}
}

// Authenticate confirms the device exists, is active and presents exactly
// its stored secret.
func (g *Gate) Authenticate(ctx context.Context, deviceID, secret string) (*models.Device, error) {
	if deviceID == "" || secret == "" {
		return nil, common.ErrMissingCredentials
	}

	claimed, err := auth.DeviceIDFromSecret(secret, g.secretKey)
	if err != nil || claimed != deviceID {
		return nil, common.ErrInvalidCredentials
	}

	d, err := g.repomanager.Devices(g.db).Get(ctx, deviceID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !d.Active || subtle.ConstantTimeCompare([]byte(d.SecretToken), []byte(secret)) != 1 {
		return nil, common.ErrInvalidCredentials
	}
	return d, nil
}

// AuthorizeBook confirms the device owns or was granted the live book. Pass
// a transaction handle to check inside it, or nil for the gate's own handle.
func (g *Gate) AuthorizeBook(ctx context.Context, db dbx.DBTX, deviceID, bookID string) error {
	ok, err := g.repomanager.Access(g.handle(db)).CanAccessBook(ctx, deviceID, bookID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrUnauthorizedBook
	}
	return nil
}

// AuthorizeRecord confirms the record is reachable through a live event in
// a book the device can access.
func (g *Gate) AuthorizeRecord(ctx context.Context, db dbx.DBTX, deviceID, recordID string) error {
	ok, err := g.repomanager.Access(g.handle(db)).CanAccessRecord(ctx, deviceID, recordID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrUnauthorizedRecord
	}
	return nil
}

// AuthorizeRecordLink confirms the device may attach a new event to the
// record: it is reachable, or every event of it is deleted and one of them
// sat in a book the device can access.
func (g *Gate) AuthorizeRecordLink(ctx context.Context, db dbx.DBTX, deviceID, recordID string) error {
	ok, err := g.repomanager.Access(g.handle(db)).CanLinkRecord(ctx, deviceID, recordID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrUnauthorizedRecord
	}
	return nil
}

func (g *Gate) handle(db dbx.DBTX) dbx.DBTX {
	if db == nil {
		return g.db
	}
	return db
}
