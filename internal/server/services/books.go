package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
	"github.com/google/uuid"
)

// BookService manages books and their access grants. Metadata edits and
// deletes go through the conditional write protocol.
type BookService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *Gate
}

func NewBookService(db *sql.DB, m repomanager.RepositoryManager, gate *Gate) *BookService {
	return &BookService{db: db, repomanager: m, gate: gate}
}

// Create makes a new book owned by the device.
func (s *BookService) Create(ctx context.Context, deviceID, name string) (*models.Book, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("book name is empty")
	}

	b, err := s.repomanager.Books(s.db).Create(ctx, &models.Book{ID: uuid.NewString(), OwnerDeviceID: deviceID, Name: name})
	if err != nil {
		return nil, fmt.Errorf("error creating book: %w", err)
	}
	return b, nil
}

// Update renames and archives or unarchives a book at the expected version.
func (s *BookService) Update(ctx context.Context, deviceID, bookID string, expected *int64, name string, archived bool) (*models.Book, error) {
	if err := validateIDs(bookID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("book name is empty")
	}
	if err := s.gate.AuthorizeBook(ctx, nil, deviceID, bookID); err != nil {
		return nil, err
	}

	payload := &models.Book{Name: name}
	if archived {
		now := time.Now().UTC()
		payload.ArchivedAt = &now
	}
	return versioned.Update(ctx, s.repomanager.Books(s.db), bookID, expected, payload)
}

// Delete soft-deletes a book. Only the owner may do it.
func (s *BookService) Delete(ctx context.Context, deviceID, bookID string, expected *int64) (*models.Book, error) {
	if err := validateIDs(bookID); err != nil {
		return nil, err
	}

	var out *models.Book
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.requireOwner(ctx, tx, deviceID, bookID); err != nil {
			return err
		}
		var err error
		out, err = versioned.Delete(ctx, s.repomanager.Books(tx), bookID, expected)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GrantAccess lets another active device use the book. Owner only.
func (s *BookService) GrantAccess(ctx context.Context, deviceID, bookID, targetDeviceID string) error {
	if err := validateIDs(bookID, targetDeviceID); err != nil {
		return err
	}
	if targetDeviceID == deviceID {
		return validationf("owner already has access")
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.requireOwner(ctx, tx, deviceID, bookID); err != nil {
			return err
		}
		target, err := s.repomanager.Devices(tx).Get(ctx, targetDeviceID)
		if err != nil {
			return err
		}
		if !target.Active {
			return fmt.Errorf("device %s is inactive: %w", targetDeviceID, common.ErrorNotFound)
		}
		return s.repomanager.Books(tx).GrantAccess(ctx, bookID, targetDeviceID)
	})
}

// RevokeAccess removes a grant. Owner only.
func (s *BookService) RevokeAccess(ctx context.Context, deviceID, bookID, targetDeviceID string) error {
	if err := validateIDs(bookID, targetDeviceID); err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.requireOwner(ctx, tx, deviceID, bookID); err != nil {
			return err
		}
		return s.repomanager.Books(tx).RevokeAccess(ctx, bookID, targetDeviceID)
	})
}

func (s *BookService) requireOwner(ctx context.Context, tx dbx.DBTX, deviceID, bookID string) error {
	if err := s.gate.AuthorizeBook(ctx, tx, deviceID, bookID); err != nil {
		return err
	}
	b, err := s.repomanager.Books(tx).Get(ctx, bookID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUnauthorizedBook
		}
		return err
	}
	if b.OwnerDeviceID != deviceID {
		return common.ErrUnauthorizedBook
	}
	return nil
}
