package books

import (
	"context"

	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
)

type Repository interface {
	versioned.Table[string, models.Book]

	Create(ctx context.Context, b *models.Book) (*models.Book, error)
	Get(ctx context.Context, id string) (*models.Book, error)
	GrantAccess(ctx context.Context, bookID, deviceID string) error
	RevokeAccess(ctx context.Context, bookID, deviceID string) error
}
