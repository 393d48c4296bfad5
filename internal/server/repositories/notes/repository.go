package notes

import (
	"context"

	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
)

// Repository stores notes keyed by record id.
type Repository interface {
	versioned.Table[string, models.Note]

	Get(ctx context.Context, recordID string) (*models.Note, error)
	ListForDevice(ctx context.Context, deviceID string, recordIDs []string) ([]*models.Note, error)
	HasLive(ctx context.Context, recordID string) (bool, error)
}
