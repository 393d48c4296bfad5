package chargeitems

import (
	"context"

	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
)

type Repository interface {
	versioned.Table[string, models.ChargeItem]

	ListByRecord(ctx context.Context, recordID string) ([]*models.ChargeItem, error)
	HasLive(ctx context.Context, recordID string) (bool, error)
}
