package records

import (
	"context"

	"github.com/dmitrijs2005/booksync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, r *models.Record) (*models.Record, error)
	Get(ctx context.Context, id string) (*models.Record, error)
	FindLinkable(ctx context.Context, deviceID, number string) (*models.Record, error)
}
