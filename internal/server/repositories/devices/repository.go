package devices

import (
	"context"
	"time"

	"github.com/dmitrijs2005/booksync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, d *models.Device) (*models.Device, error)
	Get(ctx context.Context, id string) (*models.Device, error)
	Deactivate(ctx context.Context, id string) error
	TouchLastSync(ctx context.Context, id string, at time.Time) error
}
