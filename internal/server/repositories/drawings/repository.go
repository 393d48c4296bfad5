package drawings

import (
	"context"
	"time"

	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
)

// Repository stores drawings keyed by (book, date, view mode).
type Repository interface {
	versioned.Table[models.DrawingKey, models.Drawing]

	Get(ctx context.Context, key models.DrawingKey) (*models.Drawing, error)
	ListRange(ctx context.Context, deviceID, bookID string, from, to time.Time) ([]*models.Drawing, error)
}
