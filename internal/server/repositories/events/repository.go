package events

import (
	"context"

	"github.com/dmitrijs2005/booksync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, e *models.Event) (*models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	GetForUpdate(ctx context.Context, id string) (*models.Event, error)
	Update(ctx context.Context, e *models.Event) (*models.Event, error)
	MarkSuperseded(ctx context.Context, id, newEventID, reason string) (*models.Event, error)
	SoftDelete(ctx context.Context, id string) (*models.Event, error)
	SetHasNote(ctx context.Context, recordID string, value bool) (int64, error)
	SetHasChargeItems(ctx context.Context, recordID string, value bool) (int64, error)
}
