package access

import "context"

type Repository interface {
	CanAccessBook(ctx context.Context, deviceID, bookID string) (bool, error)
	CanAccessRecord(ctx context.Context, deviceID, recordID string) (bool, error)
	CanLinkRecord(ctx context.Context, deviceID, recordID string) (bool, error)
}
