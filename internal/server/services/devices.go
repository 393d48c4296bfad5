package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/booksync/internal/server/auth"
	"github.com/dmitrijs2005/booksync/internal/server/config"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DeviceService registers and deactivates devices.
type DeviceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	secretKey   []byte
}

// NewDeviceService constructs a DeviceService using repositories and server config.
func NewDeviceService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *DeviceService {
	return &DeviceService{db: db, repomanager: m, secretKey: []byte(cfg.SecretKey)}
}

// Register creates an active device and returns it with its freshly minted
// secret. The secret is only ever shown here.
func (s *DeviceService) Register(ctx context.Context, name, platform string) (*models.Device, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("device name is empty")
	}

	id := uuid.NewString()
	secret, err := auth.GenerateDeviceSecret(id, s.secretKey)
	if err != nil {
		return nil, fmt.Errorf("error minting device secret: %w", err)
	}

	d, err := s.repomanager.Devices(s.db).Create(ctx, &models.Device{
		ID:          id,
		SecretToken: secret,
		Name:        name,
		Platform:    strings.TrimSpace(platform),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating device: %w", err)
	}
	return d, nil
}

// Deactivate switches the device off. Its secret stops working at once.
func (s *DeviceService) Deactivate(ctx context.Context, deviceID string) error {
	if err := s.repomanager.Devices(s.db).Deactivate(ctx, deviceID); err != nil {
		return fmt.Errorf("error deactivating device: %w", err)
	}
	return nil
}
