// Package grpc is the gRPC transport of the sync server. Messages travel as
// JSON (see api.Codec); the service descriptor is declared by hand in
// service.go.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/booksync/internal/api"
	"github.com/dmitrijs2005/booksync/internal/logging"
	"github.com/dmitrijs2005/booksync/internal/server/metrics"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/services"
	"google.golang.org/grpc"
)

type Authenticator interface {
	Authenticate(ctx context.Context, deviceID, secret string) (*models.Device, error)
}

type DeviceService interface {
	Register(ctx context.Context, name, platform string) (*models.Device, error)
	Deactivate(ctx context.Context, deviceID string) error
}

type BookService interface {
	Create(ctx context.Context, deviceID, name string) (*models.Book, error)
	Update(ctx context.Context, deviceID, bookID string, expected *int64, name string, archived bool) (*models.Book, error)
	Delete(ctx context.Context, deviceID, bookID string, expected *int64) (*models.Book, error)
	GrantAccess(ctx context.Context, deviceID, bookID, targetDeviceID string) error
	RevokeAccess(ctx context.Context, deviceID, bookID, targetDeviceID string) error
}

type EventService interface {
	Create(ctx context.Context, deviceID string, in services.CreateEventInput) (*models.Event, error)
	Get(ctx context.Context, deviceID, eventID string) (*services.EventView, error)
	Update(ctx context.Context, deviceID, eventID string, expected *int64, patch models.EventPatch) (*models.Event, error)
	Remove(ctx context.Context, deviceID, eventID, reason string) (*models.Event, error)
	Restore(ctx context.Context, deviceID, eventID string) (*models.Event, error)
	Reschedule(ctx context.Context, deviceID, eventID string, start time.Time, end *time.Time, reason string) (*models.Event, *models.Event, error)
	Delete(ctx context.Context, deviceID, eventID string) (*models.Event, error)
}

type NoteService interface {
	Get(ctx context.Context, deviceID, recordID string) (*models.Note, error)
	Upsert(ctx context.Context, deviceID string, w services.NoteWrite) (*models.Note, error)
	Delete(ctx context.Context, deviceID, recordID string, expected *int64) (*models.Note, error)
	ListForDevice(ctx context.Context, deviceID string, recordIDs []string) ([]*models.Note, error)
}

type DrawingService interface {
	Get(ctx context.Context, deviceID string, key models.DrawingKey) (*models.Drawing, error)
	Upsert(ctx context.Context, deviceID string, w services.DrawingWrite) (*models.Drawing, error)
	Delete(ctx context.Context, deviceID string, key models.DrawingKey, expected *int64) (*models.Drawing, error)
	ListRange(ctx context.Context, deviceID, bookID string, from, to time.Time) ([]*models.Drawing, error)
}

type ChargeItemService interface {
	Save(ctx context.Context, deviceID string, w services.ChargeItemWrite) (*models.ChargeItem, error)
	Delete(ctx context.Context, deviceID, itemID string, expected *int64) (*models.ChargeItem, error)
	List(ctx context.Context, deviceID, recordID string) ([]*models.ChargeItem, error)
}

type BatchService interface {
	Save(ctx context.Context, deviceID string, notes []services.NoteWrite, drawings []services.DrawingWrite) (*services.BatchResult, error)
}

type BackupService interface {
	RequestUpload(ctx context.Context, deviceID, bookID string) (*services.BackupTicket, error)
	RequestDownload(ctx context.Context, deviceID, key string) (*services.BackupTicket, error)
}

// Services bundles the business logic the transport dispatches to.
type Services struct {
	Gate        Authenticator
	Devices     DeviceService
	Books       BookService
	Events      EventService
	Notes       NoteService
	Drawings    DrawingService
	ChargeItems ChargeItemService
	Batch       BatchService
	Backups     BackupService
}

type GRPCServer struct {
	address string
	svc     Services
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewGRPCServer(address string, l logging.Logger, m *metrics.Metrics, svc Services) *GRPCServer {
	return &GRPCServer{
		address: address,
		svc:     svc,
		logger:  l.With("module", "grpc_server"),
		metrics: m,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(api.Codec{}),
		grpc.ChainUnaryInterceptor(s.observeInterceptor, s.statusInterceptor, s.credentialsInterceptor),
	)
	srv.RegisterService(&serviceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
