// Package server wires storage, services and transports of the sync server
// and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/booksync/internal/logging"
	"github.com/dmitrijs2005/booksync/internal/server/config"
	"github.com/dmitrijs2005/booksync/internal/server/metrics"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/booksync/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/booksync/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	metrics  *metrics.Metrics
	services gs.Services
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(logging.Options{Format: c.LogFormat, File: c.LogFile})

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	gate := services.NewGate(db, rm, c)
	svc := gs.Services{
		Gate:        gate,
		Devices:     services.NewDeviceService(db, rm, c),
		Books:       services.NewBookService(db, rm, gate),
		Events:      services.NewEventService(db, rm, gate, logger),
		Notes:       services.NewNoteService(db, rm, gate),
		Drawings:    services.NewDrawingService(db, rm, gate),
		ChargeItems: services.NewChargeItemService(db, rm, gate),
		Batch:       services.NewBatchService(db, rm, gate, c, logger),
		Backups:     services.NewBackupService(gate, c),
	}

	return &App{config: c, logger: logger, db: db, metrics: metrics.New(), services: svc}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.metrics, app.services)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startAdminServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := metrics.NewAdminServer(app.config.AdminAddr, metrics.NewAdminRouter(app.metrics, app.db), app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startAdminServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
	app.logger.Info(ctx, "Stopped")
}
