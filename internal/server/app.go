// Package server wires the FileKeeper components together and runs the
// HTTP API and the gRPC health endpoint until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/auth"
	"github.com/dmitrijs2005/filekeeper/internal/server/config"
	"github.com/dmitrijs2005/filekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/filekeeper/internal/server/objectstore"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/filekeeper/internal/server/services"

	gs "github.com/dmitrijs2005/filekeeper/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	store      objectstore.Store
	httpServer *httpapi.HTTPServer
	grpcServer *gs.GRPCServer
}

// openDB is swapped in tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := newStore(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	var principals users.Repository = manager.Users(db)
	if c.UserCacheSize > 0 {
		principals = users.NewCachedRepository(principals, c.UserCacheSize, c.UserCacheTTL)
	}

	hasher := auth.NewPasswordHasher()
	tokens := auth.NewTokenService([]byte(c.SecretKey), c.AccessTokenValidityDuration)
	authenticator := auth.NewAuthenticator(principals, hasher, tokens)

	us := services.NewUserService(db, manager, hasher, tokens, authenticator)
	fs := services.NewFileService(db, manager, store, logger)

	app := &App{
		config:     c,
		logger:     logger,
		db:         db,
		store:      store,
		httpServer: httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, us, fs, authenticator, c.MaxUploadBytes),
	}
	app.grpcServer = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, app.readinessChecks()...)

	return app, nil
}

func newStore(ctx context.Context, c *config.Config) (objectstore.Store, error) {
	switch c.StorageDriver {
	case config.StorageDriverS3:
		return objectstore.NewS3Store(ctx, objectstore.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	default:
		return objectstore.NewLocalStore(c.UploadsDir)
	}
}

func (app *App) readinessChecks() []gs.ReadinessCheck {
	checks := []gs.ReadinessCheck{gs.CheckFunc(app.db.PingContext)}
	if p, ok := app.store.(objectstore.Pinger); ok {
		checks = append(checks, gs.CheckFunc(p.Ping))
	}
	return checks
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a termination signal arrives or one of
// the servers fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageDriver)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
