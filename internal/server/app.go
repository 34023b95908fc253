// Package server wires storage, the session cache and the registration
// services together and runs the HTTP API until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/cache"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/gatekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/redis/go-redis/v9"
)

var (
	_ services.SessionCache = (*cache.RedisSessionCache)(nil)
	_ httpapi.Service       = (*services.RegistrationService)(nil)
)

// seams for tests
var (
	logOutput      io.Writer = os.Stdout
	openDB                   = func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) }
	newRepoManager           = func() repomanager.RepositoryManager { return repomanager.NewPostgresRepositoryManager() }
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	handler http.Handler
}

// NewApp opens the database, applies migrations, connects the optional
// session cache and builds the HTTP handler. On error everything opened so
// far is closed again.
func NewApp(ctx context.Context, c *config.Config) (app *App, err error) {
	logger, err := logging.NewJSONLogger(logOutput, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	hasher, err := cryptox.NewPasswordHasher(c.PasswordHasher, c.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher init error: %w", err)
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app = &App{config: c, logger: logger, db: db}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	rm := newRepoManager()
	if err = rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	var sessionCache services.SessionCache
	if c.RedisURL != "" {
		app.redis, err = cache.Connect(ctx, c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		rc := cache.NewRedisSessionCache(app.redis, c.SessionCacheTTL)
		if err = rc.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis ping error: %w", err)
		}
		sessionCache = rc
		logger.Info(ctx, "session cache enabled", "ttl", c.SessionCacheTTL.String())
	}

	identity, err := services.NewIdentityStore(db, rm, hasher)
	if err != nil {
		return nil, fmt.Errorf("identity store init error: %w", err)
	}
	sessions := services.NewSessionRegistry(db, rm, sessionCache, logger)
	gate := services.NewGate(sessions)
	svc := services.NewRegistrationService(db, identity, sessions, gate, c, logger)

	if c.MetricsEnabled {
		metrics.Init()
	}
	app.handler = httpapi.NewRouter(httpapi.NewHandler(svc, db, logger, c.TrustProxyHeaders), c.MetricsEnabled)

	return app, nil
}

// Handler is the fully wired HTTP handler.
func (app *App) Handler() http.Handler {
	return app.handler
}

// Close releases the database and cache connections.
func (app *App) Close() {
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
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

func (app *App) startHTTPServer(ctx context.Context) error {
	listen, err := net.Listen("tcp", app.config.EndpointAddrHTTP)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// drains in-flight requests and closes the app.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.startHTTPServer(ctx); err != nil {
		app.logger.Error(ctx, "http server error", "error", err)
		return err
	}
	return nil
}
