package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/admitgate/internal/auth/http"
	"github.com/aussiebroadwan/admitgate/internal/auth/notify"
	"github.com/aussiebroadwan/admitgate/internal/auth/service"
	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"github.com/aussiebroadwan/admitgate/internal/auth/store/drivers/mongo"
	redisdrv "github.com/aussiebroadwan/admitgate/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/admitgate/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/admitgate/pkg/cryptox"
	"github.com/aussiebroadwan/admitgate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"

	startupTimeout = 15 * time.Second
)

// Application encapsulates the identity service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	notifier notify.Notifier
	closers  []io.Closer
	pepper   string

	// Services
	otpManager          *service.OtpManager
	sessionIssuer       *service.SessionIssuer
	credentialService   *service.CredentialService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	return NewWithLogger(cfg, slogx.New(slogx.Config{
		Service: "admitgate",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}))
}

// NewWithLogger is New with a caller supplied logger.
func NewWithLogger(cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}

	ctx, cancel := context.WithTimeout(slogx.WithContext(context.Background(), logger), startupTimeout)
	defer cancel()

	pepper, err := cryptox.LoadPepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.pepper = pepper

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := app.initNotifier(ctx); err != nil {
		app.closeAll()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		app.closeAll()
		return nil, err
	}

	if err := app.bootstrapAdmin(ctx); err != nil {
		app.closeAll()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Handler exposes the routed handler, mostly for in-process tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("identity service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"database", app.cfg.DatabaseDriver,
		"otp_backend", app.cfg.OtpBackend,
		"notifier", app.cfg.Notifier,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		app.closeAll()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	// Close notifier and database connections
	if err := app.closeAll(); err != nil {
		app.logger.Error("error closing resources", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

// closeAll releases resources in reverse order of acquisition.
func (app *Application) closeAll() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i].Close())
	}
	app.closers = nil
	return errors.Join(errs...)
}

// initDatabase opens the account store, applies migrations and optionally
// moves pending codes onto redis.
func (app *Application) initDatabase(ctx context.Context) error {
	var base store.Store
	switch app.cfg.DatabaseDriver {
	case DriverMongo:
		db, err := mongo.NewStore(ctx, app.cfg.MongoURI, app.cfg.MongoDatabase)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		base = db
	default:
		db, err := sqlite.NewStore(sqlite.FileDSN(app.cfg.DatabaseFile))
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		base = db
	}

	if err := base.ApplyMigrations(ctx); err != nil {
		_ = base.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)

	if app.cfg.OtpBackend == OtpBackendRedis {
		otps, err := redisdrv.New(ctx, redisdrv.Options{
			Addr:      app.cfg.RedisAddr,
			Password:  app.cfg.RedisPassword,
			DB:        app.cfg.RedisDB,
			Prefix:    app.cfg.RedisPrefix,
			Retention: app.cfg.OtpRetention,
		})
		if err != nil {
			_ = base.Close()
			return fmt.Errorf("failed to connect otp backend: %w", err)
		}
		base = store.WithPendingOtps(base, otps)
		app.logger.Info("pending codes served from redis", "addr", app.cfg.RedisAddr)
	}

	app.db = base
	app.closers = append(app.closers, base)
	return nil
}

// initNotifier selects how codes leave the process.
func (app *Application) initNotifier(ctx context.Context) error {
	switch app.cfg.Notifier {
	case NotifierLive:
		r := &notify.Router{}
		if app.cfg.SMSAPIURL != "" {
			r.Phone = notify.NewSMSClient(app.cfg.SMSAPIKey, app.cfg.SMSAPIURL, app.cfg.SMSSender)
		}
		if app.cfg.SMTPAddr != "" {
			r.Email = &notify.SMTPNotifier{
				Addr:     app.cfg.SMTPAddr,
				Username: app.cfg.SMTPUsername,
				Password: app.cfg.SMTPPassword,
				From:     app.cfg.SMTPFrom,
			}
		}
		app.notifier = r
	case NotifierQueue:
		q, err := notify.NewQueueNotifierContext(ctx, app.cfg.AMQPURL, app.cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("failed to connect delivery queue: %w", err)
		}
		app.notifier = q
		app.closers = append(app.closers, q)
	default:
		app.logger.Warn("codes are written to the log, do not use outside development")
		app.notifier = notify.LogNotifier{}
	}
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	secret, err := app.sessionSecret()
	if err != nil {
		return err
	}

	app.sessionIssuer, err = service.NewSessionIssuer(secret, app.cfg.SessionIssuer, app.cfg.SessionTTL, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize session issuer: %w", err)
	}

	passwords := cryptox.NewPasswordHasher(app.pepper)

	app.otpManager = &service.OtpManager{
		Store:           app.db,
		Notifier:        app.notifier,
		Pepper:          app.pepper,
		PhoneTTL:        app.cfg.OtpPhoneTTL,
		EmailTTL:        app.cfg.OtpEmailTTL,
		MaxAttempts:     app.cfg.OtpMaxAttempts,
		DeliveryTimeout: app.cfg.OtpDeliveryTimeout,
	}

	app.credentialService = &service.CredentialService{
		Store:                 app.db,
		Otp:                   app.otpManager,
		Sessions:              app.sessionIssuer,
		Passwords:             passwords,
		CountryCode:           app.cfg.DefaultCountryCode,
		RequireCodeOnRegister: app.cfg.RegisterRequireCode,
	}

	app.bootstrapService = &service.BootstrapService{
		Store:     app.db,
		Passwords: passwords,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.OtpRetention,
	)
	return nil
}

// sessionSecret returns the configured HS256 secret. Outside prod an unset
// secret is replaced by a random one, so sessions do not survive a restart.
func (app *Application) sessionSecret() ([]byte, error) {
	if app.cfg.SessionSecret != "" {
		return []byte(app.cfg.SessionSecret), nil
	}

	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	app.logger.Warn("SESSION_SECRET not set, using an ephemeral secret")
	return []byte(secret), nil
}

// bootstrapAdmin seeds the configured admin account, if any.
func (app *Application) bootstrapAdmin(ctx context.Context) error {
	if app.cfg.BootstrapAdmin == "" {
		return nil
	}

	id, err := app.cfg.BootstrapIdentity()
	if err != nil {
		return fmt.Errorf("invalid bootstrap admin: %w", err)
	}

	res, err := app.bootstrapService.EnsureAdmin(ctx, id, app.cfg.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	switch {
	case res.GeneratedPassword != "":
		// Printed once; it is not recoverable afterwards.
		app.logger.Warn("bootstrap admin created with generated password",
			slog.String("account_id", res.Account.ID),
			slog.String("password", res.GeneratedPassword),
		)
	case res.Created:
		app.logger.Info("bootstrap admin created", slog.String("account_id", res.Account.ID))
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.credentialService,
		app.db,
		BuildVersion,
		app.logger,
	)
	router.RateLimits = httpapi.RateLimits{
		Strict:     app.cfg.RateLimitStrict,
		Moderate:   app.cfg.RateLimitModerate,
		Public:     app.cfg.RateLimitPublic,
		TrustProxy: app.cfg.TrustProxy,
	}
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
