package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/courseloom/platform/internal"
	"github.com/courseloom/platform/internal/audit"
	auditpostgres "github.com/courseloom/platform/internal/audit/postgres"
	"github.com/courseloom/platform/internal/auth"
	authpostgres "github.com/courseloom/platform/internal/auth/postgres"
	"github.com/courseloom/platform/internal/course"
	coursepostgres "github.com/courseloom/platform/internal/course/postgres"
	"github.com/courseloom/platform/internal/impersonation"
	impersonationpostgres "github.com/courseloom/platform/internal/impersonation/postgres"
	"github.com/courseloom/platform/internal/tenant"
	tenantpostgres "github.com/courseloom/platform/internal/tenant/postgres"
	"github.com/courseloom/platform/internal/transport"
	"github.com/courseloom/platform/internal/transport/rest"
	"github.com/courseloom/platform/internal/user"
	userpostgres "github.com/courseloom/platform/internal/user/postgres"
	"github.com/courseloom/platform/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Router http.Handler
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Server.Environment)
	lg := logger.LoggerWrapper()

	sqlxDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// gorm rides on the already pooled pgx connection.
	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	if config.Observability.Metrics.Enabled {
		transport.InitMetrics()
	}

	auditStore := auditpostgres.NewRepository(gormDB)
	auditor := audit.NewEmitter(auditStore, lg)

	authRepo := authpostgres.NewRepository(gormDB)
	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.JWTSecret,
		config.Security.AccessTokenTTL,
		config.Security.RefreshTokenTTL,
	)
	authService := auth.NewService(authRepo, tokenGen, auditor, lg, auth.ServiceConfig{
		BCryptCost:        config.Security.BCryptCost,
		MinPasswordLength: config.Security.MinPasswordLength,
		NotFoundDelay:     config.Security.LoginNotFoundDelay,
	})
	authHandler := auth.NewHandler(authService, auth.CookieConfig{
		Name:   config.Security.RefreshCookieName,
		MaxAge: config.Security.RefreshTokenTTL,
		Secure: config.Server.Environment == "production",
	})

	userRepo := userpostgres.NewRepository(gormDB)
	userService := user.NewService(userRepo, auditor, lg)
	userHandler := user.NewHandler(userService)

	tenantRepo := tenantpostgres.NewRepository(gormDB)
	tenantService := tenant.NewService(tenantRepo, auditor, lg)
	tenantHandler := tenant.NewHandler(tenantService)

	impersonationRepo := impersonationpostgres.NewRepository(gormDB)
	impersonationService := impersonation.NewService(
		impersonationRepo, authRepo, tokenGen, auditor, lg, config.Security.ImpersonationTTL)
	impersonationHandler := impersonation.NewHandler(impersonationService)

	courseRepo := coursepostgres.NewRepository(gormDB)
	courseService := course.NewService(courseRepo, auditor, lg)
	courseHandler := course.NewHandler(courseService)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, config, rest.Handlers{
		Auth:          authHandler,
		User:          userHandler,
		Tenant:        tenantHandler,
		Impersonation: impersonationHandler,
		Course:        courseHandler,
		Audit:         auditor,
	}, lg)

	return &Dependencies{
		Config: config,
		DB:     sqlxDB,
		Router: router,
		Logger: lg,
	}, nil
}

// initDB opens and verifies the pooled connection via the pgx stdlib driver.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
