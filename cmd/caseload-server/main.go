package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/caseload/internal/config"
	"github.com/ehr/caseload/internal/domain/caseload"
	"github.com/ehr/caseload/internal/platform/auth"
	"github.com/ehr/caseload/internal/platform/db"
	"github.com/ehr/caseload/internal/platform/middleware"
	"github.com/ehr/caseload/internal/platform/telemetry"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "caseload-server",
		Short:         "Caseload query API server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(composeCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the caseload API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	catalog, err := caseload.LoadCatalogFile(cfg.CatalogPath)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.CatalogPath).Msg("failed to load caseload catalog")
		return err
	}
	logger.Info().
		Int("search_queries", len(catalog.SearchQueries())).
		Strs("categories", catalog.Categories()).
		Msg("caseload catalog loaded")

	ctx := context.Background()
	store, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect to database")
		return err
	}
	defer store.close()
	logger.Info().Str("driver", cfg.DBDriver).Msg("connected to database")

	metrics := telemetry.NewMetrics("caseload")
	e := newServer(cfg, logger, catalog, store, metrics)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// storage is the executor and health probe for the configured driver.
type storage struct {
	dialect caseload.Dialect
	exec    caseload.Executor
	pinger  db.Pinger
	pool    *pgxpool.Pool
	sqlDB   *sql.DB
	close   func()
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	dialect, err := caseload.DialectByName(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	switch dialect.(type) {
	case caseload.SQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &storage{
			dialect: dialect,
			exec:    caseload.NewSQLExecutor(sqlDB),
			pinger:  db.SQLPinger{DB: sqlDB},
			sqlDB:   sqlDB,
			close:   func() { _ = sqlDB.Close() },
		}, nil
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &storage{
			dialect: dialect,
			exec:    caseload.NewPGExecutor(pool),
			pinger:  pool,
			pool:    pool,
			close:   pool.Close,
		}, nil
	}
}

func newServer(cfg *config.Config, logger zerolog.Logger, catalog *caseload.Catalog, store *storage, metrics *telemetry.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader, "X-Tenant-ID"},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
	}))
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Ops endpoints stay outside auth
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(store.pinger))
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}
	if store.pool != nil {
		apiV1.Use(db.TenantMiddleware(store.pool, cfg.DefaultTenant))
	}
	apiV1.Use(middleware.Audit(logger))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	svc := caseload.NewService(catalog, store.dialect, store.exec, logger, metrics)
	caseload.NewHandler(svc, cfg.MaxPageSize).RegisterRoutes(apiV1)

	return e
}
