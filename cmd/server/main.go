package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kitahara/bunko/internal/infrastructure/config"
	"github.com/kitahara/bunko/internal/infrastructure/database"
	"github.com/kitahara/bunko/internal/infrastructure/metrics"
	"github.com/kitahara/bunko/internal/repositories/postgres"
	"github.com/kitahara/bunko/internal/services"
	"github.com/kitahara/bunko/pkg/cache/memorycache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultEnv           = "dev"
	migrationsPathSuffix = "internal/infrastructure/database/migrations/postgres"
)

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pg.Close()

	logger.Info("connected to database",
		zap.String("user", cfg.Database.User),
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Database))

	// Apply pending schema migrations on startup
	migrationsPath, err := resolveMigrationsPath()
	if err != nil {
		logger.Fatal("failed to resolve migrations path", zap.Error(err))
	}
	if err := pg.RunMigrations(migrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize metrics
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector)
	instruments := &metrics.Instruments{Collector: collector, Exporter: exporter}

	// Initialize storage
	store := postgres.NewPostgresStore(pg.DB, cfg.Database.StatementTimeout())

	// Assemble the service layer
	app := &application{
		db:          pg,
		collections: services.NewCollectionService(store, logger, instruments),
		grants:      services.NewGrantService(store, logger, instruments),
		memberships: services.NewMembershipService(store, logger, instruments),
	}
	if cfg.Cache.Enabled {
		listingCache := memorycache.New(&memorycache.Config{
			MaxEntries:    cfg.Cache.MaxEntries,
			DefaultTTL:    cfg.Cache.TTL(),
			EnableMetrics: true,
		})
		defer listingCache.Close()
		collector.SetCache(listingCache)
		app.discovery = services.NewDiscoveryServiceWithCache(store, logger, instruments, listingCache, cfg.Cache.TTL())
	} else {
		app.discovery = services.NewDiscoveryService(store, logger, instruments)
	}

	// Serve Prometheus metrics and health alongside the service layer
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", app.healthz)

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// Periodically sync gauge values to the exporter
	syncDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				exporter.Update()
			case <-syncDone:
				return
			}
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		logger.Fatal("server error", zap.Error(err))
	case sig := <-sigChan:
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))

		close(syncDone)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}

		if err := pg.Close(); err != nil {
			logger.Warn("error closing database connection", zap.Error(err))
		}

		logger.Info("shutdown complete")
	}
}

// application holds the assembled service layer. The request transport
// mounts its handlers on top of these services.
type application struct {
	db          *database.Postgres
	collections services.CollectionServiceInterface
	grants      services.GrantServiceInterface
	memberships services.MembershipServiceInterface
	discovery   services.DiscoveryServiceInterface
}

func (a *application) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.db.HealthCheck(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func resolveMigrationsPath() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return filepath.Join(dir, migrationsPathSuffix), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
