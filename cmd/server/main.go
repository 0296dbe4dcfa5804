package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asagiri/genbamon/internal/handlers"
	"github.com/asagiri/genbamon/internal/infrastructure/config"
	"github.com/asagiri/genbamon/internal/infrastructure/database"
	"github.com/asagiri/genbamon/internal/infrastructure/metrics"
	"github.com/asagiri/genbamon/internal/repositories/postgres"
	"github.com/asagiri/genbamon/internal/services"
	"github.com/asagiri/genbamon/internal/services/resolver"
	"github.com/asagiri/genbamon/pkg/cache/memorycache"
)

const defaultEnv = "dev"

func main() {
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	catalog, err := cfg.Tools.Catalog()
	if err != nil {
		log.Fatalf("Failed to load tool catalog: %v", err)
	}

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	log.Printf("Connected to database: %s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database)

	// Initialize repositories
	templateRepo := postgres.NewPostgresTemplateRepository(pg.DB)
	assignmentRepo := postgres.NewPostgresAssignmentRepository(pg.DB)

	// Initialize services
	templateService := services.NewTemplateService(templateRepo, catalog)
	assignmentService := services.NewAssignmentService(templateRepo, assignmentRepo)

	collector := metrics.NewCollector()

	var permissionResolver resolver.ResolverInterface
	if cfg.Cache.Enabled {
		resolutionCache := memorycache.New(memorycache.Config{
			MaxEntries: cfg.Cache.MaxEntries,
			DefaultTTL: time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		})
		defer resolutionCache.Close()
		collector.SetCache(resolutionCache)

		permissionResolver = resolver.NewResolverWithCache(
			templateRepo,
			assignmentRepo,
			catalog,
			resolutionCache,
			postgres.NewSnapshotManager(pg.DB),
			time.Duration(cfg.Cache.TTLMinutes)*time.Minute,
		)
		log.Printf("Resolution cache enabled (max %d entries, TTL %dm)",
			cfg.Cache.MaxEntries, cfg.Cache.TTLMinutes)
	} else {
		permissionResolver = resolver.NewResolver(templateRepo, assignmentRepo, catalog)
	}

	exporter := metrics.NewPrometheusExporter(collector)

	// Build the API router
	router := mux.NewRouter()
	router.Use(metrics.Middleware(collector, exporter))

	handlers.NewTemplateHandler(templateService).RegisterRoutes(router)
	handlers.NewAssignmentHandler(assignmentService).RegisterRoutes(router)
	handlers.NewResolverHandler(permissionResolver).RegisterRoutes(router)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.HealthCheck(); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: metricsMux,
	}

	// Refresh gauge metrics periodically
	gaugeTicker := time.NewTicker(10 * time.Second)
	defer gaugeTicker.Stop()
	go func() {
		for range gaugeTicker.C {
			exporter.Update()
		}
	}()

	serverErrors := make(chan error, 2)
	go func() {
		log.Printf("HTTP server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		log.Printf("Metrics server listening on %s", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		log.Println("Initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Metrics server shutdown error: %v", err)
		}

		if err := pg.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}

		log.Println("Shutdown complete")
	}
}
