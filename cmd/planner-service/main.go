package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/capacity-planner/pkg/common/config"
	"github.com/synaptica-ai/capacity-planner/pkg/common/database"
	"github.com/synaptica-ai/capacity-planner/pkg/common/kafka"
	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/middleware"
	"github.com/synaptica-ai/capacity-planner/pkg/observability/metrics"
	"github.com/synaptica-ai/capacity-planner/pkg/observability/tracing"
	"github.com/synaptica-ai/capacity-planner/pkg/plan"
	"github.com/synaptica-ai/capacity-planner/pkg/projection"
	"github.com/synaptica-ai/capacity-planner/pkg/scenario"
	"github.com/synaptica-ai/capacity-planner/pkg/store"
)

func main() {
	logger.Init()
	cfg := config.Load()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.ConfigFrom(cfg))
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize tracing")
	}
	defer tracing.ShutdownWithTimeout(context.Background(), shutdownTracing)

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to register metrics")
	}

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer database.ClosePostgres()

	tablesRepo := store.NewRepository(db)
	if err := tablesRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate planning tables")
	}
	plansRepo := plan.NewRepository(db)
	if err := plansRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate plans")
	}

	manager, err := loadBaseline(ctx, cfg, tablesRepo)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load planning tables")
	}

	engine := projection.NewEngine(manager,
		projection.WithCache(projection.NewRedisCache(database.GetRedis(cfg), cfg.ProjectionCacheTTL)),
		projection.WithMetrics(collector),
		projection.WithDefaultDuration(cfg.DefaultVisitDurationMinute),
		projection.WithMaxWorkers(cfg.CompareMaxWorkers),
	)
	defer database.CloseRedis()

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.PlanningTopic)
	defer producer.Close()

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.TableUpdatesTopic, cfg.KafkaGroupID)
	defer consumer.Close()
	go func() {
		if err := consumer.Consume(ctx, store.ReloadHandler(tablesRepo, manager)); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Error("Table update consumer stopped")
		}
	}()

	var archiver plan.Archiver
	if cfg.PlanArchiveBucket != "" {
		s3Archiver, err := plan.NewS3Archiver(ctx, cfg.PlanArchiveBucket, cfg.PlanArchiveRegion)
		if err != nil {
			logger.Log.WithError(err).Warn("Plan archive disabled")
		} else {
			archiver = s3Archiver
		}
	}
	plans := plan.NewService(engine, plansRepo, archiver, producer, collector)

	router := mux.NewRouter()
	router.Use(middleware.Logging(collector))
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(fmt.Sprintf(`{"status":"ready","table_version":%d}`, manager.Version())))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1/planning").Subrouter()
	projection.NewHandler(engine, manager, tablesRepo, producer).
		WithSessions(scenario.NewRegistry(cfg.SessionIdleTTL, cfg.MaxSessions)).
		Register(api)
	plan.NewHandler(plans).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Planner Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Planner Service...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Planner Service stopped")
}

// loadBaseline seeds an empty store, validates the stored tables and
// re-applies persisted overrides on top of them.
func loadBaseline(ctx context.Context, cfg *config.Config, repo *store.Repository) (*scenario.Manager, error) {
	if cfg.SeedOnStartup {
		seed, err := store.LoadSeed(cfg.SeedTablesPath)
		if err != nil {
			return nil, err
		}
		if _, err := repo.SeedIfEmpty(ctx, seed); err != nil {
			return nil, err
		}
	}

	tables, err := repo.LoadTables(ctx)
	if err != nil {
		return nil, err
	}
	issues, err := store.Validate(tables)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		logger.Log.WithFields(map[string]interface{}{
			"kind":    issue.Kind,
			"service": issue.Service,
		}).Warn(issue.Detail)
	}

	manager := scenario.NewManager(tables)
	rates, gender, err := repo.LoadOverrides(ctx)
	if err != nil {
		return nil, err
	}
	if len(rates) > 0 {
		if err := manager.SetRateOverrides(rates); err != nil {
			return nil, fmt.Errorf("stored rate overrides: %w", err)
		}
	}
	if len(gender) > 0 {
		if err := manager.SetGenderOverrides(gender); err != nil {
			return nil, fmt.Errorf("stored gender overrides: %w", err)
		}
	}
	return manager, nil
}
