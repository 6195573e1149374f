package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/pdb-slot-api/internal/handler"
	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/repository"
	"github.com/noah-isme/pdb-slot-api/internal/router"
	"github.com/noah-isme/pdb-slot-api/internal/service"
	"github.com/noah-isme/pdb-slot-api/pkg/cache"
	"github.com/noah-isme/pdb-slot-api/pkg/config"
	"github.com/noah-isme/pdb-slot-api/pkg/database"
	"github.com/noah-isme/pdb-slot-api/pkg/jobs"
	"github.com/noah-isme/pdb-slot-api/pkg/logger"
	"github.com/noah-isme/pdb-slot-api/pkg/pubsub"
)

// @title PDB Slot Claim API
// @version 1.0.0
// @description Teaching-slot registry with claim arbitration, conflict detection and bulk import.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

type stores struct {
	slots     service.SlotStore
	lecturers service.LecturerStore
	settings  service.SettingsStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	var rdb *redis.Client
	if cfg.NeedsRedis() {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		rdb = client
	}

	var db *sqlx.DB
	if cfg.StoreBackend == config.StorePostgres {
		conn, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer conn.Close()
		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(conn.DB, logr); err != nil {
				return err
			}
		}
		db = conn
	}

	st := selectStores(cfg, db, rdb)
	metrics := service.NewMetricsService()
	validate := service.NewValidator()

	var broker pubsub.Broker = pubsub.NewMemoryBroker(logr)
	if cfg.Realtime.Enabled && rdb != nil {
		broker = pubsub.NewRedisBroker(rdb, logr)
	}
	defer broker.Close()

	periods := make([]models.AcademicPeriod, len(cfg.Catalog.Periods))
	for i, p := range cfg.Catalog.Periods {
		periods[i] = models.AcademicPeriod{ID: p.ID, Label: p.Label}
	}
	periodSvc := service.NewPeriodService(periods, cfg.Catalog.ActivePeriodID, st.settings, broker, logr)
	if err := periodSvc.Load(ctx); err != nil {
		logr.Warn("failed to load persisted active period", zap.Error(err))
	}
	go periodSvc.Watch(ctx)

	rooms := make([]models.Room, len(cfg.Catalog.Rooms))
	for i, room := range cfg.Catalog.Rooms {
		rooms[i] = models.Room{Name: room.Name, Capacity: room.Capacity}
	}
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(rdb, logr), metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && rdb != nil)

	slotSvc := service.NewSlotService(st.slots, st.lecturers, periodSvc, cacheSvc, broker, metrics, validate, logr, service.SlotServiceConfig{
		MaxClaimants: cfg.Claims.MaxClaimants,
		Rooms:        rooms,
	})
	importSvc := service.NewImportService(slotSvc, validate, logr)

	var refreshQueue *jobs.Queue
	if cfg.Claims.ReconcileSnapshots {
		refreshQueue = jobs.NewQueue("claimant-refresh", slotSvc.RefreshClaimantJob, jobs.QueueConfig{
			Workers: cfg.Claims.ReconcileWorkers,
			Logger:  logr,
		})
		refreshQueue.Start(ctx)
		defer refreshQueue.Stop()
	}
	var enqueuer interface{ Enqueue(jobs.Job) error }
	if refreshQueue != nil {
		enqueuer = refreshQueue
	}
	lecturerSvc := service.NewLecturerService(st.lecturers, enqueuer, validate, logr)

	authSvc, err := service.NewAuthService(st.lecturers, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		AdminUsername:     cfg.Admin.Username,
		AdminPassword:     cfg.Admin.Password,
	})
	if err != nil {
		return err
	}

	var events interface {
		Subscribe(ctx context.Context, period string) (<-chan models.SlotEvent, func(), error)
	}
	if cfg.Realtime.Enabled {
		events = broker
	}

	location, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		logr.Warn("unknown calendar timezone, using UTC", zap.String("timezone", cfg.Calendar.Timezone), zap.Error(err))
		location = time.UTC
	}

	engine := router.Setup(cfg, router.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Slot:     handler.NewSlotHandler(slotSvc),
		Import:   handler.NewImportHandler(importSvc),
		Lecturer: handler.NewLecturerHandler(lecturerSvc),
		Period:   handler.NewPeriodHandler(periodSvc, events, metrics, cfg.Realtime.Heartbeat),
		Calendar: handler.NewCalendarHandler(slotSvc, location, cfg.Calendar.Weeks),
		Metrics:  handler.NewMetricsHandler(metrics, st.slots),
	}, router.Options{
		Tokens:  authSvc,
		Metrics: metrics,
		Redis:   rdb,
		Logger:  logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func selectStores(cfg *config.Config, db *sqlx.DB, rdb *redis.Client) stores {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		return stores{
			slots:     repository.NewSlotRepository(db),
			lecturers: repository.NewLecturerRepository(db),
			settings:  repository.NewSettingsRepository(db),
		}
	case config.StoreRedis:
		return stores{
			slots:     repository.NewRedisSlotStore(rdb, cfg.Claims.OptimisticRetries),
			lecturers: repository.NewRedisLecturerStore(rdb),
			settings:  repository.NewRedisSettingsStore(rdb),
		}
	default:
		return stores{
			slots:     repository.NewMemorySlotStore(),
			lecturers: repository.NewMemoryLecturerStore(),
			settings:  repository.NewMemorySettingsStore(),
		}
	}
}
