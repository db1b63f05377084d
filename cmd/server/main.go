package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salonbook/internal/api"
	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/cache"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/report"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		logger = logger.Level(level)
	}
	if !cfg.Logging.Pretty {
		logger = zerolog.New(os.Stdout).Level(logger.GetLevel()).With().Timestamp().Logger()
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Booking.Timezone).Msg("invalid timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("redis unavailable")
		}
	}

	catalog := cache.NewCatalog(db, rdb, cfg.CacheTTL(), m, &logger)
	bus := events.NewEventBus(&logger)
	subscribe(bus, catalog, &logger)

	err = config.WatchSalon(ctx, cfg.Salon.Path, cfg.SalonWatchInterval(), &logger, func(salon *config.SalonConfig) {
		syncCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		stats, err := db.SyncSalon(syncCtx, salon.Catalog())
		if err != nil {
			logger.Error().Err(err).Msg("salon sync failed")
			return
		}
		m.SetSyncedResources(stats.Resources)
		if err := bus.PublishJSON(events.SalonSynced, stats); err != nil {
			logger.Warn().Err(err).Msg("failed to publish sync event")
		}
	})
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Salon.Path).Msg("failed to load salon config")
	}

	engine := availability.NewEngine(availability.Deps{
		Catalog:   catalog,
		Skills:    db,
		Windows:   db,
		Bookings:  db,
		Directory: db,
		Clock:     availability.SystemClock{Location: loc},
		Observer:  m,
	}, availability.Options{
		Granularity:     cfg.Booking.GranularityMinutes,
		MinBlockMinutes: cfg.Booking.MinBlockMinutes,
		MaxAdvanceDays:  cfg.Booking.MaxAdvanceDays,
		Workers:         cfg.Booking.ListWorkers,
	}, &logger)

	var locker booking.Locker = booking.NewKeyedMutex()
	if rdb != nil {
		locker = booking.NewRedisLocker(rdb, cfg.LockTTL())
	}
	committer := booking.NewCommitter(engine, db, db, locker, bus, &logger).WithRecorder(m)

	backups := database.NewBackupService(db, database.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		Interval:      time.Duration(cfg.Backup.IntervalHours) * time.Hour,
		StoragePath:   cfg.Backup.Path,
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backups.Start(ctx)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, reg, &logger)
	}

	srv := api.NewHTTPServer(api.Config{
		APIKeys:            cfg.Server.APIKeys,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout(),
	}, engine, committer, report.NewBuilder(engine, db), m, &logger)

	if len(cfg.Server.APIKeys) == 0 {
		logger.Warn().Msg("no api keys configured, the API is open")
	}
	logger.Info().Int("port", cfg.Server.Port).Msg("salonbook API started")
	serve(ctx, cfg.Server.Port, srv.Routes(), "api", &logger)
}

func subscribe(bus *events.EventBus, catalog *cache.Catalog, logger *zerolog.Logger) {
	bus.Subscribe(events.BookingCreated, func(e events.Event) error {
		logger.Debug().Str("event_id", e.ID).RawJSON("payload", e.Payload).Msg("booking created event")
		return nil
	})
	bus.Subscribe(events.SalonSynced, func(e events.Event) error {
		var stats database.SyncStats
		if err := e.Decode(&stats); err != nil {
			return err
		}
		logger.Info().
			Int("branches", stats.Branches).
			Int("services", stats.Services).
			Int("resources", stats.Resources).
			Int("deactivated", stats.Deactivated).
			Msg("salon synced")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return catalog.Invalidate(ctx)
	})
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serve(ctx, port, mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, reg *prometheus.Registry, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	serve(ctx, port, mux, "metrics", logger)
}

// serve runs an HTTP server until ctx is cancelled.
func serve(ctx context.Context, port int, handler http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
