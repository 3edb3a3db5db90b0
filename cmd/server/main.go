package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"zapisly/internal/api"
	"zapisly/internal/audit"
	"zapisly/internal/availability"
	"zapisly/internal/booking"
	"zapisly/internal/config"
	"zapisly/internal/database"
	"zapisly/internal/events"
	"zapisly/internal/metrics"
	"zapisly/internal/notify"
	"zapisly/internal/policy"
	"zapisly/internal/reminders"
	"zapisly/internal/slots"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("ZAPISLY_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	pol := policy.New(policy.Config{
		MinLeadTime:        cfg.MinLeadTime(),
		CancellationCutoff: cfg.CancellationCutoff(),
		ReminderGrace:      cfg.ReminderGrace(),
	}, nil)

	gen := slots.NewGenerator(slots.Options{
		DefaultSlotMinutes: cfg.Booking.DefaultSlotMinutes,
		EnforceSlotEnd:     cfg.Booking.EnforceSlotEnd,
	})
	resolver := availability.NewResolver(db, gen, availability.Options{
		ExcludeBreakRanges: cfg.Availability.ExcludeBreakRanges,
	}, logger)

	var avail booking.Availability = resolver
	if rdb != nil {
		avail = availability.NewCachedResolver(resolver, rdb, cfg.AvailabilityCacheTTL(), logger)
	}

	bus := events.NewBus()
	svc := booking.NewService(db, avail, pol, bus, logger)

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Notifications.TelegramEnabled && cfg.Notifications.BotToken != "" {
		tn, err := notify.NewTelegramNotifier(cfg.Notifications.BotToken, db, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram notifier error")
		}
		notifier = tn
	}
	notify.NewDispatcher(bus, notifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Reminders.Enabled {
		rem := reminders.NewService(reminders.Config{
			CheckInterval: cfg.ReminderCheckInterval(),
			LeadTime:      cfg.ReminderLeadTime(),
			SendRate:      cfg.Reminders.SendRate,
			SendBurst:     cfg.Reminders.SendBurst,
		}, db, notifier, nil, logger)
		rem.Start()
		defer rem.Stop()
	}

	scheduler := cron.New()
	if cfg.Audit.Enabled {
		auditSvc := audit.NewService(audit.Config{
			ExportDir:     cfg.Audit.ExportDir,
			RetentionDays: cfg.Audit.RetentionDays,
		}, db, nil, logger)
		if _, err := scheduler.AddFunc(cfg.AuditSchedule(), func() { auditSvc.Run(ctx) }); err != nil {
			logger.Fatal().Err(err).Msg("invalid audit schedule")
		}
	}
	if cfg.Backup.Enabled {
		interval := cfg.Backup.IntervalHours
		if interval <= 0 {
			interval = 24
		}
		spec := fmt.Sprintf("@every %dh", interval)
		if _, err := scheduler.AddFunc(spec, func() { runBackup(cfg, db, logger) }); err != nil {
			logger.Fatal().Err(err).Msg("invalid backup interval")
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if !cfg.API.Enabled {
		logger.Info().Msg("api disabled, running background services only")
		<-ctx.Done()
		return
	}

	addr := cfg.API.Address
	if addr == "" {
		addr = ":8080"
	}
	server := api.NewHTTPServer(addr, cfg.API.APIKey, svc, logger)
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
	}()

	logger.Info().Msg("zapisly started")
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("api server error")
	}
}

func runBackup(cfg *config.Config, db *database.DB, logger zerolog.Logger) {
	dir := cfg.Backup.Path
	if dir == "" {
		dir = "backups"
	}
	dest := fmt.Sprintf("%s/zapisly_%s.db", dir, time.Now().Format("20060102_150405"))
	if err := db.Backup(cfg.Database.Path, dest); err != nil {
		logger.Error().Err(err).Msg("backup failed")
		return
	}
	logger.Info().Str("dest", dest).Msg("backup written")

	if cfg.Backup.RetentionDays > 0 {
		retention := time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour
		if err := database.CleanupOldBackups(dir, retention); err != nil {
			logger.Error().Err(err).Msg("backup cleanup failed")
		}
	}
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

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
