package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vainnor/atc-hours/api"
	"github.com/vainnor/atc-hours/collector"
	"github.com/vainnor/atc-hours/config"
	"github.com/vainnor/atc-hours/db"
	"github.com/vainnor/atc-hours/logging"
	"github.com/vainnor/atc-hours/metrics"
	"github.com/vainnor/atc-hours/services/datafeed"
	"github.com/vainnor/atc-hours/services/notify"
)

func main() {
	configPath := pflag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	envFile := pflag.String("env-file", "", "env file to load (default .env)")
	once := pflag.Bool("once", false, "run a single reconciliation cycle and exit")
	pflag.Parse()

	// Load environment variables
	envErr := config.LoadEnvFile(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn("error loading env file", zap.Error(envErr))
	}

	if err := run(cfg, logger, *once); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.CreateTables(ctx, conn); err != nil {
		return err
	}
	store := db.NewStore(conn)

	source, closeSource, err := newSnapshotSource(cfg.Snapshot)
	if err != nil {
		return err
	}
	defer closeSource()

	notifier, closeNotifier := newNotifier(cfg.Notify, logger)
	defer closeNotifier()

	m := metrics.New(prometheus.DefaultRegisterer)

	c := collector.NewCollector(collector.Options{
		Facilities:     cfg.Facilities,
		Interval:       cfg.Interval,
		GracePeriod:    cfg.GracePeriod,
		SnapshotMaxAge: cfg.SnapshotMaxAge,
		NotifyTimeout:  cfg.Notify.Timeout,
	}, collector.Deps{
		Source:   source,
		Members:  store,
		Sessions: store,
		Roster:   store,
		Notifier: notifier,
		Metrics:  m,
		Logger:   logger.Named("collector"),
	})

	if once {
		return c.Reconcile(ctx)
	}

	router := api.NewRouter(&api.Handlers{
		Stats:  c,
		Roster: store,
		Ledger: store,
		Log:    logger.Named("api"),
	}, promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.WithMiddleware(router, zap.NewStdLog(logger.Named("http")).Writer()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the API server in a goroutine
	go func() {
		logger.Info("starting API server", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server failed", zap.Error(err))
			stop()
		}
	}()

	err = c.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("API server shutdown", zap.Error(shutdownErr))
	}

	return err
}

func newSnapshotSource(cfg config.Snapshot) (collector.SnapshotSource, func(), error) {
	switch cfg.Source {
	case config.SourceHTTP:
		return datafeed.NewHTTPSource(cfg.URL), func() {}, nil
	case config.SourceRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return datafeed.NewRedisSource(rdb, cfg.RedisKey), func() { rdb.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown snapshot source %q", cfg.Source)
}

func newNotifier(cfg config.Notify, logger *zap.Logger) (collector.Notifier, func()) {
	var notifiers notify.Multi
	closeFn := func() {}

	if cfg.SessionsWebhook != "" || cfg.AlertsWebhook != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.SessionsWebhook, cfg.AlertsWebhook, cfg.Timeout))
	}
	if len(cfg.KafkaBrokers) > 0 {
		k := notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.Timeout)
		notifiers = append(notifiers, k)
		closeFn = func() {
			if err := k.Close(); err != nil {
				logger.Warn("closing kafka notifier", zap.Error(err))
			}
		}
	}

	if len(notifiers) == 0 {
		logger.Info("no notification destinations configured")
		return notify.Nop{}, closeFn
	}
	return notifiers, closeFn
}
