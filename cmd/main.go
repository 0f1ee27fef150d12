package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"eventform/cmd/buildCFG"
	"eventform/internal/api/api"
	rabbitReader "eventform/internal/consumerWorker"
	"eventform/internal/export"
	"eventform/internal/mailer"
	"eventform/internal/metrics"
	"eventform/internal/notify"
	"eventform/internal/rabbit"
	"eventform/internal/ratelimit"
	"eventform/internal/repo"
	"eventform/internal/service"
)

func main() {
	zlog.Init()
	log := zlog.Logger
	log.Info().Msg("Starting event registration service")

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", ""); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}

	serverCfg, err := buildCFG.BuildServerConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid server config")
	}
	loc := buildCFG.BuildLocation(cfg, &log)
	m := metrics.New()

	exportCfg := buildCFG.BuildExportConfig(cfg)
	if err := os.MkdirAll(exportCfg.Dir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", exportCfg.Dir).Msg("cannot create export directory")
	}

	repository, closeRepo := buildRepository(cfg, &log)
	defer closeRepo()

	rateCfg, err := buildCFG.BuildRateLimitConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rate limit config")
	}
	rateStore, closeRate := buildRateStore(rateCfg, &log)
	defer closeRate()

	smtpCfg := buildCFG.BuildSMTPConfig(cfg)
	sender := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     smtpCfg.Host,
		Port:     smtpCfg.Port,
		Username: smtpCfg.Username,
		Password: smtpCfg.Password,
	}, &log)

	notifyCfg, err := buildCFG.BuildNotifyConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid notify config")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	var (
		queue       notify.Queue
		stopWorkers func()
	)
	switch notifyCfg.Transport {
	case buildCFG.TransportRabbitMQ:
		rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
		}
		rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue, &log)
		if err != nil {
			log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rmq.Close()

		reader := rabbitReader.NewReader(rmq, sender, notifyCfg.SendTimeout, &log, m)
		reader.Start(workerCtx)

		queue = rmq
		stopWorkers = reader.Stop
	default:
		pool := notify.NewPool(sender, notifyCfg.Workers, notifyCfg.QueueSize, notifyCfg.SendTimeout, &log, m)
		pool.Start(workerCtx)

		queue = pool
		stopWorkers = pool.Stop
	}
	log.Info().Str("transport", notifyCfg.Transport).Msg("notification transport ready")

	mailCfg := buildCFG.BuildMailConfig(cfg)
	dispatcher := notify.NewDispatcher(queue, notify.Config{
		From:         mailCfg.From,
		StaffAddress: mailCfg.StaffAddress,
		Office: notify.Office{
			Name:  mailCfg.OfficeName,
			Phone: mailCfg.OfficePhone,
			Email: mailCfg.OfficeEmail,
		},
		Location: loc,
	}, &log, m)

	paymentCfg, err := buildCFG.BuildPaymentConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid payment config")
	}

	serviceInstance := service.NewService(
		repository,
		dispatcher,
		export.NewService(exportCfg.Dir, loc, &log),
		service.PaymentConfig{BaseURL: paymentCfg.BaseURL, Amount: paymentCfg.Amount},
		&log,
		m,
	)
	app := api.NewRouters(&api.Routers{
		Service:      serviceInstance,
		Log:          &log,
		Metrics:      m,
		RateStore:    rateStore,
		SubmitLimit:  rateCfg.Limit,
		SubmitWindow: rateCfg.Window,

		TrustedProxies: serverCfg.TrustedProxies,
	})

	srv := &http.Server{Addr: ":" + serverCfg.Port, Handler: app}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Msgf("Error shutting down server: %v", err)
	}

	cancelWorkers()
	stopWorkers()

	log.Info().Msg("Server stopped")
}

func buildRepository(cfg buildCFG.Getter, log *zerolog.Logger) (repo.Repository, func()) {
	driver, err := buildCFG.BuildStorageDriver(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid storage config")
	}
	if driver == buildCFG.StorageMemory {
		log.Info().Msg("Using in-memory application store")
		return repo.NewMemoryRepository(log), func() {}
	}

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	if err := db.Master.Ping(); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewPostgresRepository(db, log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot get working directory")
	}
	if err := repository.MigrateUp(filepath.Join(cwd, "migrations/postgres")); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	return repository, func() {
		if err := db.Master.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close DB")
		}
	}
}

func buildRateStore(rateCfg buildCFG.RateLimitConfig, log *zerolog.Logger) (ratelimit.Store, func()) {
	if rateCfg.Store != buildCFG.RateStoreRedis {
		return ratelimit.NewMemoryStore(rateCfg.Window), func() {}
	}

	client, err := ratelimit.NewRedisClient(context.Background(), rateCfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	log.Info().Msg("Redis rate limit store connected")
	return ratelimit.NewRedisStore(client, "eventform:ratelimit:"), func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis client")
		}
	}
}
