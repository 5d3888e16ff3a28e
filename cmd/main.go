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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"eventhub/cmd/buildCFG"
	"eventhub/internal/api/api"
	"eventhub/internal/auth"
	"eventhub/internal/blob"
	rabbitReader "eventhub/internal/consumerWorker"
	"eventhub/internal/docstore"
	"eventhub/internal/docstore/memory"
	"eventhub/internal/docstore/postgres"
	"eventhub/internal/mailer"
	"eventhub/internal/metrics"
	"eventhub/internal/payment"
	"eventhub/internal/rabbit"
	"eventhub/internal/service"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "EVENTHUB"); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	storeCfg, err := buildCFG.BuildStoreConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build store config")
	}
	store, pg, migrationPath := openStore(cfg, storeCfg, &log)
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	var direct mailer.Sender = mailer.NewLogSender(&log)
	if smtpCfg, ok := buildCFG.BuildMailConfig(cfg, &log); ok {
		direct = mailer.NewSMTPSender(smtpCfg, &log)
	}
	sender := direct

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	var reader *rabbitReader.Reader
	if rabbitCfg.Enabled {
		rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue, &log)
		if err != nil {
			log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rmq.Close()

		sender = rabbit.NewMailSender(rmq)
		reader = rabbitReader.NewReader(rmq, direct, &log)
		reader.Start(workerCtx)
	}

	var gateway payment.Gateway = payment.Disabled{}
	if key := buildCFG.BuildStripeKey(cfg, &log); key != "" {
		gateway = payment.NewStripeGateway(key)
	}

	blobCfg, err := buildCFG.BuildBlobConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build blob config")
	}
	var blobs blob.Store = blob.NewMemory()
	if blobCfg.Driver == "s3" {
		s3Store, err := blob.NewS3(context.Background(), blobCfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init S3 blob store")
		}
		blobs = s3Store
	}

	authCfg, err := buildCFG.BuildAuthConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build auth config")
	}

	serviceInstance := service.NewService(store, &log,
		service.WithConfig(buildCFG.BuildServiceConfig(cfg)),
		service.WithHasher(auth.NewBcryptHasher(authCfg.BcryptCost)),
		service.WithMailer(sender),
		service.WithPayments(gateway),
		service.WithBlobStore(blobs),
		service.WithMetrics(recorder),
	)

	if admin, ok := buildCFG.BuildAdminConfig(cfg); ok {
		if err := serviceInstance.EnsureAdmin(context.Background(), admin.Name, admin.Email, admin.Password); err != nil {
			log.Fatal().Err(err).Msg("failed to seed admin account")
		}
	}

	app := api.NewRouters(&api.Routers{
		Service:        serviceInstance,
		Tokens:         auth.NewTokenIssuer(authCfg.JWTSecret, authCfg.TokenTTL),
		Metrics:        registry,
		MaxUploadBytes: serverCfg.MaxUploadBytes,
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
	if reader != nil {
		reader.Stop()
	}

	if pg != nil && storeCfg.RollbackOnShutdown {
		log.Info().Msg("Rolling back migrations...")
		if err := pg.MigrateDown(shutdownCtx, migrationPath); err != nil {
			log.Error().Msgf("failed to rollback migrations: %v", err)
		}
	}
	log.Info().Msg("Shutdown complete")
}

// openStore returns the document store and, for postgres, the concrete store
// plus its migrations directory.
func openStore(cfg *config.Config, sc buildCFG.StoreConfig, log *zerolog.Logger) (docstore.Store, *postgres.Store, string) {
	if sc.Driver == "memory" {
		return memory.NewStore(), nil, ""
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

	store, err := postgres.NewStore(db, log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize store: %v", err)
	}
	migrationPath := sc.MigrationsPath
	if !filepath.IsAbs(migrationPath) {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatal().Err(err).Msg("cannot get working directory")
		}
		migrationPath = filepath.Join(cwd, migrationPath)
	}
	if err := store.MigrateUp(context.Background(), migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")
	return store, store, migrationPath
}
