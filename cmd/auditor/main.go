// Package main wires together the auditor service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/rankpilot/auditor/internal/api"
	"github.com/rankpilot/auditor/internal/audit"
	"github.com/rankpilot/auditor/internal/clock/system"
	"github.com/rankpilot/auditor/internal/config"
	"github.com/rankpilot/auditor/internal/dispatcher"
	"github.com/rankpilot/auditor/internal/engine"
	collyfetcher "github.com/rankpilot/auditor/internal/fetcher/colly"
	"github.com/rankpilot/auditor/internal/hash/sha256"
	"github.com/rankpilot/auditor/internal/id/uuid"
	"github.com/rankpilot/auditor/internal/logging"
	"github.com/rankpilot/auditor/internal/metrics"
	"github.com/rankpilot/auditor/internal/progress"
	"github.com/rankpilot/auditor/internal/progress/sinks"
	memorypublisher "github.com/rankpilot/auditor/internal/publisher/memory"
	queueMemory "github.com/rankpilot/auditor/internal/queue/memory"
	queuePubsub "github.com/rankpilot/auditor/internal/queue/pubsub"
	"github.com/rankpilot/auditor/internal/quota"
	"github.com/rankpilot/auditor/internal/service"
	"github.com/rankpilot/auditor/internal/storage/gcs"
	"github.com/rankpilot/auditor/internal/storage/local"
	memoryStorage "github.com/rankpilot/auditor/internal/storage/memory"
	"github.com/rankpilot/auditor/internal/storage/postgres"
	"github.com/rankpilot/auditor/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	var (
		auditStore    audit.AuditStore
		snapshotStore audit.SnapshotStore
		usageStore    audit.UsageStore
		userStore     audit.UserStore
		tierStore     audit.TierStore
	)
	if cfg.DB.DSN != "" {
		pg, err := postgres.NewStore(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
			MinConns: int32(cfg.DB.MaxIdleConns),
		})
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		defer pg.Close()
		auditStore = pg
		snapshotStore = pg
		usageStore = pg
		userStore = pg
		tierStore = pg
		logger.Info("using postgres persistence")
	} else {
		auditStore = memoryStorage.NewAuditStore()
		snapshotStore = memoryStorage.NewSnapshotStore()
		usageStore = memoryStorage.NewUsageStore()
		userStore = memoryStorage.NewUserStore()
		tierStore = memoryStorage.NewTierStore(cfg.Tiers)
		logger.Info("using in-memory persistence")
	}

	var blobStore audit.BlobStore
	switch {
	case cfg.Storage.GCSBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		gcsStore, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			logger.Fatal("gcs blob store init failed", zap.Error(err))
		}
		blobStore = gcsStore
		logger.Info("archiving pages to gcs", zap.String("bucket", cfg.Storage.GCSBucket))
	case cfg.Storage.LocalDir != "":
		localStore, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			logger.Fatal("local blob store init failed", zap.Error(err))
		}
		blobStore = localStore
		logger.Info("archiving pages to local disk", zap.String("dir", cfg.Storage.LocalDir))
	default:
		blobStore = memoryStorage.NewBlobStore()
	}

	hasher := sha256.New()
	clock := system.New()
	idGen := uuid.New()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	analyzer := engine.New(fetcher, logger.Named("engine"))

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		logger.Fatal("prometheus sink init failed", zap.Error(err))
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("events")),
		promSink,
	)

	var (
		queue     audit.Queue
		publisher audit.Publisher
		closers   []func()
	)
	if cfg.PubSub.ProjectID != "" {
		psq, err := queuePubsub.NewQueue(ctx, queuePubsub.Config{
			ProjectID:      cfg.PubSub.ProjectID,
			TopicID:        cfg.PubSub.TopicName,
			SubscriptionID: cfg.PubSub.SubscriptionName,
			Buffer:         cfg.Worker.QueueDepth,
		}, logger.Named("pubsub"))
		if err != nil {
			logger.Fatal("pubsub queue init failed", zap.Error(err))
		}
		go func() {
			if err := psq.Run(ctx); err != nil {
				logger.Error("pubsub receive loop stopped", zap.Error(err))
				stop()
			}
		}()
		queue = psq
		publisher = queuePubsub.NewPublisher(psq.Client())
		closers = append(closers, func() {
			if err := psq.Close(); err != nil {
				logger.Error("pubsub close error", zap.Error(err))
			}
		})
		logger.Info("using pubsub queue",
			zap.String("topic", cfg.PubSub.TopicName),
			zap.String("subscription", cfg.PubSub.SubscriptionName),
		)
	} else {
		mq := queueMemory.NewQueue(cfg.Worker.QueueDepth)
		queue = mq
		publisher = memorypublisher.New()
		closers = append(closers, mq.Close)
		logger.Info("using in-memory queue", zap.Int("depth", cfg.Worker.QueueDepth))
	}

	ledger := quota.NewLedger(
		usageStore,
		userStore,
		clock,
		quota.NewLogAlerter(logger.Named("alerts")),
		logger.Named("quota"),
		quota.Config{
			AlertThresholdPct: cfg.Quota.AlertThresholdPct,
			AlertCooldown:     cfg.AlertCooldown(),
		},
	)

	workerCfg := worker.Config{
		ContentType:   cfg.Storage.ContentType,
		BlobPrefix:    cfg.Storage.Prefix,
		Topic:         cfg.PubSub.EventsTopic,
		CompetitorCap: cfg.Worker.CompetitorCap,
	}
	var workers []*worker.Worker
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			auditStore,
			snapshotStore,
			usageStore,
			blobStore,
			publisher,
			hasher,
			clock,
			analyzer,
			hub,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	svc := service.New(
		userStore,
		tierStore,
		auditStore,
		snapshotStore,
		usageStore,
		ledger,
		queue,
		idGen,
		clock,
		logger.Named("service"),
	)
	apiServer := api.NewServer(svc, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Worker.Concurrency))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	for _, closeFn := range closers {
		closeFn()
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("progress hub close error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
