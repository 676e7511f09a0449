package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	migrations "github.com/DRSN-tech/product-api/db"
	config "github.com/DRSN-tech/product-api/internal/cfg"
	v1Grpc "github.com/DRSN-tech/product-api/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/product-api/internal/delivery/v1/http"
	"github.com/DRSN-tech/product-api/internal/infrastructure/filestore"
	"github.com/DRSN-tech/product-api/internal/infrastructure/imagecodec"
	"github.com/DRSN-tech/product-api/internal/infrastructure/kafka"
	diskRepo "github.com/DRSN-tech/product-api/internal/repository/disk"
	s3Repo "github.com/DRSN-tech/product-api/internal/repository/minio"
	"github.com/DRSN-tech/product-api/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/product-api/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/product-api/internal/repository/redis"
	redisConv "github.com/DRSN-tech/product-api/internal/repository/redis/converter"
	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/clients"
	"github.com/DRSN-tech/product-api/pkg/closer"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/DRSN-tech/product-api/pkg/logger"
	"github.com/DRSN-tech/product-api/pkg/postgres"
	"github.com/DRSN-tech/product-api/pkg/tr"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	initTimeout     = 10 * time.Second
	shutdownTimeout = 15 * time.Second
	topicTimeout    = 10 * time.Second
)

// App — собранное приложение: серверы, фоновые воркеры и их закрытие.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	closer  *closer.Closer
	httpSrv *v1Http.Server
	grpcSrv *v1Grpc.GRPCServer // nil, если gRPC выключен
	worker  *kafka.OutboxWorker // nil, если Kafka выключена
}

// NewApp подключается к внешним системам и собирает зависимости.
// При ошибке уже открытые ресурсы закрываются.
func NewApp(cfg *config.Config, log logger.Logger) (app *App, err error) {
	cl := closer.NewCloser(0)
	defer func() {
		if err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if cerr := cl.Close(ctx); cerr != nil {
				log.Warnf("cleanup after failed init: %v", cerr)
			}
		}
	}()

	app = &App{cfg: cfg, logger: log, closer: cl}

	db, err := initPGDB(log, cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add("postgres", func(context.Context) error {
		db.Close()
		return nil
	})

	imageRepo, err := initImageRepo(log, cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	fileStore := filestore.NewFileStore(imageRepo, cfg.Storage, log, cleanupCtx)
	cl.Add("filestore cleanup", func(ctx context.Context) error {
		defer cleanupCancel()
		return fileStore.WaitForCleanup(ctx)
	})

	cacheRepo, err := initCache(log, cfg, cl)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// Интерфейс остаётся nil, если Kafka выключена: события тогда не пишутся.
	var outboxRepo usecase.OutboxRepository
	if cfg.Kafka.Enabled {
		repo := pgdb.NewOutboxEventRepo(db.Pool, pgdbConv.NewOutboxEventConverter())
		outboxRepo = repo
		app.worker = initOutboxWorker(log, cfg, repo, db.Dsn, cl)
	}

	productUC := usecase.NewProductUC(
		pgdb.NewProductRepo(db.Pool, pgdbConv.NewProductConverter()),
		cacheRepo,
		outboxRepo,
		tr.NewManager(db.Pool),
		imagecodec.NewCodec(cfg.Storage.MaxImageSize),
		fileStore,
		log,
	)

	if cfg.Grpc.Enabled {
		app.grpcSrv = v1Grpc.NewGRPCServer(cfg.Grpc, log)
		app.grpcSrv.RegisterServices(productUC)
		cl.Add("grpc server", app.grpcSrv.Stop)
	}

	r := chi.NewRouter()
	v1Http.NewRouter(r, log, cfg.Http, cfg.Storage).Init(productUC)
	app.httpSrv = v1Http.NewServer(r, cfg.Http)
	cl.Add("http server", app.httpSrv.Stop)

	return app, nil
}

// Run запускает серверы и воркер и блокируется до сигнала или фатальной ошибки.
func (a *App) Run() error {
	errCh := make(chan error, 2)

	if a.worker != nil {
		a.worker.Start(context.Background())
	}

	if a.grpcSrv != nil {
		go func() {
			a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
			if err := a.grpcSrv.Start(); err != nil {
				errCh <- e.Wrap("gRPC server failed", err)
			}
		}()
	}

	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- e.Wrap("HTTP server failed", err)
		}
	}()

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	// === Graceful shutdown ===
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func initPGDB(log logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	db, err := postgres.Connect(ctx, postgres.DSN(cfg.Db))
	if err != nil {
		log.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(log, migrations.Migrations, "migrations"); err != nil {
		db.Close()
		log.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

// initImageRepo выбирает бэкенд хранилища изображений по STORAGE_DRIVER.
func initImageRepo(log logger.Logger, cfg *config.Config) (usecase.ImageRepository, error) {
	if cfg.Storage.Driver != config.StorageDriverMinio {
		log.Infof("image storage: disk, root %s", cfg.Storage.UploadRoot)
		return diskRepo.NewImageRepo(cfg.Storage.UploadRoot), nil
	}

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		log.Errorf(err, "failed to initialize minio client")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := clients.EnsureBucket(ctx, minioClient, cfg.Minio.BucketName); err != nil {
		log.Errorf(err, "failed to initialize MinIO bucket")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	log.Infof("image storage: minio, bucket %s", cfg.Minio.BucketName)
	return s3Repo.NewImageRepo(minioClient, cfg.Minio), nil
}

func initCache(log logger.Logger, cfg *config.Config, cl *closer.Closer) (usecase.CacheRepository, error) {
	if !cfg.Redis.Enabled {
		return redis.NewNopCacheRepo(), nil
	}

	redisClient := clients.NewRedisClient(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := redisClient.Ping(ctx); err != nil {
		_ = redisClient.Close()
		log.Errorf(err, "failed to connect to redis")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add("redis", func(context.Context) error {
		return redisClient.Close()
	})

	return redis.NewCacheRepo(redisClient, redisConv.NewProductConverter(), cfg.Redis, log), nil
}

func initOutboxWorker(log logger.Logger, cfg *config.Config, repo usecase.OutboxRepository, dsn string, cl *closer.Closer) *kafka.OutboxWorker {
	producer := kafka.NewProducer(log, cfg.Kafka)
	if err := producer.EnsureTopic(topicTimeout); err != nil {
		// топик может создаваться брокером автоматически
		log.Warnf("failed to ensure kafka topic %s: %v", cfg.Kafka.Topic, err)
	}
	cl.Add("kafka producer", func(context.Context) error {
		return producer.Close()
	})

	worker := kafka.NewOutboxWorker(repo, log, producer, dsn, pgdb.OutboxChannel,
		cfg.Kafka.OutboxBatchSize, cfg.Kafka.OutboxPollPeriod)
	cl.Add("outbox worker", func(context.Context) error {
		worker.Stop()
		return nil
	})

	return worker
}
