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

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	entityrepo "github.com/Ramsey-B/fern/internal/repositories/entity"
	entityservice "github.com/Ramsey-B/fern/internal/services/entity"
	"github.com/Ramsey-B/fern/pkg/blobstore"
	"github.com/Ramsey-B/fern/pkg/blobstore/memory"
	pgstore "github.com/Ramsey-B/fern/pkg/blobstore/postgres"
	s3store "github.com/Ramsey-B/fern/pkg/blobstore/s3"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	entityroutes "github.com/Ramsey-B/fern/pkg/routes/entity"
	gameroutes "github.com/Ramsey-B/fern/pkg/routes/game"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	userroutes "github.com/Ramsey-B/fern/pkg/routes/user"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Config{}
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, zapLogger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := setupTracing(ctx, cfg)
		if err != nil {
			logger.WithError(err).Error("Failed to set up tracing")
			os.Exit(1)
		}
		defer shutdown()
	}

	store, closeStore, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create blob store")
		os.Exit(1)
	}
	defer closeStore()

	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
		}, logger)
	}
	emitter := events.NewEmitter(producer, logger)

	newService := func(factory models.Factory, resource string, namespaces ...string) *entityservice.Service {
		repo := entityrepo.NewRepository(store, factory, entityrepo.Config{
			Namespaces:      namespaces,
			MaxPayloadBytes: cfg.MaxPayloadBytes,
		}, logger)
		return entityservice.NewService(repo, factory, emitter, resource, logger)
	}

	entitySvc := newService(models.GenericFactory, "entities", cfg.EntityNamespace, cfg.EntitySecondaryNamespace)
	userSvc := newService(models.UserFactory, "users", cfg.UserNamespace, cfg.UserSecondaryNamespace)
	gameSvc := newService(models.GameFactory, "games", cfg.GameNamespace, cfg.GameSecondaryNamespace)

	if err := registerDependencies(logger, entitySvc, userSvc, gameSvc); err != nil {
		logger.WithError(err).Error("Failed to build DI container")
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	checker := health.NewChecker(store, cfg.Version)
	checker.RegisterRoutes(e)

	// Handlers resolve their services from the container per request.
	api := e.Group("/api/v1")
	entityroutes.NewHandler(nil, logger).Register(api.Group("/entities"))
	userroutes.NewHandler(nil, logger).Register(api.Group("/users"))
	gameroutes.NewHandler(nil, logger).Register(api.Group("/games"))

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	deps := startup.New(logger, cfg.StartupMaxAttempts)
	deps.AddDependency(&blobStoreDependency{store: store})
	if producer != nil {
		deps.AddDependency(&producerDependency{producer: producer})
	}
	deps.AddDependency(&httpServerDependency{
		echo:   e,
		addr:   fmt.Sprintf(":%d", cfg.Port),
		logger: logger,
	})

	if err := deps.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start service")
		os.Exit(1)
	}
	checker.SetReady(true)
	logger.WithField("port", cfg.Port).Infof("%s listening on port %d", cfg.AppName, cfg.Port)

	<-ctx.Done()
	checker.SetReady(false)
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := deps.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
	}
}

// registerDependencies builds the default DI container the route packages
// resolve against.
func registerDependencies(logger ectologger.Logger, entitySvc, userSvc, gameSvc *entityservice.Service) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*entityservice.GenericService](container, &entityservice.GenericService{Service: entitySvc}); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*entityservice.UserService](container, &entityservice.UserService{Service: userSvc}); err != nil {
		return err
	}
	return ectoinject.RegisterInstance[*entityservice.GameService](container, &entityservice.GameService{Service: gameSvc})
}

func newLogger(cfg config.Config) (ectologger.Logger, *zap.Logger, error) {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), zapLogger, nil
}

func setupTracing(ctx context.Context, cfg config.Config) (func(), error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Insecure: cfg.TracingOTLPInsecure,
		Timeout:  cfg.TracingExportTimeout,
	})
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.TracingExportTimeout)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}, nil
}

func newBlobStore(ctx context.Context, cfg config.Config, logger ectologger.Logger) (blobstore.Store, func(), error) {
	noop := func() {}

	switch cfg.BlobStoreDriver {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, noop, err
		}
		client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			}
			o.UsePathStyle = cfg.S3UsePathStyle
		})
		return s3store.New(client, s3store.Config{
			Bucket:  cfg.S3Bucket,
			Timeout: cfg.S3RequestTimeout,
		}), noop, nil

	case "postgres":
		db, sqlxDB, err := database.Connect(ctx, database.Config{
			Host:            cfg.DatabaseHost,
			Port:            cfg.DatabasePort,
			User:            cfg.DatabaseUserName,
			Password:        cfg.DatabasePassword,
			Name:            cfg.DatabaseName,
			SSLMode:         cfg.DatabaseSSLMode,
			MaxOpenConns:    cfg.DatabaseMaxOpenConns,
			MaxIdleConns:    cfg.DatabaseMaxIdleConns,
			ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		if err := database.Migrate(sqlxDB, cfg.DatabaseName, cfg.DatabaseMigrationFolderPath, logger); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return pgstore.New(db, logger), func() { _ = db.Close() }, nil

	case "memory":
		return memory.New(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown blob store driver '%s'", cfg.BlobStoreDriver)
	}
}

type blobStoreDependency struct {
	store blobstore.Store
}

func (d *blobStoreDependency) GetName() string     { return "blobstore" }
func (d *blobStoreDependency) DependsOn() []string { return nil }

func (d *blobStoreDependency) Start(ctx context.Context) error {
	return d.store.Ping(ctx)
}

func (d *blobStoreDependency) Stop(context.Context) error { return nil }

type producerDependency struct {
	producer *kafka.Producer
}

func (d *producerDependency) GetName() string     { return "kafka-producer" }
func (d *producerDependency) DependsOn() []string { return nil }

func (d *producerDependency) Start(context.Context) error { return nil }

func (d *producerDependency) Stop(context.Context) error {
	return d.producer.Close()
}

type httpServerDependency struct {
	echo   *echo.Echo
	addr   string
	logger ectologger.Logger
}

func (d *httpServerDependency) GetName() string     { return "http-server" }
func (d *httpServerDependency) DependsOn() []string { return []string{"blobstore"} }

func (d *httpServerDependency) Start(context.Context) error {
	go func() {
		if err := d.echo.Start(d.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.WithError(err).Error("HTTP server stopped unexpectedly")
			os.Exit(1)
		}
	}()
	return nil
}

func (d *httpServerDependency) Stop(ctx context.Context) error {
	return d.echo.Shutdown(ctx)
}
