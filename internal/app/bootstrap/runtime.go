package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/adapters/cache"
	eventadapter "github.com/buddywood/northstarnupes-sub002/internal/adapters/events"
	httpadapter "github.com/buddywood/northstarnupes-sub002/internal/adapters/http"
	"github.com/buddywood/northstarnupes-sub002/internal/adapters/metrics"
	"github.com/buddywood/northstarnupes-sub002/internal/adapters/payments"
	"github.com/buddywood/northstarnupes-sub002/internal/adapters/postgres"
	"github.com/buddywood/northstarnupes-sub002/internal/adapters/security"
	"github.com/buddywood/northstarnupes-sub002/internal/application"
	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"
)

// core holds the stores and the application service shared by every process.
type core struct {
	cfg      Config
	logger   *slog.Logger
	db       *gorm.DB
	redis    *redis.Client
	repos    postgres.Repositories
	service  *application.Service
	metrics  *metrics.Prometheus
	closers  []io.Closer
	verifier *security.IdentityTokenVerifier
}

func NewLogger(cfg Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).With("service", cfg.ServiceID)
}

func newCore(ctx context.Context, cfg Config, logger *slog.Logger) (*core, error) {
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(ctx, db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	verifier, err := newVerifier(ctx, cfg, logger)
	if err != nil {
		_ = redisClient.Close()
		_ = sqlDB.Close()
		return nil, err
	}

	var provider ports.PaymentProvider
	if cfg.StripeSecretKey != "" {
		stripeProvider, stripeErr := payments.NewStripeProvider(payments.StripeOptions{
			SecretKey: cfg.StripeSecretKey,
			Country:   cfg.StripeCountry,
		})
		if stripeErr != nil {
			_ = redisClient.Close()
			_ = sqlDB.Close()
			return nil, stripeErr
		}
		provider = stripeProvider
	} else {
		logger.WarnContext(ctx, "STRIPE_SECRET_KEY not set, connected accounts are simulated")
		provider = payments.NewLoggingProvider(logger)
	}

	prom := metrics.NewPrometheus()
	repos := postgres.NewRepositories(db)
	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:           cfg.ServiceID,
			IdempotencyTTL:        cfg.IdempotencyTTL,
			EventDedupTTL:         cfg.EventDedupTTL,
			InvitationTTL:         cfg.InvitationTTL,
			InvitationBaseURL:     cfg.InvitationBaseURL,
			ApplicationRateLimit:  cfg.ApplicationRateLimit,
			ApplicationRateWindow: cfg.ApplicationRateWindow,
			PaymentLockTTL:        cfg.PaymentLockTTL,
		},
		Tx:          repos.Tx,
		Accounts:    repos.Accounts,
		Members:     repos.Members,
		Personas:    repos.PersonaProfiles,
		Sellers:     repos.Sellers,
		Promoters:   repos.Promoters,
		Stewards:    repos.Stewards,
		Claims:      repos.Claims,
		Products:    repos.Products,
		Outbox:      repos.Outbox,
		EventDedup:  repos.EventDedup,
		Idempotency: repos.Idempotency,
		Verifier:    verifier,
		Hasher:      security.NewInvitationHasher(cfg.InvitationBcryptCost),
		Payments:    provider,
		Cache:       cache.NewRedisCache(redisClient, cfg.RedisKeyPrefix),
		Metrics:     prom,
		Logger:      logger,
	})

	return &core{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		redis:    redisClient,
		repos:    repos,
		service:  service,
		metrics:  prom,
		verifier: verifier,
	}, nil
}

func newVerifier(ctx context.Context, cfg Config, logger *slog.Logger) (*security.IdentityTokenVerifier, error) {
	if cfg.JWTPublicKeyPEM != "" {
		return security.NewIdentityTokenVerifier(cfg.JWTPublicKeyPEM, cfg.JWTIssuer, cfg.JWTAudience)
	}
	logger.WarnContext(ctx, "JWT_PUBLIC_KEY_PEM not set, using an ephemeral signing key")
	return security.NewEphemeralIdentityTokenVerifier(cfg.JWTIssuer, cfg.JWTAudience)
}

// ready reports whether postgres and redis both answer.
func (c *core) ready(ctx context.Context) error {
	if err := postgres.Ping(ctx, c.db); err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.redis.Ping(pingCtx).Err()
}

func (c *core) close() {
	for _, closer := range c.closers {
		_ = closer.Close()
	}
	_ = c.redis.Close()
	if sqlDB, err := c.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

type Runtime struct {
	*core
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	outbox     *eventadapter.OutboxWorker
	consumer   *eventadapter.ConsumerWorker
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg)
	slog.SetDefault(logger)

	c, err := newCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	handler := httpadapter.NewHandler(c.service, c.ready)
	router := httpadapter.NewRouter(handler, httpadapter.RouterOptions{
		Metrics:        c.metrics.Handler(),
		ObserveRequest: c.metrics.ObserveRequest,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(cfg.ServiceID, healthpb.HealthCheckResponse_SERVING)

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	consumerAdapter := eventadapter.Consumer(eventadapter.NewNoopConsumer())
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			"notification.email_requested": cfg.KafkaTopicEmailRequested,
		})
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			c.closers = append(c.closers, kafkaPublisher)
		}

		kafkaConsumer, conErr := eventadapter.NewKafkaConsumer(
			cfg.KafkaBrokers,
			cfg.KafkaConsumerGroup,
			[]string{cfg.KafkaTopicVerificationRecorded},
		)
		if conErr != nil {
			logger.WarnContext(ctx, "kafka consumer disabled, using noop consumer", "error", conErr)
		} else {
			consumerAdapter = kafkaConsumer
			c.closers = append(c.closers, kafkaConsumer)
		}
	}

	return &Runtime{
		core:       c,
		httpServer: httpServer,
		grpcServer: grpcServer,
		health:     healthSrv,
		outbox:     eventadapter.NewOutboxWorker(logger, c.repos.Outbox, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize),
		consumer:   eventadapter.NewConsumerWorker(logger, topicRouter{topic: cfg.KafkaTopicVerificationRecorded, next: consumerAdapter}, c.service, cfg.ConsumerPollInterval),
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.close()
		return err
	}
	errCh := make(chan error, 2)
	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	r.logger.InfoContext(ctx, "api started", "http_port", r.cfg.HTTPPort, "grpc_port", r.cfg.GRPCPort)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", runErr)
	}
	r.health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.close()
	return runErr
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.close()
	errCh := make(chan error, 2)

	go func() {
		if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	r.logger.InfoContext(ctx, "worker started", "kafka_enabled", len(r.cfg.KafkaBrokers) > 0)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// topicRouter renames the configured verification topic to the one the
// consumer worker dispatches on.
type topicRouter struct {
	topic string
	next  eventadapter.Consumer
}

func (t topicRouter) Poll(ctx context.Context, max int) ([]eventadapter.Message, error) {
	msgs, err := t.next.Poll(ctx, max)
	for i := range msgs {
		if msgs[i].Topic == t.topic {
			msgs[i].Topic = eventadapter.TopicVerificationRecorded
		}
	}
	return msgs, err
}

// Admin exposes the service to operator tooling without starting servers.
type Admin struct {
	*core
}

func NewAdmin(ctx context.Context, configPath string) (*Admin, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg.AutoMigrate = false
	c, err := newCore(ctx, cfg, NewLogger(cfg))
	if err != nil {
		return nil, err
	}
	return &Admin{core: c}, nil
}

func (a *Admin) Service() *application.Service {
	return a.service
}

func (a *Admin) Migrate(ctx context.Context) error {
	return postgres.RunMigrations(ctx, a.db)
}

func (a *Admin) Close() {
	a.close()
}
