package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/example/quotation-comments/internal/platform/config"
	"github.com/example/quotation-comments/internal/platform/db"
	"github.com/example/quotation-comments/internal/platform/events"
	"github.com/example/quotation-comments/internal/platform/httpserver"
	"github.com/example/quotation-comments/internal/platform/logging"
	"github.com/example/quotation-comments/internal/platform/metrics"
	"github.com/example/quotation-comments/internal/platform/natsconn"
	"github.com/example/quotation-comments/internal/platform/posthog"
	"github.com/example/quotation-comments/internal/platform/run"
	svcconfig "github.com/example/quotation-comments/services/comments/internal/config"
	"github.com/example/quotation-comments/services/comments/internal/dialog"
	"github.com/example/quotation-comments/services/comments/internal/grpcapi"
	"github.com/example/quotation-comments/services/comments/internal/handlers"
	"github.com/example/quotation-comments/services/comments/internal/handoff"
	"github.com/example/quotation-comments/services/comments/internal/idempotency"
	"github.com/example/quotation-comments/services/comments/internal/repository"
	"github.com/example/quotation-comments/services/comments/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	svc, err := svcconfig.Load(cfg.IsProduction())
	if err != nil {
		log.Error("config", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}

	runner := run.New(log)
	m := metrics.New()

	comments := initComments(log, runner, svc, cfg.IsProduction())
	comments = store.NewBreakerCommentStore(comments, store.BreakerSettings{
		FailureThreshold: svc.BreakerFailures,
		Timeout:          svc.BreakerTimeout,
	}, log)
	redisClient := initRedis(log, runner, svc)
	idem := idempotency.NewMemoryStore(0)
	if redisClient != nil {
		comments = store.NewCachedCommentStore(comments, redisClient, svc.CacheTTL, log, m)
		idem = idempotency.NewRedisStore(redisClient, 0)
		log.Info("comments cache: redis", zap.Duration("ttl", svc.CacheTTL))
	}
	comments = store.NewInstrumentedCommentStore(comments, m)

	publisher := events.Fanout(initNATS(log, runner, svc), initPostHog(log, runner, svc))
	repo := repository.New(comments, publisher, log)
	dialogs := dialog.NewRegistry(repo, svc.DialogIdleTTL, m, log)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return comments.Ping(ctx)
		},
		Metrics:     m.Handler(),
		Logger:      log,
		Middlewares: []func(http.Handler) http.Handler{m.Middleware},
	})
	handlers.Mount(r, handlers.Deps{
		Comments: repo,
		Dialogs:  dialogs,
		Handoff:  handoff.NewBuilder(repo, svc.HandoffPhone, svc.HandoffText, log),

		Idempotency: idem,
		Log:         log,
	})
	if svc.HandoffPhone == "" {
		log.Warn("HANDOFF_PHONE not set, handoff links are disabled")
	}

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: r})
	runner.OnShutdown(srv.Shutdown)

	// gRPC server (health + reflection)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Error("grpc listen", zap.Error(err))
		run.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	health := grpcapi.NewHealth(comments, 10*time.Second, log)
	health.Register(grpcSrv)
	go func() {
		log.Info("grpc server starting", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc serve", zap.Error(err))
		}
	}()
	runner.OnShutdown(func(ctx context.Context) error {
		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			grpcSrv.Stop()
		}
		return nil
	})

	code := runner.WithSignals(func(ctx context.Context) error {
		go health.Run(ctx)
		go dialogs.Run(ctx, svc.SweepInterval)
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initComments selects the CommentStore backend.
// In production (APP_ENV=production) it requires a working Postgres connection
// and terminates the process otherwise.
func initComments(log *zap.Logger, runner *run.Runner, svc svcconfig.Config, isProd bool) store.CommentStore {
	if svc.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory comment store (development only)")
		return store.NewInMemoryCommentStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, svc.DatabaseURL)
	if err != nil {
		if isProd {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory comment store", zap.Error(err))
		return store.NewInMemoryCommentStore()
	}

	if err := store.Migrate(ctx, pool); err != nil {
		pool.Close()
		if isProd {
			log.Error("comment migrations failed", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("comment migrations failed, falling back to in-memory comment store", zap.Error(err))
		return store.NewInMemoryCommentStore()
	}

	runner.OnShutdown(func(context.Context) error {
		pool.Close()
		return nil
	})
	log.Info("comments store: postgres")
	return store.NewPostgresCommentStore(pool)
}

// initRedis connects to REDIS_URL when set. Redis is optional; an
// unreachable server only disables the document cache and shared
// idempotency keys.
func initRedis(log *zap.Logger, runner *run.Runner, svc svcconfig.Config) *redis.Client {
	if svc.RedisURL == "" {
		return nil
	}
	client, err := store.NewRedisClient(context.Background(), svc.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, document cache disabled", zap.Error(err))
		return nil
	}
	runner.OnShutdown(func(context.Context) error {
		return client.Close()
	})
	return client
}

// initNATS connects to NATS JetStream when configured (non-fatal if
// unavailable).
func initNATS(log *zap.Logger, runner *run.Runner, svc svcconfig.Config) events.Sink {
	opts := natsconn.Options{URL: svc.NATSURL}
	if !natsconn.Configured(opts) {
		return nil
	}
	nc, js, err := natsconn.ConnectJetStream(opts)
	if err != nil {
		log.Error("nats connect", zap.Error(err))
		return nil
	}
	runner.OnShutdown(func(context.Context) error {
		return nc.Drain()
	})
	return events.New(js, log)
}

// initPostHog forwards comment events to PostHog when POSTHOG_API_KEY is set.
func initPostHog(log *zap.Logger, runner *run.Runner, svc svcconfig.Config) events.Sink {
	if svc.PostHogAPIKey == "" {
		return nil
	}
	client, err := posthog.New(svc.PostHogAPIKey, svc.PostHogHost, svc.PostHogFlush, svc.PostHogBatchSize, log)
	if err != nil {
		log.Warn("posthog init", zap.Error(err))
		return nil
	}
	runner.OnShutdown(func(context.Context) error {
		return client.Close()
	})
	return client
}
