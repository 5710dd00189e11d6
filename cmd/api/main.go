package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	v1 "github.com/PaulBabatuyi/classroom-chat/api/chat/v1"
	"github.com/PaulBabatuyi/classroom-chat/internal/auth"
	"github.com/PaulBabatuyi/classroom-chat/internal/chat"
	"github.com/PaulBabatuyi/classroom-chat/internal/collab"
	"github.com/PaulBabatuyi/classroom-chat/internal/config"
	"github.com/PaulBabatuyi/classroom-chat/internal/data"
	"github.com/PaulBabatuyi/classroom-chat/internal/db"
	"github.com/PaulBabatuyi/classroom-chat/internal/events"
	"github.com/PaulBabatuyi/classroom-chat/internal/feed"
	"github.com/PaulBabatuyi/classroom-chat/internal/logger"
	"github.com/PaulBabatuyi/classroom-chat/internal/middleware"
	"github.com/PaulBabatuyi/classroom-chat/internal/moderation"
	"github.com/PaulBabatuyi/classroom-chat/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Development: cfg.Log.Development})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer := tracing.Init(ctx, tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)

	// Change feed: redis fans changes out across instances, otherwise the
	// in-process broker serves a single instance.
	var notifier feed.Notifier = feed.NewBroker()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rb := feed.NewRedisBroker(rdb, cfg.Redis.Prefix, log)
		go func() {
			if err := rb.Run(ctx); err != nil {
				log.Error("redis feed relay stopped", zap.Error(err))
			}
		}()
		notifier = rb
		log.Info("change feed on redis", zap.String("addr", cfg.Redis.Addr))
	}

	var store data.Store
	switch cfg.Store.Driver {
	case "memory":
		store = data.NewMemoryStore(notifier, nil)
		log.Warn("using in-memory store, data is lost on restart")
	default:
		dbClient, err := db.New(ctx, cfg.Store.MongoURI, cfg.Store.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to DB: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = dbClient.Close(closeCtx)
		}()
		if err := dbClient.CreateIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
		store = data.NewMongoStore(dbClient, notifier, nil)
	}

	var alerts events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		alerts = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic)
		log.Info("alerts on kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.AlertsTopic))
	}
	defer func() { _ = alerts.Close() }()

	var classifier moderation.Classifier
	if cfg.Moderation.URL != "" {
		classifier = moderation.NewHTTPClassifier(cfg.Moderation.URL, nil)
	}
	gateway := moderation.NewGateway(classifier, moderation.Options{
		Timeout:     cfg.ModerationTimeout,
		MaxFailures: uint32(max(cfg.Moderation.MaxFailures, 0)),
		OpenFor:     cfg.BreakerOpenFor,
	}, log.Named("moderation"))

	hub := NewConnectionHub(log)
	chatSvc := chat.NewService(store, chat.Options{
		Moderation:  gateway,
		Alerts:      alerts,
		Notices:     hub,
		SettingsTTL: cfg.SettingsCacheTTL,
		Log:         log.Named("chat"),
	})
	docs := collab.NewService(store, log.Named("collab"))
	docs.Debounce = cfg.DebounceWindow

	jwtMgr := auth.NewJWTManagerFromKeys(cfg.JWTKeys, cfg.JWT.ActiveKid, 24*time.Hour).WithLeeway(cfg.JWTLeeway)

	limiterStore := middleware.NewLimiterStore(cfg.RateLimit.SendPerMinute, cfg.RateLimit.Burst, time.Minute)
	defer limiterStore.Stop()

	var serverOpts []grpc.ServerOption
	if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS certs: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	} else {
		log.Warn("serving without TLS")
	}

	serverOpts = append(serverOpts, interceptors(jwtMgr, limiterStore, log.Named("grpc"))...)

	grpcServer := grpc.NewServer(serverOpts...)
	srv := newServer(chatSvc, docs, hub, cfg.Server.PublicURL, log.Named("api"))
	registerService(grpcServer, srv)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	metricsServer := &http.Server{
		Addr:              ":" + cfg.Server.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 2)
	go func() {
		log.Info("gRPC server listening", zap.String("addr", listenAddr))
		errc <- grpcServer.Serve(lis)
	}()
	go func() {
		log.Info("metrics server listening", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errc:
		log.Error("server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// live streams never end on their own; cut them once the grace period is over
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	_ = metricsServer.Shutdown(shutdownCtx)
	if err := chatSvc.Wait(shutdownCtx); err != nil {
		log.Warn("background sends still running at shutdown", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("tracer shutdown", zap.Error(err))
	}
	return serveErr
}

// limitedMethods are rate limited per user.
var limitedMethods = map[string]bool{
	v1.ChatService_SendMessage_FullMethodName:  true,
	v1.ChatService_EditDocument_FullMethodName: true,
}

// interceptors chains auth first so the limiter and the logs see the caller.
func interceptors(j *auth.JWTManager, limiter *middleware.LimiterStore, log *zap.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			authUnaryInterceptor(j),
			loggingUnaryInterceptor(log),
			middleware.RateLimitUnaryInterceptor(limiter, limitedMethods),
		),
		grpc.ChainStreamInterceptor(
			authStreamInterceptor(j),
			loggingStreamInterceptor(log),
		),
	}
}
