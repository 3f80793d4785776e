package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"syntra-ledger/config"
	"syntra-ledger/internal/database"
	"syntra-ledger/internal/events"
	"syntra-ledger/internal/ledger"
	"syntra-ledger/internal/ledger/billing"
	"syntra-ledger/internal/store/memory"
	"syntra-ledger/internal/store/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := config.LoadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.DB, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []billing.Option{
		billing.WithLogger(logger),
		billing.WithMetrics(billing.NewMetrics(reg)),
	}
	if cfg.Redis.Enabled() {
		rdb, err := config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("event publishing disabled", "error", err)
		} else {
			defer rdb.Close()
			opts = append(opts, billing.WithNotifiers(events.NewRedisPublisher(rdb)))
		}
	}

	engine := billing.NewEngine(store, billing.Config{
		Location:             cfg.Ledger.Location(),
		MaxRetries:           cfg.Ledger.MaxRetries,
		RetryInitialInterval: billing.DefaultConfig().RetryInitialInterval,
		RetryMaxInterval:     billing.DefaultConfig().RetryMaxInterval,
		StrictReturnLines:    cfg.Ledger.StrictReturnLines,
	}, opts...)

	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	router, err := setupRouter(routerDeps{
		engine:    engine,
		store:     store,
		registry:  reg,
		logger:    logger,
		jwtSecret: []byte(cfg.Auth.JWTSecret),
		rateLimit: cfg.HTTP.RateLimit,
	})
	if err != nil {
		return err
	}

	grpcServer, err := startHealthServer(ctx, cfg.HTTP.HealthGRPCAddr, store, logger)
	if err != nil {
		return err
	}
	defer grpcServer.GracefulStop()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting server", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openStore(cfg config.DBConfig, logger *slog.Logger) (ledger.Store, error) {
	if cfg.DSN == "" {
		logger.Warn("LEDGER_DSN not set, using the in-memory store")
		return memory.New(), nil
	}

	db, err := database.NewConnection(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateLedgerDB(db); err != nil {
		return nil, err
	}
	logger.Info("Database connected and migrated")
	return postgres.New(db), nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// startHealthServer serves grpc_health_v1 and keeps the overall status in
// step with store pings.
func startHealthServer(ctx context.Context, addr string, store ledger.Store, logger *slog.Logger) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	go func() {
		logger.Info("gRPC health server listening", "addr", addr)
		if err := srv.Serve(lis); err != nil {
			logger.Error("gRPC health server failed", "error", err)
		}
	}()

	p, ok := store.(pinger)
	if !ok {
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return srv, nil
	}
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			status := healthpb.HealthCheckResponse_SERVING
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := p.Ping(pingCtx); err != nil {
				status = healthpb.HealthCheckResponse_NOT_SERVING
				logger.Warn("store ping failed", "error", err)
			}
			cancel()
			hs.SetServingStatus("", status)

			select {
			case <-ctx.Done():
				hs.Shutdown()
				return
			case <-ticker.C:
			}
		}
	}()
	return srv, nil
}
