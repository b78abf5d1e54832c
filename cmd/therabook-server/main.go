package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"therabook/backend/internal/availability"
	"therabook/backend/internal/config"
	"therabook/backend/internal/jobs"
	"therabook/backend/internal/metrics"
	"therabook/backend/internal/service/booking"
	"therabook/backend/internal/service/therapists"
	"therabook/backend/internal/store/postgres"
	"therabook/backend/internal/store/rediscache"
	grpcTransport "therabook/backend/internal/transport/grpc"
	"therabook/backend/internal/transport/rest"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "therabook-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "therabook-server"),
	)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("log_level", cfg.LogLevel),
		slog.Duration("min_lead_time", cfg.MinLeadTime),
	)

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	therapistRepo := postgres.NewTherapistRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)

	var catalog rediscache.Source = therapistRepo
	if cfg.RedisURL != "" {
		client, err := rediscache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis not available; catalog cache disabled", slog.Any("err", err))
		} else {
			defer func() { _ = client.Close() }()
			catalog = rediscache.New(therapistRepo, client, cfg.CacheTTL, log)
			log.Info("catalog cache enabled", slog.Duration("ttl", cfg.CacheTTL))
		}
	}

	lead := availability.LeadTime{Min: cfg.MinLeadTime}
	expander := availability.NewExpander(catalog)

	bookingSvc := booking.NewService(booking.Deps{
		SessionTypes: catalog,
		Expander:     expander,
		Lock:         sessionRepo,
		Sessions:     sessionRepo,
		LeadTime:     lead,
		Log:          log,
		Metrics:      m,
	})
	therapistSvc := therapists.NewService(therapists.Deps{
		Repo:             therapistRepo,
		Expander:         expander,
		Sessions:         sessionRepo,
		LeadTime:         lead,
		DefaultPatientTz: cfg.DefaultPatientTz,
		DefaultStepMin:   cfg.DefaultStepMin,
		Log:              log,
		Metrics:          m,
	})

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: rest.NewRouter(rest.Deps{
			Therapists:     therapistSvc,
			Booking:        bookingSvc,
			Ready:          db.PingContext,
			Gatherer:       reg,
			RequestTimeout: cfg.HTTPRequestTimeout,
			Log:            log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcTransport.DefaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
	)
	health := grpcTransport.NewHealthReporter(db, log)
	health.Register(grpcServer)
	go health.Run(ctx, 10*time.Second)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	sweeper := jobs.NewPendingSweeper(sessionRepo, cfg.SweepCronSpec, log, m)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("servers started", slog.String("http_addr", cfg.HTTPAddr), slog.String("grpc_addr", cfg.GRPCAddr()))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
		}
	}
	shutdown(log, httpServer, grpcServer, cfg.ShutdownTimeout)
}

func shutdown(log *slog.Logger, h *http.Server, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
