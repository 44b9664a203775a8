package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/attendance-service/config"
	"github.com/cwrk-planet/attendance-service/internal/live"
	"github.com/cwrk-planet/attendance-service/internal/logger"
	"github.com/cwrk-planet/attendance-service/internal/memstore"
	"github.com/cwrk-planet/attendance-service/internal/notify"
	"github.com/cwrk-planet/attendance-service/internal/postgres"
	"github.com/cwrk-planet/attendance-service/internal/repository"
	"github.com/cwrk-planet/attendance-service/internal/security"
	"github.com/cwrk-planet/attendance-service/internal/service"
	grpcx "github.com/cwrk-planet/attendance-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/attendance-service/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	lg.Info("starting attendance-service",
		slog.String("env", cfg.Logging.Env),
		slog.String("version", cfg.Logging.Version),
		slog.String("storage", cfg.Storage.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- storage ---
	store, err := openStore(ctx, cfg, lg)
	if err != nil {
		lg.Error("storage init failed", logger.Err(err))
		os.Exit(1)
	}
	defer store.Close()

	// --- live ---
	broadcaster := live.New(live.Config{
		BufferSize: cfg.Live.BufferSize,
		Heartbeat:  cfg.Live.Heartbeat,
		StaleAfter: cfg.Live.StaleAfter,
		ReapEvery:  cfg.Live.ReapEvery,
	}, lg)

	// --- notify ---
	hc := &http.Client{Timeout: cfg.Notify.Timeout}
	dispatcher, err := notify.NewDispatcher(cfg.Notify, store,
		notify.NewEmailSender(cfg.Notify, hc),
		notify.NewWATI(cfg.Notify.WATI, hc),
		broadcaster, lg)
	if err != nil {
		lg.Error("notify init failed", logger.Err(err))
		os.Exit(1)
	}

	// --- services ---
	signer := security.NewTokenSigner(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.TokenTTL)
	policy := security.BcryptConfig{Cost: cfg.Security.BcryptCost, MinLength: cfg.Security.MinPasswordLength}

	registrar := service.NewRegistrar(store.Attendees(), store.Attendance(), broadcaster, dispatcher, lg, nil)
	registration := service.NewRegistration(store.Attendees(), dispatcher, cfg.Notify.Concurrency, lg, nil)
	dashboard := service.NewDashboard(store)
	staff := service.NewStaffService(store.Staff(), store.Audit(), signer, policy, lg, nil)

	created, generated, err := staff.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdmin.Name, cfg.BootstrapAdmin.Email, cfg.BootstrapAdmin.Password)
	switch {
	case err != nil:
		lg.Error("bootstrap admin failed", logger.Err(err))
		os.Exit(1)
	case created && generated != "":
		lg.Warn("bootstrap admin created with generated password",
			slog.String("email", cfg.BootstrapAdmin.Email),
			logger.Secret("password", generated))
	case created:
		lg.Info("bootstrap admin created", slog.String("email", cfg.BootstrapAdmin.Email))
	}

	// --- HTTP ---
	router := httpx.NewRouter(httpx.Deps{
		Registrar:      registrar,
		Registration:   registration,
		Dashboard:      dashboard,
		Staff:          staff,
		Live:           broadcaster,
		Providers:      dispatcher,
		Concurrency:    cfg.Notify.Concurrency,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         lg,
	})
	httpSrv := httpx.NewServer(httpx.ServerConfig{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, router)

	// --- run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		broadcaster.Run(gctx)
		return nil
	})

	// live-сессии закрываются до остановки серверов, иначе Shutdown ждёт открытые потоки
	g.Go(func() error {
		<-gctx.Done()
		broadcaster.Close()
		return nil
	})

	g.Go(func() error {
		lg.Info("http listen", slog.String("addr", cfg.HTTP.Addr))
		return httpSrv.Run(gctx)
	})

	if cfg.GRPC.Addr != "" {
		grpcServer := grpcx.NewGRPCServer(cfg.Live.Heartbeat, lg)
		grpcx.Register(grpcServer, grpcx.NewServer(registrar, staff, broadcaster, lg))

		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				return err
			}
			lg.Info("grpc listen", slog.String("addr", cfg.GRPC.Addr))
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("server error", logger.Err(err))
	}

	// фоновые подтверждения входа дописывают статусы до закрытия хранилища
	waitCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := dispatcher.Wait(waitCtx); err != nil {
		lg.Warn("pending notifications abandoned", logger.Err(err))
	}
	lg.Info("stopped")
}

func openStore(ctx context.Context, cfg *config.Config, lg *slog.Logger) (repository.Store, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		lg.Warn("using in-memory storage: data is lost on restart")
		return memstore.New(), nil
	}

	pool, err := postgres.NewPool(ctx, postgres.Config{
		DSN:               cfg.Postgres.DSN,
		MaxConns:          cfg.Postgres.MaxConns,
		MinConns:          cfg.Postgres.MinConns,
		MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
		HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
		ApplicationName:   cfg.Postgres.ApplicationName,
		Logger:            lg,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return postgres.NewStore(pool), nil
}
