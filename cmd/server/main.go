// Command ik-server starts the IronKeep key server.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/ironkeep/internal/config"
	"github.com/and161185/ironkeep/internal/limiter"
	"github.com/and161185/ironkeep/internal/migrate"
	"github.com/and161185/ironkeep/internal/repository"
	"github.com/and161185/ironkeep/internal/repository/memory"
	"github.com/and161185/ironkeep/internal/repository/postgres"
	grpcserver "github.com/and161185/ironkeep/internal/server/grpc"
	"github.com/and161185/ironkeep/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

type repos struct {
	users   repository.UserRepository
	devices repository.DeviceRepository
	groups  repository.GroupRepository
	docs    repository.DocumentRepository
}

// main loads configuration, prepares storage and serves the key service until signalled.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.String("limiter", cfg.Limiter),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		r    repos
		pool *pgxpool.Pool
	)
	switch cfg.Storage {
	case config.BackendPostgres:
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		pool, err = pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			logger.Fatal("pgxpool.New", zap.Error(err))
		}
		defer pool.Close()
		db := &postgres.DB{Pool: pool}
		r = repos{
			users:   postgres.NewUserRepo(db),
			devices: postgres.NewDeviceRepo(db),
			groups:  postgres.NewGroupRepo(db),
			docs:    postgres.NewDocumentRepo(db),
		}
	default:
		logger.Warn("memory storage: nothing survives a restart")
		st := memory.New()
		r = repos{users: st.Users(), devices: st.Devices(), groups: st.Groups(), docs: st.Documents()}
	}

	set := limiter.Settings{Window: cfg.LimiterWindow, MaxFails: cfg.LimiterFails, BlockFor: cfg.LimiterBlock}
	var lim limiter.Limiter
	switch cfg.Limiter {
	case config.BackendPostgres:
		lim = limiter.NewPG(pool, set)
	case config.BackendRedis:
		rdb, err := limiter.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		lim = limiter.NewRedis(rdb, set)
	default:
		lim = limiter.NewMemory(set)
	}

	verifyKey, err := cfg.IdentityKey()
	if err != nil {
		logger.Fatal("identity key", zap.Error(err))
	}
	if verifyKey == nil {
		logger.Warn("identity JWT signatures are not verified")
	}

	users := service.NewUserService(r.users, r.devices, lim, service.IdentityConfig{
		VerifyKey:      verifyKey,
		Leeway:         cfg.TokenLeeway,
		DefaultSegment: cfg.SegmentID,
	})
	groups := service.NewGroupService(r.groups)
	docs := service.NewDocumentService(r.docs, r.groups, r.users)
	app := grpcserver.New(users, groups, docs, logger)

	creds := insecure.NewCredentials()
	if cfg.TLSCert != "" {
		creds, err = credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
	} else {
		logger.Warn("TLS disabled")
	}

	s := grpc.NewServer(
		grpc.Creds(creds),
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(app),
		),
	)
	grpcserver.Register(s, app)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLSCert != ""))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
