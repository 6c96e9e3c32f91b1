package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/shopdrop/internal/auth"
	"github.com/abduss/shopdrop/internal/channel"
	"github.com/abduss/shopdrop/internal/clock"
	"github.com/abduss/shopdrop/internal/config"
	"github.com/abduss/shopdrop/internal/file"
	"github.com/abduss/shopdrop/internal/ingest"
	"github.com/abduss/shopdrop/internal/logger"
	"github.com/abduss/shopdrop/internal/ratelimit"
	"github.com/abduss/shopdrop/internal/server"
	"github.com/abduss/shopdrop/internal/shop"
	"github.com/abduss/shopdrop/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real{}
	deps := server.Dependencies{
		Config:   cfg,
		Logger:   zl,
		Verifier: auth.NewVerifier(cfg.Auth),
		Registry: channel.NewRegistry(zl.Named("channel")),
	}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		if err := storage.Migrate(cfg.Postgres); err != nil {
			zl.Fatal("apply migrations", zap.Error(err))
		}

		dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			zl.Fatal("connect postgres", zap.Error(err))
		}
		defer dbPool.Close()

		minioClient, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			zl.Fatal("connect minio", zap.Error(err))
		}
		if err := storage.EnsureBucket(ctx, minioClient, cfg.MinIO.Bucket, cfg.MinIO.Region, cfg.Store.Retention); err != nil {
			zl.Fatal("ensure bucket", zap.Error(err))
		}

		deps.DB = dbPool
		deps.ObjectStore = minioClient
		deps.Shops = shop.NewPostgresDirectory(dbPool)
		deps.Store = file.NewStore(
			file.NewPostgresRepository(dbPool),
			file.NewMinIOBlobStore(minioClient, cfg.MinIO.Bucket),
			cfg.Store.Retention, clk, zl.Named("file"),
		)
	case config.BackendMemory:
		zl.Warn("using in-memory file store; uploads do not survive a restart")
		if len(cfg.Shops.Known) == 0 {
			zl.Warn("no known shops configured; uploads are accepted for any shop id")
		}
		deps.Shops = shop.NewStaticDirectory(cfg.Shops.Known)
		deps.Store = file.NewStore(file.NewMemoryRepository(), file.NewMemoryBlobStore(), cfg.Store.Retention, clk, zl.Named("file"))
	}

	var (
		limiter   ratelimit.Limiter = ratelimit.NewMemory(cfg.Rate.Limit, cfg.Rate.Window, clk)
		publisher channel.Publisher = deps.Registry
	)
	if cfg.Redis.Enabled() {
		redisClient, err := storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			zl.Fatal("connect redis", zap.Error(err))
		}
		defer redisClient.Close()

		deps.Redis = redisClient
		limiter = ratelimit.NewRedis(redisClient, cfg.Rate.Limit, cfg.Rate.Window, limiter, zl.Named("ratelimit"))
		relay := channel.NewRedisRelay(redisClient, deps.Registry, zl.Named("relay"))
		publisher = relay
		go runRelay(ctx, relay, zl)
	}

	deps.Coordinator = ingest.NewCoordinator(limiter, deps.Store, publisher, clk, zl.Named("ingest"))

	go file.NewSweeper(deps.Store, cfg.Store.SweepInterval, zl.Named("sweeper")).Run(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		// event streams end when the process starts shutting down
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		zl.Info("ShopDrop API listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("store", cfg.Store.Backend),
			zap.Bool("redis", cfg.Redis.Enabled()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zl.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}

// runRelay keeps the Redis subscription alive, reconnecting after failures.
func runRelay(ctx context.Context, relay *channel.RedisRelay, zl *zap.Logger) {
	for {
		err := relay.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		zl.Warn("redis relay stopped, retrying", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}
