package server

import (
	"context"

	"github.com/abduss/shopdrop/internal/auth"
	"github.com/abduss/shopdrop/internal/channel"
	"github.com/abduss/shopdrop/internal/config"
	"github.com/abduss/shopdrop/internal/file"
	"github.com/abduss/shopdrop/internal/ingest"
	"github.com/abduss/shopdrop/internal/logger"
	"github.com/abduss/shopdrop/internal/metrics"
	"github.com/abduss/shopdrop/internal/shop"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies groups the services required by the HTTP router. DB, ObjectStore and Redis
// are nil when the corresponding backend is not in use.
type Dependencies struct {
	Config      config.Config
	Logger      *zap.Logger
	DB          *pgxpool.Pool
	ObjectStore *minio.Client
	Redis       *redis.Client
	Verifier    *auth.Verifier
	Store       *file.Store
	Coordinator *ingest.Coordinator
	Shops       ShopDirectory
	Registry    *channel.Registry
}

// ShopDirectory reports whether an upload targets a registered shop.
type ShopDirectory interface {
	Exists(ctx context.Context, shopID string) (bool, error)
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(logger.Middleware(deps.Logger))
	router.Use(logger.Recovery(deps.Logger))
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.Coordinator != nil {
		shops := deps.Shops
		if shops == nil {
			shops = shop.NewStaticDirectory(deps.Config.Shops.Known)
		}
		ingest.RegisterRoutes(api, deps.Coordinator, shops, deps.Config.Upload)
	}

	if deps.Verifier != nil {
		protected := api.Group("/")
		protected.Use(auth.Middleware(deps.Verifier, deps.Config.Auth.CookieName))

		auth.RegisterRoutes(protected)
		if deps.Store != nil {
			file.RegisterRoutes(protected, deps.Store, deps.Config.Store.LinkTTL)
		}
		if deps.Registry != nil {
			channel.RegisterRoutes(protected, deps.Registry, deps.Config.Events)
		}
	}

	return router
}
