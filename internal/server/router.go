package server

import (
	"github.com/aruzhan/gostash/internal/auth"
	"github.com/aruzhan/gostash/internal/config"
	"github.com/aruzhan/gostash/internal/file"
	"github.com/aruzhan/gostash/internal/metrics"
	"github.com/aruzhan/gostash/internal/search"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config      config.Config
	DB          *pgxpool.Pool
	ObjectStore *minio.Client
	AuthService *auth.Service
	FileService *file.Service
	Logger      *zap.Logger
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Logger))

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.AuthMiddleware(deps.AuthService))

		if deps.FileService != nil {
			file.RegisterRoutes(protected, deps.FileService)
			search.RegisterRoutes(protected, deps.FileService.Engine(),
				deps.Config.Search.QuietPeriod, deps.Logger)
		}
	}

	return router
}
