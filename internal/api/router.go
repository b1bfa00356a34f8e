package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/ideaforge/internal/api/handler"
	"github.com/timmy/ideaforge/internal/api/middleware"
	"github.com/timmy/ideaforge/internal/service"
)

// Version is reported by /health. Overridden at build time with -ldflags.
var Version = "dev"

// RouterConfig carries what SetupRouter needs. Publications may be nil.
type RouterConfig struct {
	Mode         string
	CORS         middleware.CORSConfig
	Ideas        *service.IdeaService
	Publish      *service.PublishService
	Publications handler.PublicationLister
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// request logger first so panics are logged with the request id
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(Version)
	ideaHandler := handler.NewIdeaHandler(cfg.Ideas)
	publishHandler := handler.NewPublishHandler(cfg.Publish, cfg.Publications)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Ideas
		v1.POST("/ideas", ideaHandler.Create)
		v1.GET("/ideas", ideaHandler.List)
		v1.GET("/ideas/next", ideaHandler.Next)
		v1.GET("/ideas/:id", ideaHandler.Get)
		v1.DELETE("/ideas/:id", ideaHandler.Delete)
		v1.POST("/ideas/:id/used", ideaHandler.MarkUsed)
		v1.GET("/ideas/:id/publications", publishHandler.ListIdeaPublications)

		// Publishing
		v1.POST("/publish", publishHandler.Publish)
		v1.GET("/publications", publishHandler.ListPublications)

		// Stats
		v1.GET("/stats", ideaHandler.Stats)
	}

	return r
}
