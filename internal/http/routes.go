package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// NewRouter wires routes and middleware. rl may be nil to disable rate limiting.
func NewRouter(h *Handler, rl Limiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Tracing("gandalf"))
	r.Use(Metrics())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	register := []gin.HandlerFunc{h.Register}
	if rl != nil {
		register = append([]gin.HandlerFunc{RateLimit(rl, h.Log)}, register...)
	}

	api := r.Group("/api/v1/users")
	{
		api.POST("/register", register...)
		api.GET("/:user_id", h.GetUser)
	}
	return r
}
