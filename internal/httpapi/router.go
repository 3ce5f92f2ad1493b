package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/draftkiller/backend/internal/common"
	"github.com/draftkiller/backend/internal/config"
	"github.com/draftkiller/backend/internal/httpapi/handlers"
	"github.com/draftkiller/backend/internal/httpapi/middleware"
	"github.com/draftkiller/backend/internal/usage"
)

func NewRouter(db *gorm.DB, cfg config.Config, log *zap.Logger, tracker *usage.Tracker) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())

	if len(cfg.CORSOrigins) > 0 {
		cc := cors.DefaultConfig()
		cc.AllowOrigins = cfg.CORSOrigins
		cc.AllowCredentials = true
		cc.AllowHeaders = append(cc.AllowHeaders, "Authorization", "X-Session-Token")
		r.Use(cors.New(cc))
	}

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, log, tracker)

	r.GET("/ping", h.Ping)

	r.POST("/users", h.Register)
	r.POST("/login", h.Login)

	// Streaming analysis: open to anonymous callers within the free quota.
	streamGroup := r.Group("/")
	streamGroup.Use(
		middleware.OptionalAuth(db, cfg.JWTSecret),
		middleware.Identity(),
		middleware.RateLimit(tracker),
	)
	streamGroup.POST("/chat/stream", h.StreamAnalysis)

	// History requires an account.
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(db, cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/chat/conversations", h.ListConversations)
	authGroup.GET("/chat/conversations/:id", h.GetConversation)
	authGroup.DELETE("/chat/conversations/:id", h.DeleteConversation)

	return r
}
