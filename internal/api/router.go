package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/huddle/internal/middleware"
	"github.com/lalith-99/huddle/internal/observ"
	"github.com/lalith-99/huddle/internal/realtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services is everything the handlers need from the service layer.
// *service.Service satisfies it.
type Services interface {
	UserService
	SpaceService
	ChannelService
	MessageService
	RoleChecker
}

type Deps struct {
	Services  Services
	Hub       *realtime.Hub
	Metrics   *observ.Metrics
	JWTSecret string
	Logger    *zap.Logger

	// Health reports whether backing stores are reachable. Optional.
	Health func(ctx context.Context) error
}

// NewRouter wires every route. Only /v1/health and /metrics are public.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Logger, d.Metrics))

	r.GET("/v1/health", func(c *gin.Context) {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				d.Logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	users := NewUserHandler(d.Services, d.Logger)
	spaces := NewSpaceHandler(d.Services, d.Logger)
	channels := NewChannelHandler(d.Services, d.Logger)
	messages := NewMessageHandler(d.Services, d.Logger)

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(d.JWTSecret))

	v1.GET("/users/me", users.GetMe)

	v1.GET("/spaces/:id", spaces.Get)
	v1.GET("/spaces/:id/members", spaces.ListMembers)
	v1.GET("/spaces/:id/channels", channels.List)
	v1.POST("/spaces/:id/channels", channels.Create)
	if d.Hub != nil {
		v1.GET("/spaces/:id/ws", NewWSHandler(d.Services, d.Hub, d.Logger).Subscribe)
	}

	v1.GET("/channels/:id", channels.GetByID)
	v1.PATCH("/channels/:id", channels.Update)
	v1.DELETE("/channels/:id", channels.Delete)
	v1.GET("/channels/:id/messages", messages.List)
	v1.POST("/channels/:id/messages", messages.Create)

	v1.PATCH("/messages/:id", messages.Update)
	v1.DELETE("/messages/:id", messages.Delete)
	v1.POST("/messages/:id/forward", messages.Forward)

	return r
}
