package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"callbridge/internal/adapters"
	"callbridge/internal/app"
	"callbridge/internal/config"
	"callbridge/internal/domain"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a stable token to the browser so reloads
// keep an identity across websocket reconnects.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter wires HTTP routes (static UI, REST, WS) with the
// coordinator and transport registry.
func SetupRouter(ctx context.Context, cfg *config.Config, reg *app.Registry, coord *app.Coordinator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CallSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	limiter := adapters.NewConnRateLimiter(cfg.RateLimit, cfg.RateWindow)
	ctrl := adapters.NewSignalController(reg, coord, limiter)

	api := r.Group("/api")

	// GET /api/online — user ids currently joined, for diagnostics.
	api.GET("/online", func(c *gin.Context) {
		users := lo.FilterMap(reg.Sessions(), func(s domain.Session, _ int) (string, bool) {
			return s.UserID, s.UserID != ""
		})
		c.JSON(http.StatusOK, gin.H{"online": users})
	})

	api.GET("/ws/live", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws live endpoint hit")
		ctrl.HandleLive(ctx, c)
	})

	return r
}
