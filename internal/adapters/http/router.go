package http

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Flamichka/sync/internal/adapters/signal"
	"github.com/Flamichka/sync/internal/app/orch"
	"github.com/Flamichka/sync/internal/config"
)

const (
	sessionName    = "SyncSessions"
	displayNameKey = "display_name"
)

// ProfileMiddleware exposes the remembered display name as "display_name".
func ProfileMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if name, ok := sessions.Default(c).Get(displayNameKey).(string); ok {
			c.Set(displayNameKey, name)
		}
		c.Next()
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	return cfg
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 30, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ProfileMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.Static("/media", filepath.Join(cfg.StaticPath, "media"))
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})
	r.GET("/host", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "host.html"))
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	limiter := signal.NewHandshakeLimiter(o.Rooms.Clock(), cfg.HandshakeLimit, cfg.HandshakeWindow)
	ctl := signal.NewSignalWSController(o, limiter, signal.Options{
		ReadLimit:      cfg.ReadLimit,
		SendBuffer:     cfg.SendBuffer,
		WriteTimeout:   cfg.WriteTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	r.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("room", c.Query("room")).Msg("ws endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	h := NewHandlers(o, NewMetadataClient(cfg.MetadataEndpoint, cfg.MetadataTimeout))
	api := r.Group("/api")
	api.GET("/session/state", h.SessionState)
	api.GET("/rooms", h.Rooms)
	api.GET("/rooms/:room/listeners", h.Listeners)
	api.GET("/profile", h.Profile)
	api.POST("/profile", h.UpdateProfile)
	api.POST("/video/metadata", h.VideoMetadata)

	return r
}
