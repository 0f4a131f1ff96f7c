package http

import (
	"net/http"
	"time"

	"github.com/dkeye/Rendezvous/internal/adapters/signal"
	"github.com/dkeye/Rendezvous/internal/config"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenCookie = "ct"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable opaque token, used to
// key rate limits and correlate logs. It is not the session identity.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(clientTokenCookie)
		if token == "" {
			token = genClientToken()
			c.SetCookie(clientTokenCookie, token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		// Reflect the origin: a literal "*" is refused by browsers once
		// credentials are involved.
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func SetupRouter(cfg *config.Config, svc core.SessionService, m *metrics.Metrics) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	store := cookie.NewStore(cfg.CookieSecret())
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Cookie.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cfg.Cookie.Name, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	h := NewSignalingHandlers(svc, cfg.RequestTimeout)
	limiter := NewOfferRateLimiter(cfg.OfferRate.Limit, cfg.OfferRate.Interval)
	registerSignaling(&r.RouterGroup, h, limiter)
	registerSignaling(r.Group("/api"), h, limiter)

	ws := signal.NewSignalWSController(svc, signal.Options{
		ReadLimit:      cfg.WS.ReadLimit,
		PingPeriod:     cfg.WS.PingPeriod,
		RequestTimeout: cfg.RequestTimeout,
	})
	r.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ws.HandleSignal(c)
	})

	if cfg.Metrics.Enabled && m != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}
	if cfg.Mode == "debug" {
		r.GET("/debug/sessions", h.debugSessions)
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Bool("metrics", cfg.Metrics.Enabled).Msg("router setup")
	return r
}

func registerSignaling(g *gin.RouterGroup, h *SignalingHandlers, limiter *OfferRateLimiter) {
	g.POST("/new_offer", limiter.Middleware(), h.newOffer)
	g.POST("/ice_candidate", h.postCandidate)
	g.GET("/ice_candidate", h.getCandidates)
	g.DELETE("/session", h.deleteSession)
}
