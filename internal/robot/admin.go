package robot

import (
	"net/http"
	"time"

	"github.com/danmuck/rovlink/internal/auth"
	"github.com/danmuck/rovlink/internal/observability"
	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/store/tokens"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type peerView struct {
	Connected  bool      `json:"connected"`
	Endpoint   string    `json:"endpoint,omitempty"`
	LastPacket time.Time `json:"last_packet,omitempty"`
}

// requireToken rejects requests without the configured bearer token.
func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.CheckHeader(v, c.GetHeader("Authorization")); err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// NewAdminRouter serves read-only diagnostics: health, state, peer and metrics.
// State endpoints require AdminToken when one is configured.
func NewAdminRouter(s *Service) *gin.Engine {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AdminAccess(s.cfg.Name, log.Logger, "/health", "/metrics"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "name": s.cfg.Name})
	})
	api := r.Group("/")
	if s.cfg.AdminToken != "" {
		api.Use(requireToken(auth.StaticToken(s.cfg.AdminToken)))
	}
	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, stateView(s.state.ToUpdates()))
	})
	api.GET("/status", func(c *gin.Context) {
		status, ok := store.Get(s.status.Store(), tokens.Status)
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status not computed"})
			return
		}
		c.JSON(http.StatusOK, status)
	})
	api.GET("/peer", func(c *gin.Context) {
		conn, ok := s.network.Current()
		if !ok {
			c.JSON(http.StatusOK, peerView{})
			return
		}
		c.JSON(http.StatusOK, peerView{Connected: true, Endpoint: conn.Endpoint.String(), LastPacket: conn.LastPacket})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func stateView(updates []store.Update) map[string]any {
	out := make(map[string]any, len(updates))
	for _, u := range updates {
		out[string(u.Key)] = u.Value
	}
	return out
}
