// Package web serves the Insight page, the wallet bridge endpoint and the RPC relay.
package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/insight-wallet/internal/bridge"
	"github.com/yourorg/insight-wallet/internal/chains"
	"github.com/yourorg/insight-wallet/internal/config"
	"github.com/yourorg/insight-wallet/internal/metrics"
	"github.com/yourorg/insight-wallet/internal/report"
	"github.com/yourorg/insight-wallet/internal/session"
)

// Deps are the collaborators of the HTTP server
type Deps struct {
	Config   config.Config
	Registry *chains.Registry
	Relay    *chains.Relay
	Sessions *session.Store
	Hub      *bridge.Hub
	Reports  *report.Source
	Metrics  *metrics.Metrics

	// Gatherer backs /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front of the wallet connectivity layer
type Server struct {
	deps      Deps
	views     *Views
	engine    *gin.Engine
	startedAt time.Time
}

// NewServer builds the router
func NewServer(deps Deps) (*Server, error) {
	views, err := NewViews()
	if err != nil {
		return nil, err
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore(deps.Config.SessionTTL)
	}
	if deps.Hub == nil {
		deps.Hub = bridge.NewHub()
	}
	if deps.Reports == nil {
		deps.Reports = report.NewSource(deps.Config.ReportFile)
	}

	s := &Server{
		deps:      deps,
		views:     views,
		startedAt: time.Now(),
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())
	router.SetHTMLTemplate(s.views.tmpl)

	router.GET("/", sessionCookie(s.deps.Sessions.TTL()), s.handleIndex)
	router.GET("/healthz", s.handleHealth)
	router.GET("/ws", s.handleBridge)
	router.StaticFS("/static", http.FS(staticFiles()))

	if s.deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/", corsMiddleware(s.deps.Config.AllowedOrigins))
	{
		api.GET("/api/networks", s.handleNetworks)
		api.GET("/api/networks/:networkId/status", s.handleNetworkStatus)
		api.POST("/rpc/:networkId", s.handleRelay)
		api.OPTIONS("/rpc/:networkId", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}
	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	return cors.New(corsConfig)
}

// originPatterns turns configured origins into host patterns for the WebSocket handshake.
// Empty means same-origin only.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}

const sessionContextKey = "session_id"

// sessionCookie makes sure the browser carries a session id
func sessionCookie(ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(session.CookieName)
		if err != nil || !session.ValidID(id) {
			id = session.NewID()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(session.CookieName, id, int(ttl.Seconds()), "/", "", c.Request.TLS != nil, true)
		}
		c.Set(sessionContextKey, id)
		c.Next()
	}
}
