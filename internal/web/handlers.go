package web

import (
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/insight-wallet/internal/bridge"
	"github.com/yourorg/insight-wallet/internal/chains"
	"github.com/yourorg/insight-wallet/internal/circuitbreaker"
	"github.com/yourorg/insight-wallet/internal/report"
	"github.com/yourorg/insight-wallet/internal/session"
	"github.com/yourorg/insight-wallet/internal/types"
)

// walletPlaceholder fills the wallet slot until the tab session renders into it
const walletPlaceholder template.HTML = ""

type pageData struct {
	SessionID   string
	Wallet      template.HTML
	Report      *report.Report
	Markets     []report.MarketAsset
	LastUpdated string
}

// handleIndex renders the page. The server never knows the wallet, so the wallet slot
// always holds the placeholder; the tab session fills it after hydration.
func (s *Server) handleIndex(c *gin.Context) {
	data := pageData{
		SessionID: c.GetString(sessionContextKey),
		Wallet:    walletPlaceholder,
	}

	if r := s.deps.Reports.Current(); r != nil {
		data.Report = r
		data.Markets = r.Markets()
		if t := r.LastUpdated(); !t.IsZero() {
			data.LastUpdated = t.UTC().Format("2006-01-02 15:04 UTC")
		} else {
			data.LastUpdated = r.LastUpdatedUTC
		}
	}

	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "OK",
		"uptime":       time.Since(s.startedAt).String(),
		"tab_sessions": s.deps.Hub.Len(),
		"warnings":     s.deps.Registry.Warnings(),
		"circuits":     s.deps.Registry.CircuitStates(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleNetworks lists the supported networks with the credential masked
func (s *Server) handleNetworks(c *gin.Context) {
	descriptors := s.deps.Registry.Descriptors()
	for i := range descriptors {
		descriptors[i].PrimaryURL = s.deps.Registry.Mask(descriptors[i].PrimaryURL)
	}
	c.JSON(http.StatusOK, gin.H{
		"networks": descriptors,
		"warnings": s.deps.Registry.Warnings(),
	})
}

// handleNetworkStatus asks a network's endpoint which chain it serves
func (s *Server) handleNetworkStatus(c *gin.Context) {
	id, err := types.ParseNetworkID(c.Param("networkId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unsupported network"})
		return
	}

	status, err := s.deps.Registry.CheckEndpoint(c.Request.Context(), id)
	switch {
	case errors.Is(err, chains.ErrUnsupportedNetwork):
		c.JSON(http.StatusNotFound, gin.H{"error": "unsupported network"})
		return
	case errors.Is(err, chains.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	case err != nil:
		logrus.WithField("network", id.String()).WithError(err).Warn("Endpoint status check failed")
		c.JSON(http.StatusBadGateway, gin.H{"network_id": id, "reachable": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"network_id": status.NetworkID,
		"reachable":  true,
		"primary":    status.Primary,
		"chain_id":   status.ChainID,
		"matches":    status.Matches,
		"latency_ms": status.Latency.Milliseconds(),
	})
}

// handleRelay forwards a JSON-RPC body to the network's endpoint
func (s *Server) handleRelay(c *gin.Context) {
	id, err := types.ParseNetworkID(c.Param("networkId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unsupported network"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, chains.MaxRelayBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) > chains.MaxRelayBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}

	resp, err := s.deps.Relay.Forward(c.Request.Context(), id, body)
	switch {
	case errors.Is(err, chains.ErrUnsupportedNetwork):
		c.JSON(http.StatusNotFound, gin.H{"error": "unsupported network"})
		return
	case errors.Is(err, chains.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	case errors.Is(err, circuitbreaker.ErrOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream rpc temporarily unavailable"})
		return
	case err != nil:
		logrus.WithField("network", id.String()).WithError(err).Warn("RPC relay failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream rpc unavailable"})
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}

// handleBridge upgrades to the tab session WebSocket
func (s *Server) handleBridge(c *gin.Context) {
	sessionID := c.Query("session")
	if !session.ValidID(sessionID) {
		if cookie, err := c.Cookie(session.CookieName); err == nil && session.ValidID(cookie) {
			sessionID = cookie
		} else {
			// no memory across reloads for this tab
			sessionID = session.NewID()
		}
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.deps.Config.AllowedOrigins),
	})
	if err != nil {
		logrus.WithError(err).Warn("WebSocket accept failed")
		return
	}

	s.deps.Hub.Serve(c.Request.Context(), bridge.NewWSConn(conn), bridge.SessionConfig{
		Store:   s.deps.Sessions.For(sessionID),
		Render:  s.views.Wallet,
		Metrics: s.deps.Metrics,
	})
}
