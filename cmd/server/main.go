// Package main is the entry point for the Insight server: the page, the wallet bridge
// and the RPC relay behind it.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/insight-wallet/internal/bridge"
	"github.com/yourorg/insight-wallet/internal/chains"
	"github.com/yourorg/insight-wallet/internal/config"
	"github.com/yourorg/insight-wallet/internal/metrics"
	"github.com/yourorg/insight-wallet/internal/otel"
	"github.com/yourorg/insight-wallet/internal/report"
	"github.com/yourorg/insight-wallet/internal/session"
	"github.com/yourorg/insight-wallet/internal/web"
)

const shutdownTimeout = 30 * time.Second

func main() {
	setupLoggingFromEnv()
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	// the config file may carry its own log settings
	setupLogging(cfg.LogLevel, cfg.LogFormat)
	logrus.WithFields(logrus.Fields{"level": cfg.LogLevel, "format": cfg.LogFormat}).Info("Logging configured")
	gin.SetMode(gin.ReleaseMode)

	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.EnableMetrics {
		m = metrics.New(prometheus.DefaultRegisterer)
		gatherer = prometheus.DefaultGatherer
	}

	registry := chains.NewRegistry(cfg.RPCCredential,
		chains.WithProviderHost(cfg.RPCProviderHost),
		chains.WithRetryMax(cfg.RPCRetryMax),
		chains.WithRateLimit(cfg.RPCRateLimit, cfg.RPCRateBurst),
		chains.WithCircuitBreaker(cfg.RPCBreakerThreshold, cfg.RPCBreakerCooldown),
		chains.WithMetrics(m),
	)
	hub := bridge.NewHub()

	srv, err := web.NewServer(web.Deps{
		Config:   cfg,
		Registry: registry,
		Relay:    chains.NewRelay(registry, cfg.RequestTimeout, m),
		Sessions: session.NewStore(cfg.SessionTTL),
		Hub:      hub,
		Reports:  report.NewSource(cfg.ReportFile),
		Metrics:  m,
		Gatherer: gatherer,
	})
	if err != nil {
		logrus.Fatalf("Failed to build server: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"port":        cfg.Port,
		"networks":    len(registry.Descriptors()),
		"primary_rpc": cfg.RPCCredential != "",
		"metrics":     cfg.EnableMetrics,
		"tracing":     cfg.OtelEndpoint != "",
	}).Info("Server initialized")

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("Server starting on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// hijacked WebSocket connections are not tracked by http.Server
		if err := hub.Shutdown(shutdownCtx); err != nil {
			logrus.Warnf("Tab sessions did not close in time: %v", err)
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.Errorf("Server stopped with error: %v", err)
		shutdownTracer()
		os.Exit(1)
	}
	logrus.Info("Server stopped")
}
