// Copyright 2026 TVFleet Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api exposes the engine over HTTP: provisioning, device management,
// health and recovery operations, the live event stream, and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tvfleet/fleet-core/pkg/config"
	"github.com/tvfleet/fleet-core/pkg/events"
	"github.com/tvfleet/fleet-core/pkg/fsm/setup"
	"github.com/tvfleet/fleet-core/pkg/logger"
	"github.com/tvfleet/fleet-core/pkg/registry"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
	"github.com/tvfleet/fleet-core/pkg/service/bridge"
	"github.com/tvfleet/fleet-core/pkg/service/monitor"
	"github.com/tvfleet/fleet-core/pkg/service/recovery"
)

// Server wires the HTTP surface to the engine components.
type Server struct {
	log *zap.SugaredLogger

	cfg         config.Config
	registry    *registry.Registry
	setupMgr    *setup.SetupManager
	supervisor  *bridge.Supervisor
	monitor     *monitor.Monitor
	recovery    *recovery.Controller
	broadcaster *events.Broadcaster
	client      adb.Client

	httpServer *http.Server
}

// NewServer builds the server and its routes.
func NewServer(
	cfg config.Config,
	reg *registry.Registry,
	setupMgr *setup.SetupManager,
	supervisor *bridge.Supervisor,
	mon *monitor.Monitor,
	rec *recovery.Controller,
	broadcaster *events.Broadcaster,
	client adb.Client,
) *Server {
	s := &Server{
		log:         logger.For(logger.ComponentAPI),
		cfg:         cfg,
		registry:    reg,
		setupMgr:    setupMgr,
		supervisor:  supervisor,
		monitor:     mon,
		recovery:    rec,
		broadcaster: broadcaster,
		client:      client,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.HTTPListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Router builds the gin engine. Exposed separately so tests can drive it with
// httptest without binding a port.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/setup", s.beginSetup)
		v1.GET("/setup/:address/status", s.setupStatus)
		v1.POST("/setup/:address/cancel", s.cancelSetup)
		v1.POST("/setup/:address/retry", s.retrySetup)

		v1.GET("/adb/status", s.adbStatus)
		v1.GET("/bridge/status", s.bridgeStatus)
		v1.POST("/bridge/restart", s.restartBridge)

		v1.POST("/devices", s.admitDevice)
		v1.GET("/devices", s.listDevices)
		v1.GET("/devices/:id", s.getDevice)
		v1.DELETE("/devices/:id", s.deleteDevice)
		v1.POST("/devices/:id/monitoring", s.setMonitoring)
		v1.POST("/devices/:id/recovery", s.triggerRecovery)
		v1.POST("/devices/:id/recovery/reset", s.resetRecovery)
		v1.GET("/devices/:id/checks", s.deviceChecks)

		v1.GET("/stats", s.stats)
		v1.POST("/heartbeat", s.heartbeat)
		v1.GET("/events", s.streamEvents)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Infof("api listening on %s", s.cfg.HTTPListenAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// The event stream holds its connection open; logging it on close
		// only adds noise.
		if c.Request.URL.Path == "/api/v1/events" {
			return
		}

		s.log.Debugw("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// apiError is the uniform error body. Instructions carry the remediation
// steps for failures an operator can act on.
type apiError struct {
	Code         string   `json:"code"`
	Message      string   `json:"message"`
	Instructions []string `json:"instructions,omitempty"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, gin.H{"error": apiError{
		Code:         code,
		Message:      err.Error(),
		Instructions: setup.Remediation(err),
	}})
}
