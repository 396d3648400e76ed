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

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tvfleet/fleet-core/pkg/backoff"
	"github.com/tvfleet/fleet-core/pkg/fsm/setup"
	"github.com/tvfleet/fleet-core/pkg/models"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
	"github.com/tvfleet/fleet-core/pkg/service/bridge"
)

type beginSetupRequest struct {
	Address   string `json:"address" binding:"required"`
	TVID      string `json:"tvId" binding:"required"`
	SetupType string `json:"setupType"`
}

func (s *Server) beginSetup(c *gin.Context) {
	var req beginSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.SetupType == "" {
		req.SetupType = "provision"
	}

	err := s.setupMgr.BeginSetup(c.Request.Context(), req.Address, req.TVID, req.SetupType)
	switch {
	case errors.Is(err, bridge.ErrNotReady):
		respondError(c, http.StatusServiceUnavailable, string(setup.FailureBridgeNotReady), err)
	case errors.Is(err, setup.ErrSessionActive):
		respondError(c, http.StatusConflict, "setup_in_progress", err)
	case err != nil:
		respondError(c, http.StatusInternalServerError, "internal", err)
	default:
		c.JSON(http.StatusAccepted, gin.H{"address": req.Address, "setupType": req.SetupType})
	}
}

func (s *Server) setupStatus(c *gin.Context) {
	snap, err := s.setupMgr.Status(c.Param("address"))
	if err != nil {
		respondError(c, http.StatusNotFound, "session_not_found", err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

func (s *Server) cancelSetup(c *gin.Context) {
	if err := s.setupMgr.Cancel(c.Param("address")); err != nil {
		respondError(c, http.StatusNotFound, "session_not_found", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (s *Server) retrySetup(c *gin.Context) {
	err := s.setupMgr.Retry(c.Request.Context(), c.Param("address"))
	switch {
	case errors.Is(err, bridge.ErrNotReady):
		respondError(c, http.StatusServiceUnavailable, string(setup.FailureBridgeNotReady), err)
	case errors.Is(err, setup.ErrSessionNotFound):
		respondError(c, http.StatusNotFound, "session_not_found", err)
	case errors.Is(err, setup.ErrSessionActive):
		respondError(c, http.StatusConflict, "setup_in_progress", err)
	case errors.Is(err, setup.ErrSessionNotFailed):
		respondError(c, http.StatusConflict, "session_not_failed", err)
	case backoff.IsPermanentFailureError(err):
		respondError(c, http.StatusConflict, "retry_exhausted", err)
	case backoff.IsTemporaryBackoffError(err):
		respondError(c, http.StatusTooManyRequests, "retry_backoff", err)
	case err != nil:
		respondError(c, http.StatusInternalServerError, "internal", err)
	default:
		c.JSON(http.StatusAccepted, gin.H{"address": c.Param("address"), "retrying": true})
	}
}

func (s *Server) adbStatus(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", errors.New("address query parameter required"))
		return
	}

	status := models.AdbStatus{Address: address, Status: string(adb.AuthStateUnknown)}

	state, err := s.client.AuthState(c.Request.Context(), address)
	if err == nil {
		status.Connected = true
		status.Authorized = state == adb.AuthStateAuthorized
		status.Status = string(state)
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) bridgeStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.supervisor.Status(c.Request.Context()))
}

func (s *Server) restartBridge(c *gin.Context) {
	err := s.supervisor.Restart(c.Request.Context())
	switch {
	case errors.Is(err, bridge.ErrRestartInProgress):
		respondError(c, http.StatusConflict, "restart_in_progress", err)
	case err != nil:
		respondError(c, http.StatusInternalServerError, "restart_failed", err)
	default:
		c.JSON(http.StatusOK, gin.H{"restarted": true})
	}
}
