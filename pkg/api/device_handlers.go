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
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tvfleet/fleet-core/pkg/models"
	"github.com/tvfleet/fleet-core/pkg/registry"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
	"github.com/tvfleet/fleet-core/pkg/service/recovery"
)

type admitDeviceRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// admitDevice registers a device into the fleet. Admission is gated on a
// successful setup session for the address; the gate is consumed so a second
// admission needs a fresh session.
func (s *Server) admitDevice(c *gin.Context) {
	var req admitDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	if !s.setupMgr.ConsumeEligibility(req.Address) {
		respondError(c, http.StatusPreconditionFailed, "setup_required",
			fmt.Errorf("address %s has no completed setup session", req.Address))
		return
	}

	device, err := s.registry.Admit(req.Name, req.Address)
	switch {
	case errors.Is(err, registry.ErrAddressInUse):
		respondError(c, http.StatusConflict, "address_in_use", err)
		return
	case errors.Is(err, registry.ErrNameInUse):
		respondError(c, http.StatusConflict, "name_in_use", err)
		return
	case err != nil:
		respondError(c, http.StatusInternalServerError, "internal", err)
		return
	}

	s.monitor.StartDevice(device.ID)

	c.JSON(http.StatusCreated, device)
}

func (s *Server) listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": s.registry.List()})
}

func (s *Server) getDevice(c *gin.Context) {
	device, err := s.registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "device_not_found", err)
		return
	}

	c.JSON(http.StatusOK, device)
}

func (s *Server) deleteDevice(c *gin.Context) {
	id := c.Param("id")

	// Stop probing before the registry forgets the device so the loop does
	// not race a concurrent re-admission of the address.
	s.monitor.StopDevice(id)

	if err := s.registry.Delete(id); err != nil {
		respondError(c, http.StatusNotFound, "device_not_found", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type setMonitoringRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) setMonitoring(c *gin.Context) {
	var req setMonitoringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	if err := s.monitor.SetMonitoringEnabled(c.Param("id"), *req.Enabled); err != nil {
		respondError(c, http.StatusNotFound, "device_not_found", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

func (s *Server) triggerRecovery(c *gin.Context) {
	err := s.recovery.TriggerManualRecovery(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, registry.ErrDeviceNotFound):
		respondError(c, http.StatusNotFound, "device_not_found", err)
	case errors.Is(err, recovery.ErrRecoveryInProgress):
		respondError(c, http.StatusConflict, "recovery_in_progress", err)
	case err != nil:
		respondError(c, http.StatusInternalServerError, "recovery_failed", err)
	default:
		c.JSON(http.StatusOK, gin.H{"recovered": true})
	}
}

func (s *Server) resetRecovery(c *gin.Context) {
	if err := s.recovery.ResetRecoveryAttempts(c.Param("id")); err != nil {
		respondError(c, http.StatusNotFound, "device_not_found", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"autoRecoveryAttempts": 0})
}

// deviceChecks runs the individual health probes and reports them as a
// checklist instead of one folded status.
func (s *Server) deviceChecks(c *gin.Context) {
	device, err := s.registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "device_not_found", err)
		return
	}

	ctx := c.Request.Context()
	checks := make([]models.Check, 0, 4)

	if latency, err := s.client.Ping(ctx, device.Address); err == nil {
		checks = append(checks, models.Check{
			Name:    "network_ping",
			Result:  models.CheckOK,
			Message: "Device answers on the network",
			Details: map[string]any{"latencyMs": latency},
		})
	} else {
		checks = append(checks, models.Check{
			Name:    "network_ping",
			Result:  models.CheckFail,
			Message: "Device does not answer on the network",
		})
	}

	state, err := s.client.AuthState(ctx, device.Address)
	switch {
	case err == nil && state == adb.AuthStateAuthorized:
		checks = append(checks, models.Check{
			Name:    "bridge_connection",
			Result:  models.CheckOK,
			Message: "Bridge connection authorized",
		})
	case err == nil:
		checks = append(checks, models.Check{
			Name:    "bridge_connection",
			Result:  models.CheckWarning,
			Message: fmt.Sprintf("Bridge connection in state %s", state),
		})
	default:
		checks = append(checks, models.Check{
			Name:    "bridge_connection",
			Result:  models.CheckFail,
			Message: "Device not tracked by the bridge daemon",
		})
	}

	if running, err := s.client.IsProcessRunning(ctx, device.Address, s.cfg.Helper.Package); err == nil && running {
		checks = append(checks, models.Check{
			Name:    "helper_process",
			Result:  models.CheckOK,
			Message: "Helper app is running",
		})
	} else {
		checks = append(checks, models.Check{
			Name:    "helper_process",
			Result:  models.CheckFail,
			Message: "Helper app is not running",
		})
	}

	heartbeat := models.Check{
		Name:    "heartbeat",
		Result:  models.CheckFail,
		Message: "No heartbeat received",
	}
	if device.LastHeartbeatTime != nil {
		age := time.Since(*device.LastHeartbeatTime)
		heartbeat.Details = map[string]any{"age": age.Round(time.Second).String()}
		if age <= s.cfg.Monitor.HeartbeatFreshnessThreshold {
			heartbeat.Result = models.CheckOK
			heartbeat.Message = "Heartbeat is fresh"
		} else {
			heartbeat.Result = models.CheckWarning
			heartbeat.Message = "Heartbeat is stale"
		}
	}
	checks = append(checks, heartbeat)

	summary := models.CheckOK
	for _, check := range checks {
		if check.Result == models.CheckFail {
			summary = models.CheckFail
			break
		}
		if check.Result == models.CheckWarning {
			summary = models.CheckWarning
		}
	}

	c.JSON(http.StatusOK, models.DetailedStatus{
		DeviceID: device.ID,
		Checks:   checks,
		Summary:  string(summary),
	})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.Stats())
}

type heartbeatRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
}

func (s *Server) heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	if err := s.monitor.RecordHeartbeat(req.DeviceID); err != nil {
		respondError(c, http.StatusNotFound, "device_not_found", err)
		return
	}

	c.Status(http.StatusNoContent)
}
