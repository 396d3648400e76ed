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

// Package recovery remediates unhealthy devices by relaunching the helper
// app. Automatic triggers are budgeted and rate limited; manual triggers are
// not.
package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tvfleet/fleet-core/pkg/config"
	"github.com/tvfleet/fleet-core/pkg/events"
	"github.com/tvfleet/fleet-core/pkg/logger"
	"github.com/tvfleet/fleet-core/pkg/metrics"
	"github.com/tvfleet/fleet-core/pkg/models"
	"github.com/tvfleet/fleet-core/pkg/registry"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
	"github.com/tvfleet/fleet-core/pkg/service/monitor"
)

// Controller executes recovery attempts. One attempt runs per device at a
// time; the in-flight set guards against overlap from the monitor and manual
// triggers firing together.
type Controller struct {
	log *zap.SugaredLogger

	registry    *registry.Registry
	client      adb.Client
	broadcaster *events.Broadcaster
	helperCfg   config.HelperConfig
	monitorCfg  config.MonitorConfig
	signals     monitor.SignalSource

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewController creates a recovery controller.
func NewController(
	reg *registry.Registry,
	client adb.Client,
	broadcaster *events.Broadcaster,
	helperCfg config.HelperConfig,
	monitorCfg config.MonitorConfig,
) *Controller {
	return &Controller{
		log:         logger.For(logger.ComponentRecovery),
		registry:    reg,
		client:      client,
		broadcaster: broadcaster,
		helperCfg:   helperCfg,
		monitorCfg:  monitorCfg,
		signals: monitor.SignalSource{
			Client:             client,
			HelperPackage:      helperCfg.Package,
			ProbeTimeout:       monitorCfg.ProcessProbeTimeout,
			HeartbeatFreshness: monitorCfg.HeartbeatFreshnessThreshold,
		},
		inFlight: make(map[string]bool),
	}
}

// TriggerAutoRecovery runs a budgeted, rate-limited recovery attempt. It is
// what the health monitor calls when a device degrades.
func (c *Controller) TriggerAutoRecovery(ctx context.Context, deviceID string) error {
	return c.trigger(ctx, deviceID, false)
}

// TriggerManualRecovery runs an operator-requested attempt. It ignores the
// attempt budget and cooldown and does not count against them.
func (c *Controller) TriggerManualRecovery(ctx context.Context, deviceID string) error {
	return c.trigger(ctx, deviceID, true)
}

func (c *Controller) trigger(ctx context.Context, deviceID string, manual bool) error {
	device, err := c.registry.Get(deviceID)
	if err != nil {
		return err
	}

	if !manual {
		if err := c.checkBudget(device); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.inFlight[deviceID] {
		c.mu.Unlock()
		return ErrRecoveryInProgress
	}
	c.inFlight[deviceID] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, deviceID)
		c.mu.Unlock()
	}()

	trigger := "auto"
	if manual {
		trigger = "manual"
	}

	now := time.Now()
	if err := c.registry.Update(deviceID, func(d *models.Device) {
		d.MonitoringStatus = models.MonitoringStatusRecovering
		d.LastRecoveryTime = &now
		// Only automatic attempts consume the budget.
		if !manual {
			d.AutoRecoveryAttempts++
		}
	}); err != nil {
		return err
	}

	c.publish(device, models.RecoveryEventStarted, fmt.Sprintf("Relaunching helper app (%s)", trigger))
	c.log.Infof("recovery started for %s (%s)", device.Address, trigger)

	if err := c.client.LaunchApp(ctx, device.Address, c.helperCfg.MainActivity); err != nil {
		c.finish(ctx, device, false, fmt.Sprintf("Relaunch failed: %v", err), trigger)
		return fmt.Errorf("relaunching helper on %s: %w", device.Address, err)
	}

	// Re-measure instead of assuming success: the launch call succeeding does
	// not mean the helper stayed up.
	running, err := c.client.IsProcessRunning(ctx, device.Address, c.helperCfg.Package)
	if err != nil || !running {
		c.finish(ctx, device, false, "Helper did not come up after relaunch", trigger)
		return fmt.Errorf("helper not running on %s after recovery", device.Address)
	}

	c.finish(ctx, device, true, "Helper relaunched", trigger)

	return nil
}

// checkBudget enforces the attempt budget and cooldown for automatic triggers.
func (c *Controller) checkBudget(device models.Device) error {
	if !c.monitorCfg.AutoRecoveryEnabled {
		return ErrAttemptsExhausted
	}
	if device.AutoRecoveryAttempts >= c.monitorCfg.MaxAutoRecoveryAttempts {
		return fmt.Errorf("%w (%d attempts)", ErrAttemptsExhausted, device.AutoRecoveryAttempts)
	}
	if device.LastRecoveryTime != nil && time.Since(*device.LastRecoveryTime) < c.monitorCfg.RecoveryCooldown {
		return ErrCooldownActive
	}

	return nil
}

// finish records the outcome. The attempt's success says whether the relaunch
// worked; the device's status comes from a fresh probe cycle, never from the
// outcome itself, so a device that went offline mid-recovery reads offline.
func (c *Controller) finish(ctx context.Context, device models.Device, success bool, message, trigger string) {
	outcome := "failure"
	eventType := models.RecoveryEventFailed
	if success {
		outcome = "success"
		eventType = models.RecoveryEventSuccess
	}

	current, err := c.registry.Get(device.ID)
	if err != nil {
		current = device
	}

	signals, _ := c.signals.Measure(ctx, current, time.Now())
	// The attempt is over; classify on the evidence alone.
	signals.RecoveryInProgress = false
	status := monitor.Classify(signals)

	if err := c.registry.Update(device.ID, func(d *models.Device) {
		d.MonitoringStatus = status
		if signals.ProcessStatus != models.ProcessStatusUnknown {
			d.ProcessStatus = signals.ProcessStatus
		}
	}); err != nil {
		c.log.Warnf("recording recovery outcome for %s: %v", device.ID, err)
	}

	metrics.ObserveRecoveryAttempt(trigger, outcome)
	c.publish(device, eventType, message)
	c.log.Infof("recovery %s for %s, device now %s", outcome, device.Address, status)
}

// ResetRecoveryAttempts zeroes the device's attempt budget. It never touches
// the monitoring status.
func (c *Controller) ResetRecoveryAttempts(deviceID string) error {
	if err := c.registry.Update(deviceID, func(d *models.Device) {
		d.AutoRecoveryAttempts = 0
	}); err != nil {
		return err
	}

	c.log.Infof("recovery attempts reset for %s", deviceID)

	return nil
}

func (c *Controller) publish(device models.Device, eventType models.RecoveryEventType, message string) {
	c.broadcaster.PublishRecovery(models.RecoveryEvent{
		DeviceID:  device.ID,
		Address:   device.Address,
		EventType: eventType,
		Message:   message,
		Timestamp: time.Now(),
	})
}
