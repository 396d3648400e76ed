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

// Package registry holds the canonical in-memory device records. It is read
// by many concurrent readers (health monitors, stats aggregation) and
// written by few writers (setup admission, monitor classification writes,
// the recovery controller). All reads return deep copies so a writer can
// never expose a partially-updated record.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/tvfleet/fleet-core/pkg/logger"
	"github.com/tvfleet/fleet-core/pkg/metrics"
	"github.com/tvfleet/fleet-core/pkg/models"
)

// Registry is the device record set. The zero value is not usable; create
// one with NewRegistry.
type Registry struct {
	log *zap.SugaredLogger

	mu          sync.RWMutex
	byID        map[string]*models.Device
	idByAddress map[string]string
	idByName    map[string]string
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		log:         logger.For(logger.ComponentRegistry),
		byID:        make(map[string]*models.Device),
		idByAddress: make(map[string]string),
		idByName:    make(map[string]string),
	}
}

// Admit creates a device record for a successfully provisioned address.
// Address and name uniqueness are enforced here; the setup-eligibility gate
// lives with the setup manager, which calls Admit only after checking it.
func (r *Registry) Admit(name, address string) (models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.idByAddress[address]; exists {
		return models.Device{}, ErrAddressInUse
	}
	if _, exists := r.idByName[name]; exists {
		return models.Device{}, ErrNameInUse
	}

	device := &models.Device{
		ID:                uuid.NewString(),
		Name:              name,
		Address:           address,
		MonitoringStatus:  models.MonitoringStatusUnknown,
		MonitoringEnabled: true,
		ProcessStatus:     models.ProcessStatusUnknown,
		CreatedAt:         time.Now(),
	}

	r.byID[device.ID] = device
	r.idByAddress[address] = device.ID
	r.idByName[name] = device.ID

	r.log.Infof("admitted device %s (%s) at %s", device.Name, device.ID, device.Address)

	return copyDevice(device), nil
}

// Get returns a copy of the device with the given ID.
func (r *Registry) Get(id string) (models.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, exists := r.byID[id]
	if !exists {
		return models.Device{}, ErrDeviceNotFound
	}

	return copyDevice(device), nil
}

// GetByAddress returns a copy of the device registered at the given address.
func (r *Registry) GetByAddress(address string) (models.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.idByAddress[address]
	if !exists {
		return models.Device{}, ErrDeviceNotFound
	}

	return copyDevice(r.byID[id]), nil
}

// List returns copies of all registered devices.
func (r *Registry) List() []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]models.Device, 0, len(r.byID))
	for _, device := range r.byID {
		devices = append(devices, copyDevice(device))
	}

	return devices
}

// Update applies mutate to the device under the write lock, making the whole
// mutation atomic with respect to concurrent readers. Identity fields (ID,
// name, address) must not be changed by mutate.
func (r *Registry) Update(id string, mutate func(*models.Device)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.byID[id]
	if !exists {
		return ErrDeviceNotFound
	}

	mutate(device)

	return nil
}

// Delete removes the device. The caller is responsible for stopping the
// device's health monitor loop; the monitor manager watches for removals.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.byID[id]
	if !exists {
		return ErrDeviceNotFound
	}

	delete(r.byID, id)
	delete(r.idByAddress, device.Address)
	delete(r.idByName, device.Name)

	r.log.Infof("deleted device %s (%s)", device.Name, id)

	return nil
}

// Stats recomputes the aggregate monitoring statistics from the current
// records and refreshes the per-status gauges.
func (r *Registry) Stats() models.MonitoringStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats models.MonitoringStats
	var latencySum float64
	var latencyCount int

	for _, device := range r.byID {
		stats.Total++
		switch device.MonitoringStatus {
		case models.MonitoringStatusActive:
			stats.Active++
		case models.MonitoringStatusDisconnected:
			stats.Disconnected++
		case models.MonitoringStatusOffline:
			stats.Offline++
		case models.MonitoringStatusRecovering:
			stats.Recovering++
		case models.MonitoringStatusError:
			stats.Error++
		default:
			stats.Unknown++
		}

		if device.NetworkLatencyMs != nil {
			latencySum += *device.NetworkLatencyMs
			latencyCount++
		}
	}

	if latencyCount > 0 {
		stats.AverageLatency = latencySum / float64(latencyCount)
	}

	metrics.SetDevicesByStatus(string(models.MonitoringStatusActive), stats.Active)
	metrics.SetDevicesByStatus(string(models.MonitoringStatusDisconnected), stats.Disconnected)
	metrics.SetDevicesByStatus(string(models.MonitoringStatusOffline), stats.Offline)
	metrics.SetDevicesByStatus(string(models.MonitoringStatusRecovering), stats.Recovering)
	metrics.SetDevicesByStatus(string(models.MonitoringStatusError), stats.Error)
	metrics.SetDevicesByStatus(string(models.MonitoringStatusUnknown), stats.Unknown)

	return stats
}

func copyDevice(src *models.Device) models.Device {
	var dst models.Device
	if err := deepcopy.Copy(&dst, src); err != nil {
		// Device is a plain struct; a copy failure would be a programming error.
		panic(err)
	}

	return dst
}
