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

package models

import "time"

// MonitoringStatus is the classified health state of a device, recomputed on
// every health monitor tick.
type MonitoringStatus string

const (
	// MonitoringStatusOffline means the device is not reachable on the network.
	MonitoringStatusOffline MonitoringStatus = "offline"
	// MonitoringStatusError means the helper process crashed or hung.
	MonitoringStatusError MonitoringStatus = "error"
	// MonitoringStatusDisconnected means the network is reachable but the
	// helper process is not running (or stopped heartbeating).
	MonitoringStatusDisconnected MonitoringStatus = "disconnected"
	// MonitoringStatusRecovering means a remediation is in progress.
	MonitoringStatusRecovering MonitoringStatus = "recovering"
	// MonitoringStatusActive means network reachable, helper running and
	// heartbeating recently.
	MonitoringStatusActive MonitoringStatus = "active"
	// MonitoringStatusUnknown means there is not enough signal yet
	// (e.g. the device was never checked).
	MonitoringStatusUnknown MonitoringStatus = "unknown"
)

// Severity orders monitoring statuses from most to least severe. When probe
// signals disagree, the most severe classification wins.
func (s MonitoringStatus) Severity() int {
	switch s {
	case MonitoringStatusOffline:
		return 5
	case MonitoringStatusError:
		return 4
	case MonitoringStatusDisconnected:
		return 3
	case MonitoringStatusRecovering:
		return 2
	case MonitoringStatusActive:
		return 1
	default:
		return 0
	}
}

// ProcessStatus is the last observed state of the helper application process.
type ProcessStatus string

const (
	ProcessStatusRunning ProcessStatus = "running"
	ProcessStatusStopped ProcessStatus = "stopped"
	ProcessStatusCrashed ProcessStatus = "crashed"
	ProcessStatusUnknown ProcessStatus = "unknown"
)

// Device is one registered TV. Static identity is written once on admission;
// monitoring fields are mutated only by the health monitor and the recovery
// controller, through the registry's atomic update operations.
type Device struct {
	ID      string `json:"id"      yaml:"id"`
	Name    string `json:"name"    yaml:"name"`
	Address string `json:"address" yaml:"address"`

	MonitoringStatus    MonitoringStatus `json:"monitoringStatus"`
	MonitoringEnabled   bool             `json:"monitoringEnabled"`
	LastPingTime        *time.Time       `json:"lastPingTime,omitempty"`
	LastHeartbeatTime   *time.Time       `json:"lastHeartbeatTime,omitempty"`
	ProcessStatus       ProcessStatus    `json:"processStatus"`
	NetworkLatencyMs    *float64         `json:"networkLatencyMs,omitempty"`
	BridgeConnectionID  string           `json:"bridgeConnectionId,omitempty"`
	AutoRecoveryAttempts int             `json:"autoRecoveryAttempts"`
	LastRecoveryTime    *time.Time       `json:"lastRecoveryTime,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// MonitoringStats is the derived aggregate over the device registry: device
// counts per monitoring status plus the average network latency across
// devices that report one. It is recomputed on demand, never stored.
type MonitoringStats struct {
	Total          int     `json:"total"`
	Active         int     `json:"active"`
	Disconnected   int     `json:"disconnected"`
	Offline        int     `json:"offline"`
	Recovering     int     `json:"recovering"`
	Error          int     `json:"error"`
	Unknown        int     `json:"unknown"`
	AverageLatency float64 `json:"averageLatency"`
}
