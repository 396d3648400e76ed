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

// EventFamily identifies one of the broadcast topics.
type EventFamily string

const (
	EventFamilySetupStatus  EventFamily = "setup-status"
	EventFamilyStatusUpdate EventFamily = "status-update"
	EventFamilyRecovery     EventFamily = "recovery-event"
	EventFamilyStats        EventFamily = "monitoring-stats"
)

// SetupStatusType enumerates the progress notifications a setup session emits.
type SetupStatusType string

const (
	SetupStatusConnecting           SetupStatusType = "connecting"
	SetupStatusWaitingAuthorization SetupStatusType = "waiting_authorization"
	SetupStatusInstallingApp        SetupStatusType = "installing_app"
	SetupStatusGrantingPermission   SetupStatusType = "granting_permission"
	SetupStatusConfiguringTVID      SetupStatusType = "configuring_tv_id"
	SetupStatusLaunchingApp         SetupStatusType = "launching_app"
	SetupStatusSetupCompleted       SetupStatusType = "setup_completed"
	SetupStatusCompleted            SetupStatusType = "completed"
	SetupStatusError                SetupStatusType = "error"
	SetupStatusTimeout              SetupStatusType = "timeout"
)

// SetupStatusEvent reports progress of one setup session. SetupType tags the
// flow (e.g. "provision" vs "retry") so concurrent flows for the same address
// do not cross-talk in the debounce layer.
type SetupStatusEvent struct {
	Address      string          `json:"address"`
	SetupType    string          `json:"setupType"`
	Type         SetupStatusType `json:"type"`
	Message      string          `json:"message"`
	Instructions []string        `json:"instructions,omitempty"`
	ElapsedSec   int             `json:"elapsed,omitempty"`
	RemainingSec int             `json:"remaining,omitempty"`
}

// StatusUpdateEvent reports a device's health classification after a monitor
// tick that changed it.
type StatusUpdateEvent struct {
	DeviceID        string           `json:"deviceId"`
	Address         string           `json:"address"`
	Status          MonitoringStatus `json:"status"`
	NetworkStatus   string           `json:"networkStatus"`
	ProcessStatus   ProcessStatus    `json:"processStatus"`
	HeartbeatStatus string           `json:"heartbeatStatus"`
	LatencyMs       *float64         `json:"latency,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

// RecoveryEventType enumerates the recovery lifecycle notifications.
type RecoveryEventType string

const (
	RecoveryEventStarted RecoveryEventType = "started"
	RecoveryEventSuccess RecoveryEventType = "success"
	RecoveryEventFailed  RecoveryEventType = "failed"
)

// RecoveryEvent reports a remediation attempt for a device.
type RecoveryEvent struct {
	DeviceID  string            `json:"deviceId"`
	Address   string            `json:"address"`
	EventType RecoveryEventType `json:"eventType"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// StatsEvent carries the aggregate monitoring stats to subscribers.
type StatsEvent struct {
	Stats     MonitoringStats `json:"stats"`
	Timestamp time.Time       `json:"timestamp"`
}
