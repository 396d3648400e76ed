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

package setup

import "time"

// Operational state constants. A session walks them strictly in order; any
// failure moves it to failed and halts the sequence.
const (
	// OperationalStatePending is the initial state before the session runs.
	OperationalStatePending = "pending"
	// OperationalStateNetworkPing is the state while the device's network
	// reachability is probed.
	OperationalStateNetworkPing = "network_ping"
	// OperationalStateBridgeConnect is the state while the daemon connects
	// and the authorization dialog is awaited.
	OperationalStateBridgeConnect = "bridge_connect"
	// OperationalStateHelperInstall is the state while the helper package is
	// pushed and installed.
	OperationalStateHelperInstall = "helper_install"
	// OperationalStatePermissionGrant is the state while runtime permissions
	// are granted.
	OperationalStatePermissionGrant = "permission_grant"
	// OperationalStateConfiguration is the state while the TV identifier is
	// written and the helper launched.
	OperationalStateConfiguration = "configuration"
	// OperationalStateComplete is the terminal success state.
	OperationalStateComplete = "complete"
	// OperationalStateFailed is the terminal failure state. Retry restarts
	// the whole sequence from network_ping.
	OperationalStateFailed = "failed"
)

// Operational event constants
const (
	EventStart         = "start"
	EventPingDone      = "ping_done"
	EventConnectDone   = "connect_done"
	EventInstallDone   = "install_done"
	EventGrantDone     = "grant_done"
	EventConfigureDone = "configure_done"
	EventFail          = "fail"
	EventRetry         = "retry"
)

// IsOperationalState returns whether the given state is a valid session state
func IsOperationalState(state string) bool {
	switch state {
	case OperationalStatePending,
		OperationalStateNetworkPing,
		OperationalStateBridgeConnect,
		OperationalStateHelperInstall,
		OperationalStatePermissionGrant,
		OperationalStateConfiguration,
		OperationalStateComplete,
		OperationalStateFailed:
		return true
	}
	return false
}

// IsTerminalState returns whether the session has finished, one way or the other.
func IsTerminalState(state string) bool {
	return state == OperationalStateComplete || state == OperationalStateFailed
}

// StepStatus tracks one step of the sequence.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepError   StepStatus = "error"
)

// Step is the per-step progress record exposed in session snapshots.
type Step struct {
	State      string     `json:"state"`
	Status     StepStatus `json:"status"`
	Message    string     `json:"message,omitempty"`
	DurationMs int64      `json:"durationMs,omitempty"`
}

// FailureKind is the machine-readable classification of a failed session.
type FailureKind string

const (
	FailureNetworkUnreachable   FailureKind = "network_unreachable"
	FailureConnectionRefused    FailureKind = "connection_refused"
	FailureAuthorizationTimeout FailureKind = "authorization_timeout"
	FailureAuthorizationStopped FailureKind = "authorization_stopped"
	FailureAuthorizationDenied  FailureKind = "authorization_denied"
	FailureBridgeNotReady       FailureKind = "bridge_not_ready"
	FailureInstallFailed        FailureKind = "install_failed"
	FailureConfigurationFailed  FailureKind = "configuration_failed"
)

// FailureInfo carries the classification plus operator-facing remediation.
type FailureInfo struct {
	Kind         FailureKind `json:"kind"`
	Message      string      `json:"message"`
	Instructions []string    `json:"instructions,omitempty"`
}

// Snapshot is a point-in-time copy of a session, safe to hand to API callers.
type Snapshot struct {
	Address     string       `json:"address"`
	TVID        string       `json:"tvId"`
	SetupType   string       `json:"setupType"`
	State       string       `json:"state"`
	Steps       []Step       `json:"steps"`
	Failure     *FailureInfo `json:"failure,omitempty"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// Active reports whether the session is still running.
func (s Snapshot) Active() bool {
	return s.State != OperationalStatePending && !IsTerminalState(s.State)
}
