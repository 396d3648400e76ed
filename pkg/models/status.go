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

// BridgeStatus describes the debug-bridge daemon. Ready is true only when
// all three sub-flags are true.
type BridgeStatus struct {
	ExecutableWorking bool `json:"executableWorking"`
	ProcessRunning    bool `json:"processRunning"`
	Initialized       bool `json:"initialized"`
	Ready             bool `json:"ready"`
}

// AdbStatus describes one address as seen through the bridge daemon.
// Connected without Authorized is a legitimate waiting state, not an error:
// the handshake succeeded and the pairing dialog has not been approved yet.
type AdbStatus struct {
	Address    string `json:"address"`
	Connected  bool   `json:"connected"`
	Authorized bool   `json:"authorized"`
	Status     string `json:"status"`
}

// CheckResult grades one detailed-status check.
type CheckResult string

const (
	CheckOK      CheckResult = "ok"
	CheckWarning CheckResult = "warning"
	CheckFail    CheckResult = "fail"
)

// Check is one entry of a device's detailed status report.
type Check struct {
	Name    string         `json:"name"`
	Result  CheckResult    `json:"result"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// DetailedStatus is the full diagnostic report for one device.
type DetailedStatus struct {
	DeviceID string  `json:"deviceId"`
	Checks   []Check `json:"checks"`
	Summary  string  `json:"summary"`
}
