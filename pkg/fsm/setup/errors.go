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

import (
	"errors"

	"github.com/tvfleet/fleet-core/pkg/service/adb"
	"github.com/tvfleet/fleet-core/pkg/service/bridge"
	"github.com/tvfleet/fleet-core/pkg/service/negotiator"
)

var (
	// ErrSessionNotFound is returned when no session exists for the address.
	ErrSessionNotFound = errors.New("no setup session for address")

	// ErrSessionActive is returned when a new session is requested for an
	// address that already has one running. At most one session runs per
	// address at a time.
	ErrSessionActive = errors.New("setup session already running for address")

	// ErrSessionNotFailed is returned when a retry is requested for a session
	// that did not fail.
	ErrSessionNotFailed = errors.New("setup session has not failed")
)

// Remediation returns the operator instructions for a recognized failure, or
// nil when the error has no actionable remedy.
func Remediation(err error) []string {
	for _, known := range []error{
		bridge.ErrNotReady,
		negotiator.ErrAuthorizationTimeout,
		negotiator.ErrAuthorizationDenied,
		adb.ErrConnectionRefused,
		adb.ErrUnreachable,
		adb.ErrInstallFailed,
	} {
		if errors.Is(err, known) {
			return classifyFailure(err).Instructions
		}
	}

	return nil
}

// classifyFailure maps a step error onto the failure taxonomy, with
// remediation instructions where the operator can actually do something.
func classifyFailure(err error) FailureInfo {
	switch {
	case errors.Is(err, bridge.ErrNotReady):
		return FailureInfo{
			Kind:    FailureBridgeNotReady,
			Message: "The local bridge daemon is not ready",
			Instructions: []string{
				"Restart the bridge daemon and try again",
			},
		}
	case errors.Is(err, negotiator.ErrAuthorizationTimeout):
		return FailureInfo{
			Kind:    FailureAuthorizationTimeout,
			Message: "The device did not authorize this computer in time",
			Instructions: []string{
				"Make sure the TV screen is on",
				"Retry setup and accept the authorization dialog within 60 seconds",
			},
		}
	case errors.Is(err, negotiator.ErrAuthorizationStopped):
		return FailureInfo{
			Kind:    FailureAuthorizationStopped,
			Message: "The authorization wait was stopped",
		}
	case errors.Is(err, negotiator.ErrAuthorizationDenied):
		return FailureInfo{
			Kind:    FailureAuthorizationDenied,
			Message: "The device rejected the authorization request",
			Instructions: []string{
				"Open Developer Options on the TV and revoke USB debugging authorizations",
				"Retry setup and press Allow on the dialog",
			},
		}
	case errors.Is(err, adb.ErrConnectionRefused):
		return FailureInfo{
			Kind:    FailureConnectionRefused,
			Message: "The device refused the debug-bridge connection",
			Instructions: []string{
				"Enable Developer Options and USB/network debugging on the TV",
				"Check that no other computer holds the debug connection",
			},
		}
	case errors.Is(err, adb.ErrUnreachable):
		return FailureInfo{
			Kind:    FailureNetworkUnreachable,
			Message: "The device did not answer on the network",
			Instructions: []string{
				"Check the TV is powered on and connected to the network",
				"Verify the IP address is correct",
			},
		}
	case errors.Is(err, adb.ErrInstallFailed):
		return FailureInfo{
			Kind:    FailureInstallFailed,
			Message: "Installing the helper app failed",
			Instructions: []string{
				"Check the device has free storage",
				"Uninstall any previous helper version and retry",
			},
		}
	default:
		return FailureInfo{
			Kind:    FailureConfigurationFailed,
			Message: err.Error(),
		}
	}
}
