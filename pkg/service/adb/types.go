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

// Package adb wraps the debug-bridge executable as an opaque capability:
// ping a host, connect to host:port, query the authorization state, push and
// install a package, grant a permission, set a device property, launch an
// activity. The engine never speaks the wire protocol itself.
package adb

import "context"

// ConnectOutcome is the result of a bridge connect attempt.
type ConnectOutcome string

const (
	ConnectOutcomeConnected   ConnectOutcome = "connected"
	ConnectOutcomeConnecting  ConnectOutcome = "connecting"
	ConnectOutcomeRefused     ConnectOutcome = "refused"
	ConnectOutcomeUnreachable ConnectOutcome = "unreachable"
)

// AuthState is the authorization state of a connected device. Unauthorized
// is not an error: the handshake succeeded and the remote operator has not
// yet approved the pairing dialog.
type AuthState string

const (
	AuthStateAuthorized   AuthState = "authorized"
	AuthStateUnauthorized AuthState = "unauthorized"
	// AuthStateDenied is reported only when the bridge can distinguish an
	// explicit refusal from a still-pending dialog; most builds cannot.
	AuthStateDenied AuthState = "denied"
	AuthStateOffline AuthState = "offline"
	AuthStateUnknown AuthState = "unknown"
)

// Client is the debug-bridge capability used by the bridge supervisor, the
// connection negotiator, the setup sessions and the health monitor.
type Client interface {
	// Ping probes network reachability of the address and returns the
	// round-trip latency in milliseconds.
	Ping(ctx context.Context, address string) (float64, error)

	// Connect asks the daemon to connect to address:port.
	Connect(ctx context.Context, address string) (ConnectOutcome, error)

	// Disconnect drops the daemon's connection to the address.
	Disconnect(ctx context.Context, address string) error

	// AuthState reports the authorization state of the address as seen by
	// the daemon's device list.
	AuthState(ctx context.Context, address string) (AuthState, error)

	// Install pushes and installs the package at apkPath on the device.
	Install(ctx context.Context, address, apkPath string) error

	// GrantPermission grants a runtime permission to the package.
	GrantPermission(ctx context.Context, address, pkg, permission string) error

	// SetProperty sets a device property (used to configure the TV identity).
	SetProperty(ctx context.Context, address, key, value string) error

	// LaunchApp starts the given activity on the device.
	LaunchApp(ctx context.Context, address, activity string) error

	// IsProcessRunning reports whether the package's process is alive on
	// the device.
	IsProcessRunning(ctx context.Context, address, pkg string) (bool, error)

	// StartServer starts the local daemon if it is not running.
	StartServer(ctx context.Context) error

	// KillServer stops the local daemon.
	KillServer(ctx context.Context) error

	// Version returns the daemon's version string; it doubles as the
	// "executable working" probe.
	Version(ctx context.Context) (string, error)

	// ListDevices returns the addresses the daemon currently tracks,
	// mapped to their authorization state.
	ListDevices(ctx context.Context) (map[string]AuthState, error)
}
