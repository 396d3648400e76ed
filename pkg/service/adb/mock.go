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

// This file contains a mock implementation for testing.

package adb

import (
	"context"
	"sync"
)

// MockClient provides a configurable in-memory implementation of Client for
// testing. Per-address behavior is set up front; call counters allow
// asserting how components drove the bridge.
type MockClient struct {
	mock sync.Mutex // Protects concurrent access to mock state

	reachable      map[string]bool
	latencyMs      map[string]float64
	connectOutcome map[string]ConnectOutcome
	connectError   map[string]error

	// authSequence is consumed one entry per AuthState call; the last entry
	// repeats once the sequence is exhausted.
	authSequence map[string][]AuthState

	processRunning map[string]bool

	installError  error
	grantError    error
	setPropError  error
	launchError   error
	serverError   error
	versionString string
	versionError  error

	// Call counters.
	PingCalls       int
	ConnectCalls    int
	AuthStateCalls  int
	InstallCalls    int
	GrantCalls      int
	SetPropCalls    int
	LaunchCalls     int
	StartCalls      int
	KillCalls       int
	DisconnectCalls int
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock with initialized internal maps. Unconfigured
// addresses are unreachable and untracked.
func NewMockClient() *MockClient {
	return &MockClient{
		reachable:      make(map[string]bool),
		latencyMs:      make(map[string]float64),
		connectOutcome: make(map[string]ConnectOutcome),
		connectError:   make(map[string]error),
		authSequence:   make(map[string][]AuthState),
		processRunning: make(map[string]bool),
		versionString:  "Bridge Daemon version 1.0.41",
	}
}

// SetReachable configures the Ping result for an address.
func (m *MockClient) SetReachable(address string, reachable bool, latencyMs float64) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.reachable[address] = reachable
	m.latencyMs[address] = latencyMs
}

// SetConnectOutcome configures the Connect result for an address.
func (m *MockClient) SetConnectOutcome(address string, outcome ConnectOutcome, err error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.connectOutcome[address] = outcome
	m.connectError[address] = err
}

// SetAuthStates configures the sequence of authorization states an address
// walks through; the last state repeats forever.
func (m *MockClient) SetAuthStates(address string, states ...AuthState) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.authSequence[address] = states
}

// SetProcessRunning configures the helper liveness probe for an address.
func (m *MockClient) SetProcessRunning(address string, running bool) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.processRunning[address] = running
}

// SetInstallError makes Install fail.
func (m *MockClient) SetInstallError(err error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.installError = err
}

// SetLaunchError makes LaunchApp fail.
func (m *MockClient) SetLaunchError(err error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.launchError = err
}

// SetServerError makes StartServer and KillServer fail.
func (m *MockClient) SetServerError(err error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.serverError = err
}

// SetVersion configures the Version result.
func (m *MockClient) SetVersion(version string, err error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.versionString = version
	m.versionError = err
}

func (m *MockClient) Ping(ctx context.Context, address string) (float64, error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.PingCalls++

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if !m.reachable[address] {
		return 0, ErrUnreachable
	}

	return m.latencyMs[address], nil
}

func (m *MockClient) Connect(ctx context.Context, address string) (ConnectOutcome, error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.ConnectCalls++

	if ctx.Err() != nil {
		return ConnectOutcomeUnreachable, ctx.Err()
	}

	outcome, configured := m.connectOutcome[address]
	if !configured {
		return ConnectOutcomeUnreachable, ErrUnreachable
	}

	return outcome, m.connectError[address]
}

func (m *MockClient) Disconnect(ctx context.Context, address string) error {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.DisconnectCalls++

	return nil
}

func (m *MockClient) AuthState(ctx context.Context, address string) (AuthState, error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.AuthStateCalls++

	if ctx.Err() != nil {
		return AuthStateUnknown, ctx.Err()
	}

	seq, exists := m.authSequence[address]
	if !exists || len(seq) == 0 {
		return AuthStateUnknown, ErrDeviceNotTracked
	}

	state := seq[0]
	if len(seq) > 1 {
		m.authSequence[address] = seq[1:]
	}

	return state, nil
}

func (m *MockClient) ListDevices(ctx context.Context) (map[string]AuthState, error) {
	m.mock.Lock()
	defer m.mock.Unlock()

	devices := make(map[string]AuthState, len(m.authSequence))
	for address, seq := range m.authSequence {
		if len(seq) > 0 {
			devices[address] = seq[0]
		}
	}

	return devices, nil
}

func (m *MockClient) Install(ctx context.Context, address, apkPath string) error {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.InstallCalls++

	return m.installError
}

func (m *MockClient) GrantPermission(ctx context.Context, address, pkg, permission string) error {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.GrantCalls++

	return m.grantError
}

func (m *MockClient) SetProperty(ctx context.Context, address, key, value string) error {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.SetPropCalls++

	return m.setPropError
}

func (m *MockClient) LaunchApp(ctx context.Context, address, activity string) error {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.LaunchCalls++

	return m.launchError
}

func (m *MockClient) IsProcessRunning(ctx context.Context, address, pkg string) (bool, error) {
	m.mock.Lock()
	defer m.mock.Unlock()

	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	return m.processRunning[address], nil
}

func (m *MockClient) StartServer(ctx context.Context) error {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.StartCalls++

	return m.serverError
}

func (m *MockClient) KillServer(ctx context.Context) error {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.KillCalls++

	return m.serverError
}

func (m *MockClient) Version(ctx context.Context) (string, error) {
	m.mock.Lock()
	defer m.mock.Unlock()

	return m.versionString, m.versionError
}
