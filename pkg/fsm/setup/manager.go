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
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tvfleet/fleet-core/pkg/config"
	"github.com/tvfleet/fleet-core/pkg/events"
	"github.com/tvfleet/fleet-core/pkg/logger"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
	"github.com/tvfleet/fleet-core/pkg/service/bridge"
	"github.com/tvfleet/fleet-core/pkg/service/negotiator"
)

// session couples an instance with the cancel func of its running goroutine.
type session struct {
	instance *SetupInstance
	cancel   context.CancelFunc
	done     chan struct{}

	// running is set under the manager lock before the sequence goroutine is
	// scheduled and cleared when it returns. The instance's own state still
	// reads pending until the goroutine performs its first transition, so a
	// back-to-back BeginSetup must check this flag, not the machine state.
	running bool
}

// SetupManager owns all provisioning sessions, keyed by device address. At
// most one session runs per address; a finished session stays queryable until
// the next one for the same address replaces it.
type SetupManager struct {
	log *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*session

	// eligible holds addresses whose latest session completed successfully
	// and that have not been admitted yet. Admission consumes the entry; a
	// replacement session for the address resets it.
	eligible map[string]bool

	client      adb.Client
	negotiator  *negotiator.Negotiator
	supervisor  *bridge.Supervisor
	broadcaster *events.Broadcaster
	helperCfg   config.HelperConfig
	setupCfg    config.SetupConfig
}

// NewSetupManager creates the session manager.
func NewSetupManager(
	client adb.Client,
	neg *negotiator.Negotiator,
	supervisor *bridge.Supervisor,
	broadcaster *events.Broadcaster,
	helperCfg config.HelperConfig,
	setupCfg config.SetupConfig,
) *SetupManager {
	return &SetupManager{
		log:         logger.For(logger.ComponentSetupManager),
		sessions:    make(map[string]*session),
		eligible:    make(map[string]bool),
		client:      client,
		negotiator:  neg,
		supervisor:  supervisor,
		broadcaster: broadcaster,
		helperCfg:   helperCfg,
		setupCfg:    setupCfg,
	}
}

// BeginSetup starts a new session for the address. The bridge daemon must be
// ready and no session may already be running for the address. The sequence
// runs on its own goroutine; progress flows through the broadcaster.
func (m *SetupManager) BeginSetup(ctx context.Context, address, tvID, setupType string) error {
	if err := m.supervisor.EnsureReady(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[address]; ok && existing.running {
		return ErrSessionActive
	}

	// Replacing the previous session for this address voids any admission
	// eligibility it earned.
	delete(m.eligible, address)

	instance := NewSetupInstance(address, tvID, setupType,
		m.client, m.negotiator, m.broadcaster, m.helperCfg, m.setupCfg)

	m.startLocked(address, instance)

	return nil
}

// Retry restarts the full sequence of a failed session. Parameters from the
// original request are reused.
func (m *SetupManager) Retry(ctx context.Context, address string) error {
	if err := m.supervisor.EnsureReady(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.sessions[address]
	if !ok {
		return ErrSessionNotFound
	}
	if existing.running {
		return ErrSessionActive
	}
	if !existing.instance.Failed() {
		return ErrSessionNotFailed
	}
	if err := existing.instance.RetryBackoff(); err != nil {
		return err
	}

	if err := existing.instance.Reset(ctx); err != nil {
		return err
	}

	m.startLocked(address, existing.instance)

	return nil
}

// startLocked launches the session goroutine. Caller holds m.mu.
func (m *SetupManager) startLocked(address string, instance *SetupInstance) {
	runCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		instance: instance,
		cancel:   cancel,
		done:     make(chan struct{}),
		running:  true,
	}
	m.sessions[address] = sess

	go func() {
		defer close(sess.done)
		defer cancel()

		instance.Run(runCtx)

		m.mu.Lock()
		sess.running = false
		if instance.Succeeded() {
			m.eligible[address] = true
		}
		m.mu.Unlock()
	}()

	m.log.Infof("setup session started for %s", address)
}

// Cancel stops a running session. If it is waiting on the authorization
// dialog, the wait resolves as stopped-by-user, not as a timeout.
func (m *SetupManager) Cancel(address string) error {
	m.mu.Lock()
	sess, ok := m.sessions[address]
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	sess.cancel()
	<-sess.done

	m.log.Infof("setup session cancelled for %s", address)

	return nil
}

// Status returns a snapshot of the latest session for the address.
func (m *SetupManager) Status(address string) (Snapshot, error) {
	m.mu.Lock()
	sess, ok := m.sessions[address]
	m.mu.Unlock()

	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}

	return sess.instance.Snapshot(), nil
}

// IsEligible reports whether the address has a successful session that has
// not been consumed by admission yet.
func (m *SetupManager) IsEligible(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.eligible[address]
}

// ConsumeEligibility atomically checks and consumes the address's admission
// eligibility. It returns false when the address never completed setup or was
// already admitted.
func (m *SetupManager) ConsumeEligibility(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.eligible[address] {
		return false
	}
	delete(m.eligible, address)

	return true
}

// Shutdown cancels all running sessions and waits for them to stop.
func (m *SetupManager) Shutdown() {
	m.mu.Lock()
	all := make([]*session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		all = append(all, sess)
	}
	m.mu.Unlock()

	for _, sess := range all {
		sess.cancel()
		<-sess.done
	}
}
