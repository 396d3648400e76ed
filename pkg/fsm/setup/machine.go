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

// Package setup implements the per-device provisioning state machine: a
// linear sequence from network probe to a launched, configured helper app.
// The SetupManager owns the sessions and gates device admission on them.
package setup

import (
	"context"
	"fmt"
	"sync"
	"time"

	looplabfsm "github.com/looplab/fsm"

	internalfsm "github.com/tvfleet/fleet-core/internal/fsm"
	"github.com/tvfleet/fleet-core/pkg/config"
	"github.com/tvfleet/fleet-core/pkg/events"
	"github.com/tvfleet/fleet-core/pkg/logger"
	"github.com/tvfleet/fleet-core/pkg/metrics"
	"github.com/tvfleet/fleet-core/pkg/models"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
	"github.com/tvfleet/fleet-core/pkg/service/negotiator"
)

// TVIDProperty is the device property holding the assigned TV identifier.
const TVIDProperty = "persist.sys.tvfleet.tv_id"

// stepOrder is the fixed provisioning sequence.
var stepOrder = []string{
	OperationalStateNetworkPing,
	OperationalStateBridgeConnect,
	OperationalStateHelperInstall,
	OperationalStatePermissionGrant,
	OperationalStateConfiguration,
}

// SetupInstance is one provisioning session for one address. It is created by
// the SetupManager and runs its sequence on a dedicated goroutine.
type SetupInstance struct {
	base *internalfsm.BaseFSMInstance

	mu sync.RWMutex

	address   string
	tvID      string
	setupType string
	created   time.Time

	steps       map[string]*Step
	failure     *FailureInfo
	startedAt   time.Time
	completedAt *time.Time

	client      adb.Client
	negotiator  *negotiator.Negotiator
	broadcaster *events.Broadcaster
	helperCfg   config.HelperConfig
	setupCfg    config.SetupConfig
}

// NewSetupInstance creates a session in the pending state. Run starts it.
func NewSetupInstance(
	address, tvID, setupType string,
	client adb.Client,
	neg *negotiator.Negotiator,
	broadcaster *events.Broadcaster,
	helperCfg config.HelperConfig,
	setupCfg config.SetupConfig,
) *SetupInstance {
	inst := &SetupInstance{
		address:     address,
		tvID:        tvID,
		setupType:   setupType,
		created:     time.Now(),
		steps:       make(map[string]*Step, len(stepOrder)),
		client:      client,
		negotiator:  neg,
		broadcaster: broadcaster,
		helperCfg:   helperCfg,
		setupCfg:    setupCfg,
	}

	for _, state := range stepOrder {
		inst.steps[state] = &Step{State: state, Status: StepPending}
	}

	// A cancelled wait is operator intent, not a device fault: it must not
	// arm the retry backoff.
	ignored := make(map[string][]error, len(stepOrder)+1)
	for _, state := range append([]string{OperationalStatePending}, stepOrder...) {
		ignored[state] = []error{context.Canceled, negotiator.ErrAuthorizationStopped}
	}

	inst.base = internalfsm.NewBaseFSMInstance(internalfsm.BaseFSMInstanceConfig{
		ID:                   "setup-" + address,
		InitialState:         OperationalStatePending,
		IgnoreErrorsInStates: ignored,
		Transitions: []looplabfsm.EventDesc{
			{Name: EventStart, Src: []string{OperationalStatePending}, Dst: OperationalStateNetworkPing},
			{Name: EventPingDone, Src: []string{OperationalStateNetworkPing}, Dst: OperationalStateBridgeConnect},
			{Name: EventConnectDone, Src: []string{OperationalStateBridgeConnect}, Dst: OperationalStateHelperInstall},
			{Name: EventInstallDone, Src: []string{OperationalStateHelperInstall}, Dst: OperationalStatePermissionGrant},
			{Name: EventGrantDone, Src: []string{OperationalStatePermissionGrant}, Dst: OperationalStateConfiguration},
			{Name: EventConfigureDone, Src: []string{OperationalStateConfiguration}, Dst: OperationalStateComplete},
			{Name: EventFail, Src: stepOrder, Dst: OperationalStateFailed},
			{Name: EventRetry, Src: []string{OperationalStateFailed}, Dst: OperationalStatePending},
		},
	}, logger.For(logger.ComponentSetupManager).With("address", address))

	return inst
}

// Run executes the provisioning sequence until it completes, fails, or ctx is
// cancelled. It must be called at most once per Reset.
func (i *SetupInstance) Run(ctx context.Context) {
	i.mu.Lock()
	i.startedAt = time.Now()
	i.mu.Unlock()

	if err := i.base.SendEvent(ctx, EventStart); err != nil {
		i.fail(ctx, OperationalStateNetworkPing, err)
		return
	}

	type step struct {
		state     string
		doneEvent string
		action    func(context.Context) error
	}

	sequence := []step{
		{OperationalStateNetworkPing, EventPingDone, i.probeNetwork},
		{OperationalStateBridgeConnect, EventConnectDone, i.connectAndAuthorize},
		{OperationalStateHelperInstall, EventInstallDone, i.installHelper},
		{OperationalStatePermissionGrant, EventGrantDone, i.grantPermissions},
		{OperationalStateConfiguration, EventConfigureDone, i.configure},
	}

	for _, s := range sequence {
		i.setStepStatus(s.state, StepRunning, "")
		start := time.Now()

		err := s.action(ctx)
		duration := time.Since(start)
		metrics.ObserveSetupStepDuration(s.state, duration.Seconds())

		if err != nil {
			i.setStepResult(s.state, StepError, err.Error(), duration)
			i.fail(ctx, s.state, err)
			return
		}

		i.setStepResult(s.state, StepSuccess, "", duration)

		if err := i.base.SendEvent(ctx, s.doneEvent); err != nil {
			i.fail(ctx, s.state, err)
			return
		}
	}

	i.complete()
}

// Reset rearms a failed session for a retry. The whole sequence restarts. The
// backoff state deliberately survives: only a completed run clears it, so
// repeated failures keep widening the retry window.
func (i *SetupInstance) Reset(ctx context.Context) error {
	if err := i.base.SendEvent(ctx, EventRetry); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, state := range stepOrder {
		i.steps[state] = &Step{State: state, Status: StepPending}
	}
	i.failure = nil
	i.completedAt = nil

	return nil
}

// RetryBackoff reports why a retry must wait: a backoff period from the last
// failure has not elapsed yet, or the session has failed too often and will
// not be retried. Nil means a retry may start now.
func (i *SetupInstance) RetryBackoff() error {
	return i.base.GetBackoffError(i.tick())
}

// tick maps the session's age onto backoff ticks.
func (i *SetupInstance) tick() uint64 {
	return uint64(time.Since(i.created) / time.Second)
}

// Snapshot returns a copy of the session for API callers.
func (i *SetupInstance) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()

	snap := Snapshot{
		Address:   i.address,
		TVID:      i.tvID,
		SetupType: i.setupType,
		State:     i.base.GetCurrentFSMState(),
		Steps:     make([]Step, 0, len(stepOrder)),
		StartedAt: i.startedAt,
	}

	for _, state := range stepOrder {
		snap.Steps = append(snap.Steps, *i.steps[state])
	}
	if i.failure != nil {
		f := *i.failure
		snap.Failure = &f
	}
	if i.completedAt != nil {
		t := *i.completedAt
		snap.CompletedAt = &t
	}

	return snap
}

// Succeeded reports whether the session reached the complete state.
func (i *SetupInstance) Succeeded() bool {
	return i.base.Is(OperationalStateComplete)
}

// Failed reports whether the session halted in the failed state.
func (i *SetupInstance) Failed() bool {
	return i.base.Is(OperationalStateFailed)
}

// Active reports whether the session is still running its sequence.
func (i *SetupInstance) Active() bool {
	state := i.base.GetCurrentFSMState()
	return state != OperationalStatePending && !IsTerminalState(state)
}

func (i *SetupInstance) probeNetwork(ctx context.Context) error {
	i.publishProgress(models.SetupStatusConnecting, fmt.Sprintf("Checking %s answers on the network", i.address))

	_, err := i.negotiator.ProbeNetwork(ctx, i.address)
	return err
}

func (i *SetupInstance) connectAndAuthorize(ctx context.Context) error {
	i.publishProgress(models.SetupStatusConnecting, fmt.Sprintf("Connecting to %s", i.address))

	if err := i.negotiator.Connect(ctx, i.address); err != nil {
		return err
	}

	return i.negotiator.WaitForAuthorization(ctx, i.address, i.setupType)
}

func (i *SetupInstance) installHelper(ctx context.Context) error {
	i.publishProgress(models.SetupStatusInstallingApp, "Installing the helper app")

	installCtx, cancel := context.WithTimeout(ctx, i.setupCfg.InstallTimeout)
	defer cancel()

	return i.client.Install(installCtx, i.address, i.helperCfg.APKPath)
}

func (i *SetupInstance) grantPermissions(ctx context.Context) error {
	i.publishProgress(models.SetupStatusGrantingPermission, "Granting permissions")

	stepCtx, cancel := context.WithTimeout(ctx, i.setupCfg.StepTimeout)
	defer cancel()

	for _, permission := range i.helperCfg.Permissions {
		if err := i.client.GrantPermission(stepCtx, i.address, i.helperCfg.Package, permission); err != nil {
			return fmt.Errorf("granting %s: %w", permission, err)
		}
	}

	return nil
}

func (i *SetupInstance) configure(ctx context.Context) error {
	stepCtx, cancel := context.WithTimeout(ctx, i.setupCfg.StepTimeout)
	defer cancel()

	i.publishProgress(models.SetupStatusConfiguringTVID, fmt.Sprintf("Assigning TV identifier %s", i.tvID))
	if err := i.client.SetProperty(stepCtx, i.address, TVIDProperty, i.tvID); err != nil {
		return fmt.Errorf("writing TV identifier: %w", err)
	}

	i.publishProgress(models.SetupStatusLaunchingApp, "Launching the helper app")
	if err := i.client.LaunchApp(stepCtx, i.address, i.helperCfg.MainActivity); err != nil {
		return fmt.Errorf("launching helper: %w", err)
	}

	return nil
}

func (i *SetupInstance) complete() {
	now := time.Now()

	i.mu.Lock()
	i.completedAt = &now
	i.mu.Unlock()

	i.base.ClearError()
	metrics.ObserveSetupOutcome("success")

	i.publishProgress(models.SetupStatusSetupCompleted, "Setup completed")
	i.publishProgress(models.SetupStatusCompleted, "Device ready for admission")

	i.base.GetLogger().Infof("setup completed for %s", i.address)
}

func (i *SetupInstance) fail(ctx context.Context, state string, err error) {
	failure := classifyFailure(err)

	now := time.Now()
	i.mu.Lock()
	i.failure = &failure
	i.completedAt = &now
	i.mu.Unlock()

	// Recorded against the step state, so the per-state ignore list applies.
	// Real faults arm the retry backoff; enough of them in a row make the
	// session permanently failed.
	i.base.SetError(err, i.tick())

	// Move the machine to failed; use a fresh context because the session
	// context may be the very thing that was cancelled.
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if sendErr := i.base.SendEvent(ctx, EventFail); sendErr != nil {
		i.base.GetLogger().Warnf("could not transition to failed: %v", sendErr)
		i.base.SetCurrentFSMState(OperationalStateFailed)
	}

	metrics.ObserveSetupOutcome(string(failure.Kind))

	eventType := models.SetupStatusError
	if failure.Kind == FailureAuthorizationTimeout {
		eventType = models.SetupStatusTimeout
	}
	i.broadcaster.PublishSetupStatus(models.SetupStatusEvent{
		Address:      i.address,
		SetupType:    i.setupType,
		Type:         eventType,
		Message:      failure.Message,
		Instructions: failure.Instructions,
	})

	i.base.GetLogger().Warnf("setup failed for %s in %s: %v", i.address, state, err)
}

func (i *SetupInstance) publishProgress(statusType models.SetupStatusType, message string) {
	i.broadcaster.PublishSetupStatus(models.SetupStatusEvent{
		Address:   i.address,
		SetupType: i.setupType,
		Type:      statusType,
		Message:   message,
	})
}

func (i *SetupInstance) setStepStatus(state string, status StepStatus, message string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.steps[state].Status = status
	i.steps[state].Message = message
}

func (i *SetupInstance) setStepResult(state string, status StepStatus, message string, duration time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.steps[state].Status = status
	i.steps[state].Message = message
	i.steps[state].DurationMs = duration.Milliseconds()
}
