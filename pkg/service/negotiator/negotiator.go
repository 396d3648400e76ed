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

// Package negotiator establishes debug-bridge connections: network probing,
// connect, and the bounded authorization wait against the on-device dialog.
package negotiator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tvfleet/fleet-core/pkg/constants"
	"github.com/tvfleet/fleet-core/pkg/events"
	"github.com/tvfleet/fleet-core/pkg/logger"
	"github.com/tvfleet/fleet-core/pkg/models"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
)

// authorizationInstructions is shown to operators while the device waits for
// the on-screen authorization dialog.
var authorizationInstructions = []string{
	"Look at the TV screen for an authorization dialog",
	"Check 'Always allow from this computer'",
	"Press 'Allow' or 'OK' on the dialog",
}

// Negotiator drives the connection handshake for one address at a time.
// Instances are stateless; a single Negotiator is shared by all sessions.
type Negotiator struct {
	log *zap.SugaredLogger

	client      adb.Client
	broadcaster *events.Broadcaster

	waitTimeout    time.Duration
	pollInterval   time.Duration
	probeTimeout   time.Duration
	connectTimeout time.Duration
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithWaitTimeout overrides the authorization wait window.
func WithWaitTimeout(d time.Duration) Option {
	return func(n *Negotiator) { n.waitTimeout = d }
}

// WithPollInterval overrides the authorization poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(n *Negotiator) { n.pollInterval = d }
}

// WithProbeTimeout overrides the network probe bound.
func WithProbeTimeout(d time.Duration) Option {
	return func(n *Negotiator) { n.probeTimeout = d }
}

// WithConnectTimeout overrides the connect handshake bound.
func WithConnectTimeout(d time.Duration) Option {
	return func(n *Negotiator) { n.connectTimeout = d }
}

// New creates a Negotiator publishing progress through the broadcaster.
func New(client adb.Client, broadcaster *events.Broadcaster, opts ...Option) *Negotiator {
	n := &Negotiator{
		log:            logger.For(logger.ComponentNegotiator),
		client:         client,
		broadcaster:    broadcaster,
		waitTimeout:    constants.AuthorizationWaitTimeout,
		pollInterval:   constants.AuthorizationPollInterval,
		probeTimeout:   constants.NetworkProbeTimeout,
		connectTimeout: constants.ConnectTimeout,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// ProbeNetwork checks the address answers on the network and returns the
// measured round-trip latency in milliseconds.
func (n *Negotiator) ProbeNetwork(ctx context.Context, address string) (float64, error) {
	probeCtx, cancel := context.WithTimeout(ctx, n.probeTimeout)
	defer cancel()

	latency, err := n.client.Ping(probeCtx, address)
	if err != nil {
		return 0, fmt.Errorf("network probe failed for %s: %w", address, err)
	}

	return latency, nil
}

// Connect asks the daemon to connect to the address. A "connecting" outcome is
// not an error: the daemon tracks the device and the authorization wait takes
// over from there.
func (n *Negotiator) Connect(ctx context.Context, address string) error {
	connectCtx, cancel := context.WithTimeout(ctx, n.connectTimeout)
	defer cancel()

	outcome, err := n.client.Connect(connectCtx, address)
	if err != nil {
		return fmt.Errorf("connect failed for %s: %w", address, err)
	}

	n.log.Debugf("connect %s: %s", address, outcome)

	return nil
}

// WaitForAuthorization polls the device's authorization state until it
// resolves or the wait window closes. Each poll publishes a progress event
// with the remaining time so operators see the countdown.
//
// Terminal outcomes are distinct: nil (authorized), ErrAuthorizationDenied,
// ErrAuthorizationTimeout, and ErrAuthorizationStopped when ctx is cancelled
// before the window closes.
func (n *Negotiator) WaitForAuthorization(ctx context.Context, address, setupType string) error {
	deadline := time.NewTimer(n.waitTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	start := time.Now()

	// Check immediately; devices that kept the key from a previous session
	// come up authorized without any dialog.
	if done, err := n.checkAuthorization(ctx, address); done {
		return err
	}

	for {
		n.publishWaiting(address, setupType, time.Since(start))

		select {
		case <-ctx.Done():
			n.log.Infof("authorization wait for %s stopped: %v", address, ctx.Err())
			return ErrAuthorizationStopped

		case <-deadline.C:
			n.log.Warnf("authorization wait for %s timed out after %s", address, n.waitTimeout)
			return fmt.Errorf("%w after %s", ErrAuthorizationTimeout, n.waitTimeout)

		case <-ticker.C:
			if done, err := n.checkAuthorization(ctx, address); done {
				return err
			}
		}
	}
}

// checkAuthorization polls once. done is true when the state is terminal.
func (n *Negotiator) checkAuthorization(ctx context.Context, address string) (done bool, err error) {
	pollCtx, cancel := context.WithTimeout(ctx, constants.BridgeStatusProbeTimeout)
	defer cancel()

	state, err := n.client.AuthState(pollCtx, address)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return true, ErrAuthorizationStopped
		}
		// Not tracked yet or a transient daemon hiccup: keep waiting.
		n.log.Debugf("authorization poll for %s: %v", address, err)
		return false, nil
	}

	switch state {
	case adb.AuthStateAuthorized:
		n.log.Infof("device %s authorized", address)
		return true, nil
	case adb.AuthStateDenied:
		n.log.Warnf("device %s denied authorization", address)
		return true, ErrAuthorizationDenied
	default:
		return false, nil
	}
}

func (n *Negotiator) publishWaiting(address, setupType string, elapsed time.Duration) {
	remaining := n.waitTimeout - elapsed
	if remaining < 0 {
		remaining = 0
	}

	n.broadcaster.PublishSetupStatus(models.SetupStatusEvent{
		Address:      address,
		SetupType:    setupType,
		Type:         models.SetupStatusWaitingAuthorization,
		Message:      "Waiting for authorization on the TV",
		Instructions: authorizationInstructions,
		ElapsedSec:   int(elapsed.Seconds()),
		RemainingSec: int(remaining.Round(time.Second).Seconds()),
	})
}
