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

// Package fsm provides the shared state-machine plumbing for per-device
// workflows. Concrete machines (the setup session) embed BaseFSMInstance and
// supply their operational transitions.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/tvfleet/fleet-core/pkg/backoff"
	"github.com/tvfleet/fleet-core/pkg/constants"
)

// BaseFSMInstance implements the shared logic for all FSM-driven workflows:
// transition plumbing, per-state callbacks, and transient-error backoff with
// permanent-failure escalation.
type BaseFSMInstance struct {
	cfg BaseFSMInstanceConfig

	// mu protects concurrent access to fields
	mu sync.RWMutex

	// fsm is the finite state machine that manages instance state
	fsm *fsm.FSM

	// Registered "enter_state" callbacks, purely for logging or minor side-effects.
	callbacks map[string]fsm.Callback

	// Handles exponential backoff for repeated transient errors,
	// culminating in a "permanent failure" if max retries are exceeded.
	backoffManager *backoff.BackoffManager

	logger *zap.SugaredLogger
}

// BaseFSMInstanceConfig holds parameters for setting up the base FSM.
type BaseFSMInstanceConfig struct {
	ID string

	// InitialState is where the machine starts.
	InitialState string

	// Transitions are the transitions the machine allows.
	Transitions []fsm.EventDesc

	// If certain errors are "ignored" or "permanent" in certain states, list
	// them here, keyed by state.
	IgnoreErrorsInStates    map[string][]error
	PermanentErrorsInStates map[string][]error
}

// NewBaseFSMInstance sets up a new FSM with the given transitions.
func NewBaseFSMInstance(cfg BaseFSMInstanceConfig, logger *zap.SugaredLogger) *BaseFSMInstance {
	baseInstance := &BaseFSMInstance{
		cfg:       cfg,
		callbacks: make(map[string]fsm.Callback),
		logger:    logger,
	}

	backoffConfig := backoff.DefaultConfig(cfg.ID, logger)
	baseInstance.backoffManager = backoff.NewBackoffManager(backoffConfig)

	baseInstance.fsm = fsm.NewFSM(
		cfg.InitialState,
		fsm.Events(cfg.Transitions),
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				if cb, ok := baseInstance.callbacks["enter_"+e.Dst]; ok {
					cb(ctx, e)
				}
			},
		},
	)

	return baseInstance
}

// AddCallback adds a callback for a given event name
func (s *BaseFSMInstance) AddCallback(eventName string, callback fsm.Callback) {
	s.callbacks[eventName] = callback
}

// GetCurrentFSMState returns the current state of the FSM
func (s *BaseFSMInstance) GetCurrentFSMState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fsm.Current()
}

// SetCurrentFSMState sets the current state of the FSM
// This should only be called in tests
func (s *BaseFSMInstance) SetCurrentFSMState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fsm.SetState(state)
}

// Is reports whether the machine currently sits in state.
func (s *BaseFSMInstance) Is(state string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fsm.Is(state)
}

// SendEvent sends an event to the FSM and returns whether the event was processed.
//
// Problem: Context expiration during FSM transitions can lead to deadlocks:
// - When a context expires mid-transition, the FSM's internal transition state remains set
// - This causes future events to fail with "event X inappropriate because previous transition did not complete"
// - After multiple retries, the backoff manager marks the instance as permanently failed
//
// Solution: This method implements protective measures to prevent deadlocks:
// 1. Rejects event sending if the context is already cancelled
// 2. Refuses to start transitions when insufficient time remains before a deadline
func (s *BaseFSMInstance) SendEvent(ctx context.Context, eventName string, args ...interface{}) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < constants.ExpectedMaxP95ExecutionTimePerEvent {
			return fmt.Errorf("context deadline exceeded")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fsm.Event(ctx, eventName, args...)
}

// SetError records the error that occurred during a transition and returns
// true if the error is considered a permanent failure. Errors listed for the
// current state in the config override the default categorization.
func (s *BaseFSMInstance) SetError(err error, tick uint64) bool {
	state := s.GetCurrentFSMState()

	for _, ignored := range s.cfg.IgnoreErrorsInStates[state] {
		if errors.Is(err, ignored) {
			s.logger.Debugf("ignoring error in state %s for FSM %s: %v", state, s.cfg.ID, err)
			return false
		}
	}

	for _, permanent := range s.cfg.PermanentErrorsInStates[state] {
		if errors.Is(err, permanent) {
			err = backoff.NewPermanentError(err)
			break
		}
	}

	isPermanent := s.backoffManager.SetError(err, tick)
	if isPermanent {
		s.logger.Errorf("FSM %s has reached permanent failure state: %v", s.cfg.ID, err)
	}

	return isPermanent
}

// GetError returns the last error that occurred during a transition
func (s *BaseFSMInstance) GetError() error {
	return s.backoffManager.GetLastError()
}

// GetLastError returns the last raw error recorded by the backoff manager.
func (s *BaseFSMInstance) GetLastError() error {
	return s.backoffManager.GetLastError()
}

// ClearError clears any error state and resets the backoff
func (s *BaseFSMInstance) ClearError() {
	s.backoffManager.Reset()
}

// ShouldSkipOperationBecauseOfError returns true if the next operation should
// be skipped because the backoff period from a previous error has not yet
// elapsed, or because the FSM is permanently failed.
func (s *BaseFSMInstance) ShouldSkipOperationBecauseOfError(tick uint64) bool {
	return s.backoffManager.ShouldSkipOperation(tick)
}

// IsPermanentlyFailed returns true if the FSM has reached a permanent failure
// state after exceeding the maximum retry attempts
func (s *BaseFSMInstance) IsPermanentlyFailed() bool {
	return s.backoffManager.IsPermanentlyFailed()
}

// GetBackoffError returns a structured error that includes backoff information
func (s *BaseFSMInstance) GetBackoffError(tick uint64) error {
	return s.backoffManager.GetBackoffError(tick)
}

func (s *BaseFSMInstance) GetID() string {
	return s.cfg.ID
}

func (s *BaseFSMInstance) GetLogger() *zap.SugaredLogger {
	return s.logger
}
