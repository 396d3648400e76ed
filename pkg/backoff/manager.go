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

// Package backoff implements tick-based exponential backoff with escalation
// to a permanent-failure state after too many retries. Components that run
// inside a periodic loop (setup sessions, the bridge supervisor) use it to
// skip operations while a backoff period is pending instead of sleeping.
package backoff

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

const (
	// TemporaryBackoffError marks errors representing an operation skipped
	// because a backoff period has not yet elapsed.
	TemporaryBackoffError = "temporary backoff error"

	// PermanentFailureError marks errors representing an instance that has
	// exceeded its maximum retries and will not be retried again.
	PermanentFailureError = "permanent failure error"
)

// Config holds the parameters for a BackoffManager.
type Config struct {
	// ID identifies the owning instance in log lines.
	ID string

	// InitialInterval is the first backoff period.
	InitialInterval time.Duration

	// MaxInterval caps the backoff period growth.
	MaxInterval time.Duration

	// Multiplier is the exponential growth factor.
	Multiplier float64

	// MaxRetries is the number of consecutive transient errors tolerated
	// before escalating to permanent failure. Zero means never escalate.
	MaxRetries int

	// TickInterval converts computed backoff durations into loop ticks.
	TickInterval time.Duration

	Logger *zap.SugaredLogger
}

// DefaultConfig returns a Config with standard retry limits for the given
// instance ID.
func DefaultConfig(id string, logger *zap.SugaredLogger) Config {
	return Config{
		ID:              id,
		InitialInterval: 1 * time.Second,
		MaxInterval:     1 * time.Minute,
		Multiplier:      2.0,
		MaxRetries:      5,
		TickInterval:    1 * time.Second,
		Logger:          logger,
	}
}

// BackoffManager tracks the last error of an instance and decides, per tick,
// whether the instance should be allowed to act again.
type BackoffManager struct {
	mu sync.Mutex

	cfg Config
	exp *backoff.ExponentialBackOff

	lastError          error
	retryCount         int
	suspendedUntilTick uint64
	permanentlyFailed  bool
}

// NewBackoffManager creates a manager with the given config.
func NewBackoffManager(cfg Config) *BackoffManager {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialInterval
	exp.MaxInterval = cfg.MaxInterval
	exp.Multiplier = cfg.Multiplier
	exp.MaxElapsedTime = 0 // escalation is handled by MaxRetries, not elapsed time
	exp.Reset()

	return &BackoffManager{
		cfg: cfg,
		exp: exp,
	}
}

// SetError records an error at the given tick and suspends the instance for
// the next backoff period. It returns true if the error escalated the
// instance to permanent failure, either because the error itself is
// categorized permanent or because MaxRetries was exceeded.
func (m *BackoffManager) SetError(err error, tick uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastError = err
	m.retryCount++

	if IsPermanentError(err) {
		m.permanentlyFailed = true
	} else if m.cfg.MaxRetries > 0 && m.retryCount > m.cfg.MaxRetries {
		m.permanentlyFailed = true
	}

	if m.permanentlyFailed {
		if m.cfg.Logger != nil {
			m.cfg.Logger.Errorf("instance %s permanently failed after %d retries: %v", m.cfg.ID, m.retryCount, err)
		}
		return true
	}

	wait := m.exp.NextBackOff()
	ticks := uint64(wait / m.cfg.TickInterval)
	if ticks == 0 {
		ticks = 1
	}
	m.suspendedUntilTick = tick + ticks

	if m.cfg.Logger != nil {
		m.cfg.Logger.Debugf("instance %s backing off for %d ticks after error: %v", m.cfg.ID, ticks, err)
	}

	return false
}

// ShouldSkipOperation reports whether the instance must not act at the given
// tick, either because a backoff period is pending or because it has
// permanently failed.
func (m *BackoffManager) ShouldSkipOperation(tick uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.permanentlyFailed {
		return true
	}

	return tick < m.suspendedUntilTick
}

// GetBackoffError returns a structured error describing why the instance is
// suspended at the given tick, or nil if it is not.
func (m *BackoffManager) GetBackoffError(tick uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.permanentlyFailed {
		return fmt.Errorf("%s: %w", PermanentFailureError, m.lastError)
	}
	if tick < m.suspendedUntilTick {
		return fmt.Errorf("%s (until tick %d): %w", TemporaryBackoffError, m.suspendedUntilTick, m.lastError)
	}

	return nil
}

// GetLastError returns the last recorded error.
func (m *BackoffManager) GetLastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastError
}

// IsPermanentlyFailed reports whether the instance exceeded its retries.
func (m *BackoffManager) IsPermanentlyFailed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.permanentlyFailed
}

// Reset clears the error state and restarts the backoff schedule. Called
// after a successful operation or an explicit operator reset.
func (m *BackoffManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastError = nil
	m.retryCount = 0
	m.suspendedUntilTick = 0
	m.permanentlyFailed = false
	m.exp.Reset()
}
