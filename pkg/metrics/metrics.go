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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Component labels.
	ComponentBridgeSupervisor = "bridge_supervisor"
	ComponentNegotiator       = "negotiator"
	ComponentSetupSession     = "setup_session"
	ComponentHealthMonitor    = "health_monitor"
	ComponentRecovery         = "recovery"
	ComponentBroadcaster      = "broadcaster"
	ComponentRegistry         = "registry"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "tvfleet"
	subsystem = "core"

	// Error counters.
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	// Setup session outcomes.
	setupOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "setup_sessions_total",
			Help:      "Total number of completed setup sessions by outcome",
		},
		[]string{"outcome"},
	)

	// Setup step durations.
	setupStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "setup_step_duration_seconds",
			Help:      "Duration of individual setup steps in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"step"},
	)

	// Recovery attempts by trigger and outcome.
	recoveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "recovery_attempts_total",
			Help:      "Total number of recovery attempts by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	// Devices per monitoring status.
	devicesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "devices_by_status",
			Help:      "Number of registered devices per monitoring status",
		},
		[]string{"status"},
	)

	// Event broadcaster counters.
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_published_total",
			Help:      "Total number of events published by family",
		},
		[]string{"family"},
	)

	eventsDebounced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_debounced_total",
			Help:      "Total number of events suppressed by the debounce window",
		},
		[]string{"family"},
	)

	// Bridge daemon restarts.
	bridgeRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bridge_restarts_total",
			Help:      "Total number of bridge daemon restarts by outcome",
		},
		[]string{"outcome"},
	)
)

// InitErrorCounter initializes the error counter for a component and instance
// so the series exists (at zero) before the first error.
func InitErrorCounter(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Add(0)
}

// IncErrorCount increments the error counter for a component and instance.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// ObserveSetupOutcome records a finished setup session.
func ObserveSetupOutcome(outcome string) {
	setupOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveSetupStepDuration records the duration of one setup step.
func ObserveSetupStepDuration(step string, seconds float64) {
	setupStepDuration.WithLabelValues(step).Observe(seconds)
}

// ObserveRecoveryAttempt records a recovery attempt.
func ObserveRecoveryAttempt(trigger, outcome string) {
	recoveryAttempts.WithLabelValues(trigger, outcome).Inc()
}

// SetDevicesByStatus updates the per-status device gauge.
func SetDevicesByStatus(status string, count int) {
	devicesByStatus.WithLabelValues(status).Set(float64(count))
}

// IncEventsPublished counts a delivered event.
func IncEventsPublished(family string) {
	eventsPublished.WithLabelValues(family).Inc()
}

// IncEventsDebounced counts a suppressed event.
func IncEventsDebounced(family string) {
	eventsDebounced.WithLabelValues(family).Inc()
}

// ObserveBridgeRestart records a bridge daemon restart.
func ObserveBridgeRestart(outcome string) {
	bridgeRestarts.WithLabelValues(outcome).Inc()
}
