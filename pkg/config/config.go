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

// Package config loads the engine configuration from a YAML file with
// defaults for every field, so an empty or missing file yields a working
// configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tvfleet/fleet-core/pkg/constants"
)

// Config is the full engine configuration.
type Config struct {
	// HTTPListenAddr is the bind address of the API server.
	HTTPListenAddr string `yaml:"httpListenAddr"`

	Bridge  BridgeConfig  `yaml:"bridge"`
	Helper  HelperConfig  `yaml:"helper"`
	Setup   SetupConfig   `yaml:"setup"`
	Monitor MonitorConfig `yaml:"monitor"`
	Events  EventsConfig  `yaml:"events"`
}

// BridgeConfig configures the debug-bridge daemon supervisor.
type BridgeConfig struct {
	// BinaryPath is the adb executable. Resolved via PATH when empty.
	BinaryPath string `yaml:"binaryPath"`
	// Port is the debug-bridge port remote devices listen on.
	Port int `yaml:"port"`
	// RestartSettleInterval is how long a restart blocks before reporting
	// success so dependents can immediately issue operations.
	RestartSettleInterval time.Duration `yaml:"restartSettleInterval"`
}

// HelperConfig describes the helper application installed on devices.
type HelperConfig struct {
	// Package is the helper application's package name.
	Package string `yaml:"package"`
	// APKPath is the local path of the helper package pushed on install.
	APKPath string `yaml:"apkPath"`
	// MainActivity is launched on configure/recovery.
	MainActivity string `yaml:"mainActivity"`
	// Permissions are granted after install.
	Permissions []string `yaml:"permissions"`
}

// SetupConfig configures the provisioning state machine.
type SetupConfig struct {
	AuthorizationWaitTimeout  time.Duration `yaml:"authorizationWaitTimeout"`
	AuthorizationPollInterval time.Duration `yaml:"authorizationPollInterval"`
	NetworkProbeTimeout       time.Duration `yaml:"networkProbeTimeout"`
	ConnectTimeout            time.Duration `yaml:"connectTimeout"`
	InstallTimeout            time.Duration `yaml:"installTimeout"`
	StepTimeout               time.Duration `yaml:"stepTimeout"`
}

// MonitorConfig configures the per-device health monitor loops.
type MonitorConfig struct {
	TickInterval                time.Duration `yaml:"tickInterval"`
	HeartbeatFreshnessThreshold time.Duration `yaml:"heartbeatFreshnessThreshold"`
	ProcessProbeTimeout         time.Duration `yaml:"processProbeTimeout"`
	AutoRecoveryEnabled         bool          `yaml:"autoRecoveryEnabled"`
	MaxAutoRecoveryAttempts     int           `yaml:"maxAutoRecoveryAttempts"`
	RecoveryCooldown            time.Duration `yaml:"recoveryCooldown"`
}

// EventsConfig configures the broadcaster's debounce layer.
type EventsConfig struct {
	DebounceWindow time.Duration `yaml:"debounceWindow"`
}

// Default returns the configuration used when no file overrides anything.
func Default() Config {
	return Config{
		HTTPListenAddr: ":8090",
		Bridge: BridgeConfig{
			BinaryPath:            "adb",
			Port:                  constants.DefaultBridgePort,
			RestartSettleInterval: constants.BridgeRestartSettleInterval,
		},
		Helper: HelperConfig{
			Package:      "com.tvfleet.helper",
			APKPath:      "/opt/fleet-core/helper.apk",
			MainActivity: "com.tvfleet.helper/.MainActivity",
			Permissions:  []string{"android.permission.SYSTEM_ALERT_WINDOW"},
		},
		Setup: SetupConfig{
			AuthorizationWaitTimeout:  constants.AuthorizationWaitTimeout,
			AuthorizationPollInterval: constants.AuthorizationPollInterval,
			NetworkProbeTimeout:       constants.NetworkProbeTimeout,
			ConnectTimeout:            constants.ConnectTimeout,
			InstallTimeout:            constants.InstallTimeout,
			StepTimeout:               constants.SetupStepTimeout,
		},
		Monitor: MonitorConfig{
			TickInterval:                constants.MonitorTickInterval,
			HeartbeatFreshnessThreshold: constants.HeartbeatFreshnessThreshold,
			ProcessProbeTimeout:         constants.ProcessProbeTimeout,
			AutoRecoveryEnabled:         true,
			MaxAutoRecoveryAttempts:     constants.MaxAutoRecoveryAttempts,
			RecoveryCooldown:            constants.RecoveryCooldown,
		},
		Events: EventsConfig{
			DebounceWindow: constants.EventDebounceWindow,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Setup.AuthorizationPollInterval <= 0 {
		return fmt.Errorf("authorizationPollInterval must be positive")
	}
	if c.Setup.AuthorizationWaitTimeout < c.Setup.AuthorizationPollInterval {
		return fmt.Errorf("authorizationWaitTimeout must be at least one poll interval")
	}
	if c.Monitor.TickInterval <= 0 {
		return fmt.Errorf("monitor tickInterval must be positive")
	}
	if c.Monitor.MaxAutoRecoveryAttempts < 0 {
		return fmt.Errorf("maxAutoRecoveryAttempts must not be negative")
	}
	return nil
}
