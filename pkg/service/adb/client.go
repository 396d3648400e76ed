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

package adb

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tvfleet/fleet-core/pkg/logger"
)

// ExecClient implements Client by shelling out to the bridge executable.
type ExecClient struct {
	log *zap.SugaredLogger

	binary string
	port   int
}

var _ Client = (*ExecClient)(nil)

// NewExecClient creates a client driving the given bridge binary. Remote
// devices are addressed as address:port.
func NewExecClient(binary string, port int) *ExecClient {
	return &ExecClient{
		log:    logger.For(logger.ComponentAdbClient),
		binary: binary,
		port:   port,
	}
}

func (c *ExecClient) target(address string) string {
	return net.JoinHostPort(address, strconv.Itoa(c.port))
}

func (c *ExecClient) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s %s: %v (%s)",
			ErrCommandFailed, c.binary, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// Ping probes the bridge port with a plain TCP dial and reports the
// round-trip latency. ICMP would need elevated privileges; a TCP connect to
// the debug-bridge port answers the same question for our purposes.
func (c *ExecClient) Ping(ctx context.Context, address string) (float64, error) {
	dialer := net.Dialer{}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", c.target(address))
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		if strings.Contains(err.Error(), "refused") {
			// The host is up even though the port refused; reachability holds.
			return latency, nil
		}
		return 0, fmt.Errorf("%w: %s: %v", ErrUnreachable, address, err)
	}
	_ = conn.Close()

	return latency, nil
}

// Connect asks the daemon to connect to the address.
func (c *ExecClient) Connect(ctx context.Context, address string) (ConnectOutcome, error) {
	out, err := c.run(ctx, "connect", c.target(address))
	if err != nil {
		return ConnectOutcomeUnreachable, err
	}

	lower := strings.ToLower(out)
	switch {
	case strings.Contains(lower, "already connected"), strings.Contains(lower, "connected to"):
		return ConnectOutcomeConnected, nil
	case strings.Contains(lower, "refused"):
		return ConnectOutcomeRefused, ErrConnectionRefused
	case strings.Contains(lower, "unable to connect"), strings.Contains(lower, "failed to connect"):
		return ConnectOutcomeUnreachable, ErrUnreachable
	default:
		// The daemon acknowledged but has not finished the handshake.
		return ConnectOutcomeConnecting, nil
	}
}

// Disconnect drops the daemon's connection to the address.
func (c *ExecClient) Disconnect(ctx context.Context, address string) error {
	_, err := c.run(ctx, "disconnect", c.target(address))
	return err
}

// AuthState reads the daemon's device list and reports the entry for the
// address.
func (c *ExecClient) AuthState(ctx context.Context, address string) (AuthState, error) {
	devices, err := c.ListDevices(ctx)
	if err != nil {
		return AuthStateUnknown, err
	}

	state, exists := devices[address]
	if !exists {
		return AuthStateUnknown, ErrDeviceNotTracked
	}

	return state, nil
}

// ListDevices parses `adb devices` output into address -> authorization state.
func (c *ExecClient) ListDevices(ctx context.Context) (map[string]AuthState, error) {
	out, err := c.run(ctx, "devices")
	if err != nil {
		return nil, err
	}

	devices := make(map[string]AuthState)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		// Serials for networked devices look like "192.168.1.50:5555".
		host, _, err := net.SplitHostPort(fields[0])
		if err != nil {
			host = fields[0]
		}

		switch fields[1] {
		case "device":
			devices[host] = AuthStateAuthorized
		case "unauthorized":
			devices[host] = AuthStateUnauthorized
		case "offline":
			devices[host] = AuthStateOffline
		default:
			devices[host] = AuthStateUnknown
		}
	}

	return devices, nil
}

// Install pushes and installs the package, replacing an existing install and
// granting declared runtime permissions up front.
func (c *ExecClient) Install(ctx context.Context, address, apkPath string) error {
	out, err := c.run(ctx, "-s", c.target(address), "install", "-r", "-g", apkPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}
	if strings.Contains(out, "Failure") {
		return fmt.Errorf("%w: %s", ErrInstallFailed, strings.TrimSpace(out))
	}

	return nil
}

// GrantPermission grants a runtime permission to the package.
func (c *ExecClient) GrantPermission(ctx context.Context, address, pkg, permission string) error {
	_, err := c.run(ctx, "-s", c.target(address), "shell", "pm", "grant", pkg, permission)
	return err
}

// SetProperty sets a device property.
func (c *ExecClient) SetProperty(ctx context.Context, address, key, value string) error {
	_, err := c.run(ctx, "-s", c.target(address), "shell", "setprop", key, value)
	return err
}

// LaunchApp starts the activity on the device.
func (c *ExecClient) LaunchApp(ctx context.Context, address, activity string) error {
	_, err := c.run(ctx, "-s", c.target(address), "shell", "am", "start", "-n", activity)
	return err
}

// IsProcessRunning reports whether the package's process is alive.
func (c *ExecClient) IsProcessRunning(ctx context.Context, address, pkg string) (bool, error) {
	out, err := c.run(ctx, "-s", c.target(address), "shell", "pidof", pkg)
	if err != nil {
		// pidof exits non-zero when no process matches.
		if strings.Contains(err.Error(), "exit status 1") {
			return false, nil
		}
		return false, err
	}

	return strings.TrimSpace(out) != "", nil
}

// StartServer starts the local daemon.
func (c *ExecClient) StartServer(ctx context.Context) error {
	_, err := c.run(ctx, "start-server")
	return err
}

// KillServer stops the local daemon.
func (c *ExecClient) KillServer(ctx context.Context) error {
	_, err := c.run(ctx, "kill-server")
	return err
}

// Version returns the daemon version banner.
func (c *ExecClient) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "version")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.Split(out, "\n")[0]), nil
}
