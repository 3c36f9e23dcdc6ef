//*****************************************************************************
// Copyright 2024-2025 Intel Corporation
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
//*****************************************************************************

package process

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
)

const serverName = "ivit-server"

// ServerProcessManager starts and stops the service daemon on behalf of the CLI.
type ServerProcessManager struct {
	processManager ProcessManager
	platformImpl   PlatformProcess
	execPath       string
	logPath        string
	workDir        string
	pidFile        string
	healthURL      string
	client         *http.Client
}

// NewServerProcessManager manages the current executable as a daemon. healthURL
// must answer 200 once the service is ready.
func NewServerProcessManager(logPath, workDir, pidFile, healthURL string) (*ServerProcessManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}
	return &ServerProcessManager{
		processManager: NewProcessManager(serverName),
		platformImpl:   newPlatformProcess(),
		execPath:       execPath,
		logPath:        logPath,
		workDir:        workDir,
		pidFile:        pidFile,
		healthURL:      healthURL,
		client:         &http.Client{Timeout: 3 * time.Second},
	}, nil
}

// StartDaemon launches `server start` detached and waits for the health endpoint.
func (m *ServerProcessManager) StartDaemon(ctx context.Context, extraArgs ...string) error {
	if m.HealthCheck() == nil {
		return fmt.Errorf("%s is already running", serverName)
	}
	cfg := &StartConfig{
		Name:        serverName,
		ExecPath:    m.execPath,
		Args:        append([]string{"server", "start"}, extraArgs...),
		WorkDir:     m.workDir,
		Mode:        StartModeBackground,
		LogFile:     m.logPath,
		Timeout:     30 * time.Second,
		HealthCheck: m.HealthCheck,
	}
	if err := m.processManager.Start(ctx, cfg); err != nil {
		return fmt.Errorf("failed to start %s: %v", serverName, err)
	}
	pid := m.processManager.PID()
	if err := os.WriteFile(m.pidFile, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		logger.EngineLogger.Warn(fmt.Sprintf("[ServerProcess] Failed to write PID file %s: %v", m.pidFile, err))
	}
	logger.EngineLogger.Info(fmt.Sprintf("[ServerProcess] Server started in daemon mode with PID: %d", pid))
	return nil
}

// StopDaemon signals the PID recorded in the pid file and removes the file.
func (m *ServerProcessManager) StopDaemon(ctx context.Context) error {
	pid, err := m.ReadPID()
	if err != nil {
		return err
	}
	handle := &ProcessHandle{PID: pid}
	if !m.platformImpl.IsProcessRunning(handle) {
		logger.EngineLogger.Info(fmt.Sprintf("[ServerProcess] PID %d is already stopped", pid))
		m.removePIDFile()
		return nil
	}
	if err := m.platformImpl.GracefulShutdown(ctx, handle); err != nil {
		if killErr := m.platformImpl.KillProcess(handle); killErr != nil {
			return fmt.Errorf("failed to stop %s: %v (kill also failed: %v)", serverName, err, killErr)
		}
	}
	m.removePIDFile()
	logger.EngineLogger.Info(fmt.Sprintf("[ServerProcess] Server with PID %d stopped", pid))
	return nil
}

// WritePID records the current process, for servers started in the foreground.
func (m *ServerProcessManager) WritePID() error {
	return os.WriteFile(m.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (m *ServerProcessManager) ReadPID() (int, error) {
	data, err := os.ReadFile(m.pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%s is not running", serverName)
		}
		return 0, fmt.Errorf("failed to read PID file %s: %v", m.pidFile, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file %s", m.pidFile)
	}
	return pid, nil
}

func (m *ServerProcessManager) removePIDFile() {
	if err := os.Remove(m.pidFile); err != nil && !os.IsNotExist(err) {
		logger.EngineLogger.Warn(fmt.Sprintf("[ServerProcess] Failed to remove PID file %s: %v", m.pidFile, err))
	}
}

// HealthCheck returns nil when the service answers its health endpoint.
func (m *ServerProcessManager) HealthCheck() error {
	resp, err := m.client.Get(m.healthURL)
	if err != nil {
		return fmt.Errorf("health check failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}

// WaitForReady polls the health endpoint until it answers or timeout passes.
func (m *ServerProcessManager) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for server to be ready")
		case <-ticker.C:
			if err := m.HealthCheck(); err == nil {
				return nil
			}
		}
	}
}
