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
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
)

// child runs one external program: an ffmpeg reader or encoder, a model
// converter, or the detached service itself.
type child struct {
	mu        sync.RWMutex
	name      string
	platform  PlatformProcess
	handle    *ProcessHandle
	status    ProcessStatus
	lastError error
}

// NewProcessManager returns a stopped manager for the program called name.
func NewProcessManager(name string) ProcessManager {
	return &child{
		name:     name,
		status:   ProcessStatusStopped,
		platform: newPlatformProcess(),
	}
}

func (m *child) reset(status ProcessStatus) {
	if m.handle != nil {
		m.handle.closePipes()
	}
	m.handle = nil
	m.status = status
}

func (m *child) Start(ctx context.Context, config *StartConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.status {
	case ProcessStatusRunning:
		return nil
	case ProcessStatusStarting, ProcessStatusStopping:
		return fmt.Errorf("process %s is %s", m.name, m.status)
	}
	m.status = ProcessStatusStarting
	m.lastError = nil

	cmd := exec.Command(config.ExecPath, config.Args...)
	cmd.Dir = config.WorkDir
	if len(config.Env) > 0 {
		cmd.Env = append(os.Environ(), config.Env...)
	}
	logger.EngineLogger.Debug("[Process] Starting", "name", m.name, "exec", config.ExecPath, "args", config.Args, "mode", config.Mode)

	handle, err := m.platform.StartProcess(cmd, config)
	if err != nil {
		m.status = ProcessStatusError
		m.lastError = err
		return fmt.Errorf("start %s: %w", m.name, err)
	}
	m.handle = handle

	if config.HealthCheck != nil && config.Timeout > 0 {
		if err := waitHealthy(ctx, config.Timeout, config.HealthCheck); err != nil {
			_ = m.platform.KillProcess(handle)
			m.reset(ProcessStatusError)
			m.lastError = err
			return fmt.Errorf("%s did not become healthy: %w", m.name, err)
		}
	}

	m.status = ProcessStatusRunning
	if handle.Done() != nil {
		go m.reap(handle)
	}
	logger.EngineLogger.Info("[Process] Started", "name", m.name, "pid", handle.PID)
	return nil
}

// reap records how a child exited when nobody asked it to stop.
func (m *child) reap(handle *ProcessHandle) {
	<-handle.Done()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != handle || m.status != ProcessStatusRunning {
		return
	}
	m.lastError = handle.waitErr
	if handle.waitErr != nil {
		m.status = ProcessStatusError
		logger.EngineLogger.Debug("[Process] Exited", "name", m.name, "error", handle.waitErr)
		return
	}
	m.status = ProcessStatusStopped
}

// Stop asks the process group to terminate and kills it when ctx expires.
func (m *child) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil || !m.platform.IsProcessRunning(m.handle) {
		m.reset(ProcessStatusStopped)
		return nil
	}
	m.status = ProcessStatusStopping
	pid := m.handle.PID

	var err error
	if shutdownErr := m.platform.GracefulShutdown(ctx, m.handle); shutdownErr != nil {
		if killErr := m.platform.KillProcess(m.handle); killErr != nil {
			err = fmt.Errorf("stop %s: %w", m.name, errors.Join(shutdownErr, killErr))
		}
	}
	m.reset(ProcessStatusStopped)
	if err != nil {
		m.status = ProcessStatusError
		m.lastError = err
		return err
	}
	logger.EngineLogger.Debug("[Process] Stopped", "name", m.name, "pid", pid)
	return nil
}

func (m *child) Kill() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		m.status = ProcessStatusStopped
		return nil
	}
	if err := m.platform.KillProcess(m.handle); err != nil {
		return fmt.Errorf("kill %s: %w", m.name, err)
	}
	m.reset(ProcessStatusStopped)
	return nil
}

// Wait blocks until the child exits or ctx is done.
func (m *child) Wait(ctx context.Context) error {
	m.mu.RLock()
	handle := m.handle
	m.mu.RUnlock()
	if handle == nil {
		return m.LastError()
	}
	if handle.Done() == nil {
		return fmt.Errorf("process %s is detached and can not be waited on", m.name)
	}
	select {
	case <-handle.Done():
		return handle.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *child) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

func (m *child) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle != nil && m.platform.IsProcessRunning(m.handle)
}

func (m *child) Status() ProcessStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *child) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.handle == nil {
		return 0
	}
	return m.handle.PID
}

func (m *child) Stdout() io.Reader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.handle == nil || m.handle.Stdout == nil {
		return nil
	}
	return m.handle.Stdout
}

func (m *child) Stderr() io.Reader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.handle == nil || m.handle.Stderr == nil {
		return nil
	}
	return m.handle.Stderr
}

func (m *child) Stdin() io.WriteCloser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.handle == nil {
		return nil
	}
	return m.handle.Stdin
}

func waitHealthy(ctx context.Context, timeout time.Duration, check func() error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("no healthy answer after %v", timeout)
		case <-ticker.C:
			if err := check(); err == nil {
				return nil
			}
		}
	}
}
