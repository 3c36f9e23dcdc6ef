//go:build !windows

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
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
)

const defaultShutdownTimeout = 30 * time.Second

// UnixProcess implements PlatformProcess for Unix-like systems
type UnixProcess struct{}

// newPlatformProcess creates a new platform-specific process implementation
func newPlatformProcess() PlatformProcess {
	return &UnixProcess{}
}

// StartProcess starts a process with given command
func (p *UnixProcess) StartProcess(cmd *exec.Cmd, config *StartConfig) (*ProcessHandle, error) {
	switch config.Mode {
	case StartModeForeground:
		return p.startForeground(cmd)
	case StartModePipe:
		return p.startPiped(cmd, config.Stdin)
	default:
		return p.startBackground(cmd, config.LogFile)
	}
}

// startForeground starts process in foreground mode
func (p *UnixProcess) startForeground(cmd *exec.Cmd) (*ProcessHandle, error) {
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %v", err)
	}
	return newChildHandle(cmd), nil
}

// startPiped starts the process in its own process group with stdout and stderr
// connected to pipes owned by the handle.
func (p *UnixProcess) startPiped(cmd *exec.Cmd, withStdin bool) (*ProcessHandle, error) {
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %v", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %v", err)
	}
	cmd.Stdout, cmd.Stderr = outW, errW
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdin io.WriteCloser
	if withStdin {
		if stdin, err = cmd.StdinPipe(); err != nil {
			_, _, _, _ = outR.Close(), outW.Close(), errR.Close(), errW.Close()
			return nil, fmt.Errorf("failed to create stdin pipe: %v", err)
		}
	}

	err = cmd.Start()
	// the child holds its own copies of the write ends
	_ = outW.Close()
	_ = errW.Close()
	if err != nil {
		_ = outR.Close()
		_ = errR.Close()
		return nil, fmt.Errorf("failed to start process: %v", err)
	}

	h := newChildHandle(cmd)
	h.Stdout, h.Stderr, h.Stdin = outR, errR, stdin
	return h, nil
}

// startBackground starts process in background mode using nohup
func (p *UnixProcess) startBackground(cmd *exec.Cmd, logFile string) (*ProcessHandle, error) {
	if logFile == "" {
		logFile = "/dev/null"
	}
	args := []string{"-c", fmt.Sprintf("nohup %s %s >>%s 2>&1 & echo $!",
		cmd.Path, strings.Join(cmd.Args[1:], " "), logFile)}

	nohupCmd := exec.Command("sh", args...)
	nohupCmd.Dir = cmd.Dir
	nohupCmd.Env = cmd.Env

	output, err := nohupCmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to start background process: %v", err)
	}

	pidStr := strings.TrimSpace(string(output))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse daemon PID: %v", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to find background process: %v", err)
	}

	return &ProcessHandle{
		Process: &exec.Cmd{Process: process},
		PID:     pid,
	}, nil
}

// signal delivers sig to the process group of a child we started, or to the
// single process for detached daemons.
func (p *UnixProcess) signal(handle *ProcessHandle, sig unix.Signal) error {
	if handle.Done() != nil {
		if err := unix.Kill(-handle.PID, sig); err == nil {
			return nil
		}
	}
	return unix.Kill(handle.PID, sig)
}

// GracefulShutdown sends SIGTERM and escalates to SIGKILL when the process
// outlives the context deadline or the default timeout.
func (p *UnixProcess) GracefulShutdown(ctx context.Context, handle *ProcessHandle) error {
	if handle == nil || handle.PID <= 0 {
		return fmt.Errorf("invalid process handle")
	}

	if err := p.signal(handle, unix.SIGTERM); err != nil {
		if err == unix.ESRCH {
			return nil
		}
		logger.EngineLogger.Warn(fmt.Sprintf("[Process] Failed to send SIGTERM to PID %d: %v", handle.PID, err))
		return p.signal(handle, unix.SIGKILL)
	}

	timeout := defaultShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	done := handle.Done()
	if done == nil {
		done = p.pollExit(handle, timeout)
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		logger.EngineLogger.Warn(fmt.Sprintf("[Process] Graceful shutdown timeout for PID %d, force killing", handle.PID))
		return p.signal(handle, unix.SIGKILL)
	case <-ctx.Done():
		logger.EngineLogger.Warn(fmt.Sprintf("[Process] Context cancelled, force killing PID %d", handle.PID))
		return p.signal(handle, unix.SIGKILL)
	}
}

func (p *UnixProcess) pollExit(handle *ProcessHandle, timeout time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		deadline := time.Now().Add(timeout)
		for time.Now().Before(deadline) && p.IsProcessRunning(handle) {
			time.Sleep(200 * time.Millisecond)
		}
	}()
	return ch
}

// KillProcess forcefully kills a process
func (p *UnixProcess) KillProcess(handle *ProcessHandle) error {
	if handle == nil || handle.PID <= 0 {
		return fmt.Errorf("invalid process handle")
	}
	if err := p.signal(handle, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return fmt.Errorf("failed to kill process %d: %v", handle.PID, err)
	}
	return nil
}

// IsProcessRunning checks if a process is running
func (p *UnixProcess) IsProcessRunning(handle *ProcessHandle) bool {
	if handle == nil || handle.PID <= 0 {
		return false
	}
	if done := handle.Done(); done != nil {
		select {
		case <-done:
			return false
		default:
			return true
		}
	}
	return unix.Kill(handle.PID, 0) == nil
}
