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
	"io"
	"os"
	"os/exec"
	"time"
)

// ProcessStatus represents the status of a process
type ProcessStatus int

const (
	ProcessStatusStopped ProcessStatus = iota
	ProcessStatusStarting
	ProcessStatusRunning
	ProcessStatusStopping
	ProcessStatusError
)

func (s ProcessStatus) String() string {
	switch s {
	case ProcessStatusStopped:
		return "stopped"
	case ProcessStatusStarting:
		return "starting"
	case ProcessStatusRunning:
		return "running"
	case ProcessStatusStopping:
		return "stopping"
	case ProcessStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// StartMode defines how the process should be started
type StartMode string

const (
	StartModeForeground StartMode = "foreground" // inherit the console
	StartModeBackground StartMode = "background" // detached daemon
	StartModePipe       StartMode = "pipe"       // stdout and stderr readable by the caller
)

// StartConfig contains essential configuration for starting a process
type StartConfig struct {
	Name        string
	ExecPath    string
	Args        []string
	Env         []string
	WorkDir     string
	Mode        StartMode
	Stdin       bool          // pipe mode only, exposes a writable stdin
	LogFile     string        // background mode only, receives stdout and stderr
	Timeout     time.Duration // health check timeout
	HealthCheck func() error
}

// ProcessManager defines the core interface for process management
type ProcessManager interface {
	Start(ctx context.Context, config *StartConfig) error
	Stop(ctx context.Context) error
	Kill() error
	// Wait blocks until the process exits and returns its exit error.
	Wait(ctx context.Context) error

	IsRunning() bool
	Status() ProcessStatus
	PID() int

	// Pipe mode streams, nil otherwise.
	Stdout() io.Reader
	Stderr() io.Reader
	Stdin() io.WriteCloser
}

// PlatformProcess defines platform-specific process operations
type PlatformProcess interface {
	StartProcess(cmd *exec.Cmd, config *StartConfig) (*ProcessHandle, error)
	GracefulShutdown(ctx context.Context, handle *ProcessHandle) error
	KillProcess(handle *ProcessHandle) error
	IsProcessRunning(handle *ProcessHandle) bool
}

// ProcessHandle represents a handle to a running process
type ProcessHandle struct {
	Process *exec.Cmd
	PID     int

	Stdout *os.File
	Stderr *os.File
	Stdin  io.WriteCloser

	done    chan struct{}
	waitErr error
}

// newChildHandle wraps a started child process and reaps it in the background.
func newChildHandle(cmd *exec.Cmd) *ProcessHandle {
	h := &ProcessHandle{Process: cmd, PID: cmd.Process.Pid, done: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	return h
}

// Done is closed once a child process has exited. Detached daemons are not our
// children and return nil.
func (h *ProcessHandle) Done() <-chan struct{} {
	return h.done
}

func (h *ProcessHandle) closePipes() {
	if h.Stdout != nil {
		_ = h.Stdout.Close()
	}
	if h.Stderr != nil {
		_ = h.Stderr.Close()
	}
}
