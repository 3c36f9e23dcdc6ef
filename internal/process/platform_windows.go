//go:build windows

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
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
)

// WindowsProcess implements PlatformProcess for Windows development hosts
type WindowsProcess struct{}

func newPlatformProcess() PlatformProcess {
	return &WindowsProcess{}
}

func (p *WindowsProcess) StartProcess(cmd *exec.Cmd, config *StartConfig) (*ProcessHandle, error) {
	var outR, errR *os.File
	var stdin io.WriteCloser
	switch config.Mode {
	case StartModeForeground:
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	case StartModePipe:
		var outW, errW *os.File
		var err error
		if outR, outW, err = os.Pipe(); err != nil {
			return nil, err
		}
		if errR, errW, err = os.Pipe(); err != nil {
			return nil, err
		}
		cmd.Stdout, cmd.Stderr = outW, errW
		defer outW.Close()
		defer errW.Close()
		if config.Stdin {
			if stdin, err = cmd.StdinPipe(); err != nil {
				return nil, err
			}
		}
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %v", err)
	}
	h := newChildHandle(cmd)
	h.Stdout, h.Stderr, h.Stdin = outR, errR, stdin
	return h, nil
}

func (p *WindowsProcess) GracefulShutdown(ctx context.Context, handle *ProcessHandle) error {
	if handle == nil || handle.PID <= 0 {
		return fmt.Errorf("invalid process handle")
	}
	if err := exec.Command("taskkill", "/T", "/PID", strconv.Itoa(handle.PID)).Run(); err != nil {
		logger.EngineLogger.Warn(fmt.Sprintf("[Process] Failed to gracefully terminate PID %d: %v", handle.PID, err))
		return p.KillProcess(handle)
	}
	timeout := defaultShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	select {
	case <-handle.Done():
		return nil
	case <-time.After(timeout):
		return p.KillProcess(handle)
	case <-ctx.Done():
		return p.KillProcess(handle)
	}
}

func (p *WindowsProcess) KillProcess(handle *ProcessHandle) error {
	if handle == nil || handle.PID <= 0 {
		return fmt.Errorf("invalid process handle")
	}
	return exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(handle.PID)).Run()
}

func (p *WindowsProcess) IsProcessRunning(handle *ProcessHandle) bool {
	if handle == nil || handle.Done() == nil {
		return false
	}
	select {
	case <-handle.Done():
		return false
	default:
		return true
	}
}

const defaultShutdownTimeout = 30 * time.Second
