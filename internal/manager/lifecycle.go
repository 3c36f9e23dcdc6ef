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

package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/app"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

const (
	RunMessageSuccess = "success"
	RunMessageRunning = "still running"
)

// RunTask starts the worker of a stopped task. A task in the error state
// returns its stored error until it is stopped.
func (m *Manager) RunTask(ctx context.Context, id string) (string, error) {
	e, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	e.opMu.Lock()
	defer e.opMu.Unlock()

	m.mu.RLock()
	removed, state, lastErr := e.removed, e.state, e.err
	rec, kind, eng := e.record, e.kind, e.engine
	cfg := e.engineConfig()
	appCfg := e.app
	m.mu.RUnlock()

	switch {
	case removed:
		return "", bcode.ErrTaskNotFound.Messagef("Task %s not found", id)
	case state == types.TaskRunning:
		return RunMessageRunning, nil
	case state == types.TaskError:
		return "", fmt.Errorf("The task is not ready: %w", lastErr)
	}

	handle, err := m.sources.Acquire(ctx, rec.Source, kind, id)
	if err != nil {
		return "", m.failRun(e, err)
	}

	engineHandle, err := eng.Init(ctx, cfg)
	if err != nil {
		m.release(rec.Source, id, false)
		return "", m.failRun(e, bcode.WrapError(bcode.ErrEngineInit, err))
	}

	proc, err := app.NewProcessor(&appCfg)
	if err != nil {
		_ = eng.Close(engineHandle)
		m.release(rec.Source, id, false)
		return "", m.failRun(e, err)
	}

	m.mu.Lock()
	e.gen++
	w := &worker{
		m:       m,
		e:       e,
		id:      id,
		gen:     e.gen,
		locator: rec.Source,
		kind:    kind,
		source:  handle,
		engine:  eng,
		handle:  engineHandle,
		proc:    proc,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	e.worker = w
	e.state, e.err = types.TaskRunning, nil
	e.frames, e.started, e.status = 0, time.Now(), nil
	m.mu.Unlock()

	go w.run()
	logger.LogicLogger.Info("[Manager] Task started", "task", id, "source", rec.Source, "engine", eng.Name())
	return RunMessageSuccess, nil
}

// failRun records a start failure. The task is left without a worker.
func (m *Manager) failRun(e *taskEntry, err error) error {
	m.mu.Lock()
	e.state, e.err = types.TaskError, err
	id := e.record.ID
	m.mu.Unlock()
	logger.LogicLogger.Error("[Manager] Task failed to start", "task", id, "error", err)
	return err
}

// StopTask stops a task. It always succeeds for a known task, also when the
// worker does not acknowledge the stop in time.
func (m *Manager) StopTask(id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.opMu.Lock()
	defer e.opMu.Unlock()
	if m.isRemoved(e) {
		return bcode.ErrTaskNotFound.Messagef("Task %s not found", id)
	}
	m.stopLocked(e, false)
	return nil
}

// stopLocked joins the worker and resets the run fields. Caller holds e.opMu.
func (m *Manager) stopLocked(e *taskEntry, force bool) {
	m.mu.Lock()
	w := e.worker
	e.worker = nil
	e.gen++
	id, locator := e.record.ID, e.record.Source
	m.mu.Unlock()

	if w != nil {
		w.signal()
		select {
		case <-w.done:
		case <-time.After(m.opts.StopTimeout):
			logger.LogicLogger.Error("[Manager] Worker did not stop in time, releasing its source anyway",
				"task", id, "timeout", m.opts.StopTimeout)
			force = true
		}
		m.release(locator, id, force)
		if m.opts.Sink != nil {
			m.opts.Sink.Drop(id)
		}
	}

	m.mu.Lock()
	e.state, e.err = types.TaskStopped, nil
	e.frames, e.started, e.status = 0, time.Time{}, nil
	m.mu.Unlock()
	if w != nil {
		logger.LogicLogger.Info("[Manager] Task stopped", "task", id)
	}
}

func (m *Manager) release(locator, id string, force bool) {
	if err := m.sources.Release(locator, id, force); err != nil {
		logger.LogicLogger.Warn("[Manager] Release source failed", "task", id, "source", locator, "error", err)
	}
}
