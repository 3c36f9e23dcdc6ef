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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/app"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/provider/engine"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/source"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

// worker is the streaming loop of one running task. It owns its engine handle
// and processor; every write to the task goes through Manager.mu and is dropped
// once gen is stale.
type worker struct {
	m       *Manager
	e       *taskEntry
	id      string
	gen     uint64
	locator string
	kind    types.SourceKind
	source  *source.Handle
	engine  engine.Engine
	handle  *engine.Handle
	proc    *app.Processor

	stop chan struct{}
	once sync.Once
	done chan struct{}

	// rolling fps between snapshots
	lastSnap   time.Time
	snapFrames uint64
}

func (w *worker) signal() {
	w.once.Do(func() { close(w.stop) })
}

func (w *worker) run() {
	defer close(w.done)
	defer func() {
		if err := w.engine.Close(w.handle); err != nil {
			logger.EngineLogger.Warn("[Worker] Close engine handle failed", "task", w.id, "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			w.fail(fmt.Errorf("worker panicked: %v", r))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	w.lastSnap = time.Now()
	var after uint64
	for {
		if ctx.Err() != nil {
			return
		}
		iterStart := time.Now()

		frame, err := w.source.Next(ctx, after, w.m.sources.ReadTimeout())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !w.reload(ctx, err) {
				return
			}
			continue
		}
		after = frame.Seq

		inferStart := time.Now()
		result, err := w.engine.Infer(ctx, w.handle, frame)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.fail(bcode.WrapError(bcode.ErrEngineInfer, err))
			return
		}
		inferMs := float64(time.Since(inferStart).Microseconds()) / 1000

		dets := result.Detections
		var appOut interface{}
		if out, err := w.proc.Process(frame, result); err != nil {
			logger.TaskLogger(w.id).Debug("[Worker] Application step failed, publishing raw result", "error", err)
		} else {
			dets, appOut = out.Detections, out.Event
		}

		if !w.sinkPublish(frame, dets) {
			return
		}
		if !w.publish(frame, dets, inferMs, appOut) {
			return
		}

		if !w.pace(ctx, iterStart) {
			return
		}
	}
}

// reload handles a failed read. Recoverable kinds reopen the source unless
// another subscriber already did; everything else ends the task.
func (w *worker) reload(ctx context.Context, readErr error) bool {
	if !w.kind.Policy().Recoverable {
		w.fail(bcode.WrapError(bcode.ErrSourceRead, readErr))
		return false
	}
	var failedGen uint64
	var re *source.ReadError
	if errors.As(readErr, &re) {
		failedGen = re.Gen
	}
	logger.TaskLogger(w.id).Warn("[Worker] Read failed, reloading source", "source", w.locator, "error", readErr)
	h, err := w.m.sources.ReloadStale(ctx, w.locator, w.id, failedGen)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.fail(err)
		return false
	}
	w.source = h
	return true
}

// stale reports whether the task was stopped or removed since this worker
// started.
func (w *worker) stale() bool {
	w.m.mu.RLock()
	defer w.m.mu.RUnlock()
	return w.e.gen != w.gen || w.e.removed
}

// sinkPublish hands the frame to the sink while the worker is current. A frame
// that raced with a stop is dropped again, unless a newer worker already owns
// the task.
func (w *worker) sinkPublish(frame *types.Frame, dets []types.Detection) bool {
	if w.stale() {
		return false
	}
	sink := w.m.opts.Sink
	if sink == nil {
		return true
	}
	sink.Publish(w.id, frame, dets)

	w.m.mu.RLock()
	stale := w.e.gen != w.gen || w.e.removed
	orphan := stale && (w.e.removed || w.e.worker == nil)
	w.m.mu.RUnlock()
	if orphan {
		sink.Drop(w.id)
	}
	return !stale
}

// publish counts the frame and stores a snapshot at most once per interval.
// It returns false once the worker is stale.
func (w *worker) publish(frame *types.Frame, dets []types.Detection, inferMs float64, appOut interface{}) bool {
	now := time.Now()
	w.snapFrames++

	m := w.m
	var snap *types.StatusSnapshot
	m.mu.Lock()
	if w.e.gen != w.gen || w.e.removed {
		m.mu.Unlock()
		return false
	}
	w.e.frames++
	due := w.e.status == nil || now.Sub(w.lastSnap) >= statusInterval
	if due {
		elapsed := now.Sub(w.lastSnap).Seconds()
		fps := 0.0
		if elapsed > 0 {
			fps = float64(w.snapFrames) / elapsed
		}
		snap = &types.StatusSnapshot{
			TaskID:     w.id,
			Idx:        w.e.frames,
			Detections: dets,
			InferMs:    inferMs,
			FPS:        fps,
			LiveTime:   now.Sub(w.e.started).Seconds(),
			AppOutput:  appOut,
			Timestamp:  now,
		}
	}
	m.mu.Unlock()

	if !due {
		return true
	}
	w.lastSnap, w.snapFrames = now, 0
	snap.CPULoad, snap.MemLoad = m.opts.Load()

	// The slot is written after sampling the host load, so check the
	// generation again.
	m.mu.Lock()
	if w.e.gen != w.gen || w.e.removed {
		m.mu.Unlock()
		return false
	}
	w.e.status = snap
	m.mu.Unlock()

	if m.opts.Observer != nil {
		m.opts.Observer(snap)
	}
	return true
}

// pace sleeps the rest of the frame budget of the source.
func (w *worker) pace(ctx context.Context, start time.Time) bool {
	fps := w.source.FPS()
	if fps <= 0 {
		return ctx.Err() == nil
	}
	rest := time.Duration(float64(time.Second)/fps) - time.Since(start)
	if rest <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(rest)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// fail moves the task to the error state and gives its source back. Nothing is
// written when the task was stopped or removed in the meantime.
func (w *worker) fail(err error) {
	m := w.m
	m.mu.Lock()
	if w.e.gen != w.gen || w.e.removed {
		m.mu.Unlock()
		return
	}
	w.e.state, w.e.err = types.TaskError, err
	m.mu.Unlock()

	logger.LogicLogger.Error("[Worker] Task failed", "task", w.id, "error", err)
	m.release(w.locator, w.id, false)
	if m.opts.Sink != nil {
		m.opts.Sink.Drop(w.id)
	}
}
