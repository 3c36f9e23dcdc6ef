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

package source

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

const pumpStopTimeout = 3 * time.Second

// Handle is the shared capture of one locator.
//
// mu serializes open, reload and release and guards the subscriber set and the
// capture. sm guards what readers and health queries look at, so they never wait
// behind a slow open.
type Handle struct {
	locator string
	kind    types.SourceKind

	mu          sync.Mutex
	capture     Capture
	subscribers map[string]struct{}
	discarded   bool
	cancelPump  context.CancelFunc
	pumpDone    chan struct{}
	opens       int

	sm      sync.Mutex
	gen     uint64
	status  Status
	message string
	seq     uint64
	latest  *types.Frame
	readErr error
	notify  chan struct{}
	fps     float64
}

func newHandle(locator string, kind types.SourceKind) *Handle {
	return &Handle{
		locator:     locator,
		kind:        kind,
		subscribers: make(map[string]struct{}),
		notify:      make(chan struct{}),
		status:      StatusStopped,
	}
}

func (h *Handle) Locator() string {
	return h.locator
}

func (h *Handle) Kind() types.SourceKind {
	return h.kind
}

// FPS is the nominal frame rate of the current capture.
func (h *Handle) FPS() float64 {
	h.sm.Lock()
	defer h.sm.Unlock()
	return h.fps
}

// Generation increments every time the capture is reopened.
func (h *Handle) Generation() uint64 {
	h.sm.Lock()
	defer h.sm.Unlock()
	return h.gen
}

func (h *Handle) health() (bool, string) {
	h.sm.Lock()
	defer h.sm.Unlock()
	return h.status == StatusRunning, h.message
}

// Next blocks until a frame newer than after is available. A stalled source
// returns a ReadError once timeout elapses.
func (h *Handle) Next(ctx context.Context, after uint64, timeout time.Duration) (*types.Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		h.sm.Lock()
		if h.latest != nil && h.latest.Seq > after {
			f := h.latest
			h.sm.Unlock()
			return f, nil
		}
		if h.readErr != nil {
			err := h.readErr
			h.sm.Unlock()
			return nil, err
		}
		gen, ch := h.gen, h.notify
		h.sm.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, &ReadError{Gen: gen, Err: bcode.ErrSourceRead.Messagef("no frame from %s within %s", h.locator, timeout)}
		}
	}
}

// latestFrame returns the most recent frame without waiting.
func (h *Handle) latestFrame() *types.Frame {
	h.sm.Lock()
	defer h.sm.Unlock()
	return h.latest
}

func (h *Handle) info() HandleInfo {
	h.mu.Lock()
	subs := make([]string, 0, len(h.subscribers))
	for id := range h.subscribers {
		subs = append(subs, id)
	}
	opened, opens := h.capture != nil, h.opens
	h.mu.Unlock()
	sort.Strings(subs)

	h.sm.Lock()
	defer h.sm.Unlock()
	info := HandleInfo{
		Locator:     h.locator,
		Kind:        h.kind,
		Status:      h.status,
		Message:     h.message,
		Subscribers: subs,
		Opened:      opened,
		FPS:         h.fps,
		Opens:       opens,
	}
	if h.latest != nil {
		info.Width, info.Height = h.latest.Width, h.latest.Height
	}
	return info
}

// openLocked starts a fresh capture. Caller holds h.mu and no capture is open.
func (h *Handle) openLocked(c Capture) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.capture, h.cancelPump, h.pumpDone = c, cancel, done
	h.opens++

	h.sm.Lock()
	h.gen++
	gen := h.gen
	h.status, h.message = StatusRunning, ""
	h.readErr = nil
	h.fps = c.FPS()
	h.sm.Unlock()

	go h.pump(ctx, c, gen, done)
}

// teardownLocked closes the capture and waits for its reader goroutine.
// Caller holds h.mu.
func (h *Handle) teardownLocked() {
	if h.capture == nil {
		return
	}
	h.cancelPump()
	if err := h.capture.Close(); err != nil {
		logger.StreamLogger.Warn("[Source] Close capture failed", "locator", h.locator, "error", err)
	}
	select {
	case <-h.pumpDone:
	case <-time.After(pumpStopTimeout):
		logger.StreamLogger.Error("[Source] Capture reader did not exit", "locator", h.locator)
	}
	h.capture, h.cancelPump, h.pumpDone = nil, nil, nil
}

// markStopped records a teardown with no reopen and wakes lingering readers.
func (h *Handle) markStopped() {
	h.sm.Lock()
	defer h.sm.Unlock()
	h.status, h.message = StatusStopped, ""
	h.latest = nil
	h.readErr = &ReadError{Gen: h.gen, Err: bcode.ErrSourceClosed.Messagef("source %s is closed", h.locator)}
	h.wakeLocked()
}

func (h *Handle) markError(err error) {
	h.sm.Lock()
	defer h.sm.Unlock()
	h.status, h.message = StatusError, err.Error()
	h.readErr = &ReadError{Gen: h.gen, Err: err}
	h.wakeLocked()
}

func (h *Handle) wakeLocked() {
	close(h.notify)
	h.notify = make(chan struct{})
}

func (h *Handle) pump(ctx context.Context, c Capture, gen uint64, done chan struct{}) {
	defer close(done)
	for {
		frame, err := c.Read(ctx)
		if ctx.Err() != nil {
			return
		}
		h.sm.Lock()
		if h.gen != gen {
			h.sm.Unlock()
			return
		}
		if err != nil {
			h.status, h.message = StatusError, err.Error()
			h.readErr = &ReadError{Gen: gen, Err: bcode.WrapError(bcode.ErrSourceRead, err)}
			h.wakeLocked()
			h.sm.Unlock()
			logger.StreamLogger.Warn("[Source] Read failed", "locator", h.locator, "kind", h.kind, "error", err)
			return
		}
		h.seq++
		frame.Seq = h.seq
		frame.Locator = h.locator
		h.latest = frame
		h.wakeLocked()
		h.sm.Unlock()
	}
}
