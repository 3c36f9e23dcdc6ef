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
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
	DefaultReadTimeout   = 10 * time.Second
)

type Option func(*Multiplexer)

// WithRetry bounds the reopen attempts of recoverable sources.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(m *Multiplexer) {
		if attempts > 0 {
			m.retryAttempts = attempts
		}
		if delay > 0 {
			m.retryDelay = delay
		}
	}
}

// WithReadTimeout sets how long a reader waits for a frame before failing.
func WithReadTimeout(d time.Duration) Option {
	return func(m *Multiplexer) {
		if d > 0 {
			m.readTimeout = d
		}
	}
}

// Multiplexer shares one capture per locator between every task that reads it.
// m.mu only guards the handle map; each handle serializes its own operations.
type Multiplexer struct {
	mu      sync.Mutex
	handles map[string]*Handle

	opener        Opener
	tasks         TaskChecker
	retryAttempts uint
	retryDelay    time.Duration
	readTimeout   time.Duration
}

func NewMultiplexer(opener Opener, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		handles:       make(map[string]*Handle),
		opener:        opener,
		retryAttempts: DefaultRetryAttempts,
		retryDelay:    DefaultRetryDelay,
		readTimeout:   DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetTaskChecker installs the registry used to prune stale subscribers.
func (m *Multiplexer) SetTaskChecker(tc TaskChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = tc
}

func (m *Multiplexer) ReadTimeout() time.Duration {
	return m.readTimeout
}

func (m *Multiplexer) getOrCreate(locator string, kind types.SourceKind) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[locator]
	if !ok {
		h = newHandle(locator, kind)
		m.handles[locator] = h
		logger.StreamLogger.Info("[Source] Handle created", "locator", locator, "kind", kind)
	}
	return h
}

func (m *Multiplexer) lookup(locator string) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handles[locator]
}

func (m *Multiplexer) checker() TaskChecker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks
}

// Acquire subscribes taskID to locator, opening the capture when there is none
// or the current one is unhealthy.
func (m *Multiplexer) Acquire(ctx context.Context, locator string, kind types.SourceKind, taskID string) (*Handle, error) {
	for {
		h := m.getOrCreate(locator, kind)
		h.mu.Lock()
		if h.discarded {
			// lost a race with a forced release, pick up the replacement
			h.mu.Unlock()
			continue
		}
		m.pruneLocked(h)
		healthy, _ := h.health()
		if h.capture == nil || !healthy {
			h.teardownLocked()
			if err := m.openLocked(ctx, h); err != nil {
				h.mu.Unlock()
				return nil, err
			}
		}
		h.subscribers[taskID] = struct{}{}
		h.mu.Unlock()
		logger.StreamLogger.Debug("[Source] Acquired", "locator", locator, "task", taskID)
		return h, nil
	}
}

// Reload reopens the capture of locator even if it looks healthy.
func (m *Multiplexer) Reload(ctx context.Context, locator string, taskID string) (*Handle, error) {
	return m.reload(ctx, locator, taskID, 0, true)
}

// ReloadStale reopens only when the capture is still the generation that failed;
// otherwise another subscriber already recovered it and the handle is returned as is.
func (m *Multiplexer) ReloadStale(ctx context.Context, locator string, taskID string, failedGen uint64) (*Handle, error) {
	return m.reload(ctx, locator, taskID, failedGen, false)
}

func (m *Multiplexer) reload(ctx context.Context, locator, taskID string, failedGen uint64, force bool) (*Handle, error) {
	h := m.lookup(locator)
	if h == nil {
		return nil, bcode.ErrSourceNotFound.Messagef("source %s not found", locator)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.discarded {
		return nil, bcode.ErrSourceNotFound.Messagef("source %s not found", locator)
	}
	// The lock may have been taken after the caller gave up.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.subscribers[taskID] = struct{}{}
	if !force {
		healthy, _ := h.health()
		if h.capture != nil && healthy && h.Generation() != failedGen {
			return h, nil
		}
	}
	logger.StreamLogger.Info("[Source] Reloading", "locator", locator, "task", taskID)
	h.teardownLocked()
	if err := m.openLocked(ctx, h); err != nil {
		return nil, bcode.WrapError(bcode.ErrSourceReload, err)
	}
	return h, nil
}

// Release unsubscribes taskID. The capture is closed once nobody is left; with
// force the empty handle is also dropped from the pool.
func (m *Multiplexer) Release(locator string, taskID string, force bool) error {
	h := m.lookup(locator)
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.discarded {
		return nil
	}
	delete(h.subscribers, taskID)
	m.releaseLocked(h, force)
	return nil
}

// Discard drops locator from the pool when nobody subscribes to it and
// reports whether it did.
func (m *Multiplexer) Discard(locator string) bool {
	h := m.lookup(locator)
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.discarded {
		return false
	}
	return m.releaseLocked(h, true)
}

// releaseLocked closes an unsubscribed capture and, with force, discards the
// handle. It reports whether the handle was discarded.
func (m *Multiplexer) releaseLocked(h *Handle, force bool) bool {
	m.pruneLocked(h)
	if len(h.subscribers) > 0 {
		logger.StreamLogger.Debug("[Source] Still in use", "locator", h.locator, "subscribers", len(h.subscribers))
		return false
	}
	if h.capture != nil {
		h.teardownLocked()
		h.markStopped()
		logger.StreamLogger.Info("[Source] Stopped", "locator", h.locator)
	}
	if !force {
		return false
	}
	h.discarded = true
	m.mu.Lock()
	if m.handles[h.locator] == h {
		delete(m.handles, h.locator)
	}
	m.mu.Unlock()
	logger.StreamLogger.Info("[Source] Handle discarded", "locator", h.locator)
	return true
}

// HealthOf returns the last observed status of locator.
func (m *Multiplexer) HealthOf(locator string) (bool, string, error) {
	h := m.lookup(locator)
	if h == nil {
		return false, "", bcode.ErrSourceNotFound.Messagef("source %s not found", locator)
	}
	healthy, msg := h.health()
	return healthy, msg, nil
}

// Info returns a snapshot of one handle.
func (m *Multiplexer) Info(locator string) (HandleInfo, error) {
	h := m.lookup(locator)
	if h == nil {
		return HandleInfo{}, bcode.ErrSourceNotFound.Messagef("source %s not found", locator)
	}
	return h.info(), nil
}

// List returns every pooled handle ordered by locator.
func (m *Multiplexer) List() []HandleInfo {
	m.mu.Lock()
	hs := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		hs = append(hs, h)
	}
	m.mu.Unlock()

	out := make([]HandleInfo, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Locator < out[j].Locator })
	return out
}

// FirstFrame returns a frame of locator without subscribing to it. A pooled,
// running handle is reused; otherwise a temporary capture is opened and closed.
func (m *Multiplexer) FirstFrame(ctx context.Context, locator string, kind types.SourceKind) (*types.Frame, error) {
	if h := m.lookup(locator); h != nil {
		if healthy, _ := h.health(); healthy {
			if f := h.latestFrame(); f != nil {
				return f, nil
			}
			return h.Next(ctx, 0, m.readTimeout)
		}
	}
	c, err := m.opener.Open(ctx, locator, kind)
	if err != nil {
		return nil, bcode.WrapError(bcode.ErrSourceOpen, err)
	}
	defer func() { _ = c.Close() }()
	readCtx, cancel := context.WithTimeout(ctx, m.readTimeout)
	defer cancel()
	f, err := c.Read(readCtx)
	if err != nil {
		return nil, bcode.WrapError(bcode.ErrSourceRead, err)
	}
	f.Locator = locator
	return f, nil
}

// Close tears down every handle regardless of subscribers.
func (m *Multiplexer) Close() {
	m.mu.Lock()
	hs := m.handles
	m.handles = make(map[string]*Handle)
	m.mu.Unlock()
	for _, h := range hs {
		h.mu.Lock()
		h.discarded = true
		h.teardownLocked()
		h.markStopped()
		h.subscribers = make(map[string]struct{})
		h.mu.Unlock()
	}
}

// openLocked opens the capture of h. Recoverable kinds get bounded retries with
// backoff; devices are tried once. Caller holds h.mu.
func (m *Multiplexer) openLocked(ctx context.Context, h *Handle) error {
	attempts := uint(1)
	if h.kind.Policy().Recoverable {
		attempts = m.retryAttempts
	}
	var c Capture
	err := retry.Do(
		func() error {
			var err error
			c, err = m.opener.Open(ctx, h.locator, h.kind)
			return err
		},
		retry.Attempts(attempts),
		retry.Delay(m.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.StreamLogger.Warn("[Source] Open failed, retrying", "locator", h.locator, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = bcode.ErrSourceOpen.Messagef("open %s canceled: %v", h.locator, err)
		}
		openErr := bcode.WrapError(bcode.ErrSourceOpen, err)
		h.markError(openErr)
		logger.StreamLogger.Error("[Source] Open failed", "locator", h.locator, "kind", h.kind, "error", err)
		return openErr
	}
	h.openLocked(c)
	logger.StreamLogger.Info("[Source] Opened", "locator", h.locator, "kind", h.kind, "fps", c.FPS())
	return nil
}

// pruneLocked drops subscribers that no longer name a registered task.
func (m *Multiplexer) pruneLocked(h *Handle) {
	tc := m.checker()
	if tc == nil {
		return
	}
	for id := range h.subscribers {
		if !tc.TaskExists(id) {
			delete(h.subscribers, id)
			logger.StreamLogger.Debug("[Source] Pruned stale subscriber", "locator", h.locator, "task", id)
		}
	}
}
