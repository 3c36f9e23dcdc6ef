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
	"sync"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/source"
)

// IdleSourcePool lists pooled sources and discards them.
type IdleSourcePool interface {
	List() []source.HandleInfo
	Discard(locator string) bool
}

// Cleaner discards pooled sources that have had no subscriber for longer than
// the idle timeout. A released source stays pooled in the stopped state so a
// quick restart of its task reuses the handle.
type Cleaner struct {
	pool        IdleSourcePool
	interval    time.Duration
	idleTimeout time.Duration
	idleSince   map[string]time.Time
	stopChan    chan struct{}
	started     bool
	mutex       sync.Mutex
}

func NewCleaner(pool IdleSourcePool, idleTimeout time.Duration) *Cleaner {
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}
	return &Cleaner{
		pool:        pool,
		interval:    time.Minute,
		idleTimeout: idleTimeout,
		idleSince:   make(map[string]time.Time),
	}
}

// Start runs the sweep every interval until Stop.
func (c *Cleaner) Start(interval time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.started {
		logger.StreamLogger.Warn("[Cleaner] Already started")
		return
	}
	if interval > 0 {
		c.interval = interval
	}
	c.stopChan = make(chan struct{})
	c.started = true
	go c.cleanupLoop(time.NewTicker(c.interval), c.stopChan)

	logger.StreamLogger.Info("[Cleaner] Started", "cleanup_interval", c.interval, "idle_timeout", c.idleTimeout)
}

func (c *Cleaner) Stop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.started {
		return
	}
	close(c.stopChan)
	c.started = false
	logger.StreamLogger.Info("[Cleaner] Stopped")
}

func (c *Cleaner) IsStarted() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.started
}

func (c *Cleaner) cleanupLoop(ticker *time.Ticker, stop chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.ForceCleanup()
		case <-stop:
			return
		}
	}
}

// ForceCleanup runs one sweep now and returns the discarded locators.
func (c *Cleaner) ForceCleanup() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	seen := make(map[string]bool)
	var discarded []string
	for _, info := range c.pool.List() {
		seen[info.Locator] = true
		if info.Opened || len(info.Subscribers) > 0 {
			delete(c.idleSince, info.Locator)
			continue
		}
		since, ok := c.idleSince[info.Locator]
		if !ok {
			c.idleSince[info.Locator] = now
			continue
		}
		if now.Sub(since) < c.idleTimeout {
			continue
		}
		// A task that acquired the source since List keeps it.
		delete(c.idleSince, info.Locator)
		if !c.pool.Discard(info.Locator) {
			logger.StreamLogger.Debug("[Cleaner] Source in use again", "locator", info.Locator)
			continue
		}
		discarded = append(discarded, info.Locator)
		logger.StreamLogger.Info("[Cleaner] Discarded idle source", "locator", info.Locator, "idle_time", now.Sub(since))
	}
	for locator := range c.idleSince {
		if !seen[locator] {
			delete(c.idleSince, locator)
		}
	}
	return discarded
}

func (c *Cleaner) GetStats() map[string]interface{} {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return map[string]interface{}{
		"cleanup_interval": c.interval.String(),
		"idle_timeout":     c.idleTimeout.String(),
		"started":          c.started,
		"idle_sources":     len(c.idleSince),
	}
}
