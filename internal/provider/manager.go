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

package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/provider/engine"
)

const (
	EngineStatusRunning = "running"
	EngineStatusStopped = "stopped"

	defaultKeepAliveInterval = 30 * time.Second
	healthCheckTimeout       = 3 * time.Second
)

// EngineManager resolves engines for tasks and keeps a periodically refreshed
// health status per framework.
type EngineManager struct {
	factory ProviderFactory

	mu     sync.RWMutex
	status map[string]string

	keepAliveCancel context.CancelFunc
	keepAliveDone   chan struct{}
}

func NewEngineManager(factory ProviderFactory) *EngineManager {
	return &EngineManager{
		factory: factory,
		status:  make(map[string]string),
	}
}

// Resolve returns the engine for a framework name or alias.
func (m *EngineManager) Resolve(framework string) (engine.Engine, error) {
	canonical, err := ResolveFramework(framework)
	if err != nil {
		return nil, err
	}
	return m.factory.GetEngine(canonical)
}

func (m *EngineManager) Frameworks() []string {
	return m.factory.ListAvailableProviders()
}

// GetEngineStatus returns the last observed status of every available framework.
func (m *EngineManager) GetEngineStatus() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.status))
	for k, v := range m.status {
		out[k] = v
	}
	return out
}

// CheckAll health checks every framework the factory can build.
func (m *EngineManager) CheckAll(ctx context.Context) {
	for _, name := range m.factory.ListAvailableProviders() {
		status := EngineStatusStopped
		e, err := m.factory.GetEngine(name)
		if err == nil {
			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			err = e.HealthCheck(checkCtx)
			cancel()
		}
		if err == nil {
			status = EngineStatusRunning
		}

		m.mu.Lock()
		prev, seen := m.status[name]
		m.status[name] = status
		m.mu.Unlock()
		if !seen || prev != status {
			logger.EngineLogger.Info(fmt.Sprintf("[Engine] %s is %s", name, status), "error", err)
		}
	}
}

// StartKeepAlive refreshes engine status every interval until StopKeepAlive.
func (m *EngineManager) StartKeepAlive(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keepAliveCancel != nil {
		return
	}
	if interval <= 0 {
		interval = defaultKeepAliveInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.keepAliveCancel, m.keepAliveDone = cancel, done

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				logger.EngineLogger.Error(fmt.Sprintf("Keep-alive monitor panicked: %v", r))
			}
		}()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		m.CheckAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckAll(ctx)
			}
		}
	}()
}

func (m *EngineManager) StopKeepAlive() {
	m.mu.Lock()
	cancel, done := m.keepAliveCancel, m.keepAliveDone
	m.keepAliveCancel, m.keepAliveDone = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
