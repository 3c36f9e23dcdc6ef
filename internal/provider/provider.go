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
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/client"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/plugin/registry"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/provider/engine"
)

var frameworkAliases = map[string]string{
	"tensorrt": constants.FrameworkTensorRT,
	"trt":      constants.FrameworkTensorRT,
	"openvino": constants.FrameworkOpenVINO,
	"vino":     constants.FrameworkOpenVINO,
	"vitis-ai": constants.FrameworkVitis,
	"vitis":    constants.FrameworkVitis,
}

// ResolveFramework maps a framework name or alias to its canonical name.
func ResolveFramework(name string) (string, error) {
	if canonical, ok := frameworkAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown framework: %s", name)
}

// ProviderFactory hands out engines by canonical framework name.
type ProviderFactory interface {
	GetEngine(framework string) (engine.Engine, error)
	ListAvailableProviders() []string
}

// BuiltinProviderFactory serves the KServe backed frameworks from one inference server.
type BuiltinProviderFactory struct {
	mu        sync.Mutex
	base      *url.URL
	http      *http.Client
	grpcProbe string
	engines   map[string]engine.Engine
	builders  map[string]func(*url.URL, *http.Client) engine.Engine
}

// NewBuiltinProviderFactory builds engines against base. grpcTarget, when set,
// is probed with the gRPC health protocol before every REST health check.
func NewBuiltinProviderFactory(base *url.URL, hc *http.Client, grpcTarget string) *BuiltinProviderFactory {
	return &BuiltinProviderFactory{
		base:      base,
		http:      hc,
		grpcProbe: grpcTarget,
		engines:   make(map[string]engine.Engine),
		builders: map[string]func(*url.URL, *http.Client) engine.Engine{
			constants.FrameworkOpenVINO: engine.NewOpenvinoEngine,
			constants.FrameworkTensorRT: engine.NewTensorRTEngine,
		},
	}
}

func (f *BuiltinProviderFactory) GetEngine(framework string) (engine.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.engines[framework]; ok {
		return e, nil
	}
	build, ok := f.builders[framework]
	if !ok {
		return nil, fmt.Errorf("engine not found or not enabled: %s", framework)
	}
	e := build(f.base, f.http)
	if f.grpcProbe != "" {
		if p, ok := e.(interface {
			SetProbe(func(ctx context.Context) error)
		}); ok {
			p.SetProbe(f.probeGRPC)
		}
	}
	f.engines[framework] = e
	return e, nil
}

func (f *BuiltinProviderFactory) probeGRPC(ctx context.Context) error {
	c, err := client.NewGRPCClient(f.grpcProbe)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.ServerLive(ctx)
}

func (f *BuiltinProviderFactory) ListAvailableProviders() []string {
	names := make([]string, 0, len(f.builders))
	for name := range f.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PluginProviderFactory serves frameworks implemented by engine plugins.
type PluginProviderFactory struct {
	registry *registry.PluginRegistry
}

func NewPluginProviderFactory(r *registry.PluginRegistry) *PluginProviderFactory {
	return &PluginProviderFactory{registry: r}
}

func (f *PluginProviderFactory) GetEngine(framework string) (engine.Engine, error) {
	backend, err := f.registry.Backend(framework)
	if err != nil {
		return nil, err
	}
	return engine.NewPluginEngine(framework, backend), nil
}

func (f *PluginProviderFactory) ListAvailableProviders() []string {
	return f.registry.Frameworks()
}

// CompositeProviderFactory tries its factories in priority order.
type CompositeProviderFactory struct {
	factories []ProviderFactory
}

func NewCompositeProviderFactory(factories ...ProviderFactory) *CompositeProviderFactory {
	return &CompositeProviderFactory{factories: factories}
}

func (f *CompositeProviderFactory) GetEngine(framework string) (engine.Engine, error) {
	var lastErr error
	for _, factory := range f.factories {
		e, err := factory.GetEngine(framework)
		if err == nil {
			return e, nil
		}
		lastErr = err
		logger.EngineLogger.Debug("Factory can not serve framework", "framework", framework, "error", err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("engine not found or not enabled: %s", framework)
	}
	return nil, lastErr
}

func (f *CompositeProviderFactory) ListAvailableProviders() []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, factory := range f.factories {
		for _, name := range factory.ListAvailableProviders() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
