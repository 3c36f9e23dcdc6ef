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

package registry

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
	"gopkg.in/yaml.v3"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/plugin"
	"github.com/MaxChangInnodisk/ivit-i-web-api/version"
)

const (
	ManifestFile   = "plugin.yaml"
	connectTimeout = 10 * time.Second
)

// PluginManifest is the content of a plugin.yaml.
type PluginManifest struct {
	Name        string                    `json:"name" yaml:"name"`
	Version     string                    `json:"version" yaml:"version"`
	Framework   string                    `json:"framework" yaml:"framework"`
	Description string                    `json:"description,omitempty" yaml:"description,omitempty"`
	Platforms   map[string]PlatformConfig `json:"platforms" yaml:"platforms"`

	PluginDir string `json:"-" yaml:"-"`
}

type PlatformConfig struct {
	Executable string   `json:"executable" yaml:"executable"`
	Args       []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// LoadManifest reads plugin.yaml from dir.
func LoadManifest(dir string) (*PluginManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest PluginManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if manifest.Name == "" {
		return nil, fmt.Errorf("manifest in %s has no name", dir)
	}
	if manifest.Framework == "" {
		manifest.Framework = manifest.Name
	}
	manifest.PluginDir = dir
	return &manifest, nil
}

// GetPlatformConfig returns the configuration for goos_goarch.
func (m *PluginManifest) GetPlatformConfig(goos, goarch string) (*PlatformConfig, error) {
	key := fmt.Sprintf("%s_%s", goos, goarch)
	cfg, ok := m.Platforms[key]
	if !ok {
		return nil, fmt.Errorf("no configuration for platform %s", key)
	}
	return &cfg, nil
}

// PluginRegistry discovers engine plugins and starts them on first use.
type PluginRegistry struct {
	mu        sync.RWMutex
	pluginDir string
	manifests map[string]*PluginManifest
	plugins   map[string]*pluginHandle
}

type pluginHandle struct {
	manifest *PluginManifest

	loadOnce sync.Once
	loadErr  error
	backend  plugin.Backend
	client   *goplugin.Client
}

func NewPluginRegistry(pluginDir string) *PluginRegistry {
	return &PluginRegistry{
		pluginDir: pluginDir,
		manifests: make(map[string]*PluginManifest),
		plugins:   make(map[string]*pluginHandle),
	}
}

// DiscoverPlugins loads plugin.yaml from each subdirectory of the plugin directory.
func (r *PluginRegistry) DiscoverPlugins() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.pluginDir); os.IsNotExist(err) {
		logger.EngineLogger.Info("Plugin directory does not exist, skipping plugin discovery", "dir", r.pluginDir)
		return nil
	}
	entries, err := os.ReadDir(r.pluginDir)
	if err != nil {
		return fmt.Errorf("failed to read plugin directory: %w", err)
	}

	discovered := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.pluginDir, entry.Name())
		manifest, err := LoadManifest(dir)
		if err != nil {
			logger.EngineLogger.Warn("Failed to discover plugin", "path", dir, "error", err)
			continue
		}
		if _, exists := r.manifests[manifest.Framework]; exists {
			logger.EngineLogger.Warn("Plugin framework conflict", "framework", manifest.Framework, "path", dir)
			continue
		}
		r.manifests[manifest.Framework] = manifest
		r.plugins[manifest.Framework] = &pluginHandle{manifest: manifest}
		discovered++
		logger.EngineLogger.Info("Plugin discovered", "name", manifest.Name, "framework", manifest.Framework, "version", manifest.Version)
	}
	logger.EngineLogger.Info("Plugin discovery completed", "directory", r.pluginDir, "discovered", discovered)
	return nil
}

// Backend returns the plugin serving framework, starting it on first use.
func (r *PluginRegistry) Backend(framework string) (plugin.Backend, error) {
	r.mu.RLock()
	handle, exists := r.plugins[framework]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("plugin not found: %s", framework)
	}

	handle.loadOnce.Do(func() {
		r.load(handle)
	})
	if handle.loadErr != nil {
		return nil, fmt.Errorf("failed to load plugin %s: %w", framework, handle.loadErr)
	}
	return handle.backend, nil
}

func (r *PluginRegistry) load(handle *pluginHandle) {
	manifest := handle.manifest
	cfg, err := manifest.GetPlatformConfig(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		handle.loadErr = err
		return
	}
	executable := filepath.Join(manifest.PluginDir, cfg.Executable)
	if _, err := os.Stat(executable); err != nil {
		handle.loadErr = fmt.Errorf("executable not found: %s", executable)
		return
	}

	cmd := exec.Command(executable, cfg.Args...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("IVIT_VERSION=%s", version.IVITVersion))

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  plugin.Handshake,
		Plugins:          plugin.PluginMap,
		Cmd:              cmd,
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
		StartTimeout:     connectTimeout,
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:        "plugin." + manifest.Name,
			Level:       hclog.Info,
			Output:      &logWriter{name: manifest.Name},
			DisableTime: true,
		}),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		handle.loadErr = fmt.Errorf("failed to get RPC client: %w", err)
		return
	}
	raw, err := rpcClient.Dispense(plugin.PluginTypeEngine)
	if err != nil {
		client.Kill()
		handle.loadErr = fmt.Errorf("failed to dispense plugin: %w", err)
		return
	}
	backend, ok := raw.(plugin.Backend)
	if !ok {
		client.Kill()
		handle.loadErr = fmt.Errorf("plugin %s does not implement the engine protocol", manifest.Name)
		return
	}
	handle.client = client
	handle.backend = backend
	logger.EngineLogger.Info("Plugin loaded successfully", "name", manifest.Name, "version", manifest.Version)
}

// Frameworks lists the frameworks served by discovered plugins.
func (r *PluginRegistry) Frameworks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.manifests))
	for name := range r.manifests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *PluginRegistry) Manifest(framework string) *PluginManifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manifests[framework]
}

// Shutdown kills every started plugin process.
func (r *PluginRegistry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, handle := range r.plugins {
		if handle.client != nil {
			logger.EngineLogger.Info("Shutting down plugin", "name", name)
			handle.client.Kill()
		}
	}
}

// logWriter forwards hclog lines from go-plugin into the engine log.
type logWriter struct {
	name string
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		if line != "" {
			logger.EngineLogger.Info("[Plugin] "+line, "plugin", w.name)
		}
	}
	return len(p), nil
}
