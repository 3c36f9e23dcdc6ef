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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, root, dir, body string) {
	t.Helper()
	p := filepath.Join(root, dir)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(p, ManifestFile), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverPlugins(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "vitis", `
name: vitis-engine
version: 1.0.0
framework: vitis-ai
platforms:
  linux_arm64:
    executable: bin/vitis-engine
`)
	writeManifest(t, root, "dup", `
name: other
framework: vitis-ai
`)
	writeManifest(t, root, "broken", "name: [")

	r := NewPluginRegistry(root)
	if err := r.DiscoverPlugins(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	frameworks := r.Frameworks()
	if len(frameworks) != 1 || frameworks[0] != "vitis-ai" {
		t.Fatalf("frameworks = %v", frameworks)
	}
	m := r.Manifest("vitis-ai")
	if m.Name != "vitis-engine" && m.Name != "other" {
		t.Errorf("unexpected manifest %+v", m)
	}
}

func TestBackendWithoutExecutable(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "vitis", `
name: vitis-engine
framework: vitis-ai
platforms:
  linux_amd64:
    executable: missing
  linux_arm64:
    executable: missing
  darwin_arm64:
    executable: missing
  windows_amd64:
    executable: missing
`)
	r := NewPluginRegistry(root)
	if err := r.DiscoverPlugins(); err != nil {
		t.Fatal(err)
	}
	_, err := r.Backend("vitis-ai")
	if err == nil || !(strings.Contains(err.Error(), "executable not found") || strings.Contains(err.Error(), "no configuration")) {
		t.Errorf("unexpected error %v", err)
	}
	if _, err := r.Backend("tensorrt"); err == nil {
		t.Error("expected error for unknown framework")
	}
}

func TestMissingPluginDir(t *testing.T) {
	r := NewPluginRegistry(filepath.Join(t.TempDir(), "none"))
	if err := r.DiscoverPlugins(); err != nil {
		t.Errorf("missing directory should be skipped: %v", err)
	}
	if len(r.Frameworks()) != 0 {
		t.Error("expected no plugins")
	}
}
