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

package plugin

import (
	"errors"
	"testing"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

type MockBackend struct {
	loaded   []LoadRequest
	unloaded []string
}

func (m *MockBackend) Health() error { return nil }

func (m *MockBackend) Load(req LoadRequest) (string, error) {
	if req.ModelPath == "" {
		return "", errors.New("model path is empty")
	}
	m.loaded = append(m.loaded, req)
	return "h-" + req.TaskID, nil
}

func (m *MockBackend) Infer(req InferRequest) (*InferResponse, error) {
	return &InferResponse{Detections: []types.Detection{{Label: "person", Score: 0.9, XMax: req.Width, YMax: req.Height}}}, nil
}

func (m *MockBackend) Unload(handleID string) error {
	m.unloaded = append(m.unloaded, handleID)
	return nil
}

func dispense(t *testing.T, impl Backend) Backend {
	client, _ := goplugin.TestPluginRPCConn(t, map[string]goplugin.Plugin{
		PluginTypeEngine: &EnginePlugin{Impl: impl},
	}, nil)
	t.Cleanup(func() { _ = client.Close() })
	raw, err := client.Dispense(PluginTypeEngine)
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	backend, ok := raw.(Backend)
	if !ok {
		t.Fatalf("unexpected type %T", raw)
	}
	return backend
}

func TestRPCRoundTrip(t *testing.T) {
	impl := &MockBackend{}
	backend := dispense(t, impl)

	if err := backend.Health(); err != nil {
		t.Fatalf("health: %v", err)
	}
	id, err := backend.Load(LoadRequest{TaskID: "t1", ModelPath: "/m/a.xmodel", InputSize: [3]int{3, 416, 416}})
	if err != nil || id != "h-t1" {
		t.Fatalf("load = %q, %v", id, err)
	}
	if len(impl.loaded) != 1 || impl.loaded[0].InputSize[1] != 416 {
		t.Errorf("load request not delivered: %+v", impl.loaded)
	}

	resp, err := backend.Infer(InferRequest{HandleID: id, Width: 4, Height: 2, Data: make([]byte, 24)})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if len(resp.Detections) != 1 || resp.Detections[0].XMax != 4 {
		t.Errorf("unexpected detections %+v", resp.Detections)
	}

	if err := backend.Unload(id); err != nil || len(impl.unloaded) != 1 {
		t.Errorf("unload: %v %v", err, impl.unloaded)
	}
}

func TestRPCErrorsPropagate(t *testing.T) {
	backend := dispense(t, &MockBackend{})
	if _, err := backend.Load(LoadRequest{TaskID: "t1"}); err == nil {
		t.Error("expected load error")
	}
}
