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
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/provider/engine"
)

func TestResolveFrameworkAliases(t *testing.T) {
	cases := map[string]string{
		"trt":      constants.FrameworkTensorRT,
		"TensorRT": constants.FrameworkTensorRT,
		"vino":     constants.FrameworkOpenVINO,
		"vitis":    constants.FrameworkVitis,
		"vitis-ai": constants.FrameworkVitis,
	}
	for in, want := range cases {
		got, err := ResolveFramework(in)
		if err != nil || got != want {
			t.Errorf("ResolveFramework(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ResolveFramework("onnxruntime"); err == nil {
		t.Error("expected unknown framework error")
	}
}

type failingFactory struct{}

func (failingFactory) GetEngine(name string) (engine.Engine, error) {
	return nil, errors.New("not here")
}

func (failingFactory) ListAvailableProviders() []string {
	return []string{constants.FrameworkVitis}
}

func TestCompositeFallsThrough(t *testing.T) {
	base, _ := url.Parse("http://127.0.0.1:1")
	f := NewCompositeProviderFactory(failingFactory{}, NewBuiltinProviderFactory(base, nil, ""))

	e, err := f.GetEngine(constants.FrameworkOpenVINO)
	if err != nil || e.Name() != constants.FrameworkOpenVINO {
		t.Fatalf("GetEngine = %v, %v", e, err)
	}
	again, _ := f.GetEngine(constants.FrameworkOpenVINO)
	if again != e {
		t.Error("builtin engines should be reused")
	}
	if _, err := f.GetEngine(constants.FrameworkVitis); err == nil {
		t.Error("expected an error when no factory serves vitis")
	}
	if got := f.ListAvailableProviders(); len(got) != 3 {
		t.Errorf("ListAvailableProviders = %v", got)
	}
}

func TestEngineManagerStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/health/ready" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	base, _ := url.Parse(srv.URL)

	m := NewEngineManager(NewCompositeProviderFactory(NewBuiltinProviderFactory(base, srv.Client(), ""), failingFactory{}))
	m.StartKeepAlive(time.Hour)
	defer m.StopKeepAlive()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(m.GetEngineStatus()) < 3 {
		time.Sleep(10 * time.Millisecond)
	}
	status := m.GetEngineStatus()
	if status[constants.FrameworkOpenVINO] != EngineStatusRunning || status[constants.FrameworkTensorRT] != EngineStatusRunning {
		t.Errorf("unexpected status %v", status)
	}
	if status[constants.FrameworkVitis] != EngineStatusStopped {
		t.Errorf("vitis should be stopped: %v", status)
	}

	e, err := m.Resolve("trt")
	if err != nil || e.Name() != constants.FrameworkTensorRT {
		t.Errorf("Resolve(trt) = %v, %v", e, err)
	}
}
