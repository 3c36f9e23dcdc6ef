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

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
)

type mockServer struct {
	loaded   atomic.Bool
	loads    atomic.Int32
	lastReq  inferRequest
	response inferResponse
}

func (m *mockServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v2/models/yolo/ready", func(w http.ResponseWriter, r *http.Request) {
		if !m.loaded.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v2/repository/models/yolo/load", func(w http.ResponseWriter, r *http.Request) {
		m.loads.Add(1)
		m.loaded.Store(true)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v2/models/yolo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(modelMetadata{
			Name:   "yolo",
			Inputs: []tensorMeta{{Name: "images", Datatype: "FP32", Shape: []int{1, 3, 4, 4}}},
		})
	})
	mux.HandleFunc("/v2/models/yolo/infer", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&m.lastReq); err != nil {
			t.Errorf("decode infer request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(m.response)
	})
	return mux
}

func TestTensorRTLoadsAndInfers(t *testing.T) {
	m := &mockServer{response: inferResponse{Outputs: []outputTensor{{
		Name:  "output",
		Shape: []int{1, 1, 6},
		Data:  []float64{2, 2, 2, 2, 0.9, 0.95},
	}}}}
	srv := httptest.NewServer(m.handler(t))
	defer srv.Close()
	base, _ := url.Parse(srv.URL)

	e := NewTensorRTEngine(base, srv.Client())
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	h, err := e.Init(context.Background(), &Config{
		TaskID: "t1", Model: "yolo", Tag: constants.TagObject, Threshold: 0.5, Labels: []string{"person"},
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if m.loads.Load() != 1 {
		t.Errorf("expected one repository load, got %d", m.loads.Load())
	}
	if h.Config.InputSize != [3]int{3, 4, 4} {
		t.Errorf("input size from metadata = %v", h.Config.InputSize)
	}

	res, err := e.Infer(context.Background(), h, solidFrame(8, 8, 10, 20, 30))
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if len(m.lastReq.Inputs) != 1 || m.lastReq.Inputs[0].Name != "images" || len(m.lastReq.Inputs[0].Data) != 48 {
		t.Errorf("unexpected request %+v", m.lastReq.Inputs)
	}
	if len(res.Detections) != 1 || res.Detections[0].Label != "person" {
		t.Fatalf("unexpected detections %+v", res.Detections)
	}
	if d := res.Detections[0]; d.XMin != 2 || d.XMax != 6 {
		t.Errorf("box not scaled to the frame: %+v", d)
	}

	if err := e.Close(h); err != nil {
		t.Errorf("close: %v", err)
	}
	if _, err := e.Infer(context.Background(), h, solidFrame(8, 8, 0, 0, 0)); !errors.Is(err, ErrHandleClosed) {
		t.Errorf("infer after close = %v", err)
	}
}

func TestOpenvinoDoesNotLoad(t *testing.T) {
	m := &mockServer{}
	srv := httptest.NewServer(m.handler(t))
	defer srv.Close()
	base, _ := url.Parse(srv.URL)

	e := NewOpenvinoEngine(base, srv.Client())
	if _, err := e.Init(context.Background(), &Config{Model: "yolo", Tag: constants.TagObject}); err == nil {
		t.Fatal("expected init to fail on a model that is not ready")
	}
	if m.loads.Load() != 0 {
		t.Error("openvino must not use the repository API")
	}
}

func TestInitRejectsSegmentation(t *testing.T) {
	base, _ := url.Parse("http://127.0.0.1:1")
	e := NewOpenvinoEngine(base, nil)
	if _, err := e.Init(context.Background(), &Config{Model: "x", Tag: constants.TagSegmentation}); !errors.Is(err, ErrUnsupportedTag) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestInputSizeFromShape(t *testing.T) {
	if got := inputSizeFromShape([]int{-1, 3, 224, 224}); got != [3]int{3, 224, 224} {
		t.Errorf("NCHW = %v", got)
	}
	if got := inputSizeFromShape([]int{1, 416, 416, 3}); got != [3]int{3, 416, 416} {
		t.Errorf("NHWC = %v", got)
	}
}
