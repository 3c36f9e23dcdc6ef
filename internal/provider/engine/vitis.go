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
	"fmt"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/plugin"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// pluginEngine runs inference in an engine plugin process, e.g. the Vitis AI runner.
type pluginEngine struct {
	name    string
	backend plugin.Backend
}

func NewPluginEngine(name string, backend plugin.Backend) Engine {
	return &pluginEngine{name: name, backend: backend}
}

func (e *pluginEngine) Name() string {
	return e.name
}

func (e *pluginEngine) HealthCheck(context.Context) error {
	return e.backend.Health()
}

func (e *pluginEngine) Init(_ context.Context, cfg *Config) (*Handle, error) {
	id, err := e.backend.Load(plugin.LoadRequest{
		TaskID:     cfg.TaskID,
		ModelPath:  cfg.ModelPath,
		Tag:        cfg.Tag,
		Device:     cfg.Device,
		Threshold:  cfg.Threshold,
		InputSize:  cfg.InputSize,
		Preprocess: cfg.Preprocess,
		Anchors:    cfg.Anchors,
	})
	if err != nil {
		return nil, fmt.Errorf("%s plugin failed to load %s: %v", e.name, cfg.ModelPath, err)
	}
	return &Handle{ID: id, Engine: e.name, Config: *cfg}, nil
}

func (e *pluginEngine) Infer(_ context.Context, h *Handle, frame *types.Frame) (*types.InferenceResult, error) {
	if h == nil || h.closed {
		return nil, ErrHandleClosed
	}
	resp, err := e.backend.Infer(plugin.InferRequest{
		HandleID: h.ID,
		Width:    frame.Width,
		Height:   frame.Height,
		Data:     frame.Data,
	})
	if err != nil {
		return nil, err
	}
	for i := range resp.Detections {
		if resp.Detections[i].Label == "" {
			resp.Detections[i].Label = h.Config.Label(resp.Detections[i].ClassID)
		}
	}
	return &types.InferenceResult{Detections: resp.Detections}, nil
}

func (e *pluginEngine) Close(h *Handle) error {
	if h == nil || h.closed {
		return nil
	}
	h.closed = true
	return e.backend.Unload(h.ID)
}
