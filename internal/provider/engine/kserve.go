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
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/client"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// KServe v2 REST protocol shared by OpenVINO Model Server and Triton.
type kserveEngine struct {
	name string
	api  *client.Client
	// repositoryLoad asks the server to load models it has not loaded yet.
	repositoryLoad bool
	probe          func(ctx context.Context) error
	seq            atomic.Uint64
}

type tensorMeta struct {
	Name     string `json:"name"`
	Datatype string `json:"datatype"`
	Shape    []int  `json:"shape"`
}

type modelMetadata struct {
	Name    string       `json:"name"`
	Inputs  []tensorMeta `json:"inputs"`
	Outputs []tensorMeta `json:"outputs"`
}

type inferTensor struct {
	Name     string    `json:"name"`
	Shape    []int     `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float32 `json:"data"`
}

type inferRequest struct {
	Inputs []inferTensor `json:"inputs"`
}

type outputTensor struct {
	Name     string    `json:"name"`
	Shape    []int     `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float64 `json:"data"`
}

type inferResponse struct {
	ModelName string         `json:"model_name"`
	Outputs   []outputTensor `json:"outputs"`
}

type kserveState struct {
	input tensorMeta
}

func newKServe(name string, base *url.URL, hc *http.Client, repositoryLoad bool) *kserveEngine {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &kserveEngine{
		name:           name,
		api:            client.NewClient(base, hc),
		repositoryLoad: repositoryLoad,
	}
}

func (e *kserveEngine) Name() string {
	return e.name
}

// SetProbe adds a liveness probe run before the REST readiness check.
func (e *kserveEngine) SetProbe(probe func(ctx context.Context) error) {
	e.probe = probe
}

func (e *kserveEngine) HealthCheck(ctx context.Context) error {
	if e.probe != nil {
		if err := e.probe(ctx); err != nil {
			return err
		}
	}
	return e.api.Do(ctx, http.MethodGet, "v2/health/ready", nil, nil)
}

func (e *kserveEngine) Init(ctx context.Context, cfg *Config) (*Handle, error) {
	switch cfg.Tag {
	case constants.TagClassification, constants.TagObject, constants.TagDarknet:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTag, cfg.Tag)
	}

	readyPath := "v2/models/" + url.PathEscape(cfg.Model) + "/ready"
	if err := e.api.Do(ctx, http.MethodGet, readyPath, nil, nil); err != nil {
		if !e.repositoryLoad {
			return nil, fmt.Errorf("model %s is not ready on %s: %v", cfg.Model, e.name, err)
		}
		logger.EngineLogger.Info("[Engine] Loading model into repository", "engine", e.name, "model", cfg.Model)
		loadPath := "v2/repository/models/" + url.PathEscape(cfg.Model) + "/load"
		if err := e.api.Do(ctx, http.MethodPost, loadPath, map[string]any{}, nil); err != nil {
			return nil, fmt.Errorf("failed to load model %s: %v", cfg.Model, err)
		}
		if err := e.api.Do(ctx, http.MethodGet, readyPath, nil, nil); err != nil {
			return nil, fmt.Errorf("model %s is not ready after load: %v", cfg.Model, err)
		}
	}

	var meta modelMetadata
	if err := e.api.Do(ctx, http.MethodGet, "v2/models/"+url.PathEscape(cfg.Model), nil, &meta); err != nil {
		return nil, fmt.Errorf("failed to read metadata of %s: %v", cfg.Model, err)
	}
	if len(meta.Inputs) == 0 {
		return nil, fmt.Errorf("model %s declares no inputs", cfg.Model)
	}
	input := meta.Inputs[0]
	resolved := *cfg
	if resolved.InputSize == ([3]int{}) {
		resolved.InputSize = inputSizeFromShape(input.Shape)
	}
	if resolved.InputSize[1] <= 0 || resolved.InputSize[2] <= 0 {
		return nil, fmt.Errorf("model %s has no usable input size", cfg.Model)
	}
	if input.Datatype == "" {
		input.Datatype = "FP32"
	}

	return &Handle{
		ID:     fmt.Sprintf("%s-%s-%d", e.name, cfg.TaskID, e.seq.Add(1)),
		Engine: e.name,
		Config: resolved,
		state:  &kserveState{input: input},
	}, nil
}

// inputSizeFromShape reads c, h, w from an NCHW or NHWC shape.
func inputSizeFromShape(shape []int) [3]int {
	if len(shape) == 4 {
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return [3]int{}
	}
	if shape[0] <= 4 {
		return [3]int{shape[0], shape[1], shape[2]}
	}
	return [3]int{shape[2], shape[0], shape[1]}
}

func (e *kserveEngine) Infer(ctx context.Context, h *Handle, frame *types.Frame) (*types.InferenceResult, error) {
	if h == nil || h.closed {
		return nil, ErrHandleClosed
	}
	st, ok := h.state.(*kserveState)
	if !ok {
		return nil, fmt.Errorf("handle %s does not belong to %s", h.ID, e.name)
	}
	cfg := &h.Config
	c, height, width := cfg.InputSize[0], cfg.InputSize[1], cfg.InputSize[2]
	req := inferRequest{Inputs: []inferTensor{{
		Name:     st.input.Name,
		Shape:    []int{1, c, height, width},
		Datatype: st.input.Datatype,
		Data:     Preprocess(frame, c, height, width, cfg.Preprocess),
	}}}

	var resp inferResponse
	if err := e.api.Do(ctx, http.MethodPost, "v2/models/"+url.PathEscape(cfg.Model)+"/infer", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Outputs) == 0 {
		return nil, fmt.Errorf("model %s returned no outputs", cfg.Model)
	}
	out := resp.Outputs[0]

	result := &types.InferenceResult{}
	switch cfg.Tag {
	case constants.TagClassification:
		result.Detections = DecodeClassification(out.Data, cfg, frame)
	default:
		rowLen := 0
		if len(out.Shape) > 0 {
			rowLen = out.Shape[len(out.Shape)-1]
		}
		result.Detections = DecodeYOLO(out.Data, rowLen, cfg, frame)
	}
	return result, nil
}

// Close drops the handle. Models stay loaded on the server since other tasks may share them.
func (e *kserveEngine) Close(h *Handle) error {
	if h == nil || h.closed {
		return nil
	}
	h.closed = true
	h.state = nil
	return nil
}
