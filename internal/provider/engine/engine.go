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
	"errors"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

var (
	ErrUnsupportedTag = errors.New("unsupported model tag")
	ErrHandleClosed   = errors.New("engine handle is closed")
)

// Engine is one inference backend. Handles returned by Init are owned by a
// single task and are only used from that task's worker.
type Engine interface {
	Name() string
	Init(ctx context.Context, cfg *Config) (*Handle, error)
	Infer(ctx context.Context, h *Handle, frame *types.Frame) (*types.InferenceResult, error)
	Close(h *Handle) error
	HealthCheck(ctx context.Context) error
}

// Config is the resolved model configuration a task initializes an engine with.
type Config struct {
	TaskID     string
	Model      string // model name on the inference server
	ModelPath  string
	Labels     []string
	Tag        string
	Device     string
	Threshold  float64
	InputSize  [3]int // c, h, w
	Preprocess string
	Anchors    []float64
}

// Label returns the name of class id, or its number when the label file is short.
func (c *Config) Label(id int) string {
	if id >= 0 && id < len(c.Labels) {
		return c.Labels[id]
	}
	return itoa(id)
}

type Handle struct {
	ID     string
	Engine string
	Config Config

	closed bool
	state  any
}
