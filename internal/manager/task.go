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

package manager

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/provider/engine"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// TaskConfig is what an operator provides to create or edit a task.
type TaskConfig struct {
	Name        string                   `json:"name"`
	Source      string                   `json:"source"`
	ModelName   string                   `json:"model_name"`
	Device      string                   `json:"device"`
	Threshold   float64                  `json:"threshold"`
	Application *types.ApplicationConfig `json:"application,omitempty"`
	Description string                   `json:"description"`
}

// TaskInfo is a point in time copy of a task.
type TaskInfo struct {
	ID          string                  `json:"uid"`
	Name        string                  `json:"name"`
	Source      string                  `json:"source"`
	SourceKind  types.SourceKind        `json:"source_type"`
	ModelName   string                  `json:"model"`
	Framework   string                  `json:"framework"`
	Device      string                  `json:"device"`
	Threshold   float64                 `json:"threshold"`
	Application types.ApplicationConfig `json:"application"`
	Description string                  `json:"description"`
	State       types.TaskState         `json:"status"`
	Error       string                  `json:"error,omitempty"`
	Frames      uint64                  `json:"frame_index"`
	StartTime   *time.Time              `json:"start_time,omitempty"`
	LiveTime    float64                 `json:"live_time"`
}

// FailedTask is a stored task whose descriptor did not validate.
type FailedTask struct {
	ID    string `json:"uid"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

type TaskList struct {
	Ready  []TaskInfo   `json:"ready"`
	Failed []FailedTask `json:"failed"`
}

// taskEntry is the in-memory state of one task. opMu serializes the lifecycle
// operations of the task; every other field is guarded by Manager.mu.
type taskEntry struct {
	opMu sync.Mutex

	record *types.TaskRecord
	model  types.ModelRecord
	kind   types.SourceKind
	app    types.ApplicationConfig
	labels []string
	engine engine.Engine

	state   types.TaskState
	err     error
	gen     uint64
	frames  uint64
	started time.Time
	status  *types.StatusSnapshot
	worker  *worker
	removed bool
}

func (e *taskEntry) info() TaskInfo {
	info := TaskInfo{
		ID:          e.record.ID,
		Name:        e.record.Name,
		Source:      e.record.Source,
		SourceKind:  e.kind,
		ModelName:   e.record.ModelName,
		Framework:   e.model.Framework,
		Device:      e.record.Device,
		Threshold:   e.record.Threshold,
		Application: e.app,
		Description: e.record.Description,
		State:       e.state,
		Frames:      e.frames,
	}
	if e.err != nil {
		info.Error = e.err.Error()
	}
	if e.state == types.TaskRunning && !e.started.IsZero() {
		started := e.started
		info.StartTime = &started
		info.LiveTime = time.Since(started).Seconds()
	}
	return info
}

func (e *taskEntry) engineConfig() *engine.Config {
	return &engine.Config{
		TaskID:     e.record.ID,
		Model:      e.model.Name,
		ModelPath:  e.model.ModelPath,
		Labels:     e.labels,
		Tag:        e.model.Tag,
		Device:     e.record.Device,
		Threshold:  e.record.Threshold,
		InputSize:  parseInputSize(e.model.InputSize),
		Preprocess: e.model.Preprocess,
		Anchors:    parseAnchors(e.model.Anchors),
	}
}

// recordFromConfig builds the persisted form of cfg.
func recordFromConfig(id string, cfg *TaskConfig, kind types.SourceKind, app *types.ApplicationConfig) *types.TaskRecord {
	rec := &types.TaskRecord{
		ID:          id,
		Name:        cfg.Name,
		Source:      cfg.Source,
		SourceKind:  string(kind),
		ModelName:   cfg.ModelName,
		Device:      cfg.Device,
		Threshold:   cfg.Threshold,
		AppName:     app.Name,
		AppDepends:  types.StringList(app.DependOn),
		AppLogic:    app.Logic,
		Description: cfg.Description,
	}
	if len(app.AreaPoints) > 0 {
		if data, err := json.Marshal(app.AreaPoints); err == nil {
			rec.AppArea = string(data)
		}
	}
	return rec
}

// configFromRecord is the inverse of recordFromConfig. A broken application
// column is reported as is so the task lands in the failed list.
func configFromRecord(rec *types.TaskRecord) (*TaskConfig, error) {
	app, err := rec.Application()
	if err != nil {
		return nil, err
	}
	return &TaskConfig{
		Name:        rec.Name,
		Source:      rec.Source,
		ModelName:   rec.ModelName,
		Device:      rec.Device,
		Threshold:   rec.Threshold,
		Application: app,
		Description: rec.Description,
	}, nil
}

// parseInputSize reads "c,h,w". Missing parts stay zero and the engine falls
// back to the model metadata.
func parseInputSize(s string) [3]int {
	var out [3]int
	for i, part := range strings.Split(s, ",") {
		if i >= 3 {
			break
		}
		if v, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out[i] = v
		}
	}
	return out
}

func parseAnchors(s string) []float64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []float64
	for _, part := range strings.Split(s, ",") {
		if v, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}
