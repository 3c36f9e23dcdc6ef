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

package importer

import (
	"sync"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
)

// Stage is a step of the import state machine.
type Stage string

const (
	StageQueued      Stage = "queued"
	StageDownloading Stage = "downloading"
	StageChecksum    Stage = "checksum_verify"
	StageParsing     Stage = "parsing"
	StageConverting  Stage = "converting"
	StageFinished    Stage = "finished"
	StageFailed      Stage = "failed"
)

func (s Stage) Terminal() bool {
	return s == StageFinished || s == StageFailed
}

// stageSpan is the share of the overall progress a stage covers.
type stageSpan struct {
	from, to float64
}

var stageSpans = map[Stage]stageSpan{
	StageQueued:      {0, 0},
	StageDownloading: {0, 0.4},
	StageChecksum:    {0.4, 0.5},
	StageParsing:     {0.5, 0.6},
	StageConverting:  {0.6, 0.99},
	StageFinished:    {1, 1},
}

// at maps a fraction of stage s onto the overall progress.
func (s Stage) at(fraction float64) float64 {
	span := stageSpans[s]
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return span.from + (span.to-span.from)*fraction
}

// Request describes a bundle to import. Exactly one of URL and File is set.
type Request struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	File   string `json:"file,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
	Tag    string `json:"tag,omitempty"`
}

// Status is a point-in-time copy of a job.
type Status struct {
	ID        string    `json:"id"`
	Stage     Stage     `json:"stage"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Framework string    `json:"framework,omitempty"`
	ModelPath string    `json:"model_path,omitempty"`
	WorkDir   string    `json:"work_dir"`
	TargetDir string    `json:"target_dir"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type job struct {
	id     string
	req    Request
	cancel func()
	done   chan struct{}

	// notify serializes observer calls so they see progress in order.
	notify sync.Mutex
	mu     sync.Mutex
	status Status
	err    error
}

func newJob(id string, req Request, workDir, targetDir string) *job {
	now := time.Now()
	return &job{
		id:   id,
		req:  req,
		done: make(chan struct{}),
		status: Status{
			ID:        id,
			Stage:     StageQueued,
			Message:   "queued",
			WorkDir:   workDir,
			TargetDir: targetDir,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (j *job) snapshot() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *job) terminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.Stage.Terminal()
}

// advance moves the job to stage at the given stage fraction. Progress never
// goes backwards, and a terminal job is left alone.
func (j *job) advance(stage Stage, fraction float64, message string, observe Observer) {
	j.notify.Lock()
	defer j.notify.Unlock()

	j.mu.Lock()
	if j.status.Stage.Terminal() {
		j.mu.Unlock()
		return
	}
	if stage != j.status.Stage {
		logger.LogicLogger.Info("[Import] Stage changed", "job", j.status.ID, "from", j.status.Stage, "to", stage)
		j.status.Stage = stage
	}
	if p := stage.at(fraction); p > j.status.Progress {
		j.status.Progress = p
	}
	if message != "" {
		j.status.Message = message
	}
	j.status.UpdatedAt = time.Now()
	snap := j.status
	j.mu.Unlock()

	if observe != nil {
		observe(snap)
	}
}

// finish moves the job into a terminal stage.
func (j *job) finish(err error, modelPath string, observe Observer) {
	j.notify.Lock()
	defer j.notify.Unlock()

	j.mu.Lock()
	if j.status.Stage.Terminal() {
		j.mu.Unlock()
		return
	}
	if err != nil {
		logger.LogicLogger.Warn("[Import] Failed", "job", j.status.ID, "stage", j.status.Stage, "error", err)
		j.status.Stage = StageFailed
		j.status.Error = err.Error()
		j.status.Message = err.Error()
		j.err = err
	} else {
		logger.LogicLogger.Info("[Import] Finished", "job", j.status.ID, "model", modelPath)
		j.status.Stage = StageFinished
		j.status.Progress = 1
		j.status.Message = "finished"
		j.status.ModelPath = modelPath
	}
	j.status.UpdatedAt = time.Now()
	snap := j.status
	j.mu.Unlock()

	if observe != nil {
		observe(snap)
	}
}

func (j *job) setFramework(framework string) {
	j.mu.Lock()
	j.status.Framework = framework
	j.mu.Unlock()
}
