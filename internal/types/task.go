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

package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const DefaultApplication = "default"

// TaskState is the run state of a task.
type TaskState int

const (
	TaskStopped TaskState = iota
	TaskRunning
	TaskError
)

func (s TaskState) String() string {
	switch s {
	case TaskStopped:
		return "stop"
	case TaskRunning:
		return "run"
	case TaskError:
		return "error"
	default:
		return "unknown"
	}
}

func (s TaskState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SourceKind tells how a locator is captured and what happens when a read fails.
type SourceKind string

const (
	SourceDevice SourceKind = "v4l2"
	SourceFile   SourceKind = "video"
	SourceImage  SourceKind = "image"
	SourceStream SourceKind = "rtsp"
)

// ReconnectPolicy decides whether a failed read is followed by a reload.
type ReconnectPolicy struct {
	Recoverable bool
	// LoopOnEOF restarts finite inputs from the beginning.
	LoopOnEOF bool
}

var sourcePolicies = map[SourceKind]ReconnectPolicy{
	SourceDevice: {Recoverable: false},
	SourceFile:   {Recoverable: true, LoopOnEOF: true},
	SourceImage:  {Recoverable: true, LoopOnEOF: true},
	SourceStream: {Recoverable: true},
}

func (k SourceKind) Policy() ReconnectPolicy {
	return sourcePolicies[k]
}

func (k SourceKind) Valid() bool {
	_, ok := sourcePolicies[k]
	return ok
}

var (
	videoExt = map[string]bool{".mp4": true, ".avi": true, ".mkv": true, ".mov": true}
	imageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}
)

// DetectSourceKind infers the kind from the locator text.
func DetectSourceKind(locator string) (SourceKind, error) {
	l := strings.ToLower(strings.TrimSpace(locator))
	if l == "" {
		return "", fmt.Errorf("empty source locator")
	}
	if strings.HasPrefix(l, "rtsp://") || strings.HasPrefix(l, "rtmp://") ||
		strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") {
		return SourceStream, nil
	}
	ext := filepath.Ext(l)
	switch {
	case videoExt[ext]:
		return SourceFile, nil
	case imageExt[ext]:
		return SourceImage, nil
	case strings.HasPrefix(l, "/dev/") || strings.Contains(l, "video"):
		return SourceDevice, nil
	}
	return "", fmt.Errorf("unsupported source type: %s", locator)
}

// Frame is one decoded RGB24 image.
type Frame struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Data      []byte    `json:"-"`
	Locator   string    `json:"locator"`
}

// Clone copies the pixel buffer so the copy can be drawn on.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Data = make([]byte, len(f.Data))
	copy(c.Data, f.Data)
	return &c
}

type Detection struct {
	ClassID int     `json:"id"`
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
	XMin    int     `json:"xmin"`
	YMin    int     `json:"ymin"`
	XMax    int     `json:"xmax"`
	YMax    int     `json:"ymax"`
}

// InferenceResult is what an engine returns for one frame.
type InferenceResult struct {
	Detections []Detection `json:"detections"`
}

// ApplicationConfig is the post-processing applied to a task's detections.
type ApplicationConfig struct {
	Name       string     `json:"name"`
	AreaPoints [][][2]int `json:"area_points,omitempty"`
	DependOn   []string   `json:"depend_on,omitempty"`
	Logic      string     `json:"logic,omitempty"`
}

// StatusSnapshot is the throttled per-task status published by a worker.
type StatusSnapshot struct {
	TaskID     string      `json:"uid"`
	Idx        uint64      `json:"idx"`
	Detections []Detection `json:"detections"`
	InferMs    float64     `json:"inference_ms"`
	FPS        float64     `json:"fps"`
	LiveTime   float64     `json:"live_time"`
	CPULoad    float64     `json:"cpu_load"`
	MemLoad    float64     `json:"mem_load"`
	AppOutput  interface{} `json:"app_output,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
