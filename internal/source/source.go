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

package source

import (
	"context"
	"fmt"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// Capture is an opened camera, file or stream.
// Read blocks until the next frame; it must return once Close is called.
type Capture interface {
	Read(ctx context.Context) (*types.Frame, error)
	FPS() float64
	Close() error
}

// Opener opens captures for a locator.
type Opener interface {
	Open(ctx context.Context, locator string, kind types.SourceKind) (Capture, error)
}

// TaskChecker reports whether a subscriber ID still names a registered task.
type TaskChecker interface {
	TaskExists(id string) bool
}

type Status int

const (
	StatusStopped Status = iota
	StatusRunning
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "run"
	case StatusError:
		return "error"
	default:
		return "stop"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ReadError is returned by Handle.Next. Gen is the capture generation that failed,
// so a reload can be skipped when another subscriber already reopened the source.
type ReadError struct {
	Gen uint64
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%v (generation %d)", e.Err, e.Gen)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// HandleInfo is a point in time copy of a handle for listings.
type HandleInfo struct {
	Locator     string           `json:"locator"`
	Kind        types.SourceKind `json:"type"`
	Status      Status           `json:"status"`
	Message     string           `json:"error"`
	Subscribers []string         `json:"proc"`
	Opened      bool             `json:"opened"`
	FPS         float64          `json:"fps"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Opens       int              `json:"opens"`
}
