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
	"context"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/provider/engine"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/source"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// Store persists task and model descriptors.
type Store interface {
	ListTasks(ctx context.Context) ([]*types.TaskRecord, error)
	SaveTask(ctx context.Context, rec *types.TaskRecord) error
	DeleteTask(ctx context.Context, id string) error

	GetModel(ctx context.Context, name string) (*types.ModelRecord, error)
	ListModels(ctx context.Context) ([]*types.ModelRecord, error)
	SaveModel(ctx context.Context, rec *types.ModelRecord) error
	DeleteModel(ctx context.Context, name string) error
}

// SourcePool is the part of the source multiplexer tasks use.
type SourcePool interface {
	Acquire(ctx context.Context, locator string, kind types.SourceKind, taskID string) (*source.Handle, error)
	ReloadStale(ctx context.Context, locator string, taskID string, failedGen uint64) (*source.Handle, error)
	Release(locator string, taskID string, force bool) error
	ReadTimeout() time.Duration
}

// EngineResolver maps a framework name to the engine serving it.
type EngineResolver interface {
	Resolve(framework string) (engine.Engine, error)
}

// AppCatalog validates application configs and lists the applications of a tag.
type AppCatalog interface {
	Validate(ctx context.Context, cfg *types.ApplicationConfig, tag string) error
	ForTag(ctx context.Context, tag string) ([]string, error)
}

// FrameSink receives every processed frame.
type FrameSink interface {
	Publish(taskID string, frame *types.Frame, dets []types.Detection)
	Drop(taskID string)
}

// StatusObserver is told about every published status snapshot.
type StatusObserver func(snapshot *types.StatusSnapshot)

// LoadSampler returns host cpu and memory usage in percent.
type LoadSampler func() (cpu float64, mem float64)
