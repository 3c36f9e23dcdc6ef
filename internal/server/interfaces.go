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

package server

import (
	"context"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/importer"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/manager"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/source"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// TaskManager is the task and model side of manager.Manager.
type TaskManager interface {
	CreateTask(ctx context.Context, cfg manager.TaskConfig) (*manager.TaskInfo, error)
	EditTask(ctx context.Context, id string, cfg manager.TaskConfig) (*manager.TaskInfo, error)
	RemoveTask(ctx context.Context, id string) error
	RunTask(ctx context.Context, id string) (string, error)
	StopTask(id string) error
	GetTask(id string) (*manager.TaskInfo, error)
	ListTasks() manager.TaskList
	Status(id string) (*types.StatusSnapshot, error)
	Labels(ctx context.Context, ref string) ([]string, error)

	Model(ctx context.Context, name string) (*types.ModelRecord, error)
	Models(ctx context.Context) ([]*types.ModelRecord, error)
	RemoveModel(ctx context.Context, name string) error
	ModelApps(ctx context.Context) (map[string][]string, error)
}

// ImportManager is the job side of importer.Manager.
type ImportManager interface {
	StartImport(ctx context.Context, req importer.Request) (string, error)
	GetImportStatus(id string) (*importer.Status, error)
	List() []importer.Status
	CancelImport(ctx context.Context, id string) error
}

// SourceInspector exposes the pooled capture handles.
type SourceInspector interface {
	List() []source.HandleInfo
	HealthOf(locator string) (bool, string, error)
	FirstFrame(ctx context.Context, locator string, kind types.SourceKind) (*types.Frame, error)
}

// FrameStore serves the last annotated frame of each task.
type FrameStore interface {
	Latest(taskID string) ([]byte, uint64, error)
	Next(ctx context.Context, taskID string, after uint64) ([]byte, uint64, error)
}

// ApplicationCatalog lists the shipped applications.
type ApplicationCatalog interface {
	List(ctx context.Context) ([]*types.ApplicationRecord, error)
}

// EngineStatus reports the health of the inference backends.
type EngineStatus interface {
	GetEngineStatus() map[string]string
}
