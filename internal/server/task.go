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

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

type Task interface {
	CreateTask(ctx context.Context, request *dto.TaskRequest) (*dto.TaskResponse, error)
	EditTask(ctx context.Context, id string, request *dto.TaskRequest) (*dto.TaskResponse, error)
	DeleteTask(ctx context.Context, id string) (*dto.DeleteTaskResponse, error)
	GetTask(ctx context.Context, id string) (*dto.TaskResponse, error)
	GetTasks(ctx context.Context) (*dto.TaskListResponse, error)
	RunTask(ctx context.Context, id string) (*dto.RunTaskResponse, error)
	StopTask(ctx context.Context, id string) (*dto.RunTaskResponse, error)
	GetTaskStatus(ctx context.Context, id string) (*dto.TaskStatusResponse, error)
	GetTaskLabels(ctx context.Context, id string) (*dto.LabelsResponse, error)
}

type TaskImpl struct {
	Tasks TaskManager
}

func NewTask(tasks TaskManager) Task {
	return &TaskImpl{Tasks: tasks}
}

func (s *TaskImpl) CreateTask(ctx context.Context, request *dto.TaskRequest) (*dto.TaskResponse, error) {
	info, err := s.Tasks.CreateTask(ctx, request.Config())
	if err != nil {
		logger.LogicLogger.Warn("[Service] Create task failed", "name", request.Name, "error", err)
		return nil, err
	}
	return &dto.TaskResponse{Bcode: *bcode.TaskCode, Data: info}, nil
}

func (s *TaskImpl) EditTask(ctx context.Context, id string, request *dto.TaskRequest) (*dto.TaskResponse, error) {
	info, err := s.Tasks.EditTask(ctx, id, request.Config())
	if err != nil {
		return nil, err
	}
	return &dto.TaskResponse{Bcode: *bcode.TaskCode, Data: info}, nil
}

func (s *TaskImpl) DeleteTask(ctx context.Context, id string) (*dto.DeleteTaskResponse, error) {
	if err := s.Tasks.RemoveTask(ctx, id); err != nil {
		return nil, err
	}
	return &dto.DeleteTaskResponse{Bcode: *bcode.TaskCode}, nil
}

func (s *TaskImpl) GetTask(ctx context.Context, id string) (*dto.TaskResponse, error) {
	info, err := s.Tasks.GetTask(id)
	if err != nil {
		return nil, err
	}
	return &dto.TaskResponse{Bcode: *bcode.TaskCode, Data: info}, nil
}

func (s *TaskImpl) GetTasks(ctx context.Context) (*dto.TaskListResponse, error) {
	return &dto.TaskListResponse{Bcode: *bcode.TaskCode, Data: s.Tasks.ListTasks()}, nil
}

// RunTask reports start failures as errors; the task itself keeps them as its
// error state.
func (s *TaskImpl) RunTask(ctx context.Context, id string) (*dto.RunTaskResponse, error) {
	msg, err := s.Tasks.RunTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.RunTaskResponse{Bcode: *bcode.TaskCode, Data: msg}, nil
}

func (s *TaskImpl) StopTask(ctx context.Context, id string) (*dto.RunTaskResponse, error) {
	if err := s.Tasks.StopTask(id); err != nil {
		return nil, err
	}
	return &dto.RunTaskResponse{Bcode: *bcode.TaskCode, Data: "success"}, nil
}

func (s *TaskImpl) GetTaskStatus(ctx context.Context, id string) (*dto.TaskStatusResponse, error) {
	snap, err := s.Tasks.Status(id)
	if err != nil {
		return nil, err
	}
	return &dto.TaskStatusResponse{Bcode: *bcode.TaskCode, Data: snap}, nil
}

func (s *TaskImpl) GetTaskLabels(ctx context.Context, id string) (*dto.LabelsResponse, error) {
	if _, err := s.Tasks.GetTask(id); err != nil {
		return nil, err
	}
	labels, err := s.Tasks.Labels(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.LabelsResponse{Bcode: *bcode.TaskCode, Data: labels}, nil
}
