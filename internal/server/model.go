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
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

type Model interface {
	GetModels(ctx context.Context) (*dto.ModelsResponse, error)
	GetModel(ctx context.Context, name string) (*dto.ModelResponse, error)
	GetModelLabels(ctx context.Context, name string) (*dto.LabelsResponse, error)
	GetModelApps(ctx context.Context) (*dto.ModelAppsResponse, error)
	DeleteModel(ctx context.Context, name string) (*dto.DeleteModelResponse, error)
}

type ModelImpl struct {
	Tasks TaskManager
}

func NewModel(tasks TaskManager) Model {
	return &ModelImpl{Tasks: tasks}
}

func (s *ModelImpl) GetModels(ctx context.Context) (*dto.ModelsResponse, error) {
	models, err := s.Tasks.Models(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.ModelsResponse{Bcode: *bcode.ModelCode, Data: models}, nil
}

func (s *ModelImpl) GetModel(ctx context.Context, name string) (*dto.ModelResponse, error) {
	m, err := s.Tasks.Model(ctx, name)
	if err != nil {
		return nil, err
	}
	return &dto.ModelResponse{Bcode: *bcode.ModelCode, Data: m}, nil
}

// GetModelLabels resolves name as a model, not a task.
func (s *ModelImpl) GetModelLabels(ctx context.Context, name string) (*dto.LabelsResponse, error) {
	if _, err := s.Tasks.Model(ctx, name); err != nil {
		return nil, err
	}
	labels, err := s.Tasks.Labels(ctx, name)
	if err != nil {
		return nil, err
	}
	return &dto.LabelsResponse{Bcode: *bcode.ModelCode, Data: labels}, nil
}

func (s *ModelImpl) GetModelApps(ctx context.Context) (*dto.ModelAppsResponse, error) {
	apps, err := s.Tasks.ModelApps(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.ModelAppsResponse{Bcode: *bcode.ModelCode, Data: apps}, nil
}

func (s *ModelImpl) DeleteModel(ctx context.Context, name string) (*dto.DeleteModelResponse, error) {
	if err := s.Tasks.RemoveModel(ctx, name); err != nil {
		return nil, err
	}
	return &dto.DeleteModelResponse{Bcode: *bcode.ModelCode}, nil
}
