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

type Import interface {
	StartImport(ctx context.Context, request *dto.ImportRequest) (*dto.ImportResponse, error)
	GetImports(ctx context.Context) (*dto.ImportListResponse, error)
	GetImport(ctx context.Context, id string) (*dto.ImportResponse, error)
	CancelImport(ctx context.Context, id string) (*dto.ImportResponse, error)
}

type ImportImpl struct {
	Jobs ImportManager
}

func NewImport(jobs ImportManager) Import {
	return &ImportImpl{Jobs: jobs}
}

func (s *ImportImpl) StartImport(ctx context.Context, request *dto.ImportRequest) (*dto.ImportResponse, error) {
	id, err := s.Jobs.StartImport(ctx, request.Request())
	if err != nil {
		logger.LogicLogger.Warn("[Service] Import rejected", "name", request.Name, "error", err)
		return nil, err
	}
	return s.GetImport(ctx, id)
}

func (s *ImportImpl) GetImports(ctx context.Context) (*dto.ImportListResponse, error) {
	return &dto.ImportListResponse{Bcode: *bcode.ImportCode, Data: s.Jobs.List()}, nil
}

func (s *ImportImpl) GetImport(ctx context.Context, id string) (*dto.ImportResponse, error) {
	st, err := s.Jobs.GetImportStatus(id)
	if err != nil {
		return nil, err
	}
	return &dto.ImportResponse{Bcode: *bcode.ImportCode, Data: st}, nil
}

func (s *ImportImpl) CancelImport(ctx context.Context, id string) (*dto.ImportResponse, error) {
	if err := s.Jobs.CancelImport(ctx, id); err != nil {
		return nil, err
	}
	return s.GetImport(ctx, id)
}
