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
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/provider"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
	"github.com/MaxChangInnodisk/ivit-i-web-api/version"
)

type Health interface {
	HealthHeader(ctx context.Context) (*dto.GetServerHealthResponse, error)
	EngineHealth(ctx context.Context) (*dto.GetServerHealthResponse, error)
	GetVersion(ctx context.Context) (*dto.GetVersionResponse, error)
}

type HealthImpl struct {
	Engines EngineStatus
}

func NewHealth(engines EngineStatus) Health {
	return &HealthImpl{Engines: engines}
}

func (h *HealthImpl) HealthHeader(ctx context.Context) (*dto.GetServerHealthResponse, error) {
	return &dto.GetServerHealthResponse{
		Bcode: *bcode.HealthCode,
		Data:  map[string]string{"status": "UP"},
	}, nil
}

// EngineHealth reports every known backend as UP or DOWN.
func (h *HealthImpl) EngineHealth(ctx context.Context) (*dto.GetServerHealthResponse, error) {
	data := make(map[string]string)
	if h.Engines != nil {
		for name, status := range h.Engines.GetEngineStatus() {
			if status == provider.EngineStatusRunning {
				data[name] = "UP"
			} else {
				data[name] = "DOWN"
			}
		}
	}
	return &dto.GetServerHealthResponse{Bcode: *bcode.HealthCode, Data: data}, nil
}

func (h *HealthImpl) GetVersion(ctx context.Context) (*dto.GetVersionResponse, error) {
	return &dto.GetVersionResponse{
		Bcode: *bcode.VersionCode,
		Data: dto.GetVersionResponseData{
			Version:     version.IVITVersion,
			SpecVersion: version.SpecVersion,
		},
	}, nil
}
