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
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/sink"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

const loadSampleInterval = 200 * time.Millisecond

type System interface {
	GetSources(ctx context.Context) (*dto.SourcesResponse, error)
	GetSourceHealth(ctx context.Context, request *dto.SourceHealthRequest) (*dto.SourceHealthResponse, error)
	FirstFrame(ctx context.Context, request *dto.FirstFrameRequest) ([]byte, error)
	GetV4L2(ctx context.Context) (*dto.V4L2Response, error)
	GetDevice(ctx context.Context) (*dto.DeviceResponse, error)
	GetApplications(ctx context.Context) (*dto.ApplicationsResponse, error)
}

type SystemImpl struct {
	Sources   SourceInspector
	Catalog   ApplicationCatalog
	Engines   EngineStatus
	Framework string
}

func NewSystem(sources SourceInspector, catalog ApplicationCatalog, engines EngineStatus, framework string) System {
	return &SystemImpl{Sources: sources, Catalog: catalog, Engines: engines, Framework: framework}
}

func (s *SystemImpl) GetSources(ctx context.Context) (*dto.SourcesResponse, error) {
	return &dto.SourcesResponse{Bcode: *bcode.SourceCode, Data: s.Sources.List()}, nil
}

func (s *SystemImpl) GetSourceHealth(ctx context.Context, request *dto.SourceHealthRequest) (*dto.SourceHealthResponse, error) {
	healthy, msg, err := s.Sources.HealthOf(request.Locator)
	if err != nil {
		return nil, err
	}
	return &dto.SourceHealthResponse{
		Bcode: *bcode.SourceCode,
		Data:  dto.SourceHealth{Locator: request.Locator, Healthy: healthy, Message: msg},
	}, nil
}

// FirstFrame grabs one JPEG of a source without subscribing a task to it.
func (s *SystemImpl) FirstFrame(ctx context.Context, request *dto.FirstFrameRequest) ([]byte, error) {
	kind, err := types.DetectSourceKind(request.Source)
	if err != nil {
		return nil, bcode.WrapError(bcode.ErrSourceInvalid, err)
	}
	frame, err := s.Sources.FirstFrame(ctx, request.Source, kind)
	if err != nil {
		return nil, err
	}
	return sink.EncodeJPEG(frame, nil, sink.DefaultJPEGQuality)
}

func (s *SystemImpl) GetV4L2(ctx context.Context) (*dto.V4L2Response, error) {
	return &dto.V4L2Response{Bcode: *bcode.SystemCode, Data: utils.ListV4L2Devices()}, nil
}

func (s *SystemImpl) GetDevice(ctx context.Context) (*dto.DeviceResponse, error) {
	info := dto.DeviceInfo{
		Host:      utils.SystemHostInfo(),
		Load:      utils.SystemLoad(loadSampleInterval),
		Framework: s.Framework,
	}
	if s.Engines != nil {
		info.Engines = s.Engines.GetEngineStatus()
	}
	return &dto.DeviceResponse{Bcode: *bcode.SystemCode, Data: info}, nil
}

func (s *SystemImpl) GetApplications(ctx context.Context) (*dto.ApplicationsResponse, error) {
	apps, err := s.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.ApplicationsResponse{Bcode: *bcode.AppCode, Data: apps}, nil
}
