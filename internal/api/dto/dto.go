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

package dto

import (
	"strings"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/importer"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/manager"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/source"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

type TaskRequest struct {
	Name        string                   `json:"name" validate:"required,max=64"`
	Source      string                   `json:"source" validate:"required,supported_source"`
	ModelName   string                   `json:"model_name" validate:"required"`
	Device      string                   `json:"device"`
	Threshold   float64                  `json:"thres" validate:"gte=0,lte=1"`
	Application *types.ApplicationConfig `json:"application,omitempty"`
	Description string                   `json:"description" validate:"max=256"`
}

func (r *TaskRequest) SetDefaults() {
	r.Name = strings.TrimSpace(r.Name)
	r.Source = strings.TrimSpace(r.Source)
	if r.Device == "" {
		r.Device = "CPU"
	}
}

func (r *TaskRequest) Config() manager.TaskConfig {
	return manager.TaskConfig{
		Name:        r.Name,
		Source:      r.Source,
		ModelName:   r.ModelName,
		Device:      r.Device,
		Threshold:   r.Threshold,
		Application: r.Application,
		Description: r.Description,
	}
}

type TaskIDRequest struct {
	ID string `uri:"id" validate:"required"`
}

type TaskResponse struct {
	bcode.Bcode
	Data *manager.TaskInfo `json:"data"`
}

type TaskListResponse struct {
	bcode.Bcode
	Data manager.TaskList `json:"data"`
}

type RunTaskResponse struct {
	bcode.Bcode
	Data string `json:"data"`
}

type DeleteTaskResponse struct {
	bcode.Bcode
}

type TaskStatusResponse struct {
	bcode.Bcode
	Data *types.StatusSnapshot `json:"data"`
}

type LabelsResponse struct {
	bcode.Bcode
	Data []string `json:"data"`
}

type ModelsResponse struct {
	bcode.Bcode
	Data []*types.ModelRecord `json:"data"`
}

type ModelResponse struct {
	bcode.Bcode
	Data *types.ModelRecord `json:"data"`
}

type DeleteModelResponse struct {
	bcode.Bcode
}

type ModelAppsResponse struct {
	bcode.Bcode
	Data map[string][]string `json:"data"`
}

type ImportRequest struct {
	Name   string `json:"name" validate:"omitempty,max=64"`
	URL    string `json:"url" validate:"required_without=File,excluded_with=File,omitempty,url"`
	File   string `json:"file"`
	SHA256 string `json:"sha256" validate:"omitempty,len=64,hexadecimal"`
	Tag    string `json:"tag" validate:"omitempty,supported_tag"`
}

func (r *ImportRequest) Request() importer.Request {
	return importer.Request{Name: r.Name, URL: r.URL, File: r.File, SHA256: r.SHA256, Tag: r.Tag}
}

type ImportResponse struct {
	bcode.Bcode
	Data *importer.Status `json:"data"`
}

type ImportListResponse struct {
	bcode.Bcode
	Data []importer.Status `json:"data"`
}

type SourcesResponse struct {
	bcode.Bcode
	Data []source.HandleInfo `json:"data"`
}

type SourceHealthRequest struct {
	Locator string `form:"locator" validate:"required"`
}

type SourceHealth struct {
	Locator string `json:"locator"`
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}

type SourceHealthResponse struct {
	bcode.Bcode
	Data SourceHealth `json:"data"`
}

type FirstFrameRequest struct {
	Source string `json:"source" validate:"required,supported_source"`
}

type V4L2Response struct {
	bcode.Bcode
	Data []string `json:"data"`
}

type DeviceInfo struct {
	Host      utils.HostInfo    `json:"host"`
	Load      utils.HostLoad    `json:"load"`
	Framework string            `json:"framework"`
	Engines   map[string]string `json:"engines"`
}

type DeviceResponse struct {
	bcode.Bcode
	Data DeviceInfo `json:"data"`
}

type ApplicationsResponse struct {
	bcode.Bcode
	Data []*types.ApplicationRecord `json:"data"`
}

type GetVersionResponseData struct {
	Version     string `json:"version"`
	SpecVersion string `json:"spec_version"`
}

type GetVersionResponse struct {
	bcode.Bcode
	Data GetVersionResponseData `json:"data"`
}

type GetServerHealthResponse struct {
	bcode.Bcode
	Data map[string]string `json:"data"`
}

// SubscribeMessage is sent by a websocket client to pick what it receives.
type SubscribeMessage struct {
	Type string `json:"type" validate:"oneof=task import all"`
	ID   string `json:"id"`
}

// PushMessage is one websocket frame sent to subscribers.
type PushMessage struct {
	Type string      `json:"type"`
	ID   string      `json:"id"`
	Data interface{} `json:"data"`
}
