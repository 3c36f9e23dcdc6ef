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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/version"
)

func InjectRouter(e *IVITCoreServer) {
	e.Router.Handle(http.MethodGet, "/", rootHandler)

	r := e.Router.Group("/" + constants.AppName + "/" + version.SpecVersion)

	r.Handle(http.MethodGet, "/health", e.HealthHeader)
	r.Handle(http.MethodGet, "/engine/health", e.EngineHealth)
	r.Handle(http.MethodGet, "/version", e.GetVersion)

	r.Handle(http.MethodGet, "/task", e.GetTasks)
	r.Handle(http.MethodPost, "/task", e.CreateTask)
	r.Handle(http.MethodGet, "/task/:id", e.GetTask)
	r.Handle(http.MethodPut, "/task/:id", e.EditTask)
	r.Handle(http.MethodDelete, "/task/:id", e.DeleteTask)
	r.Handle(http.MethodPost, "/task/:id/run", e.RunTask)
	r.Handle(http.MethodPost, "/task/:id/stop", e.StopTask)
	r.Handle(http.MethodGet, "/task/:id/status", e.GetTaskStatus)
	r.Handle(http.MethodGet, "/task/:id/labels", e.GetTaskLabels)
	r.Handle(http.MethodGet, "/task/:id/frame", e.GetTaskFrame)
	r.Handle(http.MethodGet, "/task/:id/mjpeg", e.StreamTaskFrames)

	r.Handle(http.MethodGet, "/model", e.GetModels)
	r.Handle(http.MethodGet, "/model/apps", e.GetModelApps)
	r.Handle(http.MethodGet, "/model/:name", e.GetModel)
	r.Handle(http.MethodDelete, "/model/:name", e.DeleteModel)
	r.Handle(http.MethodGet, "/model/:name/labels", e.GetModelLabels)

	r.Handle(http.MethodPost, "/import", e.StartImport)
	r.Handle(http.MethodGet, "/import", e.GetImports)
	r.Handle(http.MethodGet, "/import/:id", e.GetImport)
	r.Handle(http.MethodDelete, "/import/:id", e.CancelImport)

	r.Handle(http.MethodGet, "/source", e.GetSources)
	r.Handle(http.MethodGet, "/source/health", e.GetSourceHealth)
	r.Handle(http.MethodPost, "/source/frame", e.FirstFrame)
	r.Handle(http.MethodGet, "/v4l2", e.GetV4L2)
	r.Handle(http.MethodGet, "/device", e.GetDevice)
	r.Handle(http.MethodGet, "/app", e.GetApplications)

	r.Handle(http.MethodGet, "/ws", e.PushHandler)

	logger.ApiLogger.Info("[API] Routes injected", "prefix", r.BasePath())
}

func rootHandler(c *gin.Context) {
	c.String(http.StatusOK, version.IVITName)
}
