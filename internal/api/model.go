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
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

func modelName(c *gin.Context) (string, bool) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		bcode.ReturnError(c, bcode.ErrFieldRequired.SetMessage("model name is required"))
		return "", false
	}
	return name, true
}

func (t *IVITCoreServer) GetModels(c *gin.Context) {
	resp, err := t.Model.GetModels(c.Request.Context())
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetModel(c *gin.Context) {
	name, ok := modelName(c)
	if !ok {
		return
	}
	resp, err := t.Model.GetModel(c.Request.Context(), name)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetModelLabels(c *gin.Context) {
	name, ok := modelName(c)
	if !ok {
		return
	}
	resp, err := t.Model.GetModelLabels(c.Request.Context(), name)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetModelApps(c *gin.Context) {
	resp, err := t.Model.GetModelApps(c.Request.Context())
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) DeleteModel(c *gin.Context) {
	name, ok := modelName(c)
	if !ok {
		return
	}
	resp, err := t.Model.DeleteModel(c.Request.Context(), name)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
