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
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

func (t *IVITCoreServer) GetSources(c *gin.Context) {
	resp, err := t.System.GetSources(c.Request.Context())
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetSourceHealth(c *gin.Context) {
	request := new(dto.SourceHealthRequest)
	if err := c.ShouldBindQuery(request); err != nil {
		bcode.ReturnError(c, bcode.ErrBadRequest)
		return
	}
	if err := ValidateAndSetDefaults(request); err != nil {
		bcode.ReturnError(c, err)
		return
	}

	resp, err := t.System.GetSourceHealth(c.Request.Context(), request)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FirstFrame grabs one frame from a source so a client can draw areas before creating a task.
func (t *IVITCoreServer) FirstFrame(c *gin.Context) {
	request := new(dto.FirstFrameRequest)
	if err := c.ShouldBindJSON(request); err != nil && !errors.Is(err, io.EOF) {
		bcode.ReturnError(c, bcode.ErrBadRequest)
		return
	}
	if err := ValidateAndSetDefaults(request); err != nil {
		bcode.ReturnError(c, err)
		return
	}

	data, err := t.System.FirstFrame(c.Request.Context(), request)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (t *IVITCoreServer) GetV4L2(c *gin.Context) {
	resp, err := t.System.GetV4L2(c.Request.Context())
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetDevice(c *gin.Context) {
	resp, err := t.System.GetDevice(c.Request.Context())
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetApplications(c *gin.Context) {
	resp, err := t.System.GetApplications(c.Request.Context())
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
