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

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

func (t *IVITCoreServer) StartImport(c *gin.Context) {
	request := new(dto.ImportRequest)
	if err := c.ShouldBindJSON(request); err != nil {
		bcode.ReturnError(c, bcode.ErrImportBadRequest)
		return
	}
	if err := ValidateAndSetDefaults(request); err != nil {
		bcode.ReturnError(c, err)
		return
	}
	logger.ApiLogger.Debug("[API] StartImport request params:", "name", request.Name, "url", request.URL, "file", request.File)

	resp, err := t.Import.StartImport(c.Request.Context(), request)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetImports(c *gin.Context) {
	resp, err := t.Import.GetImports(c.Request.Context())
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetImport(c *gin.Context) {
	resp, err := t.Import.GetImport(c.Request.Context(), c.Param("id"))
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) CancelImport(c *gin.Context) {
	resp, err := t.Import.CancelImport(c.Request.Context(), c.Param("id"))
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
