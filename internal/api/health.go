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

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

func (t *IVITCoreServer) HealthHeader(c *gin.Context) {
	resp, err := t.Health.HealthHeader(c.Request.Context())
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) EngineHealth(c *gin.Context) {
	resp, err := t.Health.EngineHealth(c.Request.Context())
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetVersion(c *gin.Context) {
	resp, err := t.Health.GetVersion(c.Request.Context())
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
