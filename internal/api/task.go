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
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

const mjpegBoundary = "ivitframe"

func bindTaskID(c *gin.Context) (string, bool) {
	request := new(dto.TaskIDRequest)
	if err := c.ShouldBindUri(request); err != nil {
		bcode.ReturnError(c, bcode.ErrBadRequest)
		return "", false
	}
	if err := ValidateAndSetDefaults(request); err != nil {
		bcode.ReturnError(c, err)
		return "", false
	}
	return request.ID, true
}

func bindTaskRequest(c *gin.Context) (*dto.TaskRequest, bool) {
	request := new(dto.TaskRequest)
	if err := c.ShouldBindJSON(request); err != nil {
		if !errors.Is(err, io.EOF) {
			bcode.ReturnError(c, bcode.ErrBadRequest.SetMessage(err.Error()))
			return nil, false
		}
	}
	if err := ValidateAndSetDefaults(request); err != nil {
		bcode.ReturnError(c, err)
		return nil, false
	}
	return request, true
}

func (t *IVITCoreServer) CreateTask(c *gin.Context) {
	request, ok := bindTaskRequest(c)
	if !ok {
		return
	}
	logger.ApiLogger.Debug("[API] CreateTask request params:", "name", request.Name, "source", request.Source)

	resp, err := t.Task.CreateTask(c.Request.Context(), request)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) EditTask(c *gin.Context) {
	id, ok := bindTaskID(c)
	if !ok {
		return
	}
	request, ok := bindTaskRequest(c)
	if !ok {
		return
	}

	resp, err := t.Task.EditTask(c.Request.Context(), id, request)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) DeleteTask(c *gin.Context) {
	id, ok := bindTaskID(c)
	if !ok {
		return
	}
	resp, err := t.Task.DeleteTask(c.Request.Context(), id)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetTask(c *gin.Context) {
	id, ok := bindTaskID(c)
	if !ok {
		return
	}
	resp, err := t.Task.GetTask(c.Request.Context(), id)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetTasks(c *gin.Context) {
	resp, err := t.Task.GetTasks(c.Request.Context())
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) RunTask(c *gin.Context) {
	id, ok := bindTaskID(c)
	if !ok {
		return
	}
	logger.ApiLogger.Debug("[API] RunTask request", "id", id)

	resp, err := t.Task.RunTask(c.Request.Context(), id)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) StopTask(c *gin.Context) {
	id, ok := bindTaskID(c)
	if !ok {
		return
	}
	resp, err := t.Task.StopTask(c.Request.Context(), id)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetTaskStatus(c *gin.Context) {
	id, ok := bindTaskID(c)
	if !ok {
		return
	}
	resp, err := t.Task.GetTaskStatus(c.Request.Context(), id)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (t *IVITCoreServer) GetTaskLabels(c *gin.Context) {
	id, ok := bindTaskID(c)
	if !ok {
		return
	}
	resp, err := t.Task.GetTaskLabels(c.Request.Context(), id)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetTaskFrame returns the latest annotated frame of a running task.
func (t *IVITCoreServer) GetTaskFrame(c *gin.Context) {
	id, ok := bindTaskID(c)
	if !ok {
		return
	}
	if _, err := t.Task.GetTask(c.Request.Context(), id); err != nil {
		bcode.ReturnError(c, err)
		return
	}
	data, _, err := t.Frames.Latest(id)
	if err != nil {
		bcode.ReturnError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// StreamTaskFrames writes annotated frames as multipart/x-mixed-replace until the client leaves.
func (t *IVITCoreServer) StreamTaskFrames(c *gin.Context) {
	id, ok := bindTaskID(c)
	if !ok {
		return
	}
	if _, err := t.Task.GetTask(c.Request.Context(), id); err != nil {
		bcode.ReturnError(c, err)
		return
	}

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	var seq uint64
	for {
		data, next, err := t.Frames.Next(ctx, id, seq)
		if err != nil {
			return
		}
		seq = next
		if _, err := fmt.Fprintf(c.Writer, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(data)); err != nil {
			return
		}
		if _, err := c.Writer.Write(data); err != nil {
			return
		}
		if _, err := io.WriteString(c.Writer, "\r\n"); err != nil {
			return
		}
		c.Writer.Flush()
	}
}
