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
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/client"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/server"
)

const shutdownTimeout = 5 * time.Second

// IVITCoreServer holds the gin engine and the services its handlers call.
type IVITCoreServer struct {
	Router *gin.Engine
	Task   server.Task
	Model  server.Model
	Import server.Import
	System server.System
	Health server.Health
	Frames server.FrameStore
	WS     *client.WebSocketManager
}

// NewIVITCoreServer builds the router with every route injected.
func NewIVITCoreServer(task server.Task, model server.Model, imp server.Import, system server.System,
	health server.Health, frames server.FrameStore, ws *client.WebSocketManager,
) *IVITCoreServer {
	gin.SetMode(gin.ReleaseMode)
	e := &IVITCoreServer{
		Router: gin.New(),
		Task:   task,
		Model:  model,
		Import: imp,
		System: system,
		Health: health,
		Frames: frames,
		WS:     ws,
	}
	e.Router.Use(gin.Recovery())
	InjectRouter(e)
	return e
}

// Run serves until ctx is canceled, then shuts the listener down gracefully.
func (e *IVITCoreServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: e.Router}

	errCh := make(chan error, 1)
	go func() {
		logger.ApiLogger.Info("[API] Listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if e.WS != nil {
		e.WS.CloseAllConnections()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
