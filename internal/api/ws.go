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
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/server"
)

const subscribeAll = "all"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// subscriptionTopic maps a subscribe message to a websocket topic. An empty
// id subscribes to every job of that kind.
func subscriptionTopic(msg *dto.SubscribeMessage) string {
	if msg.Type == subscribeAll {
		return ""
	}
	return server.Topic(msg.Type, msg.ID)
}

// PushHandler upgrades to a websocket that receives task snapshots and import
// progress. The connection gets everything until the client sends a subscribe message.
func (t *IVITCoreServer) PushHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		logger.ApiLogger.Error("[API] Failed to upgrade to websocket", "error", err)
		return
	}

	wsConn := t.WS.RegisterConnection(conn, "")
	defer t.WS.UnregisterConnection(wsConn.ID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.ApiLogger.Error("[API] WebSocket read error", "error", err, "connID", wsConn.ID)
			}
			return
		}

		msg := new(dto.SubscribeMessage)
		if err := json.Unmarshal(message, msg); err != nil {
			_ = wsConn.WriteJSON(dto.PushMessage{Type: "error", Data: "invalid subscribe message"})
			continue
		}
		if err := ValidateAndSetDefaults(msg); err != nil {
			_ = wsConn.WriteJSON(dto.PushMessage{Type: "error", Data: err.Error()})
			continue
		}

		topic := subscriptionTopic(msg)
		t.WS.Subscribe(wsConn.ID, topic)
		logger.ApiLogger.Debug("[API] WebSocket subscribed", "connID", wsConn.ID, "topic", topic)
	}
}
