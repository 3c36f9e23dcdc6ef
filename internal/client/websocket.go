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

package client

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
)

const wsWriteTimeout = 2 * time.Second

// WebSocketConnection is one pushed-status subscriber. An empty Topic receives everything.
type WebSocketConnection struct {
	ID        string
	Conn      *websocket.Conn
	Topic     string
	CreatedAt time.Time

	mu sync.Mutex
}

// WebSocketManager fans status messages out to the registered connections.
type WebSocketManager struct {
	connections map[string]*WebSocketConnection
	mutex       sync.RWMutex
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{connections: make(map[string]*WebSocketConnection)}
}

// Subscribe moves an open connection to another topic.
func (m *WebSocketManager) Subscribe(connID, topic string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if c, ok := m.connections[connID]; ok {
		c.Topic = topic
	}
}

func (m *WebSocketManager) RegisterConnection(conn *websocket.Conn, topic string) *WebSocketConnection {
	wsConn := &WebSocketConnection{
		ID:        uuid.New().String(),
		Conn:      conn,
		Topic:     topic,
		CreatedAt: time.Now(),
	}

	m.mutex.Lock()
	m.connections[wsConn.ID] = wsConn
	m.mutex.Unlock()

	logger.ApiLogger.Info("[WebSocketManager] Registered new connection", "connID", wsConn.ID, "topic", topic)
	return wsConn
}

func (m *WebSocketManager) UnregisterConnection(connID string) {
	m.mutex.Lock()
	conn, exists := m.connections[connID]
	delete(m.connections, connID)
	m.mutex.Unlock()

	if exists {
		_ = conn.Conn.Close()
		logger.ApiLogger.Info("[WebSocketManager] Unregistered connection", "connID", connID, "topic", conn.Topic)
	}
}

// Broadcast writes v to every connection watching topic. Connections that fail a write are dropped.
func (m *WebSocketManager) Broadcast(topic string, v any) {
	m.mutex.RLock()
	targets := make([]*WebSocketConnection, 0, len(m.connections))
	for _, c := range m.connections {
		if matchTopic(c.Topic, topic) {
			targets = append(targets, c)
		}
	}
	m.mutex.RUnlock()

	for _, c := range targets {
		if err := c.WriteJSON(v); err != nil {
			logger.ApiLogger.Debug("[WebSocketManager] Dropping connection", "connID", c.ID, "error", err)
			m.UnregisterConnection(c.ID)
		}
	}
}

// matchTopic reports whether a subscription receives topic. A subscription
// ending in ":" receives every topic with that prefix.
func matchTopic(sub, topic string) bool {
	switch {
	case sub == "" || sub == topic:
		return true
	case strings.HasSuffix(sub, ":"):
		return strings.HasPrefix(topic, sub)
	}
	return false
}

func (m *WebSocketManager) CloseAllConnections() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for id, conn := range m.connections {
		_ = conn.Conn.Close()
		delete(m.connections, id)
	}
}

func (m *WebSocketManager) GetActiveConnectionCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.connections)
}

// WriteJSON serializes writes since gorilla connections allow one concurrent writer.
func (c *WebSocketConnection) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.Conn.WriteJSON(v)
}
