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

package server

import (
	"sync"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/client"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/importer"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

const (
	PushTypeTask   = "task"
	PushTypeImport = "import"

	pushQueueSize = 256
)

func Topic(kind, id string) string {
	return kind + ":" + id
}

type pushItem struct {
	topic string
	msg   dto.PushMessage
}

// Pusher forwards task snapshots and import progress to websocket
// subscribers. Callers never wait on a socket; messages are dropped when the
// queue is full.
type Pusher struct {
	ws    *client.WebSocketManager
	queue chan pushItem
	done  chan struct{}
	once  sync.Once
}

func NewPusher(ws *client.WebSocketManager) *Pusher {
	p := &Pusher{ws: ws, queue: make(chan pushItem, pushQueueSize), done: make(chan struct{})}
	go p.loop()
	return p
}

func (p *Pusher) loop() {
	for {
		select {
		case it := <-p.queue:
			p.ws.Broadcast(it.topic, it.msg)
		case <-p.done:
			return
		}
	}
}

func (p *Pusher) push(kind, id string, data interface{}) {
	it := pushItem{topic: Topic(kind, id), msg: dto.PushMessage{Type: kind, ID: id, Data: data}}
	select {
	case p.queue <- it:
	default:
		logger.ApiLogger.Debug("[Push] Queue full, dropping message", "topic", it.topic)
	}
}

// TaskStatus is a manager status observer.
func (p *Pusher) TaskStatus(s *types.StatusSnapshot) {
	p.push(PushTypeTask, s.TaskID, s)
}

// ImportStatus is an importer observer.
func (p *Pusher) ImportStatus(s importer.Status) {
	p.push(PushTypeImport, s.ID, s)
}

func (p *Pusher) Close() {
	p.once.Do(func() {
		close(p.done)
		p.ws.CloseAllConnections()
	})
}
