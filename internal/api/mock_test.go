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
	"sync"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/client"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/manager"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/server"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

type MockTaskManager struct {
	mu      sync.Mutex
	tasks   map[string]*manager.TaskInfo
	created []manager.TaskConfig
}

func newMockTaskManager() *MockTaskManager {
	return &MockTaskManager{tasks: map[string]*manager.TaskInfo{
		"t1": {ID: "t1", Name: "door", Source: "rtsp://cam/1", State: types.TaskStopped},
	}}
}

func (m *MockTaskManager) CreateTask(ctx context.Context, cfg manager.TaskConfig) (*manager.TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, cfg)
	info := &manager.TaskInfo{ID: "new", Name: cfg.Name, Source: cfg.Source, Device: cfg.Device, State: types.TaskStopped}
	m.tasks[info.ID] = info
	return info, nil
}

func (m *MockTaskManager) EditTask(ctx context.Context, id string, cfg manager.TaskConfig) (*manager.TaskInfo, error) {
	info, err := m.GetTask(id)
	if err != nil {
		return nil, err
	}
	info.Name = cfg.Name
	return info, nil
}

func (m *MockTaskManager) RemoveTask(ctx context.Context, id string) error {
	if _, err := m.GetTask(id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.tasks, id)
	m.mu.Unlock()
	return nil
}

func (m *MockTaskManager) RunTask(ctx context.Context, id string) (string, error) {
	if _, err := m.GetTask(id); err != nil {
		return "", err
	}
	return "success", nil
}

func (m *MockTaskManager) StopTask(id string) error {
	_, err := m.GetTask(id)
	return err
}

func (m *MockTaskManager) GetTask(id string) (*manager.TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.tasks[id]
	if !ok {
		return nil, bcode.ErrTaskNotFound
	}
	return info, nil
}

func (m *MockTaskManager) ListTasks() manager.TaskList {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := manager.TaskList{Ready: []manager.TaskInfo{}, Failed: []manager.FailedTask{}}
	for _, info := range m.tasks {
		list.Ready = append(list.Ready, *info)
	}
	return list
}

func (m *MockTaskManager) Status(id string) (*types.StatusSnapshot, error) {
	if _, err := m.GetTask(id); err != nil {
		return nil, err
	}
	return &types.StatusSnapshot{TaskID: id, Idx: 3}, nil
}

func (m *MockTaskManager) Labels(ctx context.Context, ref string) ([]string, error) {
	return []string{"person", "car"}, nil
}

func (m *MockTaskManager) Model(ctx context.Context, name string) (*types.ModelRecord, error) {
	if name != "yolo" {
		return nil, bcode.ErrModelNotFound
	}
	return &types.ModelRecord{Name: "yolo"}, nil
}

func (m *MockTaskManager) Models(ctx context.Context) ([]*types.ModelRecord, error) {
	return []*types.ModelRecord{{Name: "yolo"}}, nil
}

func (m *MockTaskManager) RemoveModel(ctx context.Context, name string) error {
	_, err := m.Model(ctx, name)
	return err
}

func (m *MockTaskManager) ModelApps(ctx context.Context) (map[string][]string, error) {
	return map[string][]string{"yolo": {"Basic_Object_Detection"}}, nil
}

// MockFrameStore serves a fixed number of frames and then reports ctx errors.
type MockFrameStore struct {
	frames int
}

func (f *MockFrameStore) Latest(taskID string) ([]byte, uint64, error) {
	if taskID != "t1" {
		return nil, 0, bcode.ErrFrameNotReady
	}
	return []byte{0xff, 0xd8, 0xff, 0xd9}, 1, nil
}

func (f *MockFrameStore) Next(ctx context.Context, taskID string, after uint64) ([]byte, uint64, error) {
	if int(after) >= f.frames {
		return nil, after, context.Canceled
	}
	return []byte{0xff, 0xd8, 0xff, 0xd9}, after + 1, nil
}

func newTestServer(tasks *MockTaskManager, frames *MockFrameStore) *IVITCoreServer {
	return NewIVITCoreServer(
		server.NewTask(tasks),
		server.NewModel(tasks),
		nil,
		nil,
		server.NewHealth(nil),
		frames,
		client.NewWebSocketManager(),
	)
}
