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

package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/provider/engine"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/source"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// MockStore keeps descriptors in memory.
type MockStore struct {
	mu     sync.Mutex
	tasks  map[string]*types.TaskRecord
	models map[string]*types.ModelRecord
}

func NewMockStore() *MockStore {
	return &MockStore{tasks: make(map[string]*types.TaskRecord), models: make(map[string]*types.ModelRecord)}
}

func (s *MockStore) ListTasks(ctx context.Context) ([]*types.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.TaskRecord, 0, len(s.tasks))
	for _, t := range s.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MockStore) SaveTask(ctx context.Context, rec *types.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.tasks[rec.ID] = &cp
	return nil
}

func (s *MockStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

func (s *MockStore) GetModel(ctx context.Context, name string) (*types.ModelRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.models[name]
	if !ok {
		return nil, datastore.ErrRecordNotExist
	}
	cp := *rec
	return &cp, nil
}

func (s *MockStore) ListModels(ctx context.Context) ([]*types.ModelRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.ModelRecord, 0, len(s.models))
	for _, m := range s.models {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MockStore) SaveModel(ctx context.Context, rec *types.ModelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.models[rec.Name] = &cp
	return nil
}

func (s *MockStore) DeleteModel(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.models, name)
	return nil
}

func (s *MockStore) taskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// MockEngine returns one detection per frame.
type MockEngine struct {
	initErr  error
	inferErr error
	// block makes Infer ignore its context until released.
	block chan struct{}

	inits  int32
	infers int32
	closes int32
}

func (e *MockEngine) Name() string { return "mock" }

func (e *MockEngine) Init(ctx context.Context, cfg *engine.Config) (*engine.Handle, error) {
	atomic.AddInt32(&e.inits, 1)
	if e.initErr != nil {
		return nil, e.initErr
	}
	return &engine.Handle{ID: cfg.TaskID, Engine: e.Name(), Config: *cfg}, nil
}

func (e *MockEngine) Infer(ctx context.Context, h *engine.Handle, frame *types.Frame) (*types.InferenceResult, error) {
	atomic.AddInt32(&e.infers, 1)
	if e.block != nil {
		<-e.block
	}
	if e.inferErr != nil {
		return nil, e.inferErr
	}
	return &types.InferenceResult{Detections: []types.Detection{
		{ClassID: 0, Label: h.Config.Label(0), Score: 0.9, XMin: 0, YMin: 0, XMax: 2, YMax: 2},
	}}, nil
}

func (e *MockEngine) Close(h *engine.Handle) error {
	atomic.AddInt32(&e.closes, 1)
	return nil
}

func (e *MockEngine) HealthCheck(ctx context.Context) error { return nil }

type MockResolver struct {
	engine engine.Engine
}

func (r *MockResolver) Resolve(framework string) (engine.Engine, error) {
	if framework == "unknown" {
		return nil, errors.New("unknown framework")
	}
	return r.engine, nil
}

// MockCapture emits a frame every interval. failAfter > 0 makes every read
// after that many fail.
type MockCapture struct {
	interval   time.Duration
	failAfter  int32
	alwaysFail bool
	reads     int32
	closed    chan struct{}
	once      sync.Once
	onClose   func()
}

func (c *MockCapture) Read(ctx context.Context) (*types.Frame, error) {
	n := atomic.AddInt32(&c.reads, 1)
	if c.alwaysFail || (c.failAfter > 0 && n > c.failAfter) {
		return nil, errors.New("mock read failure")
	}
	select {
	case <-time.After(c.interval):
		return &types.Frame{Width: 4, Height: 2, Data: make([]byte, 24), Timestamp: time.Now()}, nil
	case <-c.closed:
		return nil, errors.New("capture closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *MockCapture) FPS() float64 { return 100 }

func (c *MockCapture) Close() error {
	c.once.Do(func() {
		close(c.closed)
		if c.onClose != nil {
			c.onClose()
		}
	})
	return nil
}

// MockOpener counts opens and open captures. failFirstAfter > 0 makes only the
// first capture fail after that many reads, failReads fails every read.
type MockOpener struct {
	mu             sync.Mutex
	opens          int
	open           int
	failReads      bool
	failFirstAfter int32
}

func (o *MockOpener) Open(ctx context.Context, locator string, kind types.SourceKind) (source.Capture, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	o.open++
	c := &MockCapture{interval: 5 * time.Millisecond, alwaysFail: o.failReads, closed: make(chan struct{})}
	if o.opens == 1 && o.failFirstAfter > 0 {
		c.failAfter = o.failFirstAfter
	}
	c.onClose = func() {
		o.mu.Lock()
		o.open--
		o.mu.Unlock()
	}
	return c, nil
}

func (o *MockOpener) counts() (opens, open int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens, o.open
}

// MockSink records what workers hand to the frame sink.
type MockSink struct {
	mu        sync.Mutex
	published map[string]int
	last      map[string][]types.Detection
	drops     map[string]int
}

func NewMockSink() *MockSink {
	return &MockSink{published: make(map[string]int), last: make(map[string][]types.Detection), drops: make(map[string]int)}
}

func (s *MockSink) Publish(taskID string, frame *types.Frame, dets []types.Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published[taskID]++
	s.last[taskID] = append([]types.Detection(nil), dets...)
}

func (s *MockSink) Drop(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drops[taskID]++
	delete(s.last, taskID)
}

func (s *MockSink) stats(taskID string) (published int, last []types.Detection, held bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, held = s.last[taskID]
	return s.published[taskID], last, held
}

// snapshots collects what the observer receives.
type snapshots struct {
	mu   sync.Mutex
	list []*types.StatusSnapshot
}

func (s *snapshots) observe(snap *types.StatusSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, snap)
}

func (s *snapshots) all() []*types.StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.StatusSnapshot(nil), s.list...)
}

type fixture struct {
	t       *testing.T
	store   *MockStore
	engine  *MockEngine
	opener  *MockOpener
	sources *source.Multiplexer
	m       *Manager
	dir     string
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "yolo.xml")
	labelPath := filepath.Join(dir, "classes.txt")
	if err := os.WriteFile(modelPath, []byte("<net/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(labelPath, []byte("person\ncar\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := &fixture{t: t, store: NewMockStore(), engine: &MockEngine{}, opener: &MockOpener{}, dir: dir}
	_ = f.store.SaveModel(context.Background(), &types.ModelRecord{
		Name: "yolo", Tag: "obj", Framework: "openvino", ModelPath: modelPath, LabelPath: labelPath,
		InputSize: "3,416,416", Preprocess: "caffe",
	})
	f.sources = source.NewMultiplexer(f.opener, source.WithRetry(2, 10*time.Millisecond), source.WithReadTimeout(500*time.Millisecond))
	if opts.Load == nil {
		opts.Load = func() (float64, float64) { return 1, 2 }
	}
	f.m = NewManager(f.store, f.sources, &MockResolver{engine: f.engine}, opts)
	f.sources.SetTaskChecker(f.m)
	if err := f.m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() {
		_ = f.m.Shutdown(context.Background())
		f.sources.Close()
	})
	return f
}

func (f *fixture) create(name, locator string) string {
	f.t.Helper()
	info, err := f.m.CreateTask(context.Background(), TaskConfig{Name: name, Source: locator, ModelName: "yolo"})
	if err != nil {
		f.t.Fatalf("CreateTask(%s): %v", name, err)
	}
	return info.ID
}

func (f *fixture) task(id string) *TaskInfo {
	f.t.Helper()
	info, err := f.m.GetTask(id)
	if err != nil {
		f.t.Fatalf("GetTask(%s): %v", id, err)
	}
	return info
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
