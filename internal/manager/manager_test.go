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
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

const camera = "rtsp://127.0.0.1:8554/cam1"

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	cases := []struct {
		name string
		cfg  TaskConfig
		want *bcode.Bcode
	}{
		{"missing name", TaskConfig{Source: camera, ModelName: "yolo"}, bcode.ErrFieldRequired},
		{"bad source", TaskConfig{Name: "a", Source: "ftp://nope", ModelName: "yolo"}, bcode.ErrSourceInvalid},
		{"missing file", TaskConfig{Name: "a", Source: "/no/such/file.mp4", ModelName: "yolo"}, bcode.ErrSourceInvalid},
		{"unknown model", TaskConfig{Name: "a", Source: camera, ModelName: "resnet"}, bcode.ErrModelFileMissing},
		{"bad threshold", TaskConfig{Name: "a", Source: camera, ModelName: "yolo", Threshold: 2}, bcode.ErrFieldRequired},
		{"bad area", TaskConfig{Name: "a", Source: camera, ModelName: "yolo",
			Application: &types.ApplicationConfig{AreaPoints: [][][2]int{{{0, 0}}}}}, bcode.ErrAppInvalid},
	}
	for _, tc := range cases {
		if _, err := f.m.CreateTask(ctx, tc.cfg); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want.BusinessCode, err)
		}
	}

	_ = f.store.SaveModel(ctx, &types.ModelRecord{Name: "nolabel", Framework: "openvino", ModelPath: f.dir + "/yolo.xml", LabelPath: f.dir + "/missing.txt"})
	_, err := f.m.CreateTask(ctx, TaskConfig{Name: "a", Source: camera, ModelName: "nolabel"})
	if !errors.Is(err, bcode.ErrLabelFileMissing) || !strings.Contains(err.Error(), "Can't find Label file") {
		t.Errorf("expected a missing label error, got %v", err)
	}

	id := f.create("door", camera)
	if _, err := f.m.CreateTask(ctx, TaskConfig{Name: "door", Source: camera, ModelName: "yolo"}); !errors.Is(err, bcode.ErrTaskNameExists) {
		t.Errorf("expected ErrTaskNameExists, got %v", err)
	}
	info := f.task(id)
	if len(id) != 8 || info.State != types.TaskStopped || info.SourceKind != types.SourceStream || info.Threshold != DefaultThreshold {
		t.Errorf("unexpected task %+v", info)
	}
	if f.store.taskCount() != 1 {
		t.Errorf("task was not persisted")
	}
	if _, n := f.opener.counts(); n != 0 {
		t.Errorf("CreateTask must not open the source, %d open", n)
	}
}

func TestRunStopLifecycle(t *testing.T) {
	observed := int32(0)
	f := newFixture(t, Options{Observer: func(*types.StatusSnapshot) { atomic.AddInt32(&observed, 1) }})
	ctx := context.Background()
	id := f.create("door", camera)

	msg, err := f.m.RunTask(ctx, id)
	if err != nil || msg != RunMessageSuccess {
		t.Fatalf("RunTask = %q, %v", msg, err)
	}
	waitFor(t, 2*time.Second, "frames", func() bool { return f.task(id).Frames > 3 })

	msg, err = f.m.RunTask(ctx, id)
	if err != nil || msg != RunMessageRunning {
		t.Errorf("second RunTask = %q, %v", msg, err)
	}

	snap, err := f.m.Status(id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if snap.TaskID != id || len(snap.Detections) != 1 || snap.Detections[0].Label != "person" || snap.CPULoad != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if atomic.LoadInt32(&observed) == 0 {
		t.Error("observer was not called")
	}
	if info := f.task(id); info.State != types.TaskRunning || info.StartTime == nil {
		t.Errorf("unexpected running task %+v", info)
	}

	if err := f.m.StopTask(id); err != nil {
		t.Fatalf("StopTask: %v", err)
	}
	info := f.task(id)
	if info.State != types.TaskStopped || info.Frames != 0 || info.StartTime != nil {
		t.Errorf("run fields not cleared: %+v", info)
	}
	if atomic.LoadInt32(&f.engine.closes) != 1 {
		t.Errorf("engine handle closed %d times", f.engine.closes)
	}
	if _, n := f.opener.counts(); n != 0 {
		t.Errorf("capture still open after stop")
	}
	if _, err := f.m.Status(id); !errors.Is(err, bcode.ErrFrameNotReady) {
		t.Errorf("expected no snapshot after stop, got %v", err)
	}

	// stopping again is a no-op
	if err := f.m.StopTask(id); err != nil {
		t.Errorf("second StopTask: %v", err)
	}
	if atomic.LoadInt32(&f.engine.closes) != 1 {
		t.Errorf("second stop touched the engine")
	}
}

func TestSharedSourceNoPrematureTeardown(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.create("a", camera)
	b := f.create("b", camera)

	for _, id := range []string{a, b} {
		if _, err := f.m.RunTask(ctx, id); err != nil {
			t.Fatalf("RunTask(%s): %v", id, err)
		}
	}
	if opens, open := f.opener.counts(); opens != 1 || open != 1 {
		t.Fatalf("expected one shared capture, opens=%d open=%d", opens, open)
	}

	if err := f.m.StopTask(a); err != nil {
		t.Fatal(err)
	}
	if healthy, _, err := f.sources.HealthOf(camera); err != nil || !healthy {
		t.Errorf("source should stay healthy for b: %v %v", healthy, err)
	}
	before := f.task(b).Frames
	waitFor(t, 2*time.Second, "b to keep reading", func() bool { return f.task(b).Frames > before+3 })
	if _, open := f.opener.counts(); open != 1 {
		t.Errorf("capture closed while b still reads")
	}

	if err := f.m.StopTask(b); err != nil {
		t.Fatal(err)
	}
	if _, open := f.opener.counts(); open != 0 {
		t.Errorf("capture should be closed after the last subscriber left")
	}
}

func TestDeviceFailsFast(t *testing.T) {
	f := newFixture(t, Options{})
	f.opener.failReads = true
	ctx := context.Background()
	id := f.create("usb", "/dev/video0")

	if _, err := f.m.RunTask(ctx, id); err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	waitFor(t, 2*time.Second, "error state", func() bool { return f.task(id).State == types.TaskError })

	info := f.task(id)
	if info.Error == "" {
		t.Error("error message is empty")
	}
	if opens, open := f.opener.counts(); opens != 1 || open != 0 {
		t.Errorf("device must not be reloaded: opens=%d open=%d", opens, open)
	}

	_, err := f.m.RunTask(ctx, id)
	if err == nil || !strings.HasPrefix(err.Error(), "The task is not ready") {
		t.Errorf("RunTask on an errored task = %v", err)
	}
	if opens, _ := f.opener.counts(); opens != 1 {
		t.Errorf("RunTask on an errored task must not retry")
	}

	if err := f.m.StopTask(id); err != nil {
		t.Fatal(err)
	}
	if info := f.task(id); info.State != types.TaskStopped || info.Error != "" {
		t.Errorf("StopTask should clear the error: %+v", info)
	}
}

func TestStreamReconnect(t *testing.T) {
	f := newFixture(t, Options{})
	f.opener.failFirstAfter = 5
	ctx := context.Background()
	id := f.create("cam", camera)

	if _, err := f.m.RunTask(ctx, id); err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	waitFor(t, 3*time.Second, "reload", func() bool {
		opens, _ := f.opener.counts()
		return opens >= 2
	})
	after := f.task(id).Frames
	waitFor(t, 2*time.Second, "frames after reload", func() bool { return f.task(id).Frames > after+3 })
	if info := f.task(id); info.State != types.TaskRunning {
		t.Errorf("task should keep running, got %+v", info)
	}
}

func TestEditWhileRunningRejected(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	id := f.create("door", camera)
	if _, err := f.m.RunTask(ctx, id); err != nil {
		t.Fatal(err)
	}

	_, err := f.m.EditTask(ctx, id, TaskConfig{Name: "renamed", Source: camera, ModelName: "yolo"})
	if !errors.Is(err, bcode.ErrTaskRunning) {
		t.Fatalf("expected ErrTaskRunning, got %v", err)
	}
	if info := f.task(id); info.Name != "door" || info.State != types.TaskRunning {
		t.Errorf("task changed: %+v", info)
	}

	if err := f.m.StopTask(id); err != nil {
		t.Fatal(err)
	}
	info, err := f.m.EditTask(ctx, id, TaskConfig{Name: "renamed", Source: camera, ModelName: "yolo", Threshold: 0.8})
	if err != nil || info.Name != "renamed" || info.Threshold != 0.8 {
		t.Errorf("EditTask on a stopped task = %+v, %v", info, err)
	}
}

func TestRemoveTask(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	id := f.create("door", camera)
	other := f.create("gate", camera)
	if _, err := f.m.RunTask(ctx, id); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, "frames", func() bool { return f.task(id).Frames > 0 })

	if err := f.m.RemoveTask(ctx, id); err != nil {
		t.Fatalf("RemoveTask: %v", err)
	}
	if _, err := f.m.GetTask(id); !errors.Is(err, bcode.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := f.m.RunTask(ctx, id); !errors.Is(err, bcode.ErrTaskNotFound) {
		t.Errorf("RunTask after remove = %v", err)
	}
	if ids := f.m.ModelTasks()["yolo"]; len(ids) != 1 || ids[0] != other {
		t.Errorf("model index still lists the removed task: %v", ids)
	}
	if ids := f.m.AppTasks()[types.DefaultApplication]; len(ids) != 1 {
		t.Errorf("app index = %v", ids)
	}
	if _, err := f.sources.Info(camera); err == nil {
		t.Error("removed task should fully release its source")
	}
	if f.store.taskCount() != 1 {
		t.Errorf("descriptor not deleted")
	}
}

func TestEngineInitFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.engine.initErr = errors.New("no device")
	id := f.create("door", camera)

	_, err := f.m.RunTask(context.Background(), id)
	if !errors.Is(err, bcode.ErrEngineInit) {
		t.Fatalf("expected ErrEngineInit, got %v", err)
	}
	info := f.task(id)
	if info.State != types.TaskError || !strings.Contains(info.Error, "no device") {
		t.Errorf("unexpected task %+v", info)
	}
	if _, open := f.opener.counts(); open != 0 {
		t.Errorf("source kept open after a failed start")
	}
}

func TestInferFailureIsFatal(t *testing.T) {
	f := newFixture(t, Options{})
	f.engine.inferErr = errors.New("bad tensor")
	id := f.create("door", camera)

	if _, err := f.m.RunTask(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, "error state", func() bool { return f.task(id).State == types.TaskError })
	if n := atomic.LoadInt32(&f.engine.infers); n != 1 {
		t.Errorf("inference retried %d times", n)
	}
	waitFor(t, time.Second, "engine close", func() bool { return atomic.LoadInt32(&f.engine.closes) == 1 })
	if _, open := f.opener.counts(); open != 0 {
		t.Errorf("source kept open after a fatal error")
	}
}

func TestStopTimeout(t *testing.T) {
	f := newFixture(t, Options{StopTimeout: 100 * time.Millisecond})
	f.engine.block = make(chan struct{})
	id := f.create("door", camera)
	if _, err := f.m.RunTask(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, "infer", func() bool { return atomic.LoadInt32(&f.engine.infers) > 0 })

	start := time.Now()
	if err := f.m.StopTask(id); err != nil {
		t.Fatalf("StopTask: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("StopTask waited too long")
	}
	if info := f.task(id); info.State != types.TaskStopped {
		t.Errorf("task should be stopped after a timed out join: %+v", info)
	}

	close(f.engine.block)
	waitFor(t, time.Second, "lingering worker", func() bool { return atomic.LoadInt32(&f.engine.closes) == 1 })
	if info := f.task(id); info.Frames != 0 || info.State != types.TaskStopped {
		t.Errorf("lingering worker wrote to the task: %+v", info)
	}
}

func TestLingeringWorkerSkipsSinkOfRemovedTask(t *testing.T) {
	sink := NewMockSink()
	f := newFixture(t, Options{StopTimeout: 100 * time.Millisecond, Sink: sink})
	f.engine.block = make(chan struct{})
	id := f.create("door", camera)
	if _, err := f.m.RunTask(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, "infer", func() bool { return atomic.LoadInt32(&f.engine.infers) > 0 })

	if err := f.m.RemoveTask(context.Background(), id); err != nil {
		t.Fatalf("RemoveTask: %v", err)
	}
	close(f.engine.block)
	waitFor(t, time.Second, "lingering worker", func() bool { return atomic.LoadInt32(&f.engine.closes) == 1 })
	time.Sleep(50 * time.Millisecond)

	if n, _, held := sink.stats(id); n != 0 || held {
		t.Errorf("sink got %d frames for a removed task (held=%v)", n, held)
	}
}

func TestStatusSnapshotThrottled(t *testing.T) {
	var seen snapshots
	f := newFixture(t, Options{Observer: seen.observe})
	id := f.create("door", camera)
	if _, err := f.m.RunTask(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2500 * time.Millisecond)
	frames := f.task(id).Frames
	if err := f.m.StopTask(id); err != nil {
		t.Fatal(err)
	}

	snaps := seen.all()
	if len(snaps) < 2 || len(snaps) > 4 {
		t.Fatalf("got %d snapshots in 2.5s, want one per second", len(snaps))
	}
	if frames < uint64(10*len(snaps)) {
		t.Errorf("frames = %d, the loop should run faster than the snapshots", frames)
	}
	for i := 1; i < len(snaps); i++ {
		if gap := snaps[i].Timestamp.Sub(snaps[i-1].Timestamp); gap < 900*time.Millisecond {
			t.Errorf("snapshots %d and %d only %v apart", i-1, i, gap)
		}
		if snaps[i].Idx <= snaps[i-1].Idx {
			t.Errorf("snapshot idx not increasing: %d then %d", snaps[i-1].Idx, snaps[i].Idx)
		}
	}
}

func TestApplicationFailurePublishesRawResult(t *testing.T) {
	sink := NewMockSink()
	var seen snapshots
	f := newFixture(t, Options{Sink: sink, Observer: seen.observe})
	info, err := f.m.CreateTask(context.Background(), TaskConfig{
		Name: "door", Source: camera, ModelName: "yolo",
		// the filter would drop every person; the logic fails when evaluated
		Application: &types.ApplicationConfig{Name: "counting", DependOn: []string{"car"}, Logic: `count - "x"`},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.m.RunTask(context.Background(), info.ID); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, "published frame", func() bool {
		n, _, _ := sink.stats(info.ID)
		return n > 0
	})
	_, last, _ := sink.stats(info.ID)
	if len(last) != 1 || last[0].Label != "person" {
		t.Errorf("sink detections = %+v, want the raw inference result", last)
	}
	if got := f.task(info.ID).State; got != types.TaskRunning {
		t.Errorf("state = %v, an application failure must not stop the task", got)
	}
	waitFor(t, 2*time.Second, "snapshot", func() bool { return len(seen.all()) > 0 })
	if snap := seen.all()[0]; len(snap.Detections) != 1 || snap.AppOutput != nil {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestLoadKeepsFailedTasks(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_ = f.store.SaveTask(ctx, &types.TaskRecord{ID: "deadbeef", Name: "old", Source: camera, ModelName: "gone"})
	_ = f.store.SaveTask(ctx, &types.TaskRecord{ID: "cafebabe", Name: "ok", Source: camera, ModelName: "yolo"})

	m := NewManager(f.store, f.sources, &MockResolver{engine: f.engine}, Options{})
	if err := m.Load(ctx); err != nil {
		t.Fatal(err)
	}
	list := m.ListTasks()
	if len(list.Ready) != 1 || list.Ready[0].ID != "cafebabe" {
		t.Errorf("ready = %+v", list.Ready)
	}
	if len(list.Failed) != 1 || !strings.Contains(list.Failed[0].Error, "Can't find AI Model") {
		t.Fatalf("failed = %+v", list.Failed)
	}

	if err := m.RemoveTask(ctx, "deadbeef"); err != nil {
		t.Errorf("RemoveTask(failed): %v", err)
	}
	if len(m.ListTasks().Failed) != 0 {
		t.Error("failed task still listed")
	}
}

func TestModelIndex(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	id := f.create("door", camera)

	labels, err := f.m.Labels(ctx, id)
	if err != nil || len(labels) != 2 || labels[1] != "car" {
		t.Errorf("Labels(task) = %v, %v", labels, err)
	}
	if labels, err := f.m.Labels(ctx, "yolo"); err != nil || len(labels) != 2 {
		t.Errorf("Labels(model) = %v, %v", labels, err)
	}
	if _, err := f.m.Labels(ctx, "nope"); !errors.Is(err, bcode.ErrTaskNotFound) {
		t.Errorf("Labels(nope) = %v", err)
	}

	if err := f.m.RemoveModel(ctx, "yolo"); !errors.Is(err, bcode.ErrModelInUse) {
		t.Errorf("expected ErrModelInUse, got %v", err)
	}
	if err := f.m.RegisterModel(ctx, &types.ModelRecord{Name: "x", Framework: "unknown"}); !errors.Is(err, bcode.ErrFrameworkUnknown) {
		t.Errorf("expected ErrFrameworkUnknown, got %v", err)
	}
	apps, _ := f.m.ModelApps(ctx)
	if len(apps["yolo"]) != 1 || apps["yolo"][0] != types.DefaultApplication {
		t.Errorf("ModelApps without catalog = %v", apps)
	}
}

func TestRemoveModelDeletesInstallDir(t *testing.T) {
	modelDir := t.TempDir()
	f := newFixture(t, Options{ModelDir: modelDir})
	ctx := context.Background()

	target := filepath.Join(modelDir, "ssd")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"ssd.xml", "classes.txt"} {
		if err := os.WriteFile(filepath.Join(target, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	rec := &types.ModelRecord{
		Name: "ssd", Framework: "openvino",
		ModelPath: filepath.Join(target, "ssd.xml"), LabelPath: filepath.Join(target, "classes.txt"),
	}
	if err := f.m.RegisterModel(ctx, rec); err != nil {
		t.Fatalf("RegisterModel: %v", err)
	}
	if err := f.m.RemoveModel(ctx, "ssd"); err != nil {
		t.Fatalf("RemoveModel: %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("install dir still present: %v", err)
	}
	if _, err := f.m.Model(ctx, "ssd"); !errors.Is(err, bcode.ErrModelNotFound) {
		t.Errorf("Model after remove = %v", err)
	}

	// Files registered from outside the model dir stay where they are.
	if err := f.m.RemoveModel(ctx, "yolo"); err != nil {
		t.Fatalf("RemoveModel(yolo): %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "yolo.xml")); err != nil {
		t.Errorf("external model file removed: %v", err)
	}
}
