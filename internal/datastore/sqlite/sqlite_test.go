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

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	ds, err := New(filepath.Join(t.TempDir(), "ivit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ds.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return ds
}

func TestTaskRecordCRUD(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	rec := &types.TaskRecord{
		ID:         "a1b2c3d4",
		Name:       "door-camera",
		Source:     "rtsp://10.0.0.2/live",
		SourceKind: string(types.SourceStream),
		ModelName:  "yolov4-tiny",
		Threshold:  0.6,
		AppDepends: types.StringList{"person", "car"},
	}
	if err := ds.Add(ctx, rec); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := ds.Add(ctx, &types.TaskRecord{ID: "a1b2c3d4", Name: "door-camera"}); !errors.Is(err, datastore.ErrRecordExist) {
		t.Errorf("expected ErrRecordExist, got %v", err)
	}

	got := &types.TaskRecord{ID: "a1b2c3d4"}
	if err := ds.Get(ctx, got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Source != rec.Source || len(got.AppDepends) != 2 || got.AppDepends[1] != "car" {
		t.Errorf("unexpected record %+v", got)
	}

	created := got.CreatedAt
	edited := *got
	edited.Name = "gate-camera"
	edited.Threshold = 0.8
	edited.AppDepends = nil
	edited.Description = ""
	if err := ds.Put(ctx, &edited); err != nil {
		t.Fatalf("put: %v", err)
	}
	got = &types.TaskRecord{ID: "a1b2c3d4"}
	_ = ds.Get(ctx, got)
	if got.Threshold != 0.8 || got.Name != "gate-camera" || len(got.AppDepends) != 0 {
		t.Errorf("put should replace the row, got %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at changed from %v to %v", created, got.CreatedAt)
	}

	list, err := ds.List(ctx, &types.TaskRecord{}, nil)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}

	if err := ds.Delete(ctx, &types.TaskRecord{ID: "a1b2c3d4"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ds.Get(ctx, &types.TaskRecord{ID: "a1b2c3d4"}); !errors.Is(err, datastore.ErrRecordNotExist) {
		t.Errorf("expected ErrRecordNotExist after delete, got %v", err)
	}
	if err := ds.Delete(ctx, &types.TaskRecord{ID: "a1b2c3d4"}); !errors.Is(err, datastore.ErrRecordNotExist) {
		t.Errorf("expected ErrRecordNotExist on second delete, got %v", err)
	}
}

func TestModelCount(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"resnet", "yolov4"} {
		m := &types.ModelRecord{Name: name, Tag: "obj", Framework: "openvino", ModelPath: "/m/" + name, LabelPath: "/m/l.txt"}
		if err := ds.Add(ctx, m); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	n, err := ds.Count(ctx, &types.ModelRecord{Tag: "obj"}, nil)
	if err != nil || n != 2 {
		t.Errorf("count = %d, %v", n, err)
	}
	n, _ = ds.Count(ctx, &types.ModelRecord{}, &datastore.FilterOptions{
		In: []datastore.InQueryOption{{Key: "name", Values: []string{"yolov4", "missing"}}},
	})
	if n != 1 {
		t.Errorf("in filter count = %d", n)
	}
}

func TestPutInsertsMissingRow(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()
	m := &types.ModelRecord{Name: "yolov4", Tag: "obj", Framework: "openvino", ModelPath: "/m/y.xml", LabelPath: "/m/l.txt"}
	if err := ds.Put(ctx, m); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, err := ds.IsExist(ctx, &types.ModelRecord{Name: "yolov4"}); err != nil || !ok {
		t.Errorf("exist = %v, %v", ok, err)
	}
	list, err := ds.List(ctx, &types.ModelRecord{}, &datastore.ListOptions{Page: 1, PageSize: 10})
	if err != nil || len(list) != 1 || list[0].(*types.ModelRecord).ModelPath != "/m/y.xml" {
		t.Errorf("list = %v, %v", list, err)
	}
}
