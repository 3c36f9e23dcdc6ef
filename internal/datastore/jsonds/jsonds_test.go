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

package jsonds

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore/jsonds/data"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

func TestEmbeddedCatalog(t *testing.T) {
	ds := NewJSONDatastore(data.JsonDataStoreFS)
	if err := ds.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	tpl := &types.ModelTemplate{Tag: "cls"}
	if err := ds.Get(context.Background(), tpl); err != nil {
		t.Fatalf("Get template: %v", err)
	}
	if tpl.InputSize != "3,224,224" || tpl.Preprocess != "torch" || tpl.Threshold != 0.7 {
		t.Errorf("unexpected cls template %+v", tpl)
	}

	apps, err := ds.List(context.Background(), &types.ApplicationRecord{}, &datastore.ListOptions{
		FilterOptions: datastore.FilterOptions{In: []datastore.InQueryOption{{Key: "tags", Values: []string{"cls"}}}},
		SortBy:        []datastore.SortOption{{Key: "name", Order: datastore.SortOrderAscending}},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	names := make([]string, 0, len(apps))
	for _, a := range apps {
		names = append(names, a.(*types.ApplicationRecord).Name)
	}
	want := []string{"Basic_Classification", "Event_Logic", "default"}
	if len(names) != len(want) {
		t.Fatalf("cls apps = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("cls apps = %v, want %v", names, want)
			break
		}
	}
}

func TestGetMissingAndPaging(t *testing.T) {
	fsys := fstest.MapFS{
		"model_template.json": {Data: []byte(`[{"tag":"a"},{"tag":"b"},{"tag":"c"}]`)},
		"notes.txt":           {Data: []byte("ignored")},
	}
	ds := NewJSONDatastore(fsys)
	if err := ds.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := ds.Get(context.Background(), &types.ModelTemplate{Tag: "seg"}); err != datastore.ErrRecordNotExist {
		t.Errorf("expected ErrRecordNotExist, got %v", err)
	}
	if err := ds.Get(context.Background(), &types.ModelTemplate{}); err != datastore.ErrPrimaryEmpty {
		t.Errorf("expected ErrPrimaryEmpty, got %v", err)
	}

	page, err := ds.List(context.Background(), &types.ModelTemplate{}, &datastore.ListOptions{
		Page:     2,
		PageSize: 2,
		SortBy:   []datastore.SortOption{{Key: "tag", Order: datastore.SortOrderDescending}},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 1 || page[0].(*types.ModelTemplate).Tag != "a" {
		t.Errorf("unexpected page %v", page)
	}
}
