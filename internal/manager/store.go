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

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// DatastoreStore keeps descriptors in a datastore.Datastore.
type DatastoreStore struct {
	ds datastore.Datastore
}

func NewDatastoreStore(ds datastore.Datastore) *DatastoreStore {
	return &DatastoreStore{ds: ds}
}

func (s *DatastoreStore) ListTasks(ctx context.Context) ([]*types.TaskRecord, error) {
	entities, err := s.ds.List(ctx, &types.TaskRecord{}, &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "created_at", Order: datastore.SortOrderAscending}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*types.TaskRecord, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.(*types.TaskRecord))
	}
	return out, nil
}

// SaveTask replaces the whole row, cleared fields included.
func (s *DatastoreStore) SaveTask(ctx context.Context, rec *types.TaskRecord) error {
	return s.ds.Put(ctx, rec)
}

func (s *DatastoreStore) DeleteTask(ctx context.Context, id string) error {
	err := s.ds.Delete(ctx, &types.TaskRecord{ID: id})
	if errors.Is(err, datastore.ErrRecordNotExist) {
		return nil
	}
	return err
}

func (s *DatastoreStore) GetModel(ctx context.Context, name string) (*types.ModelRecord, error) {
	rec := &types.ModelRecord{Name: name}
	if err := s.ds.Get(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *DatastoreStore) ListModels(ctx context.Context) ([]*types.ModelRecord, error) {
	entities, err := s.ds.List(ctx, &types.ModelRecord{}, &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "name", Order: datastore.SortOrderAscending}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*types.ModelRecord, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.(*types.ModelRecord))
	}
	return out, nil
}

func (s *DatastoreStore) SaveModel(ctx context.Context, rec *types.ModelRecord) error {
	return s.ds.Put(ctx, rec)
}

func (s *DatastoreStore) DeleteModel(ctx context.Context, name string) error {
	err := s.ds.Delete(ctx, &types.ModelRecord{Name: name})
	if errors.Is(err, datastore.ErrRecordNotExist) {
		return nil
	}
	return err
}
