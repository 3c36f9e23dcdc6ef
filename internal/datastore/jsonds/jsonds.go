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
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
)

// JSONDatastore is a read-only datastore over the JSON tables of a filesystem.
// Every *.json file is a table holding an array of objects.
type JSONDatastore struct {
	memoryStore map[string][]map[string]interface{} // tableName -> rows
	mutex       sync.RWMutex
	fs          fs.FS
}

func NewJSONDatastore(fsys fs.FS) *JSONDatastore {
	return &JSONDatastore{
		memoryStore: make(map[string][]map[string]interface{}),
		fs:          fsys,
	}
}

// Init implements datastore.JsonDatastore interface
func (j *JSONDatastore) Init() error {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	entries, err := fs.ReadDir(j.fs, ".")
	if err != nil {
		return fmt.Errorf("failed to read embedded directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := fs.ReadFile(j.fs, entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read embedded file %s: %w", entry.Name(), err)
		}

		var items []map[string]interface{}
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("failed to parse JSON file %s: %w", entry.Name(), err)
		}
		tableName := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		j.memoryStore[tableName] = items
		logger.LogicLogger.Debug("Loaded catalog table", "table", tableName, "items", len(items))
	}
	return nil
}

// Get fills entity from the row whose primary key equals the entity's.
func (j *JSONDatastore) Get(ctx context.Context, entity datastore.Entity) error {
	if entity == nil {
		return datastore.ErrNilEntity
	}
	tableName := entity.TableName()
	if tableName == "" {
		return datastore.ErrTableNameEmpty
	}
	key := entity.PrimaryKey()
	want, ok := entity.Index()[key]
	if !ok {
		return datastore.ErrPrimaryEmpty
	}

	j.mutex.RLock()
	defer j.mutex.RUnlock()

	for _, row := range j.memoryStore[tableName] {
		if fmt.Sprint(row[key]) == fmt.Sprint(want) {
			return decodeRow(row, entity)
		}
	}
	return datastore.ErrRecordNotExist
}

// List implements datastore.JsonDatastore interface
func (j *JSONDatastore) List(ctx context.Context, query datastore.Entity, options *datastore.ListOptions) ([]datastore.Entity, error) {
	if query == nil {
		return nil, datastore.ErrNilEntity
	}
	tableName := query.TableName()
	if tableName == "" {
		return nil, datastore.ErrTableNameEmpty
	}

	j.mutex.RLock()
	defer j.mutex.RUnlock()

	result := make([]datastore.Entity, 0)
	for _, row := range j.memoryStore[tableName] {
		if options != nil && !matchesFilters(row, &options.FilterOptions) {
			continue
		}
		entity, err := datastore.NewEntity(query)
		if err != nil {
			return nil, err
		}
		if err := decodeRow(row, entity); err != nil {
			continue
		}
		result = append(result, entity)
	}

	if options != nil && len(options.SortBy) > 0 {
		sort.SliceStable(result, func(a, b int) bool {
			return less(result[a], result[b], options.SortBy)
		})
	}

	if options != nil && options.PageSize > 0 {
		start := (options.Page - 1) * options.PageSize
		if start < 0 || start >= len(result) {
			return []datastore.Entity{}, nil
		}
		end := start + options.PageSize
		if end > len(result) {
			end = len(result)
		}
		result = result[start:end]
	}
	return result, nil
}

func decodeRow(row map[string]interface{}, entity datastore.Entity) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, entity)
}

func matchesFilters(row map[string]interface{}, options *datastore.FilterOptions) bool {
	for _, query := range options.Queries {
		value, ok := row[query.Key].(string)
		if !ok || !strings.Contains(strings.ToLower(value), strings.ToLower(query.Query)) {
			return false
		}
	}

	// IN matches a scalar column or any element of an array column.
	for _, in := range options.In {
		if !inMatch(row[in.Key], in.Values) {
			return false
		}
	}

	for _, notExist := range options.IsNotExist {
		if value, exists := row[notExist.Key]; exists && value != nil && value != "" {
			return false
		}
	}
	return true
}

func inMatch(value interface{}, values []string) bool {
	switch v := value.(type) {
	case string:
		for _, want := range values {
			if v == want {
				return true
			}
		}
	case []interface{}:
		for _, item := range v {
			if inMatch(item, values) {
				return true
			}
		}
	}
	return false
}

func less(a, b datastore.Entity, sortBy []datastore.SortOption) bool {
	av := reflect.Indirect(reflect.ValueOf(a))
	bv := reflect.Indirect(reflect.ValueOf(b))
	for _, order := range sortBy {
		af, bf := fieldByTag(av, order.Key), fieldByTag(bv, order.Key)
		if !af.IsValid() || !bf.IsValid() {
			continue
		}
		var lt, gt bool
		switch af.Kind() {
		case reflect.String:
			lt, gt = af.String() < bf.String(), af.String() > bf.String()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			lt, gt = af.Int() < bf.Int(), af.Int() > bf.Int()
		case reflect.Float32, reflect.Float64:
			lt, gt = af.Float() < bf.Float(), af.Float() > bf.Float()
		default:
			continue
		}
		if !lt && !gt {
			continue
		}
		if order.Order == datastore.SortOrderAscending {
			return lt
		}
		return gt
	}
	return false
}

func fieldByTag(v reflect.Value, key string) reflect.Value {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if tag == key {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}
