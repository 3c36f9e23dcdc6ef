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

package datastore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
)

var (
	// ErrPrimaryEmpty Error that primary key is empty.
	ErrPrimaryEmpty = errors.New("entity primary is empty")
	// ErrTableNameEmpty Error that table name is empty.
	ErrTableNameEmpty = errors.New("entity table name is empty")
	// ErrNilEntity Error that entity is nil
	ErrNilEntity = errors.New("entity is nil")
	// ErrRecordExist Error that entity primary key is exist
	ErrRecordExist = errors.New("data record is exist")
	// ErrRecordNotExist Error that entity primary key is not exist
	ErrRecordNotExist = errors.New("data record is not exist")
	// ErrEntityInvalid Error that entity is invalid
	ErrEntityInvalid = errors.New("entity is invalid")
)

// DBError wraps a driver error so callers can tell storage failures from bad input.
type DBError struct {
	err error
}

func (d *DBError) Error() string {
	return fmt.Sprintf("datastore: %v", d.err)
}

func (d *DBError) Unwrap() error {
	return d.err
}

// NewDBError returns a *DBError wrapping err, or nil.
func NewDBError(err error) error {
	if err == nil {
		return nil
	}
	return &DBError{err: err}
}

// Entity is a row of one table.
type Entity interface {
	SetCreateTime(time time.Time)
	SetUpdateTime(time time.Time)
	PrimaryKey() string
	TableName() string
	Index() map[string]interface{}
}

// NewEntity returns a zero value of the same concrete type as in.
func NewEntity(in Entity) (Entity, error) {
	if in == nil {
		return nil, ErrNilEntity
	}
	t := reflect.TypeOf(in)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	e, ok := reflect.New(t).Interface().(Entity)
	if !ok {
		return nil, ErrEntityInvalid
	}
	return e, nil
}

type SortOrder int

const (
	SortOrderAscending SortOrder = iota
	SortOrderDescending
)

type SortOption struct {
	Key   string
	Order SortOrder
}

type FuzzyQueryOption struct {
	Key   string
	Query string
}

type InQueryOption struct {
	Key    string
	Values []string
}

type NotExistQueryOption struct {
	Key string
}

type FilterOptions struct {
	Queries    []FuzzyQueryOption
	In         []InQueryOption
	IsNotExist []NotExistQueryOption
}

type ListOptions struct {
	FilterOptions
	Page     int
	PageSize int
	SortBy   []SortOption
}

// Datastore is the descriptor store behind tasks and models.
type Datastore interface {
	Init() error
	Add(ctx context.Context, entity Entity) error
	Put(ctx context.Context, entity Entity) error
	Delete(ctx context.Context, entity Entity) error
	Get(ctx context.Context, entity Entity) error
	List(ctx context.Context, query Entity, options *ListOptions) ([]Entity, error)
	Count(ctx context.Context, entity Entity, options *FilterOptions) (int64, error)
	IsExist(ctx context.Context, entity Entity) (bool, error)
	Close() error
}

// JsonDatastore serves read-mostly catalogs shipped with the binary.
type JsonDatastore interface {
	Init() error
	Get(ctx context.Context, entity Entity) error
	List(ctx context.Context, query Entity, options *ListOptions) ([]Entity, error)
}

var (
	mu               sync.RWMutex
	defaultDatastore Datastore
	defaultJsonDs    JsonDatastore
)

func SetDefaultDatastore(ds Datastore) {
	mu.Lock()
	defer mu.Unlock()
	defaultDatastore = ds
}

func GetDefaultDatastore() Datastore {
	mu.RLock()
	defer mu.RUnlock()
	return defaultDatastore
}

func SetDefaultJsonDatastore(ds JsonDatastore) {
	mu.Lock()
	defer mu.Unlock()
	defaultJsonDs = ds
}

func GetDefaultJsonDatastore() JsonDatastore {
	mu.RLock()
	defer mu.RUnlock()
	return defaultJsonDs
}
