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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// SQLite keeps task and model descriptors in a single database file.
type SQLite struct {
	db *gorm.DB
}

// New opens (or creates) the database at dbPath.
func New(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create datastore dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dbPath+"?_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, datastore.NewDBError(err)
	}
	// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, datastore.NewDBError(err)
	}
	sqlDB.SetMaxOpenConns(1)
	return &SQLite{db: db}, nil
}

// Init creates the descriptor tables when missing.
func (ds *SQLite) Init() error {
	if err := ds.db.AutoMigrate(&types.TaskRecord{}, &types.ModelRecord{}); err != nil {
		return datastore.NewDBError(err)
	}
	return nil
}

// Close releases the database handle.
func (ds *SQLite) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return datastore.NewDBError(err)
	}
	return sqlDB.Close()
}

func checkEntity(entity datastore.Entity, needPrimary bool) error {
	if entity == nil {
		return datastore.ErrNilEntity
	}
	if entity.TableName() == "" {
		return datastore.ErrTableNameEmpty
	}
	if needPrimary {
		if _, ok := entity.Index()[entity.PrimaryKey()]; !ok {
			return datastore.ErrPrimaryEmpty
		}
	}
	return nil
}

// byPrimary narrows db to the row holding the entity's primary key.
func byPrimary(db *gorm.DB, entity datastore.Entity) *gorm.DB {
	column := entity.PrimaryKey()
	return db.Where(fmt.Sprintf("%s = ?", column), entity.Index()[column])
}

// where narrows db to the non-empty index columns of entity.
func where(db *gorm.DB, entity datastore.Entity) *gorm.DB {
	for column, value := range entity.Index() {
		db = db.Where(fmt.Sprintf("%s = ?", column), value)
	}
	return db
}

func filter(db *gorm.DB, options datastore.FilterOptions) *gorm.DB {
	for _, q := range options.Queries {
		db = db.Where(fmt.Sprintf("%s LIKE ?", q.Key), "%"+q.Query+"%")
	}
	for _, in := range options.In {
		db = db.Where(fmt.Sprintf("%s IN ?", in.Key), in.Values)
	}
	for _, ne := range options.IsNotExist {
		db = db.Where(fmt.Sprintf("%s IS NULL", ne.Key))
	}
	return db
}

// Add inserts a new row; an existing primary key yields ErrRecordExist.
func (ds *SQLite) Add(ctx context.Context, entity datastore.Entity) error {
	if err := checkEntity(entity, true); err != nil {
		return err
	}
	exist, err := ds.IsExist(ctx, entity)
	if err != nil {
		return err
	}
	if exist {
		return datastore.ErrRecordExist
	}
	now := time.Now().UTC()
	entity.SetCreateTime(now)
	entity.SetUpdateTime(now)
	if err := ds.db.WithContext(ctx).Create(entity).Error; err != nil {
		return datastore.NewDBError(err)
	}
	return nil
}

// Put writes every column of entity, inserting the row when it is missing.
// Zero values overwrite stored ones; created_at is kept from the first insert.
func (ds *SQLite) Put(ctx context.Context, entity datastore.Entity) error {
	if err := checkEntity(entity, true); err != nil {
		return err
	}
	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := byPrimary(tx.Model(entity), entity).Count(&count).Error; err != nil {
			return datastore.NewDBError(err)
		}
		now := time.Now().UTC()
		entity.SetUpdateTime(now)
		if count == 0 {
			entity.SetCreateTime(now)
			if err := tx.Create(entity).Error; err != nil {
				return datastore.NewDBError(err)
			}
			return nil
		}
		if err := byPrimary(tx.Model(entity), entity).Select("*").Omit("created_at").Updates(entity).Error; err != nil {
			return datastore.NewDBError(err)
		}
		return nil
	})
}

// Delete removes the row holding the entity's primary key.
func (ds *SQLite) Delete(ctx context.Context, entity datastore.Entity) error {
	if err := checkEntity(entity, true); err != nil {
		return err
	}
	result := byPrimary(ds.db.WithContext(ctx), entity).Delete(entity)
	if result.Error != nil {
		return datastore.NewDBError(result.Error)
	}
	if result.RowsAffected == 0 {
		return datastore.ErrRecordNotExist
	}
	return nil
}

// Get fills entity from the row holding its primary key.
func (ds *SQLite) Get(ctx context.Context, entity datastore.Entity) error {
	if err := checkEntity(entity, true); err != nil {
		return err
	}
	err := byPrimary(ds.db.WithContext(ctx).Model(entity), entity).Take(entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return datastore.ErrRecordNotExist
	}
	if err != nil {
		return datastore.NewDBError(err)
	}
	return nil
}

// List returns rows of the query's table matching its index and options.
func (ds *SQLite) List(ctx context.Context, query datastore.Entity, options *datastore.ListOptions) ([]datastore.Entity, error) {
	if err := checkEntity(query, false); err != nil {
		return nil, err
	}
	db := where(ds.db.WithContext(ctx).Model(query), query)
	if options != nil {
		db = filter(db, options.FilterOptions)
		for _, s := range options.SortBy {
			order := "ASC"
			if s.Order == datastore.SortOrderDescending {
				order = "DESC"
			}
			db = db.Order(s.Key + " " + order)
		}
		if options.PageSize > 0 {
			page := options.Page
			if page < 1 {
				page = 1
			}
			db = db.Limit(options.PageSize).Offset((page - 1) * options.PageSize)
		}
	}

	rows, err := db.Rows()
	if err != nil {
		return nil, datastore.NewDBError(err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]datastore.Entity, 0)
	for rows.Next() {
		e, err := datastore.NewEntity(query)
		if err != nil {
			return nil, err
		}
		if err := ds.db.ScanRows(rows, e); err != nil {
			return nil, datastore.NewDBError(err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Count returns how many rows match the entity index and options.
func (ds *SQLite) Count(ctx context.Context, entity datastore.Entity, options *datastore.FilterOptions) (int64, error) {
	if err := checkEntity(entity, false); err != nil {
		return 0, err
	}
	db := where(ds.db.WithContext(ctx).Model(entity), entity)
	if options != nil {
		db = filter(db, *options)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, datastore.NewDBError(err)
	}
	return count, nil
}

func (ds *SQLite) IsExist(ctx context.Context, entity datastore.Entity) (bool, error) {
	if err := checkEntity(entity, true); err != nil {
		return false, err
	}
	var count int64
	if err := byPrimary(ds.db.WithContext(ctx).Model(entity), entity).Count(&count).Error; err != nil {
		return false, datastore.NewDBError(err)
	}
	return count > 0, nil
}
