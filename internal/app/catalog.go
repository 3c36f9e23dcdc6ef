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

package app

import (
	"context"
	"errors"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

// Catalog answers which applications exist and which model tags they serve.
type Catalog struct {
	ds datastore.JsonDatastore
}

func NewCatalog(ds datastore.JsonDatastore) *Catalog {
	return &Catalog{ds: ds}
}

// List returns every application, sorted by name.
func (c *Catalog) List(ctx context.Context) ([]*types.ApplicationRecord, error) {
	return c.list(ctx, nil)
}

// ForTag returns the application names usable with a model tag. A tag
// nothing is registered for gets the default application.
func (c *Catalog) ForTag(ctx context.Context, tag string) ([]string, error) {
	apps, err := c.list(ctx, []datastore.InQueryOption{{Key: "tags", Values: []string{tag}}})
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return []string{types.DefaultApplication}, nil
	}
	names := make([]string, 0, len(apps))
	for _, a := range apps {
		names = append(names, a.Name)
	}
	return names, nil
}

// Validate checks that cfg names a known application that serves tag and
// carries what the application needs.
func (c *Catalog) Validate(ctx context.Context, cfg *types.ApplicationConfig, tag string) error {
	if cfg == nil || cfg.Name == "" || cfg.Name == types.DefaultApplication {
		return nil
	}
	rec := &types.ApplicationRecord{Name: cfg.Name}
	if err := c.ds.Get(ctx, rec); err != nil {
		if errors.Is(err, datastore.ErrRecordNotExist) {
			return bcode.WrapError(bcode.ErrAppInvalid, errors.New("unknown application: "+cfg.Name))
		}
		return err
	}
	if tag != "" && !containsTag(rec.Tags, tag) {
		return bcode.WrapError(bcode.ErrAppInvalid, errors.New("application "+cfg.Name+" does not support "+tag+" models"))
	}
	if rec.NeedArea && len(cfg.AreaPoints) == 0 {
		return bcode.WrapError(bcode.ErrAppInvalid, errors.New("application "+cfg.Name+" needs area_points"))
	}
	if rec.NeedLogic && cfg.Logic == "" {
		return bcode.WrapError(bcode.ErrAppInvalid, errors.New("application "+cfg.Name+" needs logic"))
	}
	return nil
}

func (c *Catalog) list(ctx context.Context, in []datastore.InQueryOption) ([]*types.ApplicationRecord, error) {
	entities, err := c.ds.List(ctx, &types.ApplicationRecord{}, &datastore.ListOptions{
		FilterOptions: datastore.FilterOptions{In: in},
		SortBy:        []datastore.SortOption{{Key: "name", Order: datastore.SortOrderAscending}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*types.ApplicationRecord, 0, len(entities))
	for _, e := range entities {
		if rec, ok := e.(*types.ApplicationRecord); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Template returns the model config defaults for a tag.
func (c *Catalog) Template(ctx context.Context, tag string) (*types.ModelTemplate, error) {
	tpl := &types.ModelTemplate{Tag: tag}
	if err := c.ds.Get(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}
