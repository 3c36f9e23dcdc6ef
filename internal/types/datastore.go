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

package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// Database table names
	TableTask  = "ivit_task"
	TableModel = "ivit_model"
)

// StringList is stored as a JSON array column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StringList) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		*s = StringList{}
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type: %T", value)
	}
	if len(bytes) == 0 {
		*s = StringList{}
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// TaskRecord is the persisted descriptor of one inference task.
type TaskRecord struct {
	ID          string     `gorm:"primaryKey;column:id" json:"id"`
	Name        string     `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Source      string     `gorm:"column:source;not null" json:"source"`
	SourceKind  string     `gorm:"column:source_kind" json:"source_kind"`
	ModelName   string     `gorm:"column:model_name;not null" json:"model_name"`
	Device      string     `gorm:"column:device;default:''" json:"device"`
	Threshold   float64    `gorm:"column:threshold;default:0.5" json:"threshold"`
	AppName     string     `gorm:"column:app_name;default:default" json:"app_name"`
	AppDepends  StringList `gorm:"column:app_depends;type:text" json:"app_depends"`
	AppArea     string     `gorm:"column:app_area;type:text;default:''" json:"app_area"`
	AppLogic    string     `gorm:"column:app_logic;type:text;default:''" json:"app_logic"`
	Description string     `gorm:"column:description;default:''" json:"description"`
	CreatedAt   time.Time  `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (t *TaskRecord) SetCreateTime(time time.Time) {
	t.CreatedAt = time
}

func (t *TaskRecord) SetUpdateTime(time time.Time) {
	t.UpdatedAt = time
}

func (t *TaskRecord) PrimaryKey() string {
	return "id"
}

func (t *TaskRecord) TableName() string {
	return TableTask
}

func (t *TaskRecord) Index() map[string]interface{} {
	index := make(map[string]interface{})
	if t.ID != "" {
		index["id"] = t.ID
	}
	if t.Name != "" {
		index["name"] = t.Name
	}
	if t.ModelName != "" {
		index["model_name"] = t.ModelName
	}
	return index
}

// Application decodes the application part of the record.
func (t *TaskRecord) Application() (*ApplicationConfig, error) {
	app := &ApplicationConfig{
		Name:     t.AppName,
		DependOn: []string(t.AppDepends),
		Logic:    t.AppLogic,
	}
	if app.Name == "" {
		app.Name = DefaultApplication
	}
	if t.AppArea != "" {
		if err := json.Unmarshal([]byte(t.AppArea), &app.AreaPoints); err != nil {
			return nil, fmt.Errorf("invalid area points: %w", err)
		}
	}
	return app, nil
}

// ModelRecord is an installed model available to tasks.
type ModelRecord struct {
	Name       string    `gorm:"primaryKey;column:name" json:"name"`
	Tag        string    `gorm:"column:tag;not null" json:"tag"`
	Framework  string    `gorm:"column:framework;not null" json:"framework"`
	ModelPath  string    `gorm:"column:model_path;not null" json:"model_path"`
	LabelPath  string    `gorm:"column:label_path;not null" json:"label_path"`
	ConfigPath string    `gorm:"column:config_path;default:''" json:"config_path"`
	InputSize  string    `gorm:"column:input_size;default:''" json:"input_size"`
	Preprocess string    `gorm:"column:preprocess;default:caffe" json:"preprocess"`
	Anchors    string    `gorm:"column:anchors;default:''" json:"anchors"`
	Status     string    `gorm:"column:status;not null;default:ready" json:"status"`
	CreatedAt  time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (t *ModelRecord) SetCreateTime(time time.Time) {
	t.CreatedAt = time
}

func (t *ModelRecord) SetUpdateTime(time time.Time) {
	t.UpdatedAt = time
}

func (t *ModelRecord) PrimaryKey() string {
	return "name"
}

func (t *ModelRecord) TableName() string {
	return TableModel
}

func (t *ModelRecord) Index() map[string]interface{} {
	index := make(map[string]interface{})
	if t.Name != "" {
		index["name"] = t.Name
	}
	if t.Tag != "" {
		index["tag"] = t.Tag
	}
	return index
}
