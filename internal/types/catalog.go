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

import "time"

const (
	TableApplication   = "application"
	TableModelTemplate = "model_template"
)

// ApplicationRecord is one entry of the shipped application catalog.
type ApplicationRecord struct {
	Name        string     `json:"name"`
	Tags        StringList `json:"tags"`
	NeedArea    bool       `json:"need_area"`
	NeedLogic   bool       `json:"need_logic"`
	Description string     `json:"description"`
}

func (a *ApplicationRecord) SetCreateTime(time.Time) {}

func (a *ApplicationRecord) SetUpdateTime(time.Time) {}

func (a *ApplicationRecord) PrimaryKey() string {
	return "name"
}

func (a *ApplicationRecord) TableName() string {
	return TableApplication
}

func (a *ApplicationRecord) Index() map[string]interface{} {
	index := make(map[string]interface{})
	if a.Name != "" {
		index["name"] = a.Name
	}
	return index
}

// ModelTemplate holds the defaults used to generate a model config for a tag.
type ModelTemplate struct {
	Tag        string  `json:"tag"`
	InputSize  string  `json:"input_size"`
	Preprocess string  `json:"preprocess"`
	Threshold  float64 `json:"threshold"`
}

func (m *ModelTemplate) SetCreateTime(time.Time) {}

func (m *ModelTemplate) SetUpdateTime(time.Time) {}

func (m *ModelTemplate) PrimaryKey() string {
	return "tag"
}

func (m *ModelTemplate) TableName() string {
	return TableModelTemplate
}

func (m *ModelTemplate) Index() map[string]interface{} {
	index := make(map[string]interface{})
	if m.Tag != "" {
		index["tag"] = m.Tag
	}
	return index
}
