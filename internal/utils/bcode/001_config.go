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

package bcode

import "net/http"

var (
	ConfigCode = NewBcode(http.StatusOK, 10000, "config interface call success")

	ErrTaskConfigMissing = NewBcode(http.StatusBadRequest, 10001, "Can't find AI Task Configuration")
	ErrModelFileMissing  = NewBcode(http.StatusBadRequest, 10002, "Can't find AI Model")
	ErrLabelFileMissing  = NewBcode(http.StatusBadRequest, 10003, "Can't find Label file")
	ErrSourceInvalid     = NewBcode(http.StatusBadRequest, 10004, "Invalid source")
	ErrTaskNameExists    = NewBcode(http.StatusBadRequest, 10005, "Task is already exist")
	ErrFrameworkUnknown  = NewBcode(http.StatusBadRequest, 10006, "Unsupported framework")
	ErrFieldRequired     = NewBcode(http.StatusBadRequest, 10007, "Required field is missing")
	ErrAppInvalid        = NewBcode(http.StatusBadRequest, 10008, "Invalid application config")
	ErrImportBadRequest  = NewBcode(http.StatusBadRequest, 10009, "Invalid import request")
)
