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
	ConflictCode = NewBcode(http.StatusOK, 30000, "conflict interface call success")

	ErrTaskRunning   = NewBcode(http.StatusConflict, 30001, "The task is running, stop it before editing")
	ErrImportRunning = NewBcode(http.StatusConflict, 30002, "An import job for this model is already running")
	ErrModelInUse    = NewBcode(http.StatusConflict, 30003, "The model is used by a task")
	ErrModelExists   = NewBcode(http.StatusConflict, 30004, "The model is already installed")
)
