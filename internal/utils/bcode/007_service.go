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

// Success codes of the query and control interfaces.
var (
	TaskCode    = NewBcode(http.StatusOK, 70000, "task interface call success")
	ModelCode   = NewBcode(http.StatusOK, 70001, "model interface call success")
	ImportCode  = NewBcode(http.StatusOK, 70002, "import job interface call success")
	SystemCode  = NewBcode(http.StatusOK, 70003, "system interface call success")
	HealthCode  = NewBcode(http.StatusOK, 70004, "health interface call success")
	VersionCode = NewBcode(http.StatusOK, 70005, "version interface call success")
	AppCode     = NewBcode(http.StatusOK, 70006, "application interface call success")
)
