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
	NotFoundCode = NewBcode(http.StatusOK, 20000, "resource interface call success")

	ErrTaskNotFound   = NewBcode(http.StatusNotFound, 20001, "Task not found")
	ErrModelNotFound  = NewBcode(http.StatusNotFound, 20002, "Model not found")
	ErrImportNotFound = NewBcode(http.StatusNotFound, 20003, "Import job not found")
	ErrSourceNotFound = NewBcode(http.StatusNotFound, 20004, "Source not found")
	ErrFrameNotReady  = NewBcode(http.StatusNotFound, 20005, "No frame published yet")
)
