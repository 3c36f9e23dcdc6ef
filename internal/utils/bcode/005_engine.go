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
	EngineCode = NewBcode(http.StatusOK, 50000, "engine interface call success")

	ErrEngineInit        = NewBcode(http.StatusInternalServerError, 50001, "Failed to initialize inference engine")
	ErrEngineInfer       = NewBcode(http.StatusInternalServerError, 50002, "Inference failed")
	ErrEngineUnavailable = NewBcode(http.StatusInternalServerError, 50003, "Inference engine is unavailable")
	ErrEnginePlugin      = NewBcode(http.StatusInternalServerError, 50004, "Failed to load engine plugin")
)
