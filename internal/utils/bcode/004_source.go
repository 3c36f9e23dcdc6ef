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
	SourceCode = NewBcode(http.StatusOK, 40000, "source interface call success")

	ErrSourceOpen   = NewBcode(http.StatusInternalServerError, 40001, "Failed to open source")
	ErrSourceRead   = NewBcode(http.StatusInternalServerError, 40002, "Couldn't get the frame data")
	ErrSourceClosed = NewBcode(http.StatusInternalServerError, 40003, "Source is closed")
	ErrSourceReload = NewBcode(http.StatusInternalServerError, 40004, "Failed to reload source")
)
