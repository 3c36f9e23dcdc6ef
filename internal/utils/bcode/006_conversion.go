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
	ConversionCode = NewBcode(http.StatusOK, 60000, "import interface call success")

	ErrDownload         = NewBcode(http.StatusInternalServerError, 60001, "Failed to download model bundle")
	ErrChecksumMismatch = NewBcode(http.StatusInternalServerError, 60002, "Checksum mismatch, the artifact is corrupted")
	ErrBundleInvalid    = NewBcode(http.StatusInternalServerError, 60003, "Invalid model bundle")
	ErrPlatformMismatch = NewBcode(http.StatusInternalServerError, 60004, "Model platform does not match this device")
	ErrConvert          = NewBcode(http.StatusInternalServerError, 60005, "Model conversion failed")
	ErrImportCanceled   = NewBcode(http.StatusInternalServerError, 60006, "Import canceled")
	ErrDiskSpace        = NewBcode(http.StatusInternalServerError, 60007, "Not enough disk space")
)
