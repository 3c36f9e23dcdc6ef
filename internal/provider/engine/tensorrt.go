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

package engine

import (
	"net/http"
	"net/url"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
)

// NewTensorRTEngine talks to a Triton server running in explicit model control
// mode, loading a task's model when it is not ready yet.
func NewTensorRTEngine(base *url.URL, hc *http.Client) Engine {
	return newKServe(constants.FrameworkTensorRT, base, hc, true)
}
