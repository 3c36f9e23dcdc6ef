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

package version

const IVITVersion = "v1.3"

// SpecVersion is the version segment of the HTTP routes.
const SpecVersion = "v1"

const IVITName = "iVIT-I"

const IVITDescription = "iVIT-I runs several video inference tasks on one edge device, shares cameras and streams between them, and imports new models while they keep running."
