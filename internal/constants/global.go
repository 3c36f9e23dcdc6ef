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

package constants

const (
	AppName = "ivit"

	DefaultHTTPPort   = "819"
	DefaultHost       = "127.0.0.1"
	DefaultListenHost = "0.0.0.0"
	DefaultHTTPSPort  = "443"
	DefaultHTTPPort80 = "80"
)

// Hardware platforms and the frameworks that serve them
const (
	PlatformNvidia = "nvidia"
	PlatformIntel  = "intel"
	PlatformXilinx = "xilinx"

	FrameworkTensorRT = "tensorrt"
	FrameworkOpenVINO = "openvino"
	FrameworkVitis    = "vitis-ai"
)

// Model tags
const (
	TagClassification = "cls"
	TagObject         = "obj"
	TagDarknet        = "darknet"
	TagSegmentation   = "seg"
)

const (
	Byte = 1

	KiloByte = Byte * 1000
	MegaByte = KiloByte * 1000
	GigaByte = MegaByte * 1000
)

// Directory names under the data dir
const (
	ModelDirectory  = "model"
	TaskDirectory   = "task"
	ImportDirectory = "import"
	PluginDirectory = "plugins"
	LogsDirectory   = "logs"
)
