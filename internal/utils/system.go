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

package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
)

// HostLoad is a cpu/memory usage sample in percent.
type HostLoad struct {
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
}

// DeviceInfo describes an accelerator visible to the host.
type DeviceInfo struct {
	Name   string `json:"name"`
	Vendor string `json:"vendor"`
	Type   string `json:"type"`
}

// HostInfo is the platform summary reported by the platform endpoint.
type HostInfo struct {
	Hostname string       `json:"hostname"`
	OS       string       `json:"os"`
	Arch     string       `json:"arch"`
	Kernel   string       `json:"kernel"`
	Platform string       `json:"platform"`
	Devices  []DeviceInfo `json:"devices"`
}

var (
	tegraRelease = "/etc/nv_tegra_release"
	xilinxNodes  = []string{"/dev/dpu", "/dev/xclmgmt*", "/dev/xocl*"}
)

// DetectGPUs lists graphics cards through ghw.
func DetectGPUs() []DeviceInfo {
	devices := make([]DeviceInfo, 0)
	gpu, err := ghw.GPU()
	if err != nil {
		return devices
	}
	for _, card := range gpu.GraphicsCards {
		if card.DeviceInfo == nil {
			continue
		}
		d := DeviceInfo{Type: "GPU"}
		if card.DeviceInfo.Product != nil {
			d.Name = card.DeviceInfo.Product.Name
		}
		if card.DeviceInfo.Vendor != nil {
			d.Vendor = card.DeviceInfo.Vendor.Name
		}
		devices = append(devices, d)
	}
	return devices
}

// DetectPlatform guesses the accelerator platform of this host.
func DetectPlatform() string {
	if _, err := os.Stat(tegraRelease); err == nil {
		return constants.PlatformNvidia
	}
	for _, pattern := range xilinxNodes {
		if matches, _ := filepath.Glob(pattern); len(matches) > 0 {
			return constants.PlatformXilinx
		}
	}
	for _, d := range DetectGPUs() {
		vendor := strings.ToLower(d.Vendor + " " + d.Name)
		switch {
		case strings.Contains(vendor, "nvidia"):
			return constants.PlatformNvidia
		case strings.Contains(vendor, "xilinx"):
			return constants.PlatformXilinx
		}
	}
	return constants.PlatformIntel
}

// PlatformFramework maps a platform to the framework it runs natively.
func PlatformFramework(platform string) string {
	switch platform {
	case constants.PlatformNvidia:
		return constants.FrameworkTensorRT
	case constants.PlatformXilinx:
		return constants.FrameworkVitis
	default:
		return constants.FrameworkOpenVINO
	}
}

// SystemHostInfo collects the platform summary.
func SystemHostInfo() HostInfo {
	info := HostInfo{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Platform: DetectPlatform(),
		Devices:  DetectGPUs(),
	}
	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		info.Kernel = h.KernelVersion
		if h.Platform != "" {
			info.OS = h.Platform + " " + h.PlatformVersion
		}
	}
	if info.Hostname == "" {
		info.Hostname, _ = os.Hostname()
	}
	return info
}

// SystemLoad samples cpu and memory usage. interval 0 compares against the previous call.
func SystemLoad(interval time.Duration) HostLoad {
	load := HostLoad{}
	if percent, err := cpu.Percent(interval, false); err == nil && len(percent) > 0 {
		load.CPU = percent[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		load.Memory = vm.UsedPercent
	}
	return load
}

// SystemDiskFree returns the free bytes on the filesystem holding path.
func SystemDiskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// ListV4L2Devices returns the video capture nodes under /dev.
func ListV4L2Devices() []string {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return []string{}
	}
	return matches
}
