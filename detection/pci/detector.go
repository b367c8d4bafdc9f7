// go-wcpu
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-wcpu.
//
// go-wcpu is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-wcpu is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-wcpu; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package pci detects WCPU chips on the PCI bus through sysfs
package pci

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/ZaparooProject/go-wcpu/bus/mmio"
	"github.com/ZaparooProject/go-wcpu/detection"
)

// VendorRealtek is the PCI vendor ID of Realtek
const VendorRealtek = 0x10ec

// Devices maps known 802.11ax PCI device IDs to part names
var Devices = map[uint16]string{
	0x8852: "RTL8852AE",
	0xa85a: "RTL8852AE",
	0xb852: "RTL8852BE",
	0xb85b: "RTL8852BE",
	0xc852: "RTL8852CE",
	0xb851: "RTL8851BE",
}

// detector implements the Detector interface for PCI devices
type detector struct {
	root string
}

// New creates a PCI detector reading sysfs
func New() detection.Detector {
	return &detector{root: "/sys/bus/pci/devices"}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Bus returns the bus name
func (*detector) Bus() string {
	return "mmio"
}

// Detect lists Realtek 802.11ax functions. Probe mode maps each BAR and
// reads the firmware control register, which needs the kernel driver
// unbound.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if runtime.GOOS != "linux" {
		return nil, detection.ErrUnsupportedPlatform
	}

	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.root, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var devices []detection.DeviceInfo
	for _, addr := range names {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		dev, ok := d.describe(addr)
		if !ok {
			continue
		}
		if detection.IsBlocked(dev.VIDPID, opts.Blocklist) || detection.IsPathIgnored(dev.Path, opts.IgnorePaths) {
			continue
		}

		if opts.Mode == detection.Probe {
			if meta, err := probe(addr); err == nil {
				for k, v := range meta {
					dev.Metadata[k] = v
				}
			} else {
				dev.Metadata["probe_error"] = err.Error()
			}
		}
		devices = append(devices, dev)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// describe reads the uevent of one sysfs entry
func (d *detector) describe(addr string) (detection.DeviceInfo, bool) {
	data, err := os.ReadFile(filepath.Join(d.root, addr, "uevent"))
	if err != nil {
		return detection.DeviceInfo{}, false
	}
	env := detection.ParseUevent(string(data))
	vendor, device, err := detection.ParseVIDPID(env["PCI_ID"])
	if err != nil || vendor != VendorRealtek {
		return detection.DeviceInfo{}, false
	}
	part, ok := Devices[device]
	if !ok {
		return detection.DeviceInfo{}, false
	}

	meta := map[string]string{}
	if drv := env["DRIVER"]; drv != "" {
		meta["driver"] = drv
	}

	return detection.DeviceInfo{
		Bus:      "mmio",
		Path:     addr,
		Name:     part,
		VIDPID:   detection.FormatVIDPID(vendor, device),
		Metadata: meta,
	}, true
}

func probe(addr string) (map[string]string, error) {
	b, err := mmio.Open(addr, mmio.DefaultBAR)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()
	return detection.ProbeMetadata(b)
}
