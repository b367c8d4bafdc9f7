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

// Package usb detects Realtek WCPU adapters on USB
package usb

import (
	"context"
	"fmt"

	busb "github.com/ZaparooProject/go-wcpu/bus/usb"
	"github.com/ZaparooProject/go-wcpu/detection"
	"github.com/google/gousb"
)

// detector implements the Detector interface for USB adapters
type detector struct{}

// New creates a new USB detector
func New() detection.Detector {
	return &detector{}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Bus returns the bus name
func (*detector) Bus() string {
	return "usb"
}

// Detect enumerates USB descriptors without opening any device, then in
// Probe mode opens each match to read its firmware control register.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	usbCtx := gousb.NewContext()
	var devices []detection.DeviceInfo
	_, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if dev, ok := describe(desc, opts); ok {
			devices = append(devices, dev)
		}
		return false
	})
	_ = usbCtx.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	if opts.Mode == detection.Probe {
		for i := range devices {
			select {
			case <-ctx.Done():
				return devices[:i], detection.ErrDetectionTimeout
			default:
			}
			probe(&devices[i])
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// describe turns a matching descriptor into a DeviceInfo
func describe(desc *gousb.DeviceDesc, opts *detection.Options) (detection.DeviceInfo, bool) {
	if desc.Vendor != busb.VendorRealtek {
		return detection.DeviceInfo{}, false
	}
	known := false
	for _, id := range busb.DefaultProducts {
		if desc.Product == id {
			known = true
			break
		}
	}
	if !known {
		return detection.DeviceInfo{}, false
	}

	dev := detection.DeviceInfo{
		Bus:    "usb",
		Path:   fmt.Sprintf("%d:%d", desc.Bus, desc.Address),
		Name:   fmt.Sprintf("Realtek %s", desc.Product),
		VIDPID: detection.FormatVIDPID(uint16(desc.Vendor), uint16(desc.Product)),
		Metadata: map[string]string{
			"speed": desc.Speed.String(),
			"port":  fmt.Sprintf("%d", desc.Port),
		},
	}
	if detection.IsBlocked(dev.VIDPID, opts.Blocklist) || detection.IsPathIgnored(dev.Path, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}
	return dev, true
}

func probe(dev *detection.DeviceInfo) {
	_, pid, err := detection.ParseVIDPID(dev.VIDPID)
	if err != nil {
		dev.Metadata["probe_error"] = err.Error()
		return
	}
	b, err := busb.Open(gousb.ID(pid), dev.Path)
	if err != nil {
		dev.Metadata["probe_error"] = err.Error()
		return
	}
	defer func() { _ = b.Close() }()

	meta, err := detection.ProbeMetadata(b)
	if err != nil {
		dev.Metadata["probe_error"] = err.Error()
		return
	}
	for k, v := range meta {
		dev.Metadata[k] = v
	}
}
