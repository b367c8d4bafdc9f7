//go:build linux

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

package i2c

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ZaparooProject/go-wcpu/bus/i2c"
	"github.com/ZaparooProject/go-wcpu/detection"
	"golang.org/x/sys/unix"
)

const (
	// I2CSlave is the ioctl command to set slave address
	I2CSlave = 0x0703

	// I2CFuncs is the ioctl command to get adapter functionality
	I2CFuncs = 0x0705

	// I2CFuncI2C indicates plain I2C support
	I2CFuncI2C = 0x00000001
)

// detectLinux searches /dev for I2C adapters with a responding bridge
func (d *detector) detectLinux(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	buses, err := findI2CBuses(d.devGlob)
	if err != nil {
		return nil, err
	}
	if len(buses) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo
	for _, busPath := range buses {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if detection.IsPathIgnored(busPath, opts.IgnorePaths) {
			continue
		}
		if !addressResponds(busPath, i2c.DefaultAddr) {
			continue
		}

		device := detection.DeviceInfo{
			Bus:  "i2c",
			Path: busPath,
			Name: fmt.Sprintf("WCPU bridge on %s address 0x%02X", busPath, i2c.DefaultAddr),
			Metadata: map[string]string{
				"address": fmt.Sprintf("0x%02X", i2c.DefaultAddr),
			},
		}

		if opts.Mode == detection.Probe {
			meta, err := probe(busPath)
			if err != nil {
				// something answers at the address but it is not a bridge
				continue
			}
			for k, v := range meta {
				device.Metadata[k] = v
			}
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// findI2CBuses returns the adapters matching glob that support plain I2C
func findI2CBuses(glob string) ([]string, error) {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for I2C devices: %w", err)
	}

	buses := make([]string, 0, len(matches))
	for _, path := range matches {
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
		if err != nil {
			continue
		}
		funcs, err := unix.IoctlGetUint32(fd, I2CFuncs)
		_ = unix.Close(fd)
		if err != nil || funcs&I2CFuncI2C == 0 {
			continue
		}
		buses = append(buses, path)
	}
	return buses, nil
}

// addressResponds reports whether a device ACKs a one byte read at addr
func addressResponds(busPath string, addr uint16) bool {
	fd, err := unix.Open(busPath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return false
	}
	defer func() { _ = unix.Close(fd) }()

	if err := unix.IoctlSetInt(fd, I2CSlave, int(addr)); err != nil {
		return false
	}
	buf := make([]byte, 1)
	_, err = unix.Read(fd, buf)
	return err == nil
}
