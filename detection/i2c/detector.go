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

// Package i2c detects WCPU register bridges on I2C buses
package i2c

import (
	"context"
	"runtime"

	"github.com/ZaparooProject/go-wcpu/bus/i2c"
	"github.com/ZaparooProject/go-wcpu/detection"
)

// detector implements the Detector interface for I2C bridges
type detector struct {
	devGlob string
}

// New creates a new I2C detector
func New() detection.Detector {
	return &detector{devGlob: "/dev/i2c-*"}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Bus returns the bus name
func (*detector) Bus() string {
	return "i2c"
}

// Detect looks for a bridge at the default address on each I2C bus
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	// I2C detection is platform-specific
	switch runtime.GOOS {
	case "linux":
		return d.detectLinux(ctx, opts)
	default:
		return nil, detection.ErrUnsupportedPlatform
	}
}

// probe opens the bridge and reads its firmware control register
func probe(busPath string) (map[string]string, error) {
	b, err := i2c.New(busPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()
	return detection.ProbeMetadata(b)
}
