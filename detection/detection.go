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

// Package detection finds WCPU chips reachable from this host
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ZaparooProject/go-wcpu"
)

// Detection errors
var (
	ErrNoDevicesFound      = errors.New("no devices found")
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
	ErrDetectionTimeout    = errors.New("detection timeout")
)

// Mode selects how much a detector may touch a candidate device
type Mode int

const (
	// Passive only enumerates; no device is opened
	Passive Mode = iota
	// Probe opens each candidate and reads its firmware control register
	Probe
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Probe:
		return "probe"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Options configures a detection run
type Options struct {
	// Blocklist holds VID:PID pairs that are never reported or probed
	Blocklist []string
	// IgnorePaths holds device paths that are never reported or probed
	IgnorePaths []string
	Mode        Mode
	Timeout     time.Duration
}

// DefaultOptions returns passive detection with a 5 second budget
func DefaultOptions() Options {
	return Options{
		Mode:      Passive,
		Timeout:   5 * time.Second,
		Blocklist: DefaultBlocklist(),
	}
}

// DeviceInfo describes one detected chip
type DeviceInfo struct {
	Metadata map[string]string
	// Path is what the matching bus package opens: a PCI address for mmio,
	// "bus:address" for usb
	Path   string
	Bus    string
	Name   string
	VIDPID string
}

// Detector finds devices on one kind of bus
type Detector interface {
	// Bus returns the bus name ("mmio", "usb")
	Bus() string
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Detector)
)

// RegisterDetector adds d to the registry, replacing any detector for the
// same bus
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Bus()] = d
}

// Detectors returns the registered detectors sorted by bus name
func Detectors() []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Detector, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bus() < out[j].Bus() })
	return out
}

// DetectAll runs every registered detector and merges the results.
// Detectors that report no devices or an unsupported platform are skipped.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	return detectWith(ctx, Detectors(), opts)
}

func detectWith(ctx context.Context, detectors []Detector, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		o := DefaultOptions()
		opts = &o
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		devices []DeviceInfo
		errs    []error
	)
	for _, d := range detectors {
		select {
		case <-ctx.Done():
			if len(devices) > 0 {
				return devices, nil
			}
			return nil, ErrDetectionTimeout
		default:
		}

		found, err := d.Detect(ctx, opts)
		switch {
		case errors.Is(err, ErrNoDevicesFound), errors.Is(err, ErrUnsupportedPlatform):
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", d.Bus(), err))
		}
		devices = append(devices, Filter(found, opts)...)
	}

	if len(devices) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

// Filter drops devices that are blocklisted or on an ignored path
func Filter(devices []DeviceInfo, opts *Options) []DeviceInfo {
	out := devices[:0:0]
	for _, dev := range devices {
		if dev.VIDPID != "" && IsBlocked(dev.VIDPID, opts.Blocklist) {
			continue
		}
		if IsPathIgnored(dev.Path, opts.IgnorePaths) {
			continue
		}
		out = append(out, dev)
	}
	return out
}

// ProbeMetadata reads the firmware control register through regs and
// describes the download state
func ProbeMetadata(regs wcpu.RegisterAccess) (map[string]string, error) {
	val, err := regs.Read8(wcpu.RegWCPUFWCtrl)
	if err != nil {
		return nil, fmt.Errorf("probe firmware control: %w", err)
	}
	return map[string]string{
		"fw_ctrl":     fmt.Sprintf("0x%02X", val),
		"fwdl_status": wcpu.StatusOf(val).String(),
		"h2c_ready":   fmt.Sprintf("%t", val&wcpu.BitH2CPathReady != 0),
	}, nil
}
