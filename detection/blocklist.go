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

package detection

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoVIDPID is returned when no vendor/product pair can be parsed
var ErrNoVIDPID = errors.New("no VID:PID found")

// DefaultBlocklist returns the VID:PID pairs never probed by default.
// Entries are hex pairs, compared by value.
func DefaultBlocklist() []string {
	return []string{}
}

// IsBlocked reports whether vidpid appears in the blocklist. Pairs that
// parse are compared numerically, so "bda:8832" blocks "0BDA:8832".
func IsBlocked(vidpid string, blocklist []string) bool {
	vid, pid, err := ParseVIDPID(vidpid)
	for _, blocked := range blocklist {
		bvid, bpid, berr := ParseVIDPID(blocked)
		if err == nil && berr == nil {
			if vid == bvid && pid == bpid {
				return true
			}
			continue
		}
		if strings.EqualFold(strings.TrimSpace(vidpid), strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// FormatVIDPID renders IDs the way DeviceInfo.VIDPID carries them
func FormatVIDPID(vid, pid uint16) string {
	return fmt.Sprintf("%04X:%04X", vid, pid)
}

// ParseUevent splits a sysfs uevent file into its KEY=value pairs
func ParseUevent(data string) map[string]string {
	env := map[string]string{}
	sc := bufio.NewScanner(strings.NewReader(data))
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if ok && k != "" {
			env[k] = v
		}
	}
	return env
}

// ParseVIDPID extracts vendor and product IDs from either a plain hex pair
// ("10ec:8852") or a sysfs uevent. In a uevent, PCI_ID=10EC:8852 wins over
// the USB form PRODUCT=bda/8832/0.
func ParseVIDPID(s string) (vid, pid uint16, err error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "=") {
		return parsePair(s, ":")
	}

	env := ParseUevent(s)
	if id, ok := env["PCI_ID"]; ok {
		return parsePair(id, ":")
	}
	if product, ok := env["PRODUCT"]; ok {
		// bcdDevice trails the USB pair
		fields := strings.SplitN(product, "/", 3)
		if len(fields) >= 2 {
			return parsePair(fields[0]+"/"+fields[1], "/")
		}
	}
	return 0, 0, fmt.Errorf("%w in %q", ErrNoVIDPID, s)
}

func parsePair(s, sep string) (vid, pid uint16, err error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), sep)
	if !ok {
		return 0, 0, fmt.Errorf("%w in %q", ErrNoVIDPID, s)
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(a), "0x"), 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad vendor ID %q: %w", a, err)
	}
	p, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(b), "0x"), 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad product ID %q: %w", b, err)
	}
	return uint16(v), uint16(p), nil
}

// IsPathIgnored reports whether devicePath matches an ignore entry. Paths
// are cleaned and compared case-insensitively; device nodes, PCI addresses
// and USB "bus:addr" pairs all match as plain strings.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	want := filepath.Clean(devicePath)
	for _, p := range ignorePaths {
		if p != "" && strings.EqualFold(filepath.Clean(p), want) {
			return true
		}
	}
	return false
}
