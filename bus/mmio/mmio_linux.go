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

package mmio

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// SysfsPCIRoot is where PCI devices are listed
var SysfsPCIRoot = "/sys/bus/pci/devices"

// Open maps BAR bar of the PCI device at pciAddr (for example
// "0000:02:00.0"). The kernel driver must be unbound first.
func Open(pciAddr string, bar int) (*Bus, error) {
	path := filepath.Join(SysfsPCIRoot, pciAddr, fmt.Sprintf("resource%d", bar))

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = unix.Close(fd) }()

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if st.Size <= 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	mem, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}

	return newBus(mem, pciAddr, func() error { return unix.Munmap(mem) }), nil
}
