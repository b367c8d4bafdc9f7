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

// Package mmio reaches WCPU registers through a memory-mapped PCI BAR
package mmio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ZaparooProject/go-wcpu"
)

// DefaultBAR is the BAR holding the MAC register space
const DefaultBAR = 2

// ErrUnsupported is returned by Open on platforms without sysfs PCI access
var ErrUnsupported = errors.New("mmio not supported on this platform")

// Bus is a mapped register window. Accesses use the exact register width
// so side-effecting registers see one bus cycle each.
type Bus struct {
	unmap  func() error
	name   string
	mem    []byte
	mu     sync.RWMutex
	closed bool
}

func newBus(mem []byte, name string, unmap func() error) *Bus {
	return &Bus{mem: mem, name: name, unmap: unmap}
}

// ptr returns the address of a register after range and alignment checks.
// The caller holds b.mu.
func (b *Bus) ptr(addr uint32, width int) (unsafe.Pointer, error) {
	if b.closed {
		return nil, fmt.Errorf("%s: mapping closed", b.name)
	}
	if addr%uint32(width) != 0 {
		return nil, fmt.Errorf("%s: unaligned %d-byte access at 0x%04x: %w",
			b.name, width, addr, wcpu.ErrInvalidParameter)
	}
	if uint64(addr)+uint64(width) > uint64(len(b.mem)) {
		return nil, fmt.Errorf("%s: 0x%04x outside %d-byte window: %w",
			b.name, addr, len(b.mem), wcpu.ErrInvalidParameter)
	}
	return unsafe.Pointer(&b.mem[addr]), nil
}

// Read8 implements wcpu.RegisterAccess
func (b *Bus) Read8(addr uint32) (uint8, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, err := b.ptr(addr, 1)
	if err != nil {
		return 0, err
	}
	return *(*uint8)(p), nil
}

// Read16 implements wcpu.RegisterAccess
func (b *Bus) Read16(addr uint32) (uint16, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, err := b.ptr(addr, 2)
	if err != nil {
		return 0, err
	}
	return *(*uint16)(p), nil
}

// Read32 implements wcpu.RegisterAccess
func (b *Bus) Read32(addr uint32) (uint32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, err := b.ptr(addr, 4)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32((*uint32)(p)), nil
}

// Write8 implements wcpu.RegisterAccess
func (b *Bus) Write8(addr uint32, val uint8) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, err := b.ptr(addr, 1)
	if err != nil {
		return err
	}
	*(*uint8)(p) = val
	return nil
}

// Write16 implements wcpu.RegisterAccess
func (b *Bus) Write16(addr uint32, val uint16) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, err := b.ptr(addr, 2)
	if err != nil {
		return err
	}
	*(*uint16)(p) = val
	return nil
}

// Write32 implements wcpu.RegisterAccess
func (b *Bus) Write32(addr, val uint32) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, err := b.ptr(addr, 4)
	if err != nil {
		return err
	}
	atomic.StoreUint32((*uint32)(p), val)
	return nil
}

// Len returns the size of the mapped window
func (b *Bus) Len() int {
	return len(b.mem)
}

// Close unmaps the window
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.mem = nil
	if b.unmap != nil {
		if err := b.unmap(); err != nil {
			return fmt.Errorf("%s: unmap: %w", b.name, err)
		}
	}
	return nil
}

// Type implements wcpu.Bus
func (*Bus) Type() wcpu.BusType {
	return wcpu.BusMMIO
}

var _ wcpu.Bus = (*Bus)(nil)
