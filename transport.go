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

package wcpu

// Transmitter hands buffers to the next layer down (DMA ring, USB bulk
// endpoint, bridge). firmware selects the bulk firmware-download path
// instead of the command path.
//
// On success the transmitter owns the buffer and must release it. On error
// ownership stays with the caller.
type Transmitter interface {
	Transmit(b *Buffer, firmware bool) error
}

// TransmitFunc adapts a function to the Transmitter interface
type TransmitFunc func(b *Buffer, firmware bool) error

// Transmit implements Transmitter
func (f TransmitFunc) Transmit(b *Buffer, firmware bool) error {
	return f(b, firmware)
}

// Bus is a register backend that can be closed
type Bus interface {
	RegisterAccess

	// Close releases the underlying device
	Close() error

	// Type returns the bus type
	Type() BusType
}

// BusType identifies how registers are reached
type BusType string

const (
	// BusMMIO is a memory-mapped PCI BAR
	BusMMIO BusType = "mmio"
	// BusUSB uses vendor control requests
	BusUSB BusType = "usb"
	// BusI2C is an I2C register bridge
	BusI2C BusType = "i2c"
	// BusUART is a serial register bridge
	BusUART BusType = "uart"
	// BusMock is a simulated register file for testing
	BusMock BusType = "mock"
)
