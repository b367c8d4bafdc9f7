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

// Package i2c provides a register bridge on an I2C bus
package i2c

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-wcpu"
	"github.com/ZaparooProject/go-wcpu/internal/bridge"
	"github.com/ZaparooProject/go-wcpu/internal/frame"
	"github.com/ZaparooProject/go-wcpu/internal/transport"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddr is the bridge's 7-bit bus address
	DefaultAddr = 0x28

	// DefaultTimeout bounds the wait for each response
	DefaultTimeout = 50 * time.Millisecond

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz

	// pause between response polls while the bridge is busy
	readyInterval = 100 * time.Microsecond
)

// conn is the part of i2c.Dev the bridge uses
type conn interface {
	Tx(w, r []byte) error
}

// Bus is a WCPU register bridge on an I2C bus. It implements
// wcpu.RegisterAccess and wcpu.Transmitter.
type Bus struct {
	dev     conn
	closer  i2c.BusCloser
	client  *bridge.Client
	busName string
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

// New opens busName and talks to the bridge at DefaultAddr
func New(busName string) (*Bus, error) {
	return NewWithAddr(busName, DefaultAddr)
}

// NewWithAddr opens busName and talks to the bridge at addr
func NewWithAddr(busName string, addr uint16) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	_ = bus.SetSpeed(maxClockFreq) // Ignore error, continue with default speed

	b := newBus(&i2c.Dev{Addr: addr, Bus: bus}, busName)
	b.closer = bus
	return b, nil
}

func newBus(dev conn, busName string) *Bus {
	b := &Bus{
		dev:     dev,
		busName: busName,
		timeout: DefaultTimeout,
	}
	b.client = bridge.NewClient(b, busName)
	return b
}

// Exchange implements bridge.Link. The request is written in one
// transaction; the response is then read expect bytes at a time until the
// bridge presents the sync byte. A busy bridge reads back zeros.
func (b *Bus) Exchange(req []byte, expect int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.New("I2C bus closed")
	}

	if err := b.dev.Tx(req, nil); err != nil {
		return nil, fmt.Errorf("failed to send I2C request: %w", err)
	}

	buf := make([]byte, expect)
	_, err := transport.TimeoutRetry(b.timeout, readyInterval, func() (struct{}, bool, error) {
		if err := b.dev.Tx(nil, buf); err != nil {
			return struct{}{}, false, fmt.Errorf("I2C response read failed: %w", err)
		}
		return struct{}{}, buf[0] != frame.BridgeResponseSync, nil
	})
	if err != nil {
		return nil, err
	}

	total, err := frame.BridgeResponseLen(buf)
	if err != nil {
		return nil, err
	}
	// NAK and error responses carry no data and are shorter than expected
	if total > len(buf) {
		return nil, fmt.Errorf("%s: response of %d bytes exceeds read of %d: %w",
			b.busName, total, len(buf), frame.ErrBridgeLength)
	}
	return buf[:total], nil
}

// Read8 implements wcpu.RegisterAccess
func (b *Bus) Read8(addr uint32) (uint8, error) {
	v, err := b.client.Read(addr, 1)
	return uint8(v), err
}

// Read16 implements wcpu.RegisterAccess
func (b *Bus) Read16(addr uint32) (uint16, error) {
	v, err := b.client.Read(addr, 2)
	return uint16(v), err
}

// Read32 implements wcpu.RegisterAccess
func (b *Bus) Read32(addr uint32) (uint32, error) {
	return b.client.Read(addr, 4)
}

// Write8 implements wcpu.RegisterAccess
func (b *Bus) Write8(addr uint32, val uint8) error {
	return b.client.Write(addr, 1, uint32(val))
}

// Write16 implements wcpu.RegisterAccess
func (b *Bus) Write16(addr uint32, val uint16) error {
	return b.client.Write(addr, 2, uint32(val))
}

// Write32 implements wcpu.RegisterAccess
func (b *Bus) Write32(addr, val uint32) error {
	return b.client.Write(addr, 4, val)
}

// Transmit implements wcpu.Transmitter
func (b *Bus) Transmit(buf *wcpu.Buffer, firmware bool) error {
	op := byte(frame.BridgeOpH2C)
	if firmware {
		op = frame.BridgeOpFWData
	}
	if err := b.client.Send(op, buf.Bytes()); err != nil {
		return err
	}
	buf.Release()
	return nil
}

// SetTimeout sets the wait for each response
func (b *Bus) SetTimeout(timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeout = timeout
	return nil
}

// Close releases the I2C bus
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.closer != nil {
		if err := b.closer.Close(); err != nil {
			return fmt.Errorf("failed to close I2C bus %s: %w", b.busName, err)
		}
	}
	return nil
}

// IsConnected reports whether the bus is open
func (b *Bus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dev != nil && !b.closed
}

// Type implements wcpu.Bus
func (*Bus) Type() wcpu.BusType {
	return wcpu.BusI2C
}

var (
	_ wcpu.Bus         = (*Bus)(nil)
	_ wcpu.Transmitter = (*Bus)(nil)
	_ bridge.Link      = (*Bus)(nil)
)
