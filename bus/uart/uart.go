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

// Package uart provides a register bridge on a serial line
package uart

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/go-wcpu"
	"github.com/ZaparooProject/go-wcpu/internal/bridge"
	"github.com/ZaparooProject/go-wcpu/internal/frame"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the bridge line rate
	DefaultBaudRate = 921600
	// DefaultTimeout bounds the wait for each response
	DefaultTimeout = 100 * time.Millisecond
)

// port is the part of serial.Port the bridge uses
type port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// Bus is a WCPU register bridge on a serial port. It implements
// wcpu.RegisterAccess and wcpu.Transmitter.
type Bus struct {
	port     port
	client   *bridge.Client
	portName string
	timeout  time.Duration
	mu       sync.Mutex
	closed   bool
}

// New opens portName at the default baud rate
func New(portName string) (*Bus, error) {
	return NewWithBaud(portName, DefaultBaudRate)
}

// NewWithBaud opens portName at baud
func NewWithBaud(portName string, baud int) (*Bus, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := p.SetReadTimeout(DefaultTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", portName, err)
	}

	return newBus(p, portName), nil
}

func newBus(p port, portName string) *Bus {
	b := &Bus{
		port:     p,
		portName: portName,
		timeout:  DefaultTimeout,
	}
	b.client = bridge.NewClient(b, portName)
	return b
}

// Exchange implements bridge.Link: it writes req and reads one response
// frame from the line.
func (b *Bus) Exchange(req []byte, _ int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.New("serial port closed")
	}

	if _, err := b.port.Write(req); err != nil {
		return nil, fmt.Errorf("serial write failed: %w", err)
	}

	hdr := frame.GetSmallBuffer(frame.BridgeResponseHdr)
	defer frame.PutBuffer(hdr)

	if err := b.readSync(hdr); err != nil {
		return nil, err
	}
	if err := b.readFull(hdr[1:]); err != nil {
		return nil, fmt.Errorf("serial read header failed: %w", err)
	}

	total, err := frame.BridgeResponseLen(hdr)
	if err != nil {
		_ = b.port.ResetInputBuffer()
		return nil, err
	}

	resp := make([]byte, total)
	copy(resp, hdr)
	if err := b.readFull(resp[frame.BridgeResponseHdr:]); err != nil {
		return nil, fmt.Errorf("serial read body failed: %w", err)
	}
	return resp, nil
}

// readSync skips line noise up to the response sync byte
func (b *Bus) readSync(hdr []byte) error {
	deadline := time.Now().Add(b.timeout)
	for time.Now().Before(deadline) {
		n, err := b.port.Read(hdr[:1])
		if err != nil {
			return fmt.Errorf("serial read failed: %w", err)
		}
		if n == 1 && hdr[0] == frame.BridgeResponseSync {
			return nil
		}
	}
	return wcpu.NewTimeoutError("serial read", b.portName)
}

// readFull fills buf before the response timeout. A serial read that times
// out returns no bytes and no error, so io.ReadFull cannot be used.
func (b *Bus) readFull(buf []byte) error {
	deadline := time.Now().Add(b.timeout)
	off := 0
	for off < len(buf) {
		if !time.Now().Before(deadline) {
			return wcpu.NewTimeoutError("serial read", b.portName)
		}
		n, err := b.port.Read(buf[off:])
		if err != nil {
			return err
		}
		off += n
	}
	return nil
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
	if err := b.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	b.timeout = timeout
	return nil
}

// Close closes the serial port
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", b.portName, err)
	}
	return nil
}

// IsConnected reports whether the port is open
func (b *Bus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port != nil && !b.closed
}

// Type implements wcpu.Bus
func (*Bus) Type() wcpu.BusType {
	return wcpu.BusUART
}

// Profile implements wcpu.BusProfiler. At the default line rate one
// register access costs well over 100µs.
func (*Bus) Profile() wcpu.BusProfile {
	return wcpu.BusProfile{PollInterval: time.Millisecond}
}

var (
	_ wcpu.Bus         = (*Bus)(nil)
	_ wcpu.Transmitter = (*Bus)(nil)
	_ bridge.Link      = (*Bus)(nil)
)
