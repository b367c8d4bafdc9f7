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

// Package usb reaches WCPU registers through vendor control requests and
// sends firmware and command packets on a bulk OUT endpoint
package usb

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/ZaparooProject/go-wcpu"
	"github.com/google/gousb"
)

const (
	// VendorRealtek is the USB vendor ID of Realtek adapters
	VendorRealtek gousb.ID = 0x0bda

	// vendorReq is the register access request
	vendorReq = 0x05

	reqTypeIn  = gousb.ControlIn | gousb.ControlVendor | gousb.ControlDevice
	reqTypeOut = gousb.ControlOut | gousb.ControlVendor | gousb.ControlDevice
)

// DefaultProducts lists the product IDs Open accepts when none is given
var DefaultProducts = []gousb.ID{0x8832, 0x885a, 0x885c}

// controller is the part of gousb.Device the register path uses
type controller interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
}

// Bus is a WCPU reached over USB. It implements wcpu.RegisterAccess and
// wcpu.Transmitter.
type Bus struct {
	ctrl   controller
	out    io.Writer
	close  func() error
	name   string
	mu     sync.Mutex
	closed bool
}

// Open finds and opens a Realtek adapter. product 0 accepts any of
// DefaultProducts. busAddr ("bus:address") picks one device when several
// are attached; empty accepts any.
func Open(product gousb.ID, busAddr string) (*Bus, error) {
	bus, addr, err := parseBusAddr(busAddr)
	if err != nil {
		return nil, err
	}

	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if bus >= 0 && (desc.Bus != bus || desc.Address != addr) {
			return false
		}
		return desc.Vendor == VendorRealtek && matchProduct(desc.Product, product)
	})
	if err != nil {
		for _, d := range devs {
			_ = d.Close()
		}
		_ = ctx.Close()
		return nil, fmt.Errorf("failed to open USB devices: %w", err)
	}
	if len(devs) != 1 {
		for _, d := range devs {
			_ = d.Close()
		}
		_ = ctx.Close()
		if len(devs) == 0 {
			return nil, errors.New("no Realtek USB adapter found")
		}
		return nil, fmt.Errorf("found %d Realtek USB adapters, select one by bus address", len(devs))
	}

	dev := devs[0]
	b, err := fromDevice(dev)
	if err != nil {
		_ = dev.Close()
		_ = ctx.Close()
		return nil, err
	}

	release := b.close
	b.close = func() error {
		err := release()
		if derr := dev.Close(); err == nil {
			err = derr
		}
		if cerr := ctx.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return b, nil
}

// fromDevice claims the default interface and picks its highest numbered
// bulk OUT endpoint, the command queue.
func fromDevice(dev *gousb.Device) (*Bus, error) {
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("failed to enable kernel driver auto detach: %w", err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		return nil, fmt.Errorf("failed to claim USB interface: %w", err)
	}

	num := -1
	for _, ed := range intf.Setting.Endpoints {
		if ed.Direction == gousb.EndpointDirectionOut && ed.TransferType == gousb.TransferTypeBulk &&
			ed.Number > num {
			num = ed.Number
		}
	}
	if num < 0 {
		done()
		return nil, errors.New("no bulk OUT endpoint on USB interface")
	}

	oe, err := intf.OutEndpoint(num)
	if err != nil {
		done()
		return nil, fmt.Errorf("failed to open endpoint %d: %w", num, err)
	}

	b := newBus(dev, oe, dev.String())
	b.close = func() error {
		done()
		return nil
	}
	return b, nil
}

func newBus(ctrl controller, out io.Writer, name string) *Bus {
	return &Bus{
		ctrl:  ctrl,
		out:   out,
		name:  name,
		close: func() error { return nil },
	}
}

func matchProduct(got, want gousb.ID) bool {
	if want != 0 {
		return got == want
	}
	for _, id := range DefaultProducts {
		if got == id {
			return true
		}
	}
	return false
}

func parseBusAddr(busAddr string) (bus, addr int, err error) {
	if busAddr == "" {
		return -1, -1, nil
	}
	s := strings.Split(busAddr, ":")
	if len(s) != 2 {
		return -1, -1, fmt.Errorf("bad USB device address: %s", busAddr)
	}
	b, err := strconv.ParseUint(s[0], 10, 8)
	if err != nil {
		return -1, -1, fmt.Errorf("bad USB bus number: %s", busAddr)
	}
	a, err := strconv.ParseUint(s[1], 10, 8)
	if err != nil {
		return -1, -1, fmt.Errorf("bad USB device number: %s", busAddr)
	}
	return int(b), int(a), nil
}

func (b *Bus) read(addr uint32, width int) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errors.New("USB device closed")
	}

	var buf [4]byte
	n, err := b.ctrl.Control(reqTypeIn, vendorReq, uint16(addr), uint16(addr>>16), buf[:width])
	if err != nil {
		return 0, fmt.Errorf("%s: read 0x%04x: %w", b.name, addr, err)
	}
	if n != width {
		return 0, fmt.Errorf("%s: short read 0x%04x: %d of %d bytes", b.name, addr, n, width)
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, nil
}

func (b *Bus) write(addr uint32, width int, val uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("USB device closed")
	}

	buf := [4]byte{byte(val), byte(val >> 8), byte(val >> 16), byte(val >> 24)}
	n, err := b.ctrl.Control(reqTypeOut, vendorReq, uint16(addr), uint16(addr>>16), buf[:width])
	if err != nil {
		return fmt.Errorf("%s: write 0x%04x: %w", b.name, addr, err)
	}
	if n != width {
		return fmt.Errorf("%s: short write 0x%04x: %d of %d bytes", b.name, addr, n, width)
	}
	return nil
}

// Read8 implements wcpu.RegisterAccess
func (b *Bus) Read8(addr uint32) (uint8, error) {
	v, err := b.read(addr, 1)
	return uint8(v), err
}

// Read16 implements wcpu.RegisterAccess
func (b *Bus) Read16(addr uint32) (uint16, error) {
	v, err := b.read(addr, 2)
	return uint16(v), err
}

// Read32 implements wcpu.RegisterAccess
func (b *Bus) Read32(addr uint32) (uint32, error) {
	return b.read(addr, 4)
}

// Write8 implements wcpu.RegisterAccess
func (b *Bus) Write8(addr uint32, val uint8) error {
	return b.write(addr, 1, uint32(val))
}

// Write16 implements wcpu.RegisterAccess
func (b *Bus) Write16(addr uint32, val uint16) error {
	return b.write(addr, 2, uint32(val))
}

// Write32 implements wcpu.RegisterAccess
func (b *Bus) Write32(addr, val uint32) error {
	return b.write(addr, 4, val)
}

// Transmit implements wcpu.Transmitter. Firmware and command packets share
// the command queue endpoint.
func (b *Bus) Transmit(buf *wcpu.Buffer, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("USB device closed")
	}

	data := buf.Bytes()
	n, err := b.out.Write(data)
	if err != nil {
		return fmt.Errorf("%s: bulk write: %w", b.name, err)
	}
	if n != len(data) {
		return fmt.Errorf("%s: short bulk write: %d of %d bytes", b.name, n, len(data))
	}
	buf.Release()
	return nil
}

// Close releases the interface and the device
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.close()
}

// Type implements wcpu.Bus
func (*Bus) Type() wcpu.BusType {
	return wcpu.BusUSB
}

var (
	_ wcpu.Bus         = (*Bus)(nil)
	_ wcpu.Transmitter = (*Bus)(nil)
)
