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

import (
	"fmt"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// FrameType selects the H2C frame format
type FrameType uint8

// H2C frame types
const (
	FrameTypeCmd  FrameType = 0
	FrameTypeLong FrameType = 1
)

// Category routes a frame to a firmware subsystem. The same values are used
// in both directions.
type Category uint8

// Frame categories
const (
	CategoryTest   Category = 0
	CategoryMAC    Category = 1
	CategoryOutsrc Category = 2
)

// String returns the category name
func (c Category) String() string {
	switch c {
	case CategoryTest:
		return "test"
	case CategoryMAC:
		return "mac"
	case CategoryOutsrc:
		return "outsrc"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// CommandOptions selects the routing and acknowledgement fields of an H2C
// command header.
type CommandOptions struct {
	Type     FrameType
	Category Category
	Class    uint8
	Function uint8
	// RecAck asks the firmware to acknowledge receipt. It is forced on
	// every fourth sequence number.
	RecAck bool
	// DoneAck asks the firmware to report completion
	DoneAck bool
	// NoHeader sends the payload as is, without a command header and
	// without consuming a sequence number.
	NoHeader bool
}

// NewH2CBuffer allocates a command buffer for payloadLen bytes. When
// withHeader is set, headroom for the command header is reserved as well.
func (d *Device) NewH2CBuffer(payloadLen int, withHeader bool) (*Buffer, error) {
	buf, err := d.config.Allocator.Alloc(payloadLen, h2cHeadroom(withHeader))
	if err != nil {
		d.log.Error("failed to alloc h2c buffer", "len", payloadLen, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNoMemory, err)
	}
	if buf == nil {
		return nil, ErrNoMemory
	}
	return buf, nil
}

// SendCommand copies payload into a fresh buffer, frames it and sends it on
// the command path.
func (d *Device) SendCommand(payload []byte, opts CommandOptions) error {
	buf, err := d.NewH2CBuffer(len(payload), !opts.NoHeader)
	if err != nil {
		return NewResourceError("send h2c", fmt.Sprintf("class 0x%x func 0x%x", opts.Class, opts.Function))
	}
	if err := buf.Put(payload); err != nil {
		buf.Release()
		return NewResourceError("send h2c", "payload")
	}
	return d.SendH2C(buf, opts)
}

// SendH2C frames buf, which holds the command payload, and sends it on the
// command path. SendH2C takes ownership of buf whatever the outcome.
func (d *Device) SendH2C(buf *Buffer, opts CommandOptions) error {
	stage := fmt.Sprintf("class 0x%x func 0x%x", opts.Class, opts.Function)

	if !opts.NoHeader {
		if _, err := d.setH2CHeader(buf, opts); err != nil {
			buf.Release()
			return &DeviceError{Op: "send h2c", Stage: stage, Err: err, Type: ErrorTypePermanent}
		}
	}

	hexDump("H2C: ", buf.Bytes())
	if err := d.tx.Transmit(buf, false); err != nil {
		buf.Release()
		d.log.Error("failed to send h2c", "class", opts.Class, "func", opts.Function, "error", err)
		return NewTransmitError("send h2c", stage, err)
	}
	return nil
}

// setH2CHeader prepends a command header and returns the sequence number it
// carries. The counter only advances once the header is in place.
func (d *Device) setH2CHeader(buf *Buffer, opts CommandOptions) (uint8, error) {
	payloadLen := buf.Len()
	if payloadLen+frame.H2CHeaderLen > frame.MaxTotalLen {
		return 0, fmt.Errorf("%w: payload of %d bytes exceeds frame length field",
			ErrInvalidParameter, payloadLen)
	}

	dst, err := buf.Push(frame.H2CHeaderLen)
	if err != nil {
		return 0, err
	}

	seq := uint8(d.h2cSeq.Add(1) - 1)
	hdr := frame.H2CHeader{
		Type:     uint8(opts.Type),
		Category: uint8(opts.Category),
		Class:    opts.Class,
		Function: opts.Function,
		Seq:      seq,
		TotalLen: uint16(payloadLen + frame.H2CHeaderLen),
		RecAck:   opts.RecAck || seq%4 == 0,
		DoneAck:  opts.DoneAck,
	}
	if err := hdr.Encode(dst); err != nil {
		return 0, err
	}
	return seq, nil
}
