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

package frame

import (
	"encoding/binary"
	"errors"
)

// ErrShortHeader is returned when a buffer cannot hold a command header.
var ErrShortHeader = errors.New("buffer too short for command header")

// H2CHeader is the 8-byte control header prepended to every host-to-chip
// command frame.
//
//	word0: category[1:0] class[7:2] function[15:8] type[19:16] seq[31:24]
//	word1: total length[13:0] rec-ack[14] done-ack[15]
type H2CHeader struct {
	Type     uint8
	Category uint8
	Class    uint8
	Function uint8
	Seq      uint8
	TotalLen uint16
	RecAck   bool
	DoneAck  bool
}

// Encode writes the header into dst, which must hold H2CHeaderLen bytes.
func (h *H2CHeader) Encode(dst []byte) error {
	if len(dst) < H2CHeaderLen {
		return ErrShortHeader
	}

	w0 := PrepField(h2cCatMask, uint32(h.Category)) |
		PrepField(h2cClassMask, uint32(h.Class)) |
		PrepField(h2cFuncMask, uint32(h.Function)) |
		PrepField(h2cTypeMask, uint32(h.Type)) |
		PrepField(h2cSeqMask, uint32(h.Seq))

	w1 := PrepField(h2cTotalLenMask, uint32(h.TotalLen))
	if h.RecAck {
		w1 |= h2cRecAck
	}
	if h.DoneAck {
		w1 |= h2cDoneAck
	}

	binary.LittleEndian.PutUint32(dst[0:4], w0)
	binary.LittleEndian.PutUint32(dst[4:8], w1)
	return nil
}

// DecodeH2CHeader parses the header at the start of src.
func DecodeH2CHeader(src []byte) (H2CHeader, error) {
	if len(src) < H2CHeaderLen {
		return H2CHeader{}, ErrShortHeader
	}

	w0 := binary.LittleEndian.Uint32(src[0:4])
	w1 := binary.LittleEndian.Uint32(src[4:8])

	return H2CHeader{
		Category: uint8(GetField(w0, h2cCatMask)),
		Class:    uint8(GetField(w0, h2cClassMask)),
		Function: uint8(GetField(w0, h2cFuncMask)),
		Type:     uint8(GetField(w0, h2cTypeMask)),
		Seq:      uint8(GetField(w0, h2cSeqMask)),
		TotalLen: uint16(GetField(w1, h2cTotalLenMask)),
		RecAck:   w1&h2cRecAck != 0,
		DoneAck:  w1&h2cDoneAck != 0,
	}, nil
}

// C2HHeader is the header found at the start of every chip-to-host event.
type C2HHeader struct {
	Category uint8
	Class    uint8
	Function uint8
	Len      uint16
}

// Encode writes the header into dst, which must hold C2HHeaderLen bytes.
func (h *C2HHeader) Encode(dst []byte) error {
	if len(dst) < C2HHeaderLen {
		return ErrShortHeader
	}

	w0 := PrepField(c2hCatMask, uint32(h.Category)) |
		PrepField(c2hClassMask, uint32(h.Class)) |
		PrepField(c2hFuncMask, uint32(h.Function))
	w1 := PrepField(c2hLenMask, uint32(h.Len))

	binary.LittleEndian.PutUint32(dst[0:4], w0)
	binary.LittleEndian.PutUint32(dst[4:8], w1)
	return nil
}

// DecodeC2HHeader parses the header at the start of src.
func DecodeC2HHeader(src []byte) (C2HHeader, error) {
	if len(src) < C2HHeaderLen {
		return C2HHeader{}, ErrShortHeader
	}

	w0 := binary.LittleEndian.Uint32(src[0:4])
	w1 := binary.LittleEndian.Uint32(src[4:8])

	return C2HHeader{
		Category: uint8(GetField(w0, c2hCatMask)),
		Class:    uint8(GetField(w0, c2hClassMask)),
		Function: uint8(GetField(w0, c2hFuncMask)),
		Len:      uint16(GetField(w1, c2hLenMask)),
	}, nil
}

// MailboxHeader builds word 0 of an H2C mailbox message.
func MailboxHeader(function, length uint8) uint32 {
	return PrepField(mailboxFuncMask, uint32(function)) |
		PrepField(mailboxLenMask, uint32(length))
}

// MailboxFunction extracts the function id from word 0 of a C2H mailbox message.
func MailboxFunction(word0 uint32) uint8 {
	return uint8(GetField(word0, mailboxFuncMask))
}
