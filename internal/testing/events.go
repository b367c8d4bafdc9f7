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

package testing

import (
	"encoding/binary"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// BuildC2HEvent creates a chip-to-host frame with a valid header.
func BuildC2HEvent(category, class, function uint8, payload []byte) []byte {
	hdr := frame.C2HHeader{
		Category: category,
		Class:    class,
		Function: function,
		Len:      uint16(frame.C2HHeaderLen + len(payload)),
	}
	buf := make([]byte, frame.C2HHeaderLen, frame.C2HHeaderLen+len(payload))
	_ = hdr.Encode(buf)
	return append(buf, payload...)
}

// BuildAckEvent creates a receive-ack or done-ack event for the given H2C
// sequence number, carried in bits [23:16] of the first payload word.
func BuildAckEvent(category, class, function, seq uint8) []byte {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, uint32(seq)<<16)
	return BuildC2HEvent(category, class, function, payload)
}

// BuildMailboxWords packs a C2H mailbox message: function id in word 0 bits
// [6:0], content starting at byte 2.
func BuildMailboxWords(function uint8, content []byte) [frame.MailboxWords]uint32 {
	raw := make([]byte, frame.MailboxWords*4)
	copy(raw[frame.MailboxHdrLen:], content)
	raw[0] = function & 0x7f

	var words [frame.MailboxWords]uint32
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return words
}
