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

// Package frame provides the byte-exact wire layout shared by the firmware
// container, the H2C/C2H command channel and the register mailbox.
package frame

// Firmware container layout
const (
	FWHeaderSize       = 32   // Fixed firmware header
	SectionHeaderSize  = 16   // One section header
	SectionChecksumLen = 8    // Trailer appended to a section when its checksum flag is set
	MaxPacketLen       = 2020 // Largest download chunk carried by one packet
	DownloadAddrMask   = 0x1fffffff
)

// Command channel header sizes
const (
	H2CHeaderLen = 8
	C2HHeaderLen = 8

	// TxDescReserve is the headroom left for the lower layer's TX descriptor.
	TxDescReserve = 24
)

// H2C header word 0
const (
	h2cCatMask   = 0x00000003
	h2cClassMask = 0x000000fc
	h2cFuncMask  = 0x0000ff00
	h2cTypeMask  = 0x000f0000
	h2cSeqMask   = 0xff000000
)

// H2C header word 1
const (
	h2cTotalLenMask = 0x00003fff
	h2cRecAck       = 1 << 14
	h2cDoneAck      = 1 << 15
)

// C2H header
const (
	c2hCatMask   = 0x00000003
	c2hClassMask = 0x000000fc
	c2hFuncMask  = 0x0000ff00
	c2hLenMask   = 0x00003fff
)

// MaxTotalLen is the largest value the 14-bit total length field can hold.
const MaxTotalLen = h2cTotalLenMask

// Register mailbox layout
const (
	MailboxWords     = 4
	MailboxHdrLen    = 2 // Content offset inside the raw C2H mailbox bytes
	mailboxFuncMask  = 0x0000007f
	mailboxLenMask   = 0x00000f00
	MailboxMaxLength = mailboxLenMask >> 8
)

// Serial bridge framing
const (
	BridgeRequestSync  = 0xA5
	BridgeResponseSync = 0x5A
	BridgeRequestHdr   = 8 // sync + op + addr(4) + len(2)
	BridgeResponseHdr  = 4 // sync + status + len(2)
	BridgeMaxData      = 4096
)
