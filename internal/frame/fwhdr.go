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

import "encoding/binary"

// Firmware header fields, as (word index, mask) pairs.
const (
	fwHdrVersionWord = 1
	fwHdrDateWord    = 4
	fwHdrYearWord    = 5
	fwHdrSecNumWord  = 6
	fwHdrMiscWord    = 7

	fwHdrMajorMask    = 0x000000ff
	fwHdrMinorMask    = 0x0000ff00
	fwHdrSubMask      = 0x00ff0000
	fwHdrSubIdxMask   = 0xff000000
	fwHdrMonthMask    = 0x000000ff
	fwHdrDayMask      = 0x0000ff00
	fwHdrHourMask     = 0x00ff0000
	fwHdrMinMask      = 0xff000000
	fwHdrSecNumMask   = 0x0000ff00
	fwHdrPartSizeMask = 0x0000ffff
	fwHdrCmdVerMask   = 0xff000000
)

// Section header fields
const (
	secHdrSizeMask     = 0x00ffffff
	secHdrChecksumFlag = 1 << 28
	secHdrRedlFlag     = 1 << 29
)

func word(b []byte, idx int) uint32 {
	return binary.LittleEndian.Uint32(b[idx*4 : idx*4+4])
}

// FWHeader is a read-only view over the fixed firmware header.
// The backing slice must hold at least FWHeaderSize bytes.
type FWHeader []byte

// SectionNum returns the number of section headers that follow.
func (h FWHeader) SectionNum() int {
	return int(GetField(word(h, fwHdrSecNumWord), fwHdrSecNumMask))
}

// Version returns major, minor, sub and sub-index.
func (h FWHeader) Version() (major, minor, sub, subIdx uint8) {
	w := word(h, fwHdrVersionWord)
	return uint8(GetField(w, fwHdrMajorMask)),
		uint8(GetField(w, fwHdrMinorMask)),
		uint8(GetField(w, fwHdrSubMask)),
		uint8(GetField(w, fwHdrSubIdxMask))
}

// BuildDate returns the build timestamp fields.
func (h FWHeader) BuildDate() (year uint32, month, day, hour, minute uint8) {
	w := word(h, fwHdrDateWord)
	return word(h, fwHdrYearWord),
		uint8(GetField(w, fwHdrMonthMask)),
		uint8(GetField(w, fwHdrDayMask)),
		uint8(GetField(w, fwHdrHourMask)),
		uint8(GetField(w, fwHdrMinMask))
}

// CmdVersion returns the H2C command-set version.
func (h FWHeader) CmdVersion() uint8 {
	return uint8(GetField(word(h, fwHdrMiscWord), fwHdrCmdVerMask))
}

// PartSize returns the per-packet length field.
func (h FWHeader) PartSize() uint16 {
	return uint16(GetField(word(h, fwHdrMiscWord), fwHdrPartSizeMask))
}

// SetPartSize stores the per-packet length the host will use.
func (h FWHeader) SetPartSize(size uint16) {
	w := word(h, fwHdrMiscWord)&^fwHdrPartSizeMask | PrepField(fwHdrPartSizeMask, uint32(size))
	binary.LittleEndian.PutUint32(h[fwHdrMiscWord*4:], w)
}

// SectionHeader is a read-only view over one section header.
// The backing slice must hold at least SectionHeaderSize bytes.
type SectionHeader []byte

// DownloadAddr returns the destination address with the top 3 bits cleared.
func (s SectionHeader) DownloadAddr() uint32 {
	return word(s, 0) & DownloadAddrMask
}

// Size returns the declared payload size, without any checksum trailer.
func (s SectionHeader) Size() uint32 {
	return GetField(word(s, 1), secHdrSizeMask)
}

// HasChecksum reports whether a checksum trailer follows the payload.
func (s SectionHeader) HasChecksum() bool {
	return word(s, 1)&secHdrChecksumFlag != 0
}

// Redownload reports whether the section must be downloaded again after reset.
func (s SectionHeader) Redownload() bool {
	return word(s, 1)&secHdrRedlFlag != 0
}

// PutSectionHeader encodes a section header into dst.
func PutSectionHeader(dst []byte, addr, size uint32, checksum, redl bool) {
	w1 := PrepField(secHdrSizeMask, size)
	if checksum {
		w1 |= secHdrChecksumFlag
	}
	if redl {
		w1 |= secHdrRedlFlag
	}
	binary.LittleEndian.PutUint32(dst[0:4], addr)
	binary.LittleEndian.PutUint32(dst[4:8], w1)
}

// FWHeaderFields holds the values written by PutFWHeader.
type FWHeaderFields struct {
	Year       uint32
	SectionNum uint8
	Major      uint8
	Minor      uint8
	Sub        uint8
	SubIdx     uint8
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	CmdVersion uint8
}

// PutFWHeader encodes a fixed firmware header into dst.
func PutFWHeader(dst []byte, f FWHeaderFields) {
	put := func(idx int, v uint32) {
		binary.LittleEndian.PutUint32(dst[idx*4:idx*4+4], v)
	}
	put(fwHdrVersionWord, PrepField(fwHdrMajorMask, uint32(f.Major))|
		PrepField(fwHdrMinorMask, uint32(f.Minor))|
		PrepField(fwHdrSubMask, uint32(f.Sub))|
		PrepField(fwHdrSubIdxMask, uint32(f.SubIdx)))
	put(fwHdrDateWord, PrepField(fwHdrMonthMask, uint32(f.Month))|
		PrepField(fwHdrDayMask, uint32(f.Day))|
		PrepField(fwHdrHourMask, uint32(f.Hour))|
		PrepField(fwHdrMinMask, uint32(f.Minute)))
	put(fwHdrYearWord, f.Year)
	put(fwHdrSecNumWord, PrepField(fwHdrSecNumMask, uint32(f.SectionNum)))
	put(fwHdrMiscWord, PrepField(fwHdrCmdVerMask, uint32(f.CmdVersion)))
}
