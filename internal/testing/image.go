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

// Package testing provides synthetic firmware images and chip-to-host
// events for tests.
package testing

import (
	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// Section describes one section of a synthetic firmware image.
type Section struct {
	Data       []byte // Payload, without checksum trailer
	Addr       uint32
	Checksum   bool // Append a checksum trailer and set the header flag
	Redownload bool
}

// DefaultVersion is the header written by BuildImage.
var DefaultVersion = frame.FWHeaderFields{
	Major: 0, Minor: 13, Sub: 8, SubIdx: 0,
	Year: 2021, Month: 3, Day: 29, Hour: 17, Minute: 5,
	CmdVersion: 1,
}

// BuildImage assembles a firmware image: fixed header, section headers, then
// each payload followed by its checksum trailer when requested.
func BuildImage(sections ...Section) []byte {
	return BuildImageWithVersion(DefaultVersion, sections...)
}

// BuildImageWithVersion is BuildImage with explicit header fields. The
// section count is always taken from sections.
func BuildImageWithVersion(fields frame.FWHeaderFields, sections ...Section) []byte {
	hdrLen := frame.FWHeaderSize + len(sections)*frame.SectionHeaderSize
	image := make([]byte, hdrLen)

	fields.SectionNum = uint8(len(sections))
	frame.PutFWHeader(image, fields)

	for i, sec := range sections {
		off := frame.FWHeaderSize + i*frame.SectionHeaderSize
		frame.PutSectionHeader(image[off:], sec.Addr, uint32(len(sec.Data)), sec.Checksum, sec.Redownload)

		image = append(image, sec.Data...)
		if sec.Checksum {
			image = append(image, ChecksumTrailer(sec.Data)...)
		}
	}

	return image
}

// HeaderLen returns the header length for an image with n sections.
func HeaderLen(n int) int {
	return frame.FWHeaderSize + n*frame.SectionHeaderSize
}

// Pattern returns n bytes of a repeating, position-dependent pattern.
func Pattern(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = seed + byte(i)
	}
	return data
}

// ChecksumTrailer returns a deterministic trailer for data. The chip, not
// the host, verifies it; only its length matters here.
func ChecksumTrailer(data []byte) []byte {
	trailer := make([]byte, frame.SectionChecksumLen)
	for i, b := range data {
		trailer[i%frame.SectionChecksumLen] ^= b
	}
	return trailer
}
