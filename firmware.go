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
	"time"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// Default firmware location
const DefaultFirmwareName = "rtw89/rtw8852a_fw.bin"

// DefaultFirmwareDirs are searched in order by the default firmware source
var DefaultFirmwareDirs = []string{"/lib/firmware/updates", "/lib/firmware"}

// SectionInfo describes one section of a firmware image. Data is a view into
// the image and includes the checksum trailer when the section has one.
type SectionInfo struct {
	Data         []byte
	DownloadAddr uint32
	Redownload   bool
}

// Len returns the number of bytes the section contributes to the download
func (s SectionInfo) Len() int {
	return len(s.Data)
}

// BinInfo is the result of parsing a firmware image
type BinInfo struct {
	Sections  []SectionInfo
	HeaderLen int
}

// SectionNum returns the number of sections
func (b *BinInfo) SectionNum() int {
	return len(b.Sections)
}

// PayloadLen returns the total number of section bytes
func (b *BinInfo) PayloadLen() int {
	total := 0
	for _, s := range b.Sections {
		total += s.Len()
	}
	return total
}

// ParseFirmware walks the image header and section table and checks that the
// section payloads account for exactly the rest of the image. The returned
// sections reference image; it must stay unchanged while they are in use.
func ParseFirmware(image []byte) (*BinInfo, error) {
	if len(image) < frame.FWHeaderSize {
		return nil, NewFormatError("parse firmware", fmt.Errorf("%w: %d bytes, header needs %d",
			ErrFirmwareTruncated, len(image), frame.FWHeaderSize))
	}

	hdr := frame.FWHeader(image)
	secNum := hdr.SectionNum()
	hdrLen := frame.FWHeaderSize + secNum*frame.SectionHeaderSize
	if len(image) < hdrLen {
		return nil, NewFormatError("parse firmware", fmt.Errorf("%w: %d bytes, %d section headers need %d",
			ErrFirmwareTruncated, len(image), secNum, hdrLen))
	}

	info := &BinInfo{
		Sections:  make([]SectionInfo, 0, secNum),
		HeaderLen: hdrLen,
	}

	cursor := hdrLen
	for i := 0; i < secNum; i++ {
		sec := frame.SectionHeader(image[frame.FWHeaderSize+i*frame.SectionHeaderSize:])

		secLen := int(sec.Size())
		if sec.HasChecksum() {
			secLen += frame.SectionChecksumLen
		}
		if secLen > len(image)-cursor {
			return nil, NewFormatError("parse firmware", fmt.Errorf("%w: section %d needs %d bytes at offset %d of %d",
				ErrFirmwareSizeMismatch, i, secLen, cursor, len(image)))
		}

		info.Sections = append(info.Sections, SectionInfo{
			Data:         image[cursor : cursor+secLen : cursor+secLen],
			DownloadAddr: sec.DownloadAddr(),
			Redownload:   sec.Redownload(),
		})
		cursor += secLen
	}

	if cursor != len(image) {
		return nil, NewFormatError("parse firmware", fmt.Errorf("%w: sections end at %d, image is %d bytes",
			ErrFirmwareSizeMismatch, cursor, len(image)))
	}

	return info, nil
}

// FirmwareVersion holds the identification fields of a firmware header
type FirmwareVersion struct {
	BuildYear   uint32
	Major       uint8
	Minor       uint8
	Sub         uint8
	SubIndex    uint8
	BuildMonth  uint8
	BuildDay    uint8
	BuildHour   uint8
	BuildMinute uint8
	CmdVersion  uint8
}

// ParseFirmwareVersion reads the version fields from an image header
func ParseFirmwareVersion(image []byte) (FirmwareVersion, error) {
	if len(image) < frame.FWHeaderSize {
		return FirmwareVersion{}, NewFormatError("parse firmware version",
			fmt.Errorf("%w: %d bytes", ErrFirmwareTruncated, len(image)))
	}

	hdr := frame.FWHeader(image)
	var v FirmwareVersion
	v.Major, v.Minor, v.Sub, v.SubIndex = hdr.Version()
	v.BuildYear, v.BuildMonth, v.BuildDay, v.BuildHour, v.BuildMinute = hdr.BuildDate()
	v.CmdVersion = hdr.CmdVersion()
	return v, nil
}

// String returns the dotted version
func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Sub, v.SubIndex)
}

// BuildTime returns the build timestamp in UTC. Out-of-range fields are
// normalized by time.Date.
func (v FirmwareVersion) BuildTime() time.Time {
	return time.Date(int(v.BuildYear), time.Month(v.BuildMonth), int(v.BuildDay),
		int(v.BuildHour), int(v.BuildMinute), 0, 0, time.UTC)
}

// updateVersion records the header version and resets both protocol
// counters for the new firmware session.
func (d *Device) updateVersion(image []byte) {
	v, err := ParseFirmwareVersion(image)
	if err != nil {
		return
	}

	d.versionMu.Lock()
	d.version = v
	d.versionMu.Unlock()

	d.h2cSeq.Store(0)
	d.recSeq.Store(0)
	d.lastRecAck.Store(0)

	d.log.Info("firmware version",
		"version", v.String(),
		"cmd_version", v.CmdVersion,
		"build", v.BuildTime().Format("2006-01-02 15:04"))
}
