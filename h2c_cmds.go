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
	"encoding/binary"
	"fmt"
)

// MAC H2C classes and functions used by the command builders
const (
	H2CClassFWInfo     = 0x0
	H2CFuncGeneralPkt  = 0x1
	H2CClassFWOffload  = 0x9
	H2CFuncMacIDPause  = 0x8
	H2CClassRFRegA     = 0x8
	H2CClassRFRegB     = 0x9
	generalPktLen      = 6
	macIDPauseGroups   = 4
	macIDPauseLen      = macIDPauseGroups * 4 * 2
	macIDsPerPauseWord = 32
)

// generalPktUnset marks a general packet slot with no template.
const generalPktUnset = 0xff

// SendGeneralPacket tells the firmware which packet templates serve macid.
// All template slots are left unset.
func (d *Device) SendGeneralPacket(macid uint8) error {
	payload := []byte{macid, generalPktUnset, generalPktUnset, generalPktUnset, generalPktUnset, generalPktUnset}

	return d.SendCommand(payload[:generalPktLen], CommandOptions{
		Type:     FrameTypeCmd,
		Category: CategoryMAC,
		Class:    H2CClassFWInfo,
		Function: H2CFuncGeneralPkt,
		DoneAck:  true,
	})
}

// SendMacIDPause pauses or resumes transmission for one macid. group selects
// the 32-bit pause word and shift the bit inside it.
func (d *Device) SendMacIDPause(shift, group uint8, pause bool) error {
	if group >= macIDPauseGroups || shift >= macIDsPerPauseWord {
		return fmt.Errorf("%w: macid pause group %d shift %d", ErrInvalidParameter, group, shift)
	}

	payload := make([]byte, macIDPauseLen)
	bit := uint32(1) << shift
	if pause {
		binary.LittleEndian.PutUint32(payload[int(group)*4:], bit)
	}
	binary.LittleEndian.PutUint32(payload[(macIDPauseGroups+int(group))*4:], bit)

	return d.SendCommand(payload, CommandOptions{
		Type:     FrameTypeCmd,
		Category: CategoryMAC,
		Class:    H2CClassFWOffload,
		Function: H2CFuncMacIDPause,
		RecAck:   true,
	})
}

// RFPath selects an RF chain
type RFPath uint8

// RF paths
const (
	RFPathA RFPath = 0
	RFPathB RFPath = 1
)

// SendRFRegPage writes one page of RF register values through the firmware.
// The page number is carried in the function field.
func (d *Device) SendRFRegPage(path RFPath, page uint8, data []byte) error {
	var class uint8
	switch path {
	case RFPathA:
		class = H2CClassRFRegA
	case RFPathB:
		class = H2CClassRFRegB
	default:
		return fmt.Errorf("%w: rf path %d", ErrInvalidParameter, path)
	}

	return d.SendCommand(data, CommandOptions{
		Type:     FrameTypeCmd,
		Category: CategoryOutsrc,
		Class:    class,
		Function: page,
	})
}
