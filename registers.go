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

// RegisterAccess defines synchronous access to the chip's fixed-width
// registers. It can be implemented by MMIO, USB, I2C or serial bridges.
// Calls may block; none of them may be made from the event receive path.
type RegisterAccess interface {
	Read8(addr uint32) (uint8, error)
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)
	Write8(addr uint32, val uint8) error
	Write16(addr uint32, val uint16) error
	Write32(addr uint32, val uint32) error
}

// MaskedWriter is implemented by register backends that can update a bit
// field in one bus transaction.
type MaskedWriter interface {
	WriteMask32(addr, mask, val uint32) error
}

// WriteMask32 stores val into the field selected by mask, leaving the rest
// of the register untouched. val is given unshifted.
func WriteMask32(r RegisterAccess, addr, mask, val uint32) error {
	if mw, ok := r.(MaskedWriter); ok {
		return mw.WriteMask32(addr, mask, val)
	}

	cur, err := r.Read32(addr)
	if err != nil {
		return fmt.Errorf("read 0x%04x for masked write: %w", addr, err)
	}
	next := cur&^mask | frame.PrepField(mask, val)
	if err := r.Write32(addr, next); err != nil {
		return fmt.Errorf("masked write 0x%04x: %w", addr, err)
	}
	return nil
}

// Register map
const (
	RegDbgCtrl     = 0x0058
	RegDbgPortSel  = 0x00C0
	RegSysStatus1  = 0x00F4
	RegWCPUFWCtrl  = 0x01E0
	RegBootDbg     = 0x83F0
	RegHaltH2CCtrl = 0x8120
	RegHaltC2HCtrl = 0x8124
	RegH2CRegData0 = 0x8140
	RegH2CRegData1 = 0x8144
	RegH2CRegData2 = 0x8148
	RegH2CRegData3 = 0x814C
	RegC2HRegData0 = 0x8150
	RegC2HRegData1 = 0x8154
	RegC2HRegData2 = 0x8158
	RegC2HRegData3 = 0x815C
	RegH2CRegCtrl  = 0x8160
	RegC2HRegCtrl  = 0x8164
)

// RegWCPUFWCtrl bits
const (
	BitH2CPathReady  = 1 << 1
	BitFWDLPathReady = 1 << 2
	MaskFWDLStatus   = 0xE0
)

// RegSysStatus1 bits
const (
	MaskSel0xC0 = 0x3 << 16
)

// RegH2CRegCtrl bits
const (
	BitH2CRegTrigger = 1 << 0
)

// dbgCtrlPC selects the WCPU program counter on the debug port.
const dbgCtrlPC = 0xf200f2

// FWDLStatus is the download state reported in RegWCPUFWCtrl.
type FWDLStatus uint8

// Download states
const (
	FWDLInitialState FWDLStatus = 0
	FWDLInProgress   FWDLStatus = 1
	FWDLChecksumFail FWDLStatus = 2
	FWDLSecurityFail FWDLStatus = 3
	FWDLCutNotMatch  FWDLStatus = 4
	FWDLReserved     FWDLStatus = 5
	FWDLWCPUReady    FWDLStatus = 6
	FWDLWCPUInitRdy  FWDLStatus = 7
)

// String returns the status name
func (s FWDLStatus) String() string {
	switch s {
	case FWDLInitialState:
		return "initial"
	case FWDLInProgress:
		return "downloading"
	case FWDLChecksumFail:
		return "checksum fail"
	case FWDLSecurityFail:
		return "security fail"
	case FWDLCutNotMatch:
		return "cut not match"
	case FWDLWCPUReady:
		return "wcpu fwdl ready"
	case FWDLWCPUInitRdy:
		return "wcpu fw init ready"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(s))
	}
}

// StatusOf extracts the download state from a RegWCPUFWCtrl value.
func StatusOf(val uint8) FWDLStatus {
	return FWDLStatus(frame.GetField(uint32(val), MaskFWDLStatus))
}

var (
	h2cRegData = [frame.MailboxWords]uint32{
		RegH2CRegData0, RegH2CRegData1, RegH2CRegData2, RegH2CRegData3,
	}
	c2hRegData = [frame.MailboxWords]uint32{
		RegC2HRegData0, RegC2HRegData1, RegC2HRegData2, RegC2HRegData3,
	}
)
