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

// Bridge operations
const (
	BridgeOpRead   = 0x01 // Length selects the register width
	BridgeOpWrite  = 0x02
	BridgeOpFWData = 0x10 // Firmware download packet
	BridgeOpH2C    = 0x11 // Command frame
)

// Bridge response status
const (
	BridgeStatusOK    = 0x00
	BridgeStatusNAK   = 0x01 // Request corrupted in transit, resend
	BridgeStatusError = 0x02
)

// Bridge framing errors
var (
	ErrBridgeSync     = errors.New("bridge frame sync byte missing")
	ErrBridgeLength   = errors.New("bridge frame length invalid")
	ErrBridgeChecksum = errors.New("bridge frame checksum mismatch")
)

// BridgeRequest is one request sent to a register bridge.
//
//	0xA5 op addr[4] len[2] data[len] checksum
type BridgeRequest struct {
	Data []byte
	Addr uint32
	Len  uint16
	Op   byte
}

// Encode returns the request frame. When Data is set, Len is taken from it.
func (r *BridgeRequest) Encode() ([]byte, error) {
	n := int(r.Len)
	if r.Data != nil {
		n = len(r.Data)
	}
	if n > BridgeMaxData {
		return nil, ErrBridgeLength
	}

	buf := make([]byte, BridgeRequestHdr, BridgeRequestHdr+len(r.Data)+1)
	buf[0] = BridgeRequestSync
	buf[1] = r.Op
	binary.LittleEndian.PutUint32(buf[2:6], r.Addr)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(n))
	buf = append(buf, r.Data...)
	return append(buf, CalculateFrameChecksum(buf)), nil
}

// BridgeResponse is one response received from a register bridge.
//
//	0x5A status len[2] data[len] checksum
type BridgeResponse struct {
	Data   []byte
	Status byte
}

// BridgeResponseLen returns the full frame length announced by a response
// header of BridgeResponseHdr bytes.
func BridgeResponseLen(hdr []byte) (int, error) {
	if len(hdr) < BridgeResponseHdr {
		return 0, ErrBridgeLength
	}
	if hdr[0] != BridgeResponseSync {
		return 0, ErrBridgeSync
	}
	n := int(binary.LittleEndian.Uint16(hdr[2:4]))
	if n > BridgeMaxData {
		return 0, ErrBridgeLength
	}
	return BridgeResponseHdr + n + 1, nil
}

// DecodeBridgeResponse validates a complete response frame. Data aliases buf.
func DecodeBridgeResponse(buf []byte) (BridgeResponse, error) {
	total, err := BridgeResponseLen(buf)
	if err != nil {
		return BridgeResponse{}, err
	}
	if len(buf) != total {
		return BridgeResponse{}, ErrBridgeLength
	}
	if ValidateChecksum(buf) {
		return BridgeResponse{}, ErrBridgeChecksum
	}
	return BridgeResponse{
		Status: buf[1],
		Data:   buf[BridgeResponseHdr : total-1],
	}, nil
}

// EncodeBridgeResponse builds a response frame. Bridge simulators in tests
// use it.
func EncodeBridgeResponse(status byte, data []byte) []byte {
	buf := make([]byte, BridgeResponseHdr, BridgeResponseHdr+len(data)+1)
	buf[0] = BridgeResponseSync
	buf[1] = status
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(data)))
	buf = append(buf, data...)
	return append(buf, CalculateFrameChecksum(buf))
}

// DecodeBridgeRequest parses a complete request frame. Bridge simulators in
// tests use it.
func DecodeBridgeRequest(buf []byte) (BridgeRequest, error) {
	if len(buf) < BridgeRequestHdr+1 {
		return BridgeRequest{}, ErrBridgeLength
	}
	if buf[0] != BridgeRequestSync {
		return BridgeRequest{}, ErrBridgeSync
	}
	n := binary.LittleEndian.Uint16(buf[6:8])
	req := BridgeRequest{
		Op:   buf[1],
		Addr: binary.LittleEndian.Uint32(buf[2:6]),
		Len:  n,
	}
	dataLen := 0
	if req.Op != BridgeOpRead {
		dataLen = int(n)
	}
	if len(buf) != BridgeRequestHdr+dataLen+1 {
		return BridgeRequest{}, ErrBridgeLength
	}
	if ValidateChecksum(buf) {
		return BridgeRequest{}, ErrBridgeChecksum
	}
	req.Data = buf[BridgeRequestHdr : BridgeRequestHdr+dataLen]
	return req, nil
}
