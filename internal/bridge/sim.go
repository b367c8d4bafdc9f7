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

package bridge

import (
	"bytes"
	"sync"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// Packet is a firmware or command packet received by a Simulator
type Packet struct {
	Data []byte
	Op   byte
}

// Simulator is the chip side of the bridge protocol for tests: a
// byte-addressed register file plus a packet log.
type Simulator struct {
	regs     map[uint32]byte
	packets  []Packet
	requests int
	nak      int
	corrupt  int
	reject   bool
	mu       sync.Mutex
}

// NewSimulator creates a simulator with all registers zero
func NewSimulator() *Simulator {
	return &Simulator{regs: make(map[uint32]byte)}
}

// NAK answers the next n requests with a NAK status
func (s *Simulator) NAK(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nak = n
}

// Corrupt answers the next n requests with a bad checksum
func (s *Simulator) Corrupt(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt = n
}

// Reject answers the next request with an error status
func (s *Simulator) Reject() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = true
}

// Set32 stores a register value
func (s *Simulator) Set32(addr, val uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < 4; i++ {
		s.regs[addr+uint32(i)] = byte(val >> (8 * i))
	}
}

// Get32 returns a register value
func (s *Simulator) Get32(addr uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(s.regs[addr+uint32(i)]) << (8 * i)
	}
	return v
}

// Packets returns the packets received so far
func (s *Simulator) Packets() []Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Packet(nil), s.packets...)
}

// Requests returns the number of requests handled, resends included
func (s *Simulator) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Handle processes one request frame and returns the response frame
func (s *Simulator) Handle(raw []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++

	req, err := frame.DecodeBridgeRequest(raw)
	if err != nil {
		return frame.EncodeBridgeResponse(frame.BridgeStatusNAK, nil)
	}

	switch {
	case s.nak > 0:
		s.nak--
		return frame.EncodeBridgeResponse(frame.BridgeStatusNAK, nil)
	case s.reject:
		s.reject = false
		return frame.EncodeBridgeResponse(frame.BridgeStatusError, nil)
	}

	var resp []byte
	switch req.Op {
	case frame.BridgeOpRead:
		data := make([]byte, req.Len)
		for i := range data {
			data[i] = s.regs[req.Addr+uint32(i)]
		}
		resp = frame.EncodeBridgeResponse(frame.BridgeStatusOK, data)
	case frame.BridgeOpWrite:
		for i, b := range req.Data {
			s.regs[req.Addr+uint32(i)] = b
		}
		resp = frame.EncodeBridgeResponse(frame.BridgeStatusOK, nil)
	case frame.BridgeOpFWData, frame.BridgeOpH2C:
		s.packets = append(s.packets, Packet{Op: req.Op, Data: bytes.Clone(req.Data)})
		resp = frame.EncodeBridgeResponse(frame.BridgeStatusOK, nil)
	default:
		resp = frame.EncodeBridgeResponse(frame.BridgeStatusError, nil)
	}

	if s.corrupt > 0 {
		s.corrupt--
		resp[len(resp)-1] ^= 0xff
	}
	return resp
}

// Exchange implements Link
func (s *Simulator) Exchange(req []byte, _ int) ([]byte, error) {
	return s.Handle(req), nil
}
