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
	"bytes"
	"sync"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// RegAccess records one access made to SimRegisters
type RegAccess struct {
	Addr  uint32
	Val   uint32
	Width int
	Write bool
}

// SimRegisters is a byte-addressed, little-endian register file for tests.
// Hooks run without the internal lock held, so they may call Set and Get.
type SimRegisters struct {
	mem      map[uint32]byte
	readErr  map[uint32]error
	writeErr map[uint32]error
	onRead   func(addr uint32, width int)
	onWrite  func(addr uint32, width int, val uint32)
	accesses []RegAccess
	mu       sync.Mutex
	closed   bool
}

// NewSimRegisters creates an all-zero register file
func NewSimRegisters() *SimRegisters {
	return &SimRegisters{
		mem:      make(map[uint32]byte),
		readErr:  make(map[uint32]error),
		writeErr: make(map[uint32]error),
	}
}

func (s *SimRegisters) load(addr uint32, width int) uint32 {
	var val uint32
	for i := 0; i < width; i++ {
		val |= uint32(s.mem[addr+uint32(i)]) << (8 * i)
	}
	return val
}

func (s *SimRegisters) store(addr uint32, width int, val uint32) {
	for i := 0; i < width; i++ {
		s.mem[addr+uint32(i)] = byte(val >> (8 * i))
	}
}

func (s *SimRegisters) read(addr uint32, width int) (uint32, error) {
	s.mu.Lock()
	hook := s.onRead
	s.mu.Unlock()
	if hook != nil {
		hook(addr, width)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr[addr]; err != nil {
		return 0, err
	}
	val := s.load(addr, width)
	s.accesses = append(s.accesses, RegAccess{Addr: addr, Val: val, Width: width})
	return val, nil
}

func (s *SimRegisters) write(addr uint32, width int, val uint32) error {
	s.mu.Lock()
	if err := s.writeErr[addr]; err != nil {
		s.mu.Unlock()
		return err
	}
	s.store(addr, width, val)
	s.accesses = append(s.accesses, RegAccess{Addr: addr, Val: val, Width: width, Write: true})
	hook := s.onWrite
	s.mu.Unlock()

	if hook != nil {
		hook(addr, width, val)
	}
	return nil
}

// Read8 implements RegisterAccess
func (s *SimRegisters) Read8(addr uint32) (uint8, error) {
	v, err := s.read(addr, 1)
	return uint8(v), err
}

// Read16 implements RegisterAccess
func (s *SimRegisters) Read16(addr uint32) (uint16, error) {
	v, err := s.read(addr, 2)
	return uint16(v), err
}

// Read32 implements RegisterAccess
func (s *SimRegisters) Read32(addr uint32) (uint32, error) {
	return s.read(addr, 4)
}

// Write8 implements RegisterAccess
func (s *SimRegisters) Write8(addr uint32, val uint8) error {
	return s.write(addr, 1, uint32(val))
}

// Write16 implements RegisterAccess
func (s *SimRegisters) Write16(addr uint32, val uint16) error {
	return s.write(addr, 2, uint32(val))
}

// Write32 implements RegisterAccess
func (s *SimRegisters) Write32(addr, val uint32) error {
	return s.write(addr, 4, val)
}

// Close implements Bus
func (s *SimRegisters) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called
func (s *SimRegisters) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Type implements Bus
func (*SimRegisters) Type() BusType {
	return BusMock
}

// Set8 stores a byte without recording an access or running hooks
func (s *SimRegisters) Set8(addr uint32, val uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(addr, 1, uint32(val))
}

// Set32 stores a word without recording an access or running hooks
func (s *SimRegisters) Set32(addr, val uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(addr, 4, val)
}

// Get8 returns a byte without recording an access
func (s *SimRegisters) Get8(addr uint32) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint8(s.load(addr, 1))
}

// Get32 returns a word without recording an access
func (s *SimRegisters) Get32(addr uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(addr, 4)
}

// SetReadError makes reads at addr fail with err; nil clears it
func (s *SimRegisters) SetReadError(addr uint32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.readErr, addr)
		return
	}
	s.readErr[addr] = err
}

// SetWriteError makes writes at addr fail with err; nil clears it
func (s *SimRegisters) SetWriteError(addr uint32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.writeErr, addr)
		return
	}
	s.writeErr[addr] = err
}

// OnRead installs a hook that runs before every read
func (s *SimRegisters) OnRead(fn func(addr uint32, width int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRead = fn
}

// OnWrite installs a hook that runs after every successful write
func (s *SimRegisters) OnWrite(fn func(addr uint32, width int, val uint32)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWrite = fn
}

// Accesses returns every recorded access in order
func (s *SimRegisters) Accesses() []RegAccess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RegAccess(nil), s.accesses...)
}

// Writes returns the recorded writes to addr in order
func (s *SimRegisters) Writes(addr uint32) []RegAccess {
	var out []RegAccess
	for _, a := range s.Accesses() {
		if a.Write && a.Addr == addr {
			out = append(out, a)
		}
	}
	return out
}

// ReadCount returns the number of recorded reads of addr
func (s *SimRegisters) ReadCount(addr uint32) int {
	n := 0
	for _, a := range s.Accesses() {
		if !a.Write && a.Addr == addr {
			n++
		}
	}
	return n
}

// TxRecord is one frame accepted by MockTransmitter
type TxRecord struct {
	Data     []byte
	Firmware bool
}

// MockTransmitter records transmitted frames. It can fail chosen calls and
// block until released, for testing ownership and locking behavior.
type MockTransmitter struct {
	errs       map[int]error
	onTransmit func(data []byte, firmware bool)
	block      chan struct{}
	records    []TxRecord
	calls      int
	mu         sync.Mutex
}

// NewMockTransmitter creates a transmitter that accepts everything
func NewMockTransmitter() *MockTransmitter {
	return &MockTransmitter{errs: make(map[int]error)}
}

// FailAt makes the call with zero-based index n return err
func (m *MockTransmitter) FailAt(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[n] = err
}

// OnTransmit installs a hook that sees a copy of each accepted frame
func (m *MockTransmitter) OnTransmit(fn func(data []byte, firmware bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransmit = fn
}

// Block makes subsequent Transmit calls wait for Unblock
func (m *MockTransmitter) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.block == nil {
		m.block = make(chan struct{})
	}
}

// Unblock releases every waiting Transmit call
func (m *MockTransmitter) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.block != nil {
		close(m.block)
		m.block = nil
	}
}

// Transmit implements Transmitter. Accepted buffers are released; failed
// ones are left to the caller.
func (m *MockTransmitter) Transmit(b *Buffer, firmware bool) error {
	m.mu.Lock()
	n := m.calls
	m.calls++
	err := m.errs[n]
	block := m.block
	hook := m.onTransmit
	m.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return err
	}

	data := bytes.Clone(b.Bytes())
	m.mu.Lock()
	m.records = append(m.records, TxRecord{Data: data, Firmware: firmware})
	m.mu.Unlock()

	if hook != nil {
		hook(data, firmware)
	}
	b.Release()
	return nil
}

// Calls returns the number of Transmit calls, failed ones included
func (m *MockTransmitter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Records returns the accepted frames in order
func (m *MockTransmitter) Records() []TxRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TxRecord(nil), m.records...)
}

// Frames returns the accepted frames sent on one path
func (m *MockTransmitter) Frames(firmware bool) [][]byte {
	var out [][]byte
	for _, r := range m.Records() {
		if r.Firmware == firmware {
			out = append(out, r.Data)
		}
	}
	return out
}

// VirtualChip simulates the WCPU side of a firmware download and of the
// register mailbox on top of SimRegisters and MockTransmitter.
type VirtualChip struct {
	*SimRegisters
	Tx            *MockTransmitter
	headers       [][]byte
	mailboxWrites [][frame.MailboxWords]uint32
	mailboxReply  [frame.MailboxWords]uint32
	expected      int
	received      int
	mu            sync.Mutex
	finalStatus   FWDLStatus
	holdFWDLPath  bool
	mailboxAck    bool
}

// NewVirtualChip creates a chip whose H2C path is ready and which reports
// init ready once every section byte has arrived.
func NewVirtualChip() *VirtualChip {
	c := &VirtualChip{
		SimRegisters: NewSimRegisters(),
		Tx:           NewMockTransmitter(),
		finalStatus:  FWDLWCPUInitRdy,
		mailboxAck:   true,
	}
	c.Set8(RegWCPUFWCtrl, BitH2CPathReady)
	c.Tx.OnTransmit(c.receive)
	c.OnWrite(c.registerWritten)
	return c
}

// SetFinalStatus sets the status reported once the whole image has arrived
func (c *VirtualChip) SetFinalStatus(status FWDLStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalStatus = status
}

// SetH2CPathReady raises or drops the H2C path ready bit
func (c *VirtualChip) SetH2CPathReady(ready bool) {
	v := c.Get8(RegWCPUFWCtrl)
	if ready {
		v |= BitH2CPathReady
	} else {
		v &^= BitH2CPathReady
	}
	c.Set8(RegWCPUFWCtrl, v)
}

// HoldFWDLPath keeps the download path closed after the header arrives
func (c *VirtualChip) HoldFWDLPath(hold bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdFWDLPath = hold
}

// SetMailboxAck controls whether mailbox writes are acknowledged
func (c *VirtualChip) SetMailboxAck(ack bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mailboxAck = ack
}

// SetMailboxReply sets the words posted to the C2H mailbox on each ack
func (c *VirtualChip) SetMailboxReply(words [frame.MailboxWords]uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mailboxReply = words
}

// HeaderFrames returns the header-download frames received, header included
func (c *VirtualChip) HeaderFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.headers...)
}

// ReceivedBytes returns the section bytes received since the last header
func (c *VirtualChip) ReceivedBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received
}

// MailboxWrites returns the H2C mailbox contents seen at each trigger
func (c *VirtualChip) MailboxWrites() [][frame.MailboxWords]uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][frame.MailboxWords]uint32(nil), c.mailboxWrites...)
}

func (c *VirtualChip) setStatus(status FWDLStatus) {
	v := c.Get8(RegWCPUFWCtrl)
	v = v&^MaskFWDLStatus | uint8(frame.PrepField(MaskFWDLStatus, uint32(status)))
	c.Set8(RegWCPUFWCtrl, v)
}

func (c *VirtualChip) receive(data []byte, firmware bool) {
	if firmware {
		c.mu.Lock()
		c.received += len(data)
		done := c.received >= c.expected
		final := c.finalStatus
		c.mu.Unlock()
		if done {
			c.setStatus(final)
		}
		return
	}

	hdr, err := frame.DecodeH2CHeader(data)
	if err != nil || Category(hdr.Category) != CategoryMAC ||
		hdr.Class != h2cClassFWDL || hdr.Function != h2cFuncFWHdrDL {
		return
	}

	body := data[frame.H2CHeaderLen:]
	expected := 0
	n := frame.FWHeader(body).SectionNum()
	for i := 0; i < n; i++ {
		sec := frame.SectionHeader(body[frame.FWHeaderSize+i*frame.SectionHeaderSize:])
		expected += int(sec.Size())
		if sec.HasChecksum() {
			expected += frame.SectionChecksumLen
		}
	}

	c.mu.Lock()
	c.headers = append(c.headers, data)
	c.expected = expected
	c.received = 0
	hold := c.holdFWDLPath
	final := c.finalStatus
	c.mu.Unlock()

	// An image without sections is complete once its header lands
	status := FWDLInProgress
	if expected == 0 {
		status = final
	}
	c.setStatus(status)
	if !hold {
		c.Set8(RegWCPUFWCtrl, c.Get8(RegWCPUFWCtrl)|BitFWDLPathReady)
	}
}

func (c *VirtualChip) registerWritten(addr uint32, _ int, val uint32) {
	if addr != RegH2CRegCtrl || val&BitH2CRegTrigger == 0 {
		return
	}

	c.mu.Lock()
	ack := c.mailboxAck
	reply := c.mailboxReply
	c.mu.Unlock()
	if !ack {
		return
	}

	var words [frame.MailboxWords]uint32
	for i, a := range h2cRegData {
		words[i] = c.Get32(a)
	}
	c.mu.Lock()
	c.mailboxWrites = append(c.mailboxWrites, words)
	c.mu.Unlock()

	c.Set8(RegH2CRegCtrl, 0)
	for i, a := range c2hRegData {
		c.Set32(a, reply[i])
	}
	c.Set8(RegC2HRegCtrl, 1)
}

var (
	_ Bus         = (*SimRegisters)(nil)
	_ Transmitter = (*MockTransmitter)(nil)
)
