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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// Download and mailbox timing defaults
const (
	DefaultFWDLPollInterval   = time.Microsecond
	DefaultFWDLPollTimeout    = 400 * time.Millisecond
	DefaultMailboxIdleTick    = time.Millisecond
	DefaultMailboxIdleTimeout = 5 * time.Millisecond
	DefaultMailboxAckTick     = time.Microsecond
	DefaultMailboxAckTimeout  = time.Second
	DefaultSettleDelay        = 5 * time.Millisecond
	DefaultDumpIterations     = 15
	DefaultDumpDelay          = 10 * time.Microsecond
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// Allocator provides transmit buffers
	Allocator Allocator
	// Logger receives structured diagnostics
	Logger *slog.Logger
	// ProgressCallback is called as a firmware download advances (optional)
	ProgressCallback ProgressCallback
	// MACHandler receives MAC-category events (optional)
	MACHandler EventHandler
	// OutsrcHandler receives outsourced-feature events (optional)
	OutsrcHandler EventHandler
	// FirmwareSource fetches firmware images by name
	FirmwareSource FirmwareSource
	// FirmwareName is the image requested by LoadFirmware
	FirmwareName string
	// FWDLPoll bounds each download readiness poll
	FWDLPoll PollConfig
	// MailboxIdlePoll bounds the wait for the chip to drain the H2C mailbox
	MailboxIdlePoll PollConfig
	// MailboxAckPoll bounds the wait for the chip to acknowledge a mailbox write
	MailboxAckPoll PollConfig
	// SettleDelay is the pause between the last section and the ready poll
	SettleDelay time.Duration
	// DumpDelay is the pause between program counter reads in a failure dump
	DumpDelay time.Duration
	// DumpIterations is the number of program counter reads in a failure dump
	DumpIterations int
	// ChunkSize is the largest download packet payload
	ChunkSize int
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Allocator:       PoolAllocator{},
		Logger:          discardLogger(),
		FirmwareSource:  NewDirSource(DefaultFirmwareDirs...),
		FirmwareName:    DefaultFirmwareName,
		FWDLPoll:        PollConfig{Interval: DefaultFWDLPollInterval, Timeout: DefaultFWDLPollTimeout},
		MailboxIdlePoll: PollConfig{Interval: DefaultMailboxIdleTick, Timeout: DefaultMailboxIdleTimeout},
		MailboxAckPoll:  PollConfig{Interval: DefaultMailboxAckTick, Timeout: DefaultMailboxAckTimeout},
		SettleDelay:     DefaultSettleDelay,
		DumpIterations:  DefaultDumpIterations,
		DumpDelay:       DefaultDumpDelay,
		ChunkSize:       frame.MaxPacketLen,
	}
}

// Device is one WCPU session: the register bus, the command channel and the
// firmware state that belongs to them.
//
// Thread Safety: SendCommand and QueueEvent may be called from any
// goroutine. Event handlers run one at a time on the dispatcher goroutine
// with the device lock held. DownloadFirmware and the mailbox calls block
// on register polls and should be serialized by the caller with Lock.
type Device struct {
	regs    RegisterAccess
	tx      Transmitter
	config  *DeviceConfig
	log     *slog.Logger
	events  *eventQueue
	load    *firmwareLoad
	version FirmwareVersion

	mu        sync.Mutex   // device-wide lock, held around event handlers
	versionMu sync.RWMutex // guards version
	loadMu    sync.Mutex   // guards load

	h2cSeq     atomic.Uint32
	recSeq     atomic.Uint32
	lastRecAck atomic.Uint32
	fwReady    atomic.Bool
	running    atomic.Bool
}

// New creates a Device on top of a register backend and a transmit path
func New(regs RegisterAccess, tx Transmitter, opts ...Option) (*Device, error) {
	if regs == nil || tx == nil {
		return nil, fmt.Errorf("%w: register access and transmitter are required", ErrInvalidParameter)
	}

	device := &Device{
		regs:   regs,
		tx:     tx,
		config: DefaultDeviceConfig(),
		events: newEventQueue(),
	}

	if profile, ok := profileFor(regs); ok {
		device.config.applyProfile(profile)
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}
	device.log = device.config.Logger

	return device, nil
}

// Registers returns the register backend
func (d *Device) Registers() RegisterAccess {
	return d.regs
}

// Transmitter returns the transmit path
func (d *Device) Transmitter() Transmitter {
	return d.tx
}

// Config returns a copy of the current configuration
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// Lock takes the device-wide lock that serializes event handling.
// Upper layers hold it while they mutate device state.
func (d *Device) Lock() {
	d.mu.Lock()
}

// Unlock releases the device-wide lock
func (d *Device) Unlock() {
	d.mu.Unlock()
}

// SetRunning sets the flag that gates event dispatch. While it is clear,
// queued events are dropped without reaching a handler.
func (d *Device) SetRunning(running bool) {
	d.running.Store(running)
}

// Running reports whether events are being dispatched
func (d *Device) Running() bool {
	return d.running.Load()
}

// FirmwareReady reports whether the last download reached firmware init ready
func (d *Device) FirmwareReady() bool {
	return d.fwReady.Load()
}

// FirmwareVersion returns the version parsed from the last downloaded image
func (d *Device) FirmwareVersion() FirmwareVersion {
	d.versionMu.RLock()
	defer d.versionMu.RUnlock()
	return d.version
}

// H2CSeq returns the sequence number the next command frame will carry
func (d *Device) H2CSeq() uint8 {
	return uint8(d.h2cSeq.Load())
}

// RecSeq returns the number of chip-to-host frames dispatched this session
func (d *Device) RecSeq() uint32 {
	return d.recSeq.Load()
}

// LastRecAck returns the H2C sequence number most recently acknowledged
// by a receive-ack event
func (d *Device) LastRecAck() uint8 {
	return uint8(d.lastRecAck.Load())
}

// Close stops the event dispatcher, waits for any pending firmware request
// and closes the register backend if it can be closed.
func (d *Device) Close() error {
	d.SetRunning(false)
	d.Stop()
	d.UnloadFirmware()

	if closer, ok := d.regs.(io.Closer); ok {
		if err := closer.Close(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			return fmt.Errorf("failed to close register backend: %w", err)
		}
	}
	return nil
}
