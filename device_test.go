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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastOptions shrink every poll and delay so failure paths finish quickly.
func fastOptions() []Option {
	return []Option{
		WithFWDLPoll(time.Microsecond, 20*time.Millisecond),
		WithMailboxPoll(
			PollConfig{Interval: time.Microsecond, Timeout: 5 * time.Millisecond},
			PollConfig{Interval: time.Microsecond, Timeout: 20 * time.Millisecond},
		),
		WithSettleDelay(0),
		WithFailureDump(3, 0),
	}
}

func newTestDevice(t *testing.T, chip *VirtualChip, opts ...Option) *Device {
	t.Helper()

	device, err := New(chip, chip.Tx, append(fastOptions(), opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { device.Stop() })
	return device
}

// trackingAllocator records every buffer it hands out.
type trackingAllocator struct {
	failAt  map[int]bool
	buffers []*Buffer
	mu      sync.Mutex
}

func newTrackingAllocator() *trackingAllocator {
	return &trackingAllocator{failAt: make(map[int]bool)}
}

func (a *trackingAllocator) Alloc(size, headroom int) (*Buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failAt[len(a.buffers)] {
		a.failAt[len(a.buffers)] = false
		a.buffers = append(a.buffers, nil)
		return nil, errors.New("out of buffers")
	}
	b, err := PoolAllocator{}.Alloc(size, headroom)
	if err != nil {
		return nil, err
	}
	a.buffers = append(a.buffers, b)
	return b, nil
}

func (a *trackingAllocator) allReleased() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range a.buffers {
		if b != nil && !b.Released() {
			return false
		}
	}
	return true
}

func TestNew(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()

	tests := []struct {
		regs    RegisterAccess
		tx      Transmitter
		name    string
		opts    []Option
		wantErr bool
	}{
		{name: "Valid_VirtualChip", regs: chip, tx: chip.Tx},
		{name: "Nil_Registers", regs: nil, tx: chip.Tx, wantErr: true},
		{name: "Nil_Transmitter", regs: chip, tx: nil, wantErr: true},
		{name: "Zero_ChunkSize", regs: chip, tx: chip.Tx, opts: []Option{WithChunkSize(0)}, wantErr: true},
		{name: "Oversized_ChunkSize", regs: chip, tx: chip.Tx, opts: []Option{WithChunkSize(2021)}, wantErr: true},
		{name: "Max_ChunkSize", regs: chip, tx: chip.Tx, opts: []Option{WithChunkSize(2020)}},
		{name: "Empty_FirmwareName", regs: chip, tx: chip.Tx, opts: []Option{WithFirmwareName("")}, wantErr: true},
		{name: "Nil_Allocator", regs: chip, tx: chip.Tx, opts: []Option{WithAllocator(nil)}, wantErr: true},
		{name: "Nil_Source", regs: chip, tx: chip.Tx, opts: []Option{WithFirmwareSource(nil)}, wantErr: true},
		{name: "Negative_Dump", regs: chip, tx: chip.Tx, opts: []Option{WithFailureDump(-1, 0)}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, err := New(tt.regs, tt.tx, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidParameter)
				assert.Nil(t, device)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, device)
		})
	}
}

func TestDefaultDeviceConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultDeviceConfig()
	assert.Equal(t, 400*time.Millisecond, cfg.FWDLPoll.Timeout)
	assert.Equal(t, time.Microsecond, cfg.FWDLPoll.Interval)
	assert.Equal(t, 5*time.Millisecond, cfg.MailboxIdlePoll.Timeout)
	assert.Equal(t, time.Millisecond, cfg.MailboxIdlePoll.Interval)
	assert.Equal(t, time.Second, cfg.MailboxAckPoll.Timeout)
	assert.Equal(t, 5*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, 15, cfg.DumpIterations)
	assert.Equal(t, 10*time.Microsecond, cfg.DumpDelay)
	assert.Equal(t, 2020, cfg.ChunkSize)
	assert.Equal(t, DefaultFirmwareName, cfg.FirmwareName)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Allocator)
}

func TestDevice_Options(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	src := NewMemorySource()
	device := newTestDevice(t, chip,
		WithChunkSize(512),
		WithFirmwareName("test.bin"),
		WithFirmwareSource(src),
		WithLogger(nil),
	)

	cfg := device.Config()
	assert.Equal(t, 512, cfg.ChunkSize)
	assert.Equal(t, "test.bin", cfg.FirmwareName)
	assert.Same(t, src, cfg.FirmwareSource)
	assert.NotNil(t, cfg.Logger)
	assert.Equal(t, RegisterAccess(chip), device.Registers())
	assert.Equal(t, Transmitter(chip.Tx), device.Transmitter())
}

func TestDevice_RunningFlag(t *testing.T) {
	t.Parallel()

	device := newTestDevice(t, NewVirtualChip())
	assert.False(t, device.Running())

	device.SetRunning(true)
	assert.True(t, device.Running())

	device.SetRunning(false)
	assert.False(t, device.Running())
}

func TestDevice_Lock(t *testing.T) {
	t.Parallel()

	device := newTestDevice(t, NewVirtualChip())
	device.Lock()
	assert.False(t, device.mu.TryLock())
	device.Unlock()
	assert.True(t, device.mu.TryLock())
	device.mu.Unlock()
}

func TestDevice_Close(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)
	device.Start()
	device.SetRunning(true)

	require.NoError(t, device.Close())
	assert.True(t, chip.Closed())
	assert.False(t, device.Running())

	// Closing twice is harmless
	require.NoError(t, device.Close())
}
