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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type typedBus struct {
	*SimRegisters
	busType BusType
}

func (b typedBus) Type() BusType { return b.busType }

type profiledBus struct {
	*SimRegisters
}

func (profiledBus) Profile() BusProfile {
	return BusProfile{PollInterval: 3 * time.Millisecond, ChunkSize: 512}
}

func TestDevice_BusProfile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		regs         RegisterAccess
		name         string
		wantInterval time.Duration
		wantChunk    int
	}{
		{name: "Mock", regs: NewSimRegisters(), wantInterval: DefaultFWDLPollInterval, wantChunk: 2020},
		{name: "MMIO", regs: typedBus{NewSimRegisters(), BusMMIO}, wantInterval: DefaultFWDLPollInterval, wantChunk: 2020},
		{name: "UART", regs: typedBus{NewSimRegisters(), BusUART}, wantInterval: time.Millisecond, wantChunk: 2020},
		{name: "I2C", regs: typedBus{NewSimRegisters(), BusI2C}, wantInterval: 100 * time.Microsecond, wantChunk: 2020},
		{name: "USB", regs: typedBus{NewSimRegisters(), BusUSB}, wantInterval: 50 * time.Microsecond, wantChunk: 2020},
		{name: "Profiler", regs: profiledBus{NewSimRegisters()}, wantInterval: 3 * time.Millisecond, wantChunk: 512},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, err := New(tt.regs, NewMockTransmitter())
			require.NoError(t, err)

			cfg := device.Config()
			assert.Equal(t, tt.wantInterval, cfg.FWDLPoll.Interval)
			assert.Equal(t, tt.wantInterval, cfg.MailboxAckPoll.Interval)
			assert.Equal(t, DefaultMailboxIdleTick, cfg.MailboxIdlePoll.Interval)
			assert.Equal(t, DefaultFWDLPollTimeout, cfg.FWDLPoll.Timeout)
			assert.Equal(t, tt.wantChunk, cfg.ChunkSize)
		})
	}
}

func TestDevice_BusProfile_OptionsWin(t *testing.T) {
	t.Parallel()

	device, err := New(typedBus{NewSimRegisters(), BusUART}, NewMockTransmitter(),
		WithFWDLPoll(time.Microsecond, time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Microsecond, device.Config().FWDLPoll.Interval)
}
