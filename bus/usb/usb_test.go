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

package usb

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-wcpu"
	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simController serves vendor requests from a simulated register file
type simController struct {
	regs  *wcpu.SimRegisters
	err   error
	short bool
}

func (c *simController) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if request != vendorReq {
		return 0, errors.New("unexpected request")
	}
	addr := uint32(idx)<<16 | uint32(val)
	n := len(data)
	if c.short {
		n--
	}
	for i := 0; i < n; i++ {
		if rType == reqTypeIn {
			data[i] = c.regs.Get8(addr + uint32(i))
		} else {
			c.regs.Set8(addr+uint32(i), data[i])
		}
	}
	return n, nil
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, nil
}

func TestBus_Registers(t *testing.T) {
	t.Parallel()

	regs := wcpu.NewSimRegisters()
	b := newBus(&simController{regs: regs}, &bytes.Buffer{}, "usb")

	require.NoError(t, b.Write32(wcpu.RegH2CRegData1, 0xa1b2c3d4))
	assert.Equal(t, uint32(0xa1b2c3d4), regs.Get32(wcpu.RegH2CRegData1))

	v32, err := b.Read32(wcpu.RegH2CRegData1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xa1b2c3d4), v32)

	v16, err := b.Read16(wcpu.RegH2CRegData1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xc3d4), v16)

	require.NoError(t, b.Write8(wcpu.RegWCPUFWCtrl, 0xE0))
	v8, err := b.Read8(wcpu.RegWCPUFWCtrl)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xE0), v8)

	require.NoError(t, b.Write16(0x18000, 0xbeef))
	assert.Equal(t, uint32(0xbeef), regs.Get32(0x18000), "high address half goes in wIndex")
}

func TestBus_ControlErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ctrl    *simController
		name    string
		wantMsg string
	}{
		{
			name:    "Transfer_Error",
			ctrl:    &simController{regs: wcpu.NewSimRegisters(), err: errors.New("pipe")},
			wantMsg: "pipe",
		},
		{
			name:    "Short_Transfer",
			ctrl:    &simController{regs: wcpu.NewSimRegisters(), short: true},
			wantMsg: "short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := newBus(tt.ctrl, &bytes.Buffer{}, "usb")
			_, err := b.Read32(0x10)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			err = b.Write32(0x10, 1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestBus_Transmit(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	b := newBus(&simController{regs: wcpu.NewSimRegisters()}, &out, "usb")

	buf := wcpu.NewBuffer([]byte{1, 2, 3, 4})
	require.NoError(t, b.Transmit(buf, true))
	assert.True(t, buf.Released())
	assert.Equal(t, []byte{1, 2, 3, 4}, out.Bytes())

	short := newBus(&simController{regs: wcpu.NewSimRegisters()}, shortWriter{}, "usb")
	failed := wcpu.NewBuffer([]byte{1, 2, 3, 4})
	require.Error(t, short.Transmit(failed, false))
	assert.False(t, failed.Released())
}

func TestBus_Close(t *testing.T) {
	t.Parallel()

	b := newBus(&simController{regs: wcpu.NewSimRegisters()}, &bytes.Buffer{}, "usb")
	closes := 0
	b.close = func() error {
		closes++
		return nil
	}
	assert.Equal(t, wcpu.BusUSB, b.Type())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, 1, closes)

	_, err := b.Read8(0)
	require.Error(t, err)
	require.Error(t, b.Transmit(wcpu.NewBuffer([]byte{1}), false))
}

func TestParseBusAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		wantBus  int
		wantAddr int
		wantErr  bool
	}{
		{name: "Empty", in: "", wantBus: -1, wantAddr: -1},
		{name: "Valid", in: "3:17", wantBus: 3, wantAddr: 17},
		{name: "Missing_Colon", in: "317", wantErr: true},
		{name: "Bad_Bus", in: "x:1", wantErr: true},
		{name: "Bad_Addr", in: "1:300", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bus, addr, err := parseBusAddr(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBus, bus)
			assert.Equal(t, tt.wantAddr, addr)
		})
	}
}

func TestMatchProduct(t *testing.T) {
	t.Parallel()

	assert.True(t, matchProduct(0x8832, 0))
	assert.False(t, matchProduct(0x1234, 0))
	assert.True(t, matchProduct(0x1234, gousb.ID(0x1234)))
	assert.False(t, matchProduct(0x8832, gousb.ID(0x1234)))
}
