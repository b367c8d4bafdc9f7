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
	"testing"

	testutil "github.com/ZaparooProject/go-wcpu/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevice_WriteMailbox(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)
	words := []uint32{0x00000201, 0x11223344, 0x55667788, 0x99aabbcc}

	require.NoError(t, device.WriteMailbox(words))

	writes := chip.MailboxWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, [4]uint32{0x00000201, 0x11223344, 0x55667788, 0x99aabbcc}, writes[0])

	trig := chip.Writes(RegH2CRegCtrl)
	require.Len(t, trig, 1)
	assert.Equal(t, uint32(BitH2CRegTrigger), trig[0].Val)
	assert.Equal(t, 1, trig[0].Width)
	assert.NotZero(t, chip.Get8(RegC2HRegCtrl))
}

func TestDevice_WriteMailbox_Order(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)
	require.NoError(t, device.WriteMailbox([]uint32{1, 2}))

	// idle poll, data words, trigger, ack poll
	var seq []uint32
	for _, a := range chip.Accesses() {
		seq = append(seq, a.Addr)
	}
	require.GreaterOrEqual(t, len(seq), 5)
	assert.Equal(t, uint32(RegH2CRegCtrl), seq[0])
	assert.Equal(t, []uint32{RegH2CRegData0, RegH2CRegData1, RegH2CRegCtrl, RegC2HRegCtrl}, seq[1:5])
}

func TestDevice_WriteMailbox_ExtraWordsIgnored(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)

	require.NoError(t, device.WriteMailbox([]uint32{1, 2, 3, 4, 5, 6}))
	assert.Len(t, chip.Writes(RegH2CRegData3), 1)
	assert.Empty(t, chip.Writes(RegH2CRegData3+4))
}

func TestDevice_WriteMailbox_Busy(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	chip.Set8(RegH2CRegCtrl, BitH2CRegTrigger)
	device := newTestDevice(t, chip)

	err := device.WriteMailbox([]uint32{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMailboxBusy)
	assert.True(t, IsRetryable(err))
	assert.Empty(t, chip.Writes(RegH2CRegData0))
	assert.Empty(t, chip.Writes(RegH2CRegCtrl))
}

func TestDevice_WriteMailbox_NoAck(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	chip.SetMailboxAck(false)
	device := newTestDevice(t, chip)

	err := device.WriteMailbox([]uint32{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMailboxNoAck)
	assert.Equal(t, ErrorTypeTimeout, GetErrorType(err))
	assert.Len(t, chip.Writes(RegH2CRegData0), 1)
}

func TestDevice_WriteMailbox_WriteError(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	chip.SetWriteError(RegH2CRegData1, errors.New("nak"))
	device := newTestDevice(t, chip)

	err := device.WriteMailbox([]uint32{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data 1")
	assert.Empty(t, chip.Writes(RegH2CRegCtrl))
}

func TestDevice_WriteMailboxMessage(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)

	require.NoError(t, device.WriteMailboxMessage(0x12, []byte{0xa1, 0xa2, 0xa3, 0xa4, 0xa5}))

	writes := chip.MailboxWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, uint32(0xa2a10212), writes[0][0])
	assert.Equal(t, uint32(0x00a5a4a3), writes[0][1])
	assert.Len(t, chip.Writes(RegH2CRegData2), 0)

	assert.ErrorIs(t, device.WriteMailboxMessage(1, make([]byte, 15)), ErrInvalidParameter)
}

func TestDevice_ReadMailbox(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	reply := testutil.BuildMailboxWords(0x23, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14})
	chip.SetMailboxReply(reply)
	device := newTestDevice(t, chip)

	require.NoError(t, device.WriteMailbox([]uint32{EncodeMailboxHeader(0x23, 1)}))

	msg, err := device.ReadMailbox()
	require.NoError(t, err)
	assert.Equal(t, reply, msg.Words)
	assert.Equal(t, uint8(0x23), msg.Function)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, msg.Content())
	assert.Len(t, msg.Raw(), 16)

	// Mailbox handed back to the firmware
	assert.Equal(t, uint8(0), chip.Get8(RegC2HRegCtrl))

	_, err = device.ReadMailbox()
	assert.ErrorIs(t, err, ErrNoMailboxMessage)
}

func TestDevice_ReadMailbox_Empty(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)

	msg, err := device.ReadMailbox()
	require.Error(t, err)
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, ErrNoMailboxMessage)
	assert.False(t, IsRetryable(err))
	assert.Empty(t, chip.Writes(RegC2HRegCtrl))
	assert.Equal(t, 0, chip.ReadCount(RegC2HRegData0))
}

func TestDevice_ReadMailbox_ReadError(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	chip.Set8(RegC2HRegCtrl, 1)
	chip.SetReadError(RegC2HRegData2, errors.New("bus fault"))
	device := newTestDevice(t, chip)

	_, err := device.ReadMailbox()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus fault")
	assert.Empty(t, chip.Writes(RegC2HRegCtrl), "mailbox kept on failed read")
}

func TestEncodeMailboxHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		function uint8
		length   uint8
		want     uint32
	}{
		{name: "Zero", function: 0, length: 0, want: 0},
		{name: "Typical", function: 0x12, length: 2, want: 0x0212},
		{name: "Max", function: 0x7f, length: 0xf, want: 0x0f7f},
		{name: "Truncated", function: 0xff, length: 0x1f, want: 0x0f7f},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, EncodeMailboxHeader(tt.function, tt.length))
		})
	}
}
