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
	"errors"
	"testing"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSent(t *testing.T, data []byte) (frame.H2CHeader, []byte) {
	t.Helper()
	hdr, err := frame.DecodeH2CHeader(data)
	require.NoError(t, err)
	return hdr, data[frame.H2CHeaderLen:]
}

func TestDevice_SendCommand(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)
	payload := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}

	err := device.SendCommand(payload, CommandOptions{
		Type:     FrameTypeLong,
		Category: CategoryOutsrc,
		Class:    0x21,
		Function: 0x42,
		DoneAck:  true,
	})
	require.NoError(t, err)

	records := chip.Tx.Records()
	require.Len(t, records, 1)
	assert.False(t, records[0].Firmware)

	hdr, body := decodeSent(t, records[0].Data)
	assert.Equal(t, uint8(FrameTypeLong), hdr.Type)
	assert.Equal(t, uint8(CategoryOutsrc), hdr.Category)
	assert.Equal(t, uint8(0x21), hdr.Class)
	assert.Equal(t, uint8(0x42), hdr.Function)
	assert.Equal(t, uint8(0), hdr.Seq)
	assert.Equal(t, uint16(len(payload)+frame.H2CHeaderLen), hdr.TotalLen)
	assert.True(t, hdr.RecAck, "seq 0 forces rec ack")
	assert.True(t, hdr.DoneAck)
	assert.Equal(t, payload, body)
}

func TestDevice_SendCommand_SequenceAndRecAck(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)

	for i := 0; i < 9; i++ {
		require.NoError(t, device.SendCommand([]byte{byte(i)}, CommandOptions{Category: CategoryMAC}))
	}

	frames := chip.Tx.Frames(false)
	require.Len(t, frames, 9)
	for i, f := range frames {
		hdr, _ := decodeSent(t, f)
		assert.Equal(t, uint8(i), hdr.Seq)
		assert.Equal(t, i%4 == 0, hdr.RecAck, "frame %d", i)
		assert.False(t, hdr.DoneAck)
	}
	assert.Equal(t, uint8(9), device.H2CSeq())
}

func TestDevice_SendCommand_SequenceWraps(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)

	for i := 0; i < 257; i++ {
		require.NoError(t, device.SendCommand(nil, CommandOptions{Category: CategoryMAC, RecAck: true}))
	}

	frames := chip.Tx.Frames(false)
	require.Len(t, frames, 257)
	hdr, _ := decodeSent(t, frames[255])
	assert.Equal(t, uint8(255), hdr.Seq)
	hdr, _ = decodeSent(t, frames[256])
	assert.Equal(t, uint8(0), hdr.Seq)
	assert.Equal(t, uint16(frame.H2CHeaderLen), hdr.TotalLen)
}

func TestDevice_SendCommand_NoHeader(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)
	payload := []byte{1, 2, 3}

	require.NoError(t, device.SendCommand(payload, CommandOptions{NoHeader: true}))
	frames := chip.Tx.Frames(false)
	require.Len(t, frames, 1)
	assert.Equal(t, payload, frames[0])
	assert.Equal(t, uint8(0), device.H2CSeq())
}

func TestDevice_SendCommand_TransmitFailure(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	chip.Tx.FailAt(0, errors.New("queue stopped"))
	alloc := newTrackingAllocator()
	device := newTestDevice(t, chip, WithAllocator(alloc))

	err := device.SendCommand([]byte{1}, CommandOptions{Category: CategoryMAC})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransmit)
	assert.Contains(t, err.Error(), "queue stopped")
	assert.True(t, alloc.allReleased())
	assert.Equal(t, uint8(1), device.H2CSeq(), "a framed command consumes its sequence number")
}

func TestDevice_SendCommand_TooLarge(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	alloc := newTrackingAllocator()
	device := newTestDevice(t, chip, WithAllocator(alloc))

	err := device.SendCommand(make([]byte, frame.MaxTotalLen), CommandOptions{Category: CategoryMAC})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Equal(t, uint8(0), device.H2CSeq())
	assert.Equal(t, 0, chip.Tx.Calls())
	assert.True(t, alloc.allReleased())

	// Largest payload that fits the length field
	require.NoError(t, device.SendCommand(make([]byte, frame.MaxTotalLen-frame.H2CHeaderLen), CommandOptions{}))
	hdr, _ := decodeSent(t, chip.Tx.Frames(false)[0])
	assert.Equal(t, uint16(frame.MaxTotalLen), hdr.TotalLen)
}

func TestDevice_SendCommand_AllocFailure(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	alloc := newTrackingAllocator()
	alloc.failAt[0] = true
	device := newTestDevice(t, chip, WithAllocator(alloc))

	err := device.SendCommand([]byte{1}, CommandOptions{})
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Equal(t, 0, chip.Tx.Calls())
}

func TestDevice_SendH2C(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)

	buf, err := device.NewH2CBuffer(4, true)
	require.NoError(t, err)
	assert.Equal(t, frame.H2CHeaderLen+frame.TxDescReserve, buf.Headroom())
	require.NoError(t, buf.Put([]byte{9, 8, 7, 6}))

	require.NoError(t, device.SendH2C(buf, CommandOptions{Category: CategoryMAC, Class: 1, Function: 2}))
	assert.True(t, buf.Released())

	hdr, body := decodeSent(t, chip.Tx.Frames(false)[0])
	assert.Equal(t, uint8(1), hdr.Class)
	assert.Equal(t, []byte{9, 8, 7, 6}, body)

	raw, err := device.NewH2CBuffer(1, false)
	require.NoError(t, err)
	assert.Equal(t, frame.TxDescReserve, raw.Headroom())
	raw.Release()

	// Without header headroom the frame cannot be built
	small := NewBuffer([]byte{1})
	require.Error(t, device.SendH2C(small, CommandOptions{}))
	assert.True(t, small.Released())
}

func TestDevice_SendGeneralPacket(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)

	require.NoError(t, device.SendGeneralPacket(5))
	hdr, body := decodeSent(t, chip.Tx.Frames(false)[0])
	assert.Equal(t, uint8(CategoryMAC), hdr.Category)
	assert.Equal(t, uint8(H2CClassFWInfo), hdr.Class)
	assert.Equal(t, uint8(H2CFuncGeneralPkt), hdr.Function)
	assert.True(t, hdr.DoneAck)
	assert.Equal(t, []byte{5, 0xff, 0xff, 0xff, 0xff, 0xff}, body)
}

func TestDevice_SendMacIDPause(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		shift     uint8
		group     uint8
		pause     bool
		wantPause [4]uint32
		wantMask  [4]uint32
	}{
		{name: "Pause_Group1", shift: 3, group: 1, pause: true,
			wantPause: [4]uint32{0, 8, 0, 0}, wantMask: [4]uint32{0, 8, 0, 0}},
		{name: "Resume_Group1", shift: 3, group: 1, pause: false,
			wantPause: [4]uint32{0, 0, 0, 0}, wantMask: [4]uint32{0, 8, 0, 0}},
		{name: "Pause_Top_Bit", shift: 31, group: 3, pause: true,
			wantPause: [4]uint32{0, 0, 0, 1 << 31}, wantMask: [4]uint32{0, 0, 0, 1 << 31}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chip := NewVirtualChip()
			device := newTestDevice(t, chip)

			require.NoError(t, device.SendMacIDPause(tt.shift, tt.group, tt.pause))
			hdr, body := decodeSent(t, chip.Tx.Frames(false)[0])
			assert.Equal(t, uint8(H2CClassFWOffload), hdr.Class)
			assert.Equal(t, uint8(H2CFuncMacIDPause), hdr.Function)
			assert.True(t, hdr.RecAck)
			require.Len(t, body, 32)

			for i := 0; i < 4; i++ {
				assert.Equal(t, tt.wantPause[i], binary.LittleEndian.Uint32(body[i*4:]), "pause word %d", i)
				assert.Equal(t, tt.wantMask[i], binary.LittleEndian.Uint32(body[16+i*4:]), "mask word %d", i)
			}
		})
	}
}

func TestDevice_SendMacIDPause_Invalid(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)

	assert.ErrorIs(t, device.SendMacIDPause(0, 4, true), ErrInvalidParameter)
	assert.ErrorIs(t, device.SendMacIDPause(32, 0, true), ErrInvalidParameter)
	assert.Equal(t, 0, chip.Tx.Calls())
}

func TestDevice_SendRFRegPage(t *testing.T) {
	t.Parallel()

	chip := NewVirtualChip()
	device := newTestDevice(t, chip)
	data := []byte{0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, 0x80}

	require.NoError(t, device.SendRFRegPage(RFPathA, 2, data))
	require.NoError(t, device.SendRFRegPage(RFPathB, 7, data))
	assert.ErrorIs(t, device.SendRFRegPage(RFPath(2), 0, data), ErrInvalidParameter)

	frames := chip.Tx.Frames(false)
	require.Len(t, frames, 2)

	hdr, body := decodeSent(t, frames[0])
	assert.Equal(t, uint8(CategoryOutsrc), hdr.Category)
	assert.Equal(t, uint8(H2CClassRFRegA), hdr.Class)
	assert.Equal(t, uint8(2), hdr.Function)
	assert.Equal(t, data, body)

	hdr, _ = decodeSent(t, frames[1])
	assert.Equal(t, uint8(H2CClassRFRegB), hdr.Class)
	assert.Equal(t, uint8(7), hdr.Function)
	assert.Equal(t, uint8(1), hdr.Seq)
}

func TestCategory_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "test", CategoryTest.String())
	assert.Equal(t, "mac", CategoryMAC.String())
	assert.Equal(t, "outsrc", CategoryOutsrc.String())
	assert.Equal(t, "category(3)", Category(3).String())
}
