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

package mmio

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/ZaparooProject/go-wcpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWindow(size int) *Bus {
	// back the window with uint32s so it is word aligned
	words := make([]uint32, size/4)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*4)
	return newBus(mem, "test", nil)
}

func TestBus_Access(t *testing.T) {
	t.Parallel()

	b := newWindow(0x9000)
	assert.Equal(t, 0x9000, b.Len())

	require.NoError(t, b.Write32(wcpu.RegWCPUFWCtrl, 0x000000E6))
	v8, err := b.Read8(wcpu.RegWCPUFWCtrl)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xE6), v8)

	require.NoError(t, b.Write16(wcpu.RegBootDbg+2, 0x1234))
	v32, err := b.Read32(wcpu.RegBootDbg)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12340000), v32)

	v16, err := b.Read16(wcpu.RegBootDbg + 2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v16)

	require.NoError(t, b.Write8(wcpu.RegH2CRegCtrl, wcpu.BitH2CRegTrigger))
	v32, err = b.Read32(wcpu.RegH2CRegCtrl)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v32)
}

func TestBus_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   func(b *Bus) error
		name string
	}{
		{name: "Unaligned_Read32", op: func(b *Bus) error { _, err := b.Read32(2); return err }},
		{name: "Unaligned_Write16", op: func(b *Bus) error { return b.Write16(1, 0) }},
		{name: "Out_Of_Range_Read8", op: func(b *Bus) error { _, err := b.Read8(0x100); return err }},
		{name: "Out_Of_Range_Write32", op: func(b *Bus) error { return b.Write32(0x100, 0) }},
		{name: "Past_End_Read32", op: func(b *Bus) error { _, err := b.Read32(0xfe); return err }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.op(newWindow(0x100))
			require.Error(t, err)
			assert.ErrorIs(t, err, wcpu.ErrInvalidParameter)
		})
	}
}

func TestBus_Close(t *testing.T) {
	t.Parallel()

	unmaps := 0
	b := newBus(make([]byte, 16), "test", func() error {
		unmaps++
		return errors.New("busy")
	})
	assert.Equal(t, wcpu.BusMMIO, b.Type())

	require.Error(t, b.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, 1, unmaps)

	_, err := b.Read8(0)
	require.Error(t, err)
}
