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
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-wcpu"
	"github.com/ZaparooProject/go-wcpu/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() (*Client, *Simulator) {
	sim := NewSimulator()
	c := NewClient(sim, "sim")
	c.SetRetries(DefaultRetries, 0)
	return c, sim
}

func TestClient_ReadWrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		addr  uint32
		width int
		val   uint32
		want  uint32
	}{
		{name: "Byte", addr: 0x01E0, width: 1, val: 0x1ff, want: 0xff},
		{name: "Half", addr: 0x83F2, width: 2, val: 0x12345, want: 0x2345},
		{name: "Word", addr: 0x8150, width: 4, val: 0xdeadbeef, want: 0xdeadbeef},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, sim := newTestClient()
			require.NoError(t, c.Write(tt.addr, tt.width, tt.val))
			got, err := c.Read(tt.addr, tt.width)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, sim.Get32(tt.addr))
		})
	}
}

func TestClient_BadWidth(t *testing.T) {
	t.Parallel()

	c, sim := newTestClient()
	_, err := c.Read(0, 3)
	require.Error(t, err)
	require.Error(t, c.Write(0, 8, 0))
	assert.Equal(t, 0, sim.Requests())
}

func TestClient_Send(t *testing.T) {
	t.Parallel()

	c, sim := newTestClient()
	require.NoError(t, c.Send(frame.BridgeOpFWData, []byte{1, 2, 3}))
	require.NoError(t, c.Send(frame.BridgeOpH2C, []byte{4}))

	pkts := sim.Packets()
	require.Len(t, pkts, 2)
	assert.Equal(t, Packet{Op: frame.BridgeOpFWData, Data: []byte{1, 2, 3}}, pkts[0])
	assert.Equal(t, byte(frame.BridgeOpH2C), pkts[1].Op)
}

func TestClient_Retries(t *testing.T) {
	t.Parallel()

	t.Run("NAK_Then_OK", func(t *testing.T) {
		t.Parallel()
		c, sim := newTestClient()
		sim.Set32(0x10, 7)
		sim.NAK(2)
		v, err := c.Read(0x10, 4)
		require.NoError(t, err)
		assert.Equal(t, uint32(7), v)
		assert.Equal(t, 3, sim.Requests())
	})

	t.Run("Corrupt_Then_OK", func(t *testing.T) {
		t.Parallel()
		c, sim := newTestClient()
		sim.Corrupt(1)
		require.NoError(t, c.Write(0x10, 4, 1))
		assert.Equal(t, 2, sim.Requests())
	})

	t.Run("Exhausted", func(t *testing.T) {
		t.Parallel()
		c, sim := newTestClient()
		sim.NAK(10)
		_, err := c.Read(0x10, 4)
		require.Error(t, err)
		assert.ErrorIs(t, err, wcpu.ErrTransmit)
		assert.Equal(t, DefaultRetries+1, sim.Requests())
	})

	t.Run("Rejected", func(t *testing.T) {
		t.Parallel()
		c, sim := newTestClient()
		sim.Reject()
		err := c.Write(0x10, 4, 1)
		assert.ErrorIs(t, err, ErrRejected)
		assert.Equal(t, 1, sim.Requests())
	})
}

type failingLink struct{}

func (failingLink) Exchange([]byte, int) ([]byte, error) {
	return nil, errors.New("link down")
}

func TestClient_LinkError(t *testing.T) {
	t.Parallel()

	c := NewClient(failingLink{}, "dead")
	c.SetRetries(5, time.Millisecond)
	_, err := c.Read(0, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dead: link down")
}
