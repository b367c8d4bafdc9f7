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

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferBus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{path: "/dev/i2c-1", want: "i2c"},
		{path: "/dev/ttyUSB0", want: "uart"},
		{path: "COM3", want: "uart"},
		{path: "0000:02:00.0", want: "mmio"},
		{path: "1:4", want: "usb"},
		{path: "something", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, inferBus(tt.path))
		})
	}
}

func TestParseMailbox(t *testing.T) {
	t.Parallel()

	fn, content, err := parseMailbox("0x05:0a0b0c")
	require.NoError(t, err)
	assert.Equal(t, uint8(5), fn)
	assert.Equal(t, []byte{0x0a, 0x0b, 0x0c}, content)

	fn, content, err = parseMailbox("12:")
	require.NoError(t, err)
	assert.Equal(t, uint8(12), fn)
	assert.Empty(t, content)

	for _, bad := range []string{"05", "0x80:00", "zz:00", "1:0g"} {
		_, _, err := parseMailbox(bad)
		assert.Error(t, err, bad)
	}
}

func TestOpenBus_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := openBus("spi", "/dev/spidev0.0")
	require.Error(t, err)
}
