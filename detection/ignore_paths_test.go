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

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		devicePath  string
		ignorePaths []string
		want        bool
	}{
		{name: "nil_list", devicePath: "0000:02:00.0"},
		{name: "empty_path", devicePath: "", ignorePaths: []string{""}},
		{name: "pci_address", devicePath: "0000:02:00.0", ignorePaths: []string{"0000:02:00.0"}, want: true},
		{name: "pci_address_case", devicePath: "0000:0a:00.0", ignorePaths: []string{"0000:0A:00.0"}, want: true},
		{name: "pci_other_function", devicePath: "0000:02:00.1", ignorePaths: []string{"0000:02:00.0"}},
		{name: "usb_bus_addr", devicePath: "1:4", ignorePaths: []string{"2:7", "1:4"}, want: true},
		{name: "usb_other_addr", devicePath: "1:14", ignorePaths: []string{"1:4"}},
		{name: "i2c_node", devicePath: "/dev/i2c-1", ignorePaths: []string{"/dev/i2c-1"}, want: true},
		{name: "serial_unclean", devicePath: "/dev/../dev/ttyUSB0", ignorePaths: []string{"/dev/ttyUSB0"}, want: true},
		{name: "blank_entries", devicePath: "/dev/ttyUSB0", ignorePaths: []string{"", "/dev/ttyUSB0", ""}, want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsPathIgnored(tt.devicePath, tt.ignorePaths))
		})
	}
}

func TestDefaultOptions_IgnorePaths(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.Nil(t, opts.IgnorePaths)
	assert.Equal(t, Passive, opts.Mode)
}
