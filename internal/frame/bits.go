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

package frame

import "math/bits"

// GetField extracts the bits selected by mask and shifts them down.
func GetField(val, mask uint32) uint32 {
	if mask == 0 {
		return 0
	}
	return (val & mask) >> bits.TrailingZeros32(mask)
}

// PrepField shifts val into the position selected by mask.
// Bits of val that do not fit are dropped.
func PrepField(mask, val uint32) uint32 {
	if mask == 0 {
		return 0
	}
	return (val << bits.TrailingZeros32(mask)) & mask
}
