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
	"time"
)

// PollConfig bounds a register poll. Interval is the pause between reads;
// Timeout is the elapsed time after which the poll gives up.
type PollConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Poll reads until cond holds or the timeout elapses. Once the timeout has
// elapsed one last read is made and tested, so a poll never reports a
// timeout before its budget is spent. A read error stops the poll at once.
// The last value read is returned in every case.
func Poll[T any](read func() (T, error), cond func(T) bool, cfg PollConfig) (T, error) {
	start := time.Now()

	for {
		val, err := read()
		if err != nil {
			return val, err
		}
		if cond(val) {
			return val, nil
		}

		if time.Since(start) > cfg.Timeout {
			val, err = read()
			if err != nil {
				return val, err
			}
			if cond(val) {
				return val, nil
			}
			return val, ErrTimeout
		}

		if cfg.Interval > 0 {
			time.Sleep(cfg.Interval)
		}
	}
}

// pollRead8 polls an 8-bit register.
func pollRead8(r RegisterAccess, addr uint32, cond func(uint8) bool, cfg PollConfig) (uint8, error) {
	return Poll(func() (uint8, error) { return r.Read8(addr) }, cond, cfg)
}
