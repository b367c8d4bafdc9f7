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

// BusProfile tunes polling to the cost of one register access on a bus
type BusProfile struct {
	// PollInterval replaces the microsecond poll interval of the download
	// and mailbox ack polls. Timeouts are unchanged.
	PollInterval time.Duration
	// ChunkSize caps the download packet size (0 keeps the default)
	ChunkSize int
}

// BusProfiler is implemented by register backends that provide their own
// tuning
type BusProfiler interface {
	Profile() BusProfile
}

// profileFor returns the tuning for a register backend
func profileFor(regs RegisterAccess) (BusProfile, bool) {
	if profiler, ok := regs.(BusProfiler); ok {
		return profiler.Profile(), true
	}

	bus, ok := regs.(Bus)
	if !ok {
		return BusProfile{}, false
	}

	switch bus.Type() {
	case BusUART:
		// Each access is a full request/response exchange on the line
		return BusProfile{PollInterval: time.Millisecond}, true
	case BusI2C:
		return BusProfile{PollInterval: 100 * time.Microsecond}, true
	case BusUSB:
		return BusProfile{PollInterval: 50 * time.Microsecond}, true
	default:
		return BusProfile{}, false
	}
}

// applyProfile adjusts the default configuration for the register backend.
// It runs before options so explicit options win.
func (c *DeviceConfig) applyProfile(p BusProfile) {
	if p.PollInterval > 0 {
		c.FWDLPoll.Interval = p.PollInterval
		c.MailboxAckPoll.Interval = p.PollInterval
	}
	if p.ChunkSize > 0 && p.ChunkSize < c.ChunkSize {
		c.ChunkSize = p.ChunkSize
	}
}
