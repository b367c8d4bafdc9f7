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
	"fmt"
	"log/slog"
	"time"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) error {
		if logger == nil {
			logger = discardLogger()
		}
		d.config.Logger = logger
		return nil
	}
}

// WithAllocator sets the transmit buffer allocator
func WithAllocator(alloc Allocator) Option {
	return func(d *Device) error {
		if alloc == nil {
			return fmt.Errorf("%w: nil allocator", ErrInvalidParameter)
		}
		d.config.Allocator = alloc
		return nil
	}
}

// WithProgressCallback sets a callback that tracks firmware download progress.
//
// Example:
//
//	dev, _ := wcpu.New(regs, tx,
//	    wcpu.WithProgressCallback(func(p wcpu.Progress) {
//	        fmt.Printf("%s %d/%d\n", p.Phase, p.BytesSent, p.TotalBytes)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(d *Device) error {
		d.config.ProgressCallback = callback
		return nil
	}
}

// WithMACHandler sets the handler for MAC-category events
func WithMACHandler(handler EventHandler) Option {
	return func(d *Device) error {
		d.config.MACHandler = handler
		return nil
	}
}

// WithOutsrcHandler sets the handler for outsourced-feature events
func WithOutsrcHandler(handler EventHandler) Option {
	return func(d *Device) error {
		d.config.OutsrcHandler = handler
		return nil
	}
}

// WithFirmwareSource sets where LoadFirmware fetches images from
func WithFirmwareSource(src FirmwareSource) Option {
	return func(d *Device) error {
		if src == nil {
			return fmt.Errorf("%w: nil firmware source", ErrInvalidParameter)
		}
		d.config.FirmwareSource = src
		return nil
	}
}

// WithFirmwareName sets the image name requested by LoadFirmware
func WithFirmwareName(name string) Option {
	return func(d *Device) error {
		if name == "" {
			return fmt.Errorf("%w: empty firmware name", ErrInvalidParameter)
		}
		d.config.FirmwareName = name
		return nil
	}
}

// WithFWDLPoll sets the interval and timeout of the download readiness polls
func WithFWDLPoll(interval, timeout time.Duration) Option {
	return func(d *Device) error {
		d.config.FWDLPoll = PollConfig{Interval: interval, Timeout: timeout}
		return nil
	}
}

// WithMailboxPoll sets the timeouts of the two mailbox handshake polls
func WithMailboxPoll(idle, ack PollConfig) Option {
	return func(d *Device) error {
		d.config.MailboxIdlePoll = idle
		d.config.MailboxAckPoll = ack
		return nil
	}
}

// WithSettleDelay sets the pause before the firmware ready poll
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Device) error {
		d.config.SettleDelay = delay
		return nil
	}
}

// WithFailureDump sets how many program counter samples a failure dump takes
// and the pause between them
func WithFailureDump(iterations int, delay time.Duration) Option {
	return func(d *Device) error {
		if iterations < 0 {
			return fmt.Errorf("%w: negative dump iterations", ErrInvalidParameter)
		}
		d.config.DumpIterations = iterations
		d.config.DumpDelay = delay
		return nil
	}
}

// WithChunkSize sets the largest download packet payload (1..2020 bytes)
func WithChunkSize(size int) Option {
	return func(d *Device) error {
		if size <= 0 || size > frame.MaxPacketLen {
			return fmt.Errorf("%w: chunk size %d out of range 1-%d",
				ErrInvalidParameter, size, frame.MaxPacketLen)
		}
		d.config.ChunkSize = size
		return nil
	}
}
