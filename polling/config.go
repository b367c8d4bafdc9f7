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

package polling

import (
	"errors"
	"time"
)

// Config configures a MailboxActor
type Config struct {
	// PollInterval is the pause between mailbox reads while messages flow
	PollInterval time.Duration
	// IdleInterval is used once no message has arrived for IdleAfter
	IdleInterval time.Duration
	// IdleAfter is the quiet period before polling slows down (0 never
	// slows down)
	IdleAfter time.Duration
}

// DefaultConfig returns 10ms polling that backs off to 100ms after a
// second without messages
func DefaultConfig() *Config {
	return &Config{
		PollInterval: 10 * time.Millisecond,
		IdleInterval: 100 * time.Millisecond,
		IdleAfter:    time.Second,
	}
}

// Validate checks the intervals
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.IdleAfter > 0 && c.IdleInterval < c.PollInterval {
		return errors.New("idle interval must not be shorter than poll interval")
	}
	return nil
}
