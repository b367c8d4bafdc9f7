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

/*
Package wcpu provides a pure Go host for the firmware-download and command
protocol of Realtek 802.11ax WCPU chips.

The host parses a firmware container, streams it to the chip through a
register bus and a transmit path, and then exchanges framed commands and
events with the running firmware.

Features:
  - Firmware container parsing with strict size checks
  - Chunked download with readiness polling and failure diagnostics
  - H2C command framing with sequence numbers and ack requests
  - Ordered C2H event dispatch to per-category handlers
  - Four-word register mailbox for use before the command path is up
  - Asynchronous firmware loading from directories or memory
  - Register backends: PCI MMIO, USB, I2C and UART bridges

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-wcpu"
	    "github.com/ZaparooProject/go-wcpu/bus/uart"
	)

	// Open a serial register bridge; it also carries firmware packets
	bridge, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}
	defer bridge.Close()

	device, err := wcpu.New(bridge, bridge,
	    wcpu.WithFirmwareName("rtw89/rtw8852a_fw.bin"),
	    wcpu.WithMACHandler(handler),
	)
	if err != nil {
	    log.Fatal(err)
	}

	if err := device.LoadFirmware(); err != nil {
	    log.Fatal(err)
	}
	if err := device.DownloadLoadedFirmware(); err != nil {
	    log.Fatal(err)
	}

	device.Start()
	device.SetRunning(true)

	// Pause transmission for macid 3
	if err := device.SendMacIDPause(3, 0, true); err != nil {
	    log.Fatal(err)
	}

Bus Selection:

  - mmio: PCI BAR mapped through sysfs, Linux only
  - usb: vendor control requests and a bulk endpoint
  - i2c: register bridge on an I2C bus
  - uart: register bridge on a serial line

Error Handling:

Errors carry the failing operation and stage and can be classified:

	if wcpu.IsRetryable(err) {
	    // restart the download from the beginning
	}
	if errors.Is(err, wcpu.ErrFirmwareChecksum) {
	    // the chip rejected the image
	}

Thread Safety:

SendCommand and QueueEvent are safe for concurrent use. DownloadFirmware and
the mailbox calls poll registers and must be serialized by the caller.
Event handlers run one at a time with the device lock held.
*/
package wcpu
