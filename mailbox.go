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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// MailboxMessage is one message read from the C2H register mailbox
type MailboxMessage struct {
	Words    [frame.MailboxWords]uint32
	Function uint8
}

// Raw returns the four mailbox words as little-endian bytes
func (m *MailboxMessage) Raw() []byte {
	raw := make([]byte, frame.MailboxWords*4)
	for i, w := range m.Words {
		binary.LittleEndian.PutUint32(raw[i*4:], w)
	}
	return raw
}

// Content returns the message body, which starts after the two header bytes
func (m *MailboxMessage) Content() []byte {
	return m.Raw()[frame.MailboxHdrLen:]
}

// EncodeMailboxHeader builds word 0 of an H2C mailbox message. length is the
// number of words that carry the message.
func EncodeMailboxHeader(function, length uint8) uint32 {
	return frame.MailboxHeader(function, length)
}

// WriteMailbox writes up to four words to the H2C register mailbox and waits
// for the firmware to acknowledge them. Extra words are ignored.
func (d *Device) WriteMailbox(words []uint32) error {
	if len(words) > frame.MailboxWords {
		words = words[:frame.MailboxWords]
	}

	_, err := pollRead8(d.regs, RegH2CRegCtrl, func(v uint8) bool {
		return v == 0
	}, d.config.MailboxIdlePoll)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			d.log.Warn("fw does not process h2c registers")
			return &DeviceError{Op: "write mailbox", Stage: "idle", Err: ErrMailboxBusy,
				Type: ErrorTypeTimeout, Retryable: true}
		}
		return &DeviceError{Op: "write mailbox", Stage: "idle", Err: err, Type: ErrorTypeTransmit}
	}

	for i, w := range words {
		if err := d.regs.Write32(h2cRegData[i], w); err != nil {
			return &DeviceError{Op: "write mailbox", Stage: fmt.Sprintf("data %d", i), Err: err, Type: ErrorTypeTransmit}
		}
	}
	if err := d.regs.Write8(RegH2CRegCtrl, BitH2CRegTrigger); err != nil {
		return &DeviceError{Op: "write mailbox", Stage: "trigger", Err: err, Type: ErrorTypeTransmit}
	}

	_, err = pollRead8(d.regs, RegC2HRegCtrl, func(v uint8) bool {
		return v != 0
	}, d.config.MailboxAckPoll)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			d.log.Warn("c2h register ack timeout")
			return &DeviceError{Op: "write mailbox", Stage: "ack", Err: ErrMailboxNoAck,
				Type: ErrorTypeTimeout, Retryable: true}
		}
		return &DeviceError{Op: "write mailbox", Stage: "ack", Err: err, Type: ErrorTypeTransmit}
	}
	return nil
}

// WriteMailboxMessage packs function and up to 14 content bytes into mailbox
// words and writes them with WriteMailbox.
func (d *Device) WriteMailboxMessage(function uint8, content []byte) error {
	if len(content) > frame.MailboxWords*4-frame.MailboxHdrLen {
		return fmt.Errorf("%w: mailbox content of %d bytes", ErrInvalidParameter, len(content))
	}

	n := (frame.MailboxHdrLen + len(content) + 3) / 4
	raw := make([]byte, n*4)
	copy(raw[frame.MailboxHdrLen:], content)

	words := make([]uint32, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	words[0] = words[0]&^0xffff | EncodeMailboxHeader(function, uint8(n))

	return d.WriteMailbox(words)
}

// ReadMailbox reads one message from the C2H register mailbox and hands the
// mailbox back to the firmware. It returns ErrNoMailboxMessage when the
// firmware has not posted anything.
func (d *Device) ReadMailbox() (*MailboxMessage, error) {
	ctrl, err := d.regs.Read8(RegC2HRegCtrl)
	if err != nil {
		return nil, &DeviceError{Op: "read mailbox", Stage: "ctrl", Err: err, Type: ErrorTypeTransmit}
	}
	if ctrl == 0 {
		d.log.Warn("fw does not send c2h reg")
		return nil, &DeviceError{Op: "read mailbox", Err: ErrNoMailboxMessage, Type: ErrorTypePermanent}
	}

	msg := &MailboxMessage{}
	for i, addr := range c2hRegData {
		w, err := d.regs.Read32(addr)
		if err != nil {
			return nil, &DeviceError{Op: "read mailbox", Stage: fmt.Sprintf("data %d", i), Err: err, Type: ErrorTypeTransmit}
		}
		msg.Words[i] = w
	}

	if err := d.regs.Write8(RegC2HRegCtrl, 0); err != nil {
		return nil, &DeviceError{Op: "read mailbox", Stage: "release", Err: err, Type: ErrorTypeTransmit}
	}

	msg.Function = frame.MailboxFunction(msg.Words[0])
	debugf("C2H reg func 0x%02x words %08x %08x %08x %08x",
		msg.Function, msg.Words[0], msg.Words[1], msg.Words[2], msg.Words[3])
	return msg, nil
}
