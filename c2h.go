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
	"sync"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// MAC C2H class and functions handled by the device itself
const (
	C2HClassInfo     = 0x0
	C2HFuncRecAck    = 0x0
	C2HFuncDoneAck   = 0x1
	C2HFuncLog       = 0x2
	c2hAckSeqShift   = 16
	c2hAckPayloadLen = 4
)

// EventHandler receives chip-to-host events for one category. payload is the
// event body after the header and is only valid during the call; length is
// the frame length declared in the header.
type EventHandler interface {
	HandleEvent(payload []byte, length uint16, class, function uint8)
}

// EventHandlerFunc adapts a function to the EventHandler interface
type EventHandlerFunc func(payload []byte, length uint16, class, function uint8)

// HandleEvent implements EventHandler
func (f EventHandlerFunc) HandleEvent(payload []byte, length uint16, class, function uint8) {
	f(payload, length, class, function)
}

// eventQueue is an unbounded FIFO drained by one worker goroutine.
type eventQueue struct {
	frames  []*Buffer
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	started bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1)}
}

func (q *eventQueue) push(b *Buffer) {
	q.mu.Lock()
	q.frames = append(q.frames, b)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() *Buffer {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil
	}
	b := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	return b
}

// Len returns the number of queued frames
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// QueueEvent enqueues a received chip-to-host frame and schedules the
// dispatcher. It never blocks and may be called from the receive path.
// The device takes ownership of b.
func (d *Device) QueueEvent(b *Buffer) {
	d.events.push(b)
}

// PendingEvents returns the number of frames waiting for dispatch
func (d *Device) PendingEvents() int {
	return d.events.Len()
}

// Start launches the event dispatcher. Calling Start on a running
// dispatcher has no effect.
func (d *Device) Start() {
	q := d.events
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return
	}
	q.started = true
	q.stop = make(chan struct{})
	q.done = make(chan struct{})

	go d.dispatchEvents(q.stop, q.done)

	// frames queued before Start
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stop halts the event dispatcher after the event in progress and releases
// every frame still queued.
func (d *Device) Stop() {
	q := d.events
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	stop, done := q.stop, q.done
	q.mu.Unlock()

	close(stop)
	<-done

	for b := q.pop(); b != nil; b = q.pop() {
		b.Release()
	}
}

func (d *Device) dispatchEvents(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		case <-d.events.wake:
			d.drainEvents(stop)
		}
	}
}

// drainEvents dispatches queued frames in arrival order until the queue is
// empty or stop is closed.
func (d *Device) drainEvents(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		b := d.events.pop()
		if b == nil {
			return
		}

		d.mu.Lock()
		if d.running.Load() {
			d.handleEvent(b.Bytes())
		} else {
			debugln("C2H dropped, device not running")
		}
		d.mu.Unlock()
		b.Release()
	}
}

// handleEvent routes one frame by category. Called with the device lock held.
func (d *Device) handleEvent(data []byte) {
	hdr, err := frame.DecodeC2HHeader(data)
	if err != nil {
		d.log.Warn("c2h frame too short", "len", len(data))
		return
	}
	d.recSeq.Add(1)

	payload := data[frame.C2HHeaderLen:]
	dump := true

	switch Category(hdr.Category) {
	case CategoryTest:
	case CategoryMAC:
		d.handleMACEvent(hdr, payload)
		if d.config.MACHandler != nil {
			d.config.MACHandler.HandleEvent(payload, hdr.Len, hdr.Class, hdr.Function)
		}
		// Log lines are never dumped, whatever their class
		if hdr.Function == C2HFuncLog {
			dump = false
		}
	case CategoryOutsrc:
		if d.config.OutsrcHandler != nil {
			d.config.OutsrcHandler.HandleEvent(payload, hdr.Len, hdr.Class, hdr.Function)
		}
	default:
		d.log.Info("c2h category not supported",
			"category", hdr.Category, "class", hdr.Class, "func", hdr.Function)
	}

	if dump {
		hexDump("C2H: ", data)
	}
}

// handleMACEvent tracks the acknowledgements the firmware sends for
// commands that asked for them.
func (d *Device) handleMACEvent(hdr frame.C2HHeader, payload []byte) {
	if hdr.Class != C2HClassInfo || len(payload) < c2hAckPayloadLen {
		return
	}

	seq := uint8(binary.LittleEndian.Uint32(payload) >> c2hAckSeqShift)
	switch hdr.Function {
	case C2HFuncRecAck:
		d.lastRecAck.Store(uint32(seq))
		debugf("C2H rec ack for h2c seq %d", seq)
	case C2HFuncDoneAck:
		debugf("C2H done ack for h2c seq %d", seq)
	}
}
