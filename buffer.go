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
	"sync/atomic"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// Buffer is a packet buffer with reserved headroom so headers can be
// prepended without copying. Data lives in buf[head:tail].
//
// A Buffer has a single owner at a time; it is handed from the builder to
// the Transmitter, or from the receive path to the event dispatcher.
type Buffer struct {
	buf      []byte
	free     func([]byte)
	head     int
	tail     int
	released atomic.Bool
}

// NewBuffer wraps data in a Buffer with no headroom. Release is a no-op
// apart from marking it released.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{buf: data, tail: len(data)}
}

// Bytes returns the current contents
func (b *Buffer) Bytes() []byte {
	return b.buf[b.head:b.tail]
}

// Len returns the number of data bytes
func (b *Buffer) Len() int {
	return b.tail - b.head
}

// Headroom returns the space left in front of the data
func (b *Buffer) Headroom() int {
	return b.head
}

// Tailroom returns the space left after the data
func (b *Buffer) Tailroom() int {
	return len(b.buf) - b.tail
}

// Put appends data, failing with ErrBufferTooSmall when it does not fit.
func (b *Buffer) Put(data []byte) error {
	dst, err := b.PutZero(len(data))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// PutZero extends the data by n zeroed bytes and returns the new region.
func (b *Buffer) PutZero(n int) ([]byte, error) {
	if n < 0 || n > b.Tailroom() {
		return nil, ErrBufferTooSmall
	}
	region := b.buf[b.tail : b.tail+n]
	clear(region)
	b.tail += n
	return region, nil
}

// Push claims n bytes of headroom in front of the data and returns them.
func (b *Buffer) Push(n int) ([]byte, error) {
	if n < 0 || n > b.head {
		return nil, ErrBufferTooSmall
	}
	b.head -= n
	return b.buf[b.head : b.head+n], nil
}

// Pull drops n bytes from the front of the data and returns them.
func (b *Buffer) Pull(n int) ([]byte, error) {
	if n < 0 || n > b.Len() {
		return nil, ErrBufferTooSmall
	}
	region := b.buf[b.head : b.head+n]
	b.head += n
	return region, nil
}

// Release returns the buffer to its allocator. Calling it more than once
// has no further effect.
func (b *Buffer) Release() {
	if b.released.Swap(true) {
		return
	}
	if b.free != nil {
		b.free(b.buf)
	}
}

// Released reports whether Release has been called
func (b *Buffer) Released() bool {
	return b.released.Load()
}

// Allocator hands out transmit buffers. Implementations must be safe for
// concurrent use.
type Allocator interface {
	// Alloc returns a buffer that can hold size data bytes after headroom
	// bytes reserved in front.
	Alloc(size, headroom int) (*Buffer, error)
}

// PoolAllocator allocates buffers from a shared pool.
type PoolAllocator struct{}

// Alloc implements Allocator
func (PoolAllocator) Alloc(size, headroom int) (*Buffer, error) {
	if size < 0 || headroom < 0 {
		return nil, ErrInvalidParameter
	}
	return &Buffer{
		buf:  frame.GetBuffer(size + headroom),
		free: frame.PutBuffer,
		head: headroom,
		tail: headroom,
	}, nil
}

// h2cHeadroom returns the headroom reserved for an H2C buffer.
func h2cHeadroom(withHeader bool) int {
	if withHeader {
		return frame.H2CHeaderLen + frame.TxDescReserve
	}
	return frame.TxDescReserve
}
