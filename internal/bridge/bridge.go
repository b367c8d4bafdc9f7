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

// Package bridge implements the register bridge protocol shared by the
// serial and I2C backends
package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
	"github.com/ZaparooProject/go-wcpu/internal/transport"
)

// ErrRejected is returned when the bridge answers with an error status
var ErrRejected = errors.New("bridge rejected request")

// DefaultRetries is the number of resends after a NAK or corrupt response
const DefaultRetries = 3

// Link carries one request frame and returns one complete response frame.
// expect is the length of the response the request calls for.
type Link interface {
	Exchange(req []byte, expect int) ([]byte, error)
}

// Client issues register and packet requests over a Link. Requests are
// serialized; a Client is safe for concurrent use.
type Client struct {
	link       Link
	name       string
	retries    int
	retryDelay time.Duration
	mu         sync.Mutex
}

// NewClient creates a client for link. name identifies the bus in errors.
func NewClient(link Link, name string) *Client {
	return &Client{
		link:       link,
		name:       name,
		retries:    DefaultRetries,
		retryDelay: time.Millisecond,
	}
}

// SetRetries sets how many times a NAKed request is resent
func (c *Client) SetRetries(retries int, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries = retries
	c.retryDelay = delay
}

func checkWidth(width int) error {
	switch width {
	case 1, 2, 4:
		return nil
	default:
		return fmt.Errorf("unsupported register width %d", width)
	}
}

// Read reads a register of width bytes
func (c *Client) Read(addr uint32, width int) (uint32, error) {
	if err := checkWidth(width); err != nil {
		return 0, err
	}

	req := frame.BridgeRequest{Op: frame.BridgeOpRead, Addr: addr, Len: uint16(width)}
	data, err := c.do(&req, width)
	if err != nil {
		return 0, err
	}
	if len(data) != width {
		return 0, fmt.Errorf("%s: read 0x%04x returned %d bytes: %w", c.name, addr, len(data), frame.ErrBridgeLength)
	}

	var buf [4]byte
	copy(buf[:], data)
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Write writes a register of width bytes
func (c *Client) Write(addr uint32, width int, val uint32) error {
	if err := checkWidth(width); err != nil {
		return err
	}

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], val)
	req := frame.BridgeRequest{Op: frame.BridgeOpWrite, Addr: addr, Data: buf[:width]}
	_, err := c.do(&req, 0)
	return err
}

// Send delivers a packet (firmware data or a command frame) to the chip
func (c *Client) Send(op byte, data []byte) error {
	req := frame.BridgeRequest{Op: op, Data: data}
	_, err := c.do(&req, 0)
	return err
}

func (c *Client) do(req *frame.BridgeRequest, respData int) ([]byte, error) {
	raw, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	expect := frame.BridgeResponseHdr + respData + 1

	c.mu.Lock()
	defer c.mu.Unlock()

	return transport.WithRetry(transport.RetryConfig{
		Description: c.name,
		MaxRetries:  c.retries,
		RetryDelay:  c.retryDelay,
	}, func() ([]byte, bool, error) {
		buf, err := c.link.Exchange(raw, expect)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", c.name, err)
		}

		resp, err := frame.DecodeBridgeResponse(buf)
		if errors.Is(err, frame.ErrBridgeChecksum) {
			return nil, true, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", c.name, err)
		}

		switch resp.Status {
		case frame.BridgeStatusOK:
			return resp.Data, false, nil
		case frame.BridgeStatusNAK:
			return nil, true, nil
		default:
			return nil, false, fmt.Errorf("%s: op 0x%02x addr 0x%04x: %w (status 0x%02x)",
				c.name, req.Op, req.Addr, ErrRejected, resp.Status)
		}
	})
}
