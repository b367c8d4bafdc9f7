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
	"errors"
	"fmt"
)

// Firmware image errors
var (
	ErrFirmwareTruncated    = errors.New("firmware image truncated")
	ErrFirmwareSizeMismatch = errors.New("firmware bin size mismatch")
	ErrFirmwareUnavailable  = errors.New("firmware image unavailable")
)

// Errors reported by the chip when it rejects a downloaded image
var (
	ErrFirmwareChecksum    = errors.New("fw checksum fail")
	ErrFirmwareSecurity    = errors.New("fw security fail")
	ErrFirmwareCutMismatch = errors.New("fw cut not match")
)

// Timeout and busy errors
var (
	ErrTimeout      = errors.New("operation timeout")
	ErrBusy         = errors.New("device busy")
	ErrMailboxBusy  = errors.New("fw does not process h2c registers")
	ErrMailboxNoAck = errors.New("c2h register ack timeout")
)

// Resource and transmit errors
var (
	ErrNoMemory       = errors.New("buffer allocation failed")
	ErrBufferTooSmall = errors.New("buffer too small")
	ErrTransmit       = errors.New("transmit failed")
)

// Other errors
var (
	ErrNoMailboxMessage = errors.New("fw does not send c2h reg")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotStarted       = errors.New("event dispatcher not started")
)

// ErrorType classifies errors for caller retry decisions
type ErrorType int

const (
	// ErrorTypePermanent errors are not expected to go away on retry
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeFormat marks a malformed firmware image
	ErrorTypeFormat
	// ErrorTypeRejected marks an image the chip refused (checksum, security, cut)
	ErrorTypeRejected
	// ErrorTypeTimeout marks a poll that exceeded its budget
	ErrorTypeTimeout
	// ErrorTypeResource marks a failed buffer allocation
	ErrorTypeResource
	// ErrorTypeTransmit marks a failure in the transmit path
	ErrorTypeTransmit
)

// String returns a short name for the error type
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeFormat:
		return "format"
	case ErrorTypeRejected:
		return "rejected"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeResource:
		return "resource"
	case ErrorTypeTransmit:
		return "transmit"
	default:
		return "permanent"
	}
}

// DeviceError carries the failing operation and stage together with its
// classification.
type DeviceError struct {
	Err       error
	Op        string
	Stage     string
	Type      ErrorType
	Retryable bool
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// NewTimeoutError creates a retryable timeout error for a poll stage
func NewTimeoutError(op, stage string) *DeviceError {
	return &DeviceError{
		Op:        op,
		Stage:     stage,
		Err:       ErrTimeout,
		Type:      ErrorTypeTimeout,
		Retryable: true,
	}
}

// NewBusyError creates a retryable busy error wrapping cause
func NewBusyError(op, stage string, cause error) *DeviceError {
	err := ErrBusy
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrBusy, cause)
	}
	return &DeviceError{
		Op:        op,
		Stage:     stage,
		Err:       err,
		Type:      ErrorTypeTimeout,
		Retryable: true,
	}
}

// NewFormatError creates a non-retryable firmware format error
func NewFormatError(op string, err error) *DeviceError {
	return &DeviceError{
		Op:   op,
		Err:  err,
		Type: ErrorTypeFormat,
	}
}

// NewRejectedError creates a non-retryable error for a chip-rejected image
func NewRejectedError(op string, err error) *DeviceError {
	return &DeviceError{
		Op:   op,
		Err:  err,
		Type: ErrorTypeRejected,
	}
}

// NewResourceError creates an allocation failure error
func NewResourceError(op, stage string) *DeviceError {
	return &DeviceError{
		Op:    op,
		Stage: stage,
		Err:   ErrNoMemory,
		Type:  ErrorTypeResource,
	}
}

// NewTransmitError creates a transmit failure error wrapping cause
func NewTransmitError(op, stage string, cause error) *DeviceError {
	err := ErrTransmit
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrTransmit, cause)
	}
	return &DeviceError{
		Op:    op,
		Stage: stage,
		Err:   err,
		Type:  ErrorTypeTransmit,
	}
}

// IsRetryable reports whether the caller may retry the whole operation.
// A DeviceError decides for itself; bare sentinels are matched directly.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Retryable
	}

	switch err {
	case ErrTimeout, ErrBusy, ErrMailboxBusy, ErrMailboxNoAck:
		return true
	default:
		return false
	}
}

// GetErrorType returns the classification of err
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type
	}

	switch {
	case errors.Is(err, ErrFirmwareTruncated), errors.Is(err, ErrFirmwareSizeMismatch):
		return ErrorTypeFormat
	case errors.Is(err, ErrFirmwareChecksum), errors.Is(err, ErrFirmwareSecurity),
		errors.Is(err, ErrFirmwareCutMismatch):
		return ErrorTypeRejected
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrBusy),
		errors.Is(err, ErrMailboxBusy), errors.Is(err, ErrMailboxNoAck):
		return ErrorTypeTimeout
	case errors.Is(err, ErrNoMemory):
		return ErrorTypeResource
	case errors.Is(err, ErrTransmit):
		return ErrorTypeTransmit
	default:
		return ErrorTypePermanent
	}
}
