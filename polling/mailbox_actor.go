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

// Package polling watches the register mailbox for firmware replies
package polling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-wcpu"
)

// Actor errors
var (
	ErrActorRunning    = errors.New("mailbox actor is already running")
	ErrActorNotRunning = errors.New("mailbox actor is not running")
)

// MailboxCallbacks receive what the actor reads
type MailboxCallbacks struct {
	// OnMessage is called for every C2H register message
	OnMessage func(msg *wcpu.MailboxMessage) error
	// OnError is called for read failures other than an empty mailbox
	OnError func(err error)
}

// MailboxMetrics tracks operational metrics for MailboxActor
type MailboxMetrics struct {
	PollCycles      int64         // Total number of polling cycles
	PollErrors      int64         // Number of failed mailbox reads
	Messages        int64         // Number of messages delivered
	CallbackErrors  int64         // Number of OnMessage errors
	LastPollLatency time.Duration // Duration of last mailbox read
}

// MailboxActor polls the C2H register mailbox from its own goroutine.
// Each read takes the device lock so it never interleaves with event
// handling or a mailbox write.
type MailboxActor struct {
	device    *wcpu.Device
	config    *Config
	callbacks MailboxCallbacks
	stopChan  chan struct{}
	doneChan  chan struct{}
	mu        sync.Mutex
	running   atomic.Bool
	// Atomic counters for metrics
	pollCycles      atomic.Int64
	pollErrors      atomic.Int64
	messages        atomic.Int64
	callbackErrors  atomic.Int64
	lastPollLatency atomic.Int64 // in nanoseconds
	// Adaptive polling state
	currentInterval atomic.Int64 // in nanoseconds
	lastMessage     atomic.Int64 // UnixNano of the last message
}

// NewMailboxActor creates an actor for device. A nil config uses
// DefaultConfig.
func NewMailboxActor(device *wcpu.Device, config *Config, callbacks MailboxCallbacks) (*MailboxActor, error) {
	if device == nil {
		return nil, errors.New("device cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &MailboxActor{
		device:    device,
		config:    config,
		callbacks: callbacks,
	}
	a.currentInterval.Store(config.PollInterval.Nanoseconds())
	return a, nil
}

// Start begins polling. The actor stops when ctx is cancelled or Stop is
// called.
func (a *MailboxActor) Start(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrActorRunning
	}

	a.mu.Lock()
	a.stopChan = make(chan struct{})
	a.doneChan = make(chan struct{})
	stop, done := a.stopChan, a.doneChan
	a.mu.Unlock()

	a.lastMessage.Store(time.Now().UnixNano())
	a.currentInterval.Store(a.config.PollInterval.Nanoseconds())

	go a.pollLoop(ctx, stop, done)
	return nil
}

// Stop ends polling and waits for the goroutine to exit
func (a *MailboxActor) Stop() error {
	a.mu.Lock()
	stop, done := a.stopChan, a.doneChan
	a.stopChan = nil
	a.mu.Unlock()

	if stop == nil {
		return ErrActorNotRunning
	}
	close(stop)
	<-done
	return nil
}

// Running reports whether the poll goroutine is active
func (a *MailboxActor) Running() bool {
	return a.running.Load()
}

// pollLoop runs until stopped
func (a *MailboxActor) pollLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer a.running.Store(false)

	timer := time.NewTimer(a.config.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-timer.C:
			a.pollOnce()
			a.adjustPollInterval()
			timer.Reset(time.Duration(a.currentInterval.Load()))
		}
	}
}

// pollOnce reads the mailbox once and delivers a message if one is there
func (a *MailboxActor) pollOnce() {
	start := time.Now()
	a.device.Lock()
	msg, err := a.device.ReadMailbox()
	a.device.Unlock()

	a.pollCycles.Add(1)
	a.lastPollLatency.Store(time.Since(start).Nanoseconds())

	switch {
	case errors.Is(err, wcpu.ErrNoMailboxMessage):
		return
	case err != nil:
		a.pollErrors.Add(1)
		if a.callbacks.OnError != nil {
			a.callbacks.OnError(err)
		}
		return
	}

	a.messages.Add(1)
	a.lastMessage.Store(start.UnixNano())
	if a.callbacks.OnMessage != nil {
		if err := a.callbacks.OnMessage(msg); err != nil {
			a.callbackErrors.Add(1)
		}
	}
}

// adjustPollInterval slows polling down once the mailbox has been quiet
// for IdleAfter
func (a *MailboxActor) adjustPollInterval() {
	interval := a.config.PollInterval
	if a.config.IdleAfter > 0 {
		quiet := time.Duration(time.Now().UnixNano() - a.lastMessage.Load())
		if quiet > a.config.IdleAfter {
			interval = a.config.IdleInterval
		}
	}
	a.currentInterval.Store(interval.Nanoseconds())
}

// GetMetrics returns current operational metrics
func (a *MailboxActor) GetMetrics() MailboxMetrics {
	return MailboxMetrics{
		PollCycles:      a.pollCycles.Load(),
		PollErrors:      a.pollErrors.Load(),
		Messages:        a.messages.Load(),
		CallbackErrors:  a.callbackErrors.Load(),
		LastPollLatency: time.Duration(a.lastPollLatency.Load()),
	}
}

// GetCurrentPollInterval returns the current adaptive polling interval
func (a *MailboxActor) GetCurrentPollInterval() time.Duration {
	return time.Duration(a.currentInterval.Load())
}
