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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FirmwareSource fetches a firmware image by name. RequestFirmware must not
// block on the fetch: it calls done exactly once, from any goroutine, with
// either the image or an error. A non-nil return means done will not be
// called.
type FirmwareSource interface {
	RequestFirmware(name string, done func(data []byte, err error)) error
}

// DirSource looks a firmware name up in a list of directories, first match
// wins.
type DirSource struct {
	Dirs []string
}

// NewDirSource creates a DirSource over dirs
func NewDirSource(dirs ...string) *DirSource {
	return &DirSource{Dirs: dirs}
}

// RequestFirmware implements FirmwareSource
func (s *DirSource) RequestFirmware(name string, done func([]byte, error)) error {
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: firmware name %q", ErrInvalidParameter, name)
	}
	if len(s.Dirs) == 0 {
		return fmt.Errorf("%w: no firmware directories", ErrInvalidParameter)
	}

	go func() {
		var lastErr error
		for _, dir := range s.Dirs {
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path) //nolint:gosec // path is confined to the configured directories
			if err == nil {
				debugf("firmware %s loaded from %s (%d bytes)", name, path, len(data))
				done(data, nil)
				return
			}
			lastErr = err
		}
		done(nil, fmt.Errorf("firmware %s not found: %w", name, lastErr))
	}()
	return nil
}

// MemorySource serves firmware images held in memory
type MemorySource struct {
	images map[string][]byte
	mu     sync.RWMutex
}

// NewMemorySource creates an empty MemorySource
func NewMemorySource() *MemorySource {
	return &MemorySource{images: make(map[string][]byte)}
}

// Add registers an image under name
func (s *MemorySource) Add(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[name] = data
}

// RequestFirmware implements FirmwareSource
func (s *MemorySource) RequestFirmware(name string, done func([]byte, error)) error {
	s.mu.RLock()
	data, ok := s.images[name]
	s.mu.RUnlock()

	go func() {
		if !ok {
			done(nil, fmt.Errorf("firmware %s: %w", name, os.ErrNotExist))
			return
		}
		done(data, nil)
	}()
	return nil
}

// firmwareLoad is one outstanding or finished firmware request
type firmwareLoad struct {
	err  error
	done chan struct{}
	data []byte
	once sync.Once
}

func newFirmwareLoad() *firmwareLoad {
	return &firmwareLoad{done: make(chan struct{})}
}

func (l *firmwareLoad) complete(data []byte, err error) {
	l.once.Do(func() {
		l.data = data
		l.err = err
		close(l.done)
	})
}

// LoadFirmware starts fetching the configured firmware image in the
// background. It returns once the request is issued; use WaitFirmware to
// collect the result. A request already in flight is reused.
func (d *Device) LoadFirmware() error {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()

	if d.load != nil {
		select {
		case <-d.load.done:
			if d.load.data != nil {
				return nil
			}
		default:
			return nil
		}
	}

	load := newFirmwareLoad()
	d.load = load

	name := d.config.FirmwareName
	err := d.config.FirmwareSource.RequestFirmware(name, func(data []byte, err error) {
		if err != nil {
			d.log.Error("failed to request firmware", "name", name, "error", err)
		} else if len(data) == 0 {
			err = fmt.Errorf("firmware %s is empty", name)
			data = nil
		}
		load.complete(data, err)
	})
	if err != nil {
		d.log.Error("failed to async firmware request", "name", name, "error", err)
		load.complete(nil, err)
		return fmt.Errorf("request firmware %s: %w", name, err)
	}
	return nil
}

func (d *Device) currentLoad() *firmwareLoad {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()
	return d.load
}

// WaitFirmware blocks until the request started by LoadFirmware completes
func (d *Device) WaitFirmware() ([]byte, error) {
	return d.WaitFirmwareContext(context.Background())
}

// WaitFirmwareContext is WaitFirmware bounded by ctx
func (d *Device) WaitFirmwareContext(ctx context.Context) ([]byte, error) {
	load := d.currentLoad()
	if load == nil {
		return nil, fmt.Errorf("%w: no firmware request", ErrFirmwareUnavailable)
	}

	select {
	case <-load.done:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait firmware: %w", ctx.Err())
	}

	if load.data == nil {
		if load.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFirmwareUnavailable, load.err)
		}
		return nil, ErrFirmwareUnavailable
	}
	return load.data, nil
}

// UnloadFirmware waits for any outstanding request and drops the image.
// It is safe to call when nothing was loaded.
func (d *Device) UnloadFirmware() {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()

	if d.load == nil {
		return
	}
	<-d.load.done
	d.load = nil
}

// DownloadLoadedFirmware waits for the loaded image and downloads it
func (d *Device) DownloadLoadedFirmware() error {
	image, err := d.WaitFirmware()
	if err != nil {
		return err
	}
	return d.DownloadFirmware(image)
}
