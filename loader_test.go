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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-wcpu/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalledSource accepts requests and never completes them.
type stalledSource struct{}

func (stalledSource) RequestFirmware(string, func([]byte, error)) error {
	return nil
}

// failingSource refuses every request.
type failingSource struct{}

func (failingSource) RequestFirmware(string, func([]byte, error)) error {
	return errors.New("no async context")
}

func TestDevice_LoadFirmware_Memory(t *testing.T) {
	t.Parallel()

	image := twoSectionImage()
	src := NewMemorySource()
	src.Add("rtw89/test.bin", image)

	chip := NewVirtualChip()
	device := newTestDevice(t, chip, WithFirmwareSource(src), WithFirmwareName("rtw89/test.bin"))

	require.NoError(t, device.LoadFirmware())
	got, err := device.WaitFirmware()
	require.NoError(t, err)
	assert.Equal(t, image, got)

	require.NoError(t, device.DownloadLoadedFirmware())
	assert.True(t, device.FirmwareReady())
}

func TestDevice_LoadFirmware_Missing(t *testing.T) {
	t.Parallel()

	device := newTestDevice(t, NewVirtualChip(),
		WithFirmwareSource(NewMemorySource()), WithFirmwareName("absent.bin"))

	require.NoError(t, device.LoadFirmware())
	_, err := device.WaitFirmware()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFirmwareUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.ErrorIs(t, device.DownloadLoadedFirmware(), ErrFirmwareUnavailable)
}

func TestDevice_LoadFirmware_Empty(t *testing.T) {
	t.Parallel()

	src := NewMemorySource()
	src.Add("empty.bin", []byte{})
	device := newTestDevice(t, NewVirtualChip(), WithFirmwareSource(src), WithFirmwareName("empty.bin"))

	require.NoError(t, device.LoadFirmware())
	_, err := device.WaitFirmware()
	assert.ErrorIs(t, err, ErrFirmwareUnavailable)
}

func TestDevice_LoadFirmware_RequestRejected(t *testing.T) {
	t.Parallel()

	device := newTestDevice(t, NewVirtualChip(), WithFirmwareSource(failingSource{}))

	err := device.LoadFirmware()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no async context")

	// Waiting after a rejected request does not hang
	_, err = device.WaitFirmware()
	assert.ErrorIs(t, err, ErrFirmwareUnavailable)
}

func TestDevice_WaitFirmware_NoRequest(t *testing.T) {
	t.Parallel()

	device := newTestDevice(t, NewVirtualChip())
	_, err := device.WaitFirmware()
	assert.ErrorIs(t, err, ErrFirmwareUnavailable)

	// Unload with nothing loaded is a no-op
	device.UnloadFirmware()
}

func TestDevice_WaitFirmwareContext_Deadline(t *testing.T) {
	t.Parallel()

	device, err := New(NewSimRegisters(), NewMockTransmitter(), WithFirmwareSource(stalledSource{}))
	require.NoError(t, err)
	require.NoError(t, device.LoadFirmware())

	// A second load while the first is outstanding reuses it
	require.NoError(t, device.LoadFirmware())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = device.WaitFirmwareContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDevice_UnloadFirmware(t *testing.T) {
	t.Parallel()

	src := NewMemorySource()
	src.Add(DefaultFirmwareName, twoSectionImage())
	device := newTestDevice(t, NewVirtualChip(), WithFirmwareSource(src))

	require.NoError(t, device.LoadFirmware())
	device.UnloadFirmware()

	_, err := device.WaitFirmware()
	assert.ErrorIs(t, err, ErrFirmwareUnavailable)

	// Loading again after unload fetches a fresh copy
	require.NoError(t, device.LoadFirmware())
	_, err = device.WaitFirmware()
	require.NoError(t, err)
}

func TestDirSource(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(second, "rtw89"), 0o755))
	image := testutil.BuildImage(testutil.Section{Data: testutil.Pattern(10, 0)})
	require.NoError(t, os.WriteFile(filepath.Join(second, "rtw89", "fw.bin"), image, 0o600))

	tests := []struct {
		name       string
		fwName     string
		dirs       []string
		want       []byte
		requestErr bool
		waitErr    bool
	}{
		{name: "Found_In_Second_Dir", fwName: "rtw89/fw.bin", dirs: []string{first, second}, want: image},
		{name: "Not_Found", fwName: "rtw89/other.bin", dirs: []string{first, second}, waitErr: true},
		{name: "Escaping_Name", fwName: "../fw.bin", dirs: []string{first}, requestErr: true},
		{name: "Absolute_Name", fwName: "/etc/passwd", dirs: []string{first}, requestErr: true},
		{name: "No_Dirs", fwName: "fw.bin", dirs: nil, requestErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device := newTestDevice(t, NewVirtualChip(),
				WithFirmwareSource(NewDirSource(tt.dirs...)), WithFirmwareName(tt.fwName))

			err := device.LoadFirmware()
			if tt.requestErr {
				assert.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)

			got, err := device.WaitFirmware()
			if tt.waitErr {
				assert.ErrorIs(t, err, ErrFirmwareUnavailable)
				assert.ErrorIs(t, err, os.ErrNotExist)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
